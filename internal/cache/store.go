package cache

import "container/list"

// namespaceData is one tenant's keyspace plus its accounting counters.
// usedBytes is kept in lockstep with the entries map: every mutation applies
// its size delta in the same critical section.
type namespaceData struct {
	entries   map[string]*Entry
	usedBytes int64
	hits      int64
	misses    int64
}

func newNamespaceData() *namespaceData {
	return &namespaceData{entries: make(map[string]*Entry)}
}

// lruKey identifies one live entry across all namespaces of an engine.
type lruKey struct {
	namespace string
	key       string
}

// lruIndex is the engine-wide recency list. The back of the list is the most
// recently used entry; eviction drains from the front. Exactly one node
// exists per live entry.
type lruIndex struct {
	order *list.List
	nodes map[lruKey]*list.Element
}

func newLRUIndex() *lruIndex {
	return &lruIndex{
		order: list.New(),
		nodes: make(map[lruKey]*list.Element),
	}
}

// touch moves the key to the most-recently-used position, inserting it if it
// is not tracked yet.
func (idx *lruIndex) touch(k lruKey) {
	if elem, ok := idx.nodes[k]; ok {
		idx.order.MoveToBack(elem)
		return
	}
	idx.nodes[k] = idx.order.PushBack(k)
}

// remove drops the key from the index if present.
func (idx *lruIndex) remove(k lruKey) {
	if elem, ok := idx.nodes[k]; ok {
		idx.order.Remove(elem)
		delete(idx.nodes, k)
	}
}

// oldest returns the least recently used key.
func (idx *lruIndex) oldest() (lruKey, bool) {
	front := idx.order.Front()
	if front == nil {
		return lruKey{}, false
	}
	return front.Value.(lruKey), true
}

func (idx *lruIndex) len() int {
	return idx.order.Len()
}
