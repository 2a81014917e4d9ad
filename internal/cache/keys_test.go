package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeysGlobMatching(t *testing.T) {
	e := defaultTestEngine(t)

	for _, k := range []string{"user:1", "user:2", "session:1"} {
		_, err := e.Set("default", k, "v", SetOptions{})
		require.NoError(t, err)
	}

	keys, err := e.Keys("default", "user:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"user:1", "user:2"}, keys)

	keys, err = e.Keys("default", "*:?")
	require.NoError(t, err)
	assert.Len(t, keys, 3)

	keys, err = e.Keys("absent-namespace", "*")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestScanWalksAllKeys(t *testing.T) {
	e := defaultTestEngine(t)

	for i := 0; i < 25; i++ {
		_, err := e.Set("default", fmt.Sprintf("k%02d", i), "v", SetOptions{})
		require.NoError(t, err)
	}

	seen := map[string]bool{}
	cursor := "0"
	for {
		keys, next, err := e.Scan("default", cursor, "*", 10)
		require.NoError(t, err)
		for _, k := range keys {
			seen[k] = true
		}
		if next == "0" {
			break
		}
		cursor = next
	}
	assert.Len(t, seen, 25)

	_, _, err := e.Scan("default", "not-a-number", "*", 10)
	assert.True(t, IsCode(err, CodeInvalidOperation))
}

func TestTypeReporting(t *testing.T) {
	e := defaultTestEngine(t)

	_, err := e.Set("default", "s", "v", SetOptions{})
	require.NoError(t, err)
	_, err = e.HSet("default", "h", "f", "v")
	require.NoError(t, err)
	_, err = e.RPush("default", "l", "v")
	require.NoError(t, err)

	assert.Equal(t, "string", e.Type("default", "s"))
	assert.Equal(t, "hash", e.Type("default", "h"))
	assert.Equal(t, "list", e.Type("default", "l"))
	assert.Equal(t, "none", e.Type("default", "missing"))
}

func TestRenameCarriesValueAndTTL(t *testing.T) {
	e := defaultTestEngine(t)

	ttl := int64(120)
	_, err := e.Set("default", "old", "v", SetOptions{TTLSeconds: &ttl})
	require.NoError(t, err)

	renamed, err := e.Rename("default", "old", "new")
	require.NoError(t, err)
	assert.True(t, renamed)

	v, found, err := e.Get("default", "new")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v", v)

	_, found, err = e.Get("default", "old")
	require.NoError(t, err)
	assert.False(t, found)

	remaining := e.TTL("default", "new")
	assert.Greater(t, remaining, int64(115))

	renamed, err = e.Rename("default", "missing", "x")
	require.NoError(t, err)
	assert.False(t, renamed)
}

func TestRenameOverwritesDestination(t *testing.T) {
	e := defaultTestEngine(t)

	_, err := e.Set("default", "a", "from", SetOptions{})
	require.NoError(t, err)
	_, err = e.Set("default", "b", "to-be-replaced", SetOptions{})
	require.NoError(t, err)

	_, err = e.Rename("default", "a", "b")
	require.NoError(t, err)

	v, _, err := e.Get("default", "b")
	require.NoError(t, err)
	assert.Equal(t, "from", v)
	assert.Equal(t, int64(1), e.Stats().Keys)
}

func TestFlushAllResetsAccounting(t *testing.T) {
	e := defaultTestEngine(t)

	_, err := e.Set("ns1", "a", "1", SetOptions{})
	require.NoError(t, err)
	_, err = e.Set("ns2", "b", "2", SetOptions{})
	require.NoError(t, err)

	e.FlushAll()
	st := e.Stats()
	assert.Equal(t, int64(0), st.Keys)
	assert.Equal(t, int64(0), st.MemoryBytes)
	assert.Equal(t, 0, e.lru.len())
}
