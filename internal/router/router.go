// Package router maps namespaces onto engines: the shared default engine,
// per-instance engines for provisioned plans, and TEE-wrapped instances. It
// owns the provisioning records and is the only place engines are
// constructed at request time.
package router

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dws-network/dws-cache/internal/cache"
	"github.com/dws-network/dws-cache/internal/events"
	"github.com/dws-network/dws-cache/internal/tee"
	"github.com/dws-network/dws-cache/pkg/observability"
)

// Plan is one rentable instance tier.
type Plan struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	MaxMemoryMB  int     `json:"maxMemoryMb"`
	PriceMonthly float64 `json:"priceMonthly"`
	TEE          bool    `json:"tee"`
	Subscription bool    `json:"subscription"`
	Description  string  `json:"description"`
}

// DefaultPlans returns the built-in catalog.
func DefaultPlans() []Plan {
	return []Plan{
		{ID: "starter", Name: "Starter", MaxMemoryMB: 64, PriceMonthly: 0, Description: "Shared capacity for evaluation"},
		{ID: "standard", Name: "Standard", MaxMemoryMB: 256, PriceMonthly: 9, Subscription: true, Description: "Dedicated engine, 256 MB"},
		{ID: "performance", Name: "Performance", MaxMemoryMB: 1024, PriceMonthly: 29, Subscription: true, Description: "Dedicated engine, 1 GB"},
		{ID: "confidential", Name: "Confidential", MaxMemoryMB: 256, PriceMonthly: 49, TEE: true, Subscription: true, Description: "Dedicated engine with TEE-encrypted values"},
	}
}

// Instance links a namespace to a provisioned engine.
type Instance struct {
	ID        string    `json:"id"`
	Namespace string    `json:"namespace"`
	Owner     string    `json:"owner"`
	PlanID    string    `json:"planId"`
	TEE       bool      `json:"tee"`
	CreatedAt time.Time `json:"createdAt"`
}

// Billing is the external payment collaborator. A nil error authorizes the
// namespace; a PAYMENT_REQUIRED error gates it.
type Billing interface {
	AuthorizeSubscription(ctx context.Context, namespace string) error
}

// NoopBilling authorizes everything.
type NoopBilling struct{}

func (NoopBilling) AuthorizeSubscription(ctx context.Context, namespace string) error { return nil }

// Target is the resolved serving path for one namespace.
type Target struct {
	Engine   *cache.Engine
	TEE      *tee.Codec
	Instance *Instance
}

var ownerAddressRe = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{40}$`)

// ValidOwnerAddress reports whether s is a 20-byte hex address.
func ValidOwnerAddress(s string) bool {
	return ownerAddressRe.MatchString(s)
}

// Manager holds the shared engine, the provisioning records and the memoized
// per-namespace engines.
type Manager struct {
	mu          sync.RWMutex
	shared      *cache.Engine
	instances   map[string]*Instance
	byNamespace map[string]*Instance
	engines     map[string]*cache.Engine
	codecs      map[string]*tee.Codec

	plans       []Plan
	baseCfg     cache.Config
	teeProvider tee.Provider
	billing     Billing
	bus         *events.Bus
	logger      observability.Logger
}

// NewManager creates a manager around the shared engine.
func NewManager(shared *cache.Engine, baseCfg cache.Config, teeProvider tee.Provider, billing Billing, bus *events.Bus, logger observability.Logger) *Manager {
	if billing == nil {
		billing = NoopBilling{}
	}
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if bus == nil {
		bus = events.NewBus()
	}
	return &Manager{
		shared:      shared,
		instances:   make(map[string]*Instance),
		byNamespace: make(map[string]*Instance),
		engines:     make(map[string]*cache.Engine),
		codecs:      make(map[string]*tee.Codec),
		plans:       DefaultPlans(),
		baseCfg:     baseCfg,
		teeProvider: teeProvider,
		billing:     billing,
		bus:         bus,
		logger:      logger,
	}
}

// Plans returns the catalog.
func (m *Manager) Plans() []Plan {
	return m.plans
}

func (m *Manager) plan(id string) (Plan, bool) {
	for _, p := range m.plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// Resolve returns the serving target for a namespace: the provisioned
// instance's engine (TEE-wrapped when applicable) or the shared default.
func (m *Manager) Resolve(namespace string) Target {
	m.mu.RLock()
	inst, ok := m.byNamespace[namespace]
	if !ok {
		m.mu.RUnlock()
		return Target{Engine: m.shared}
	}
	eng := m.engines[namespace]
	codec := m.codecs[namespace]
	m.mu.RUnlock()
	return Target{Engine: eng, TEE: codec, Instance: inst}
}

// Authorize applies the billing gate for namespaces on subscription plans.
func (m *Manager) Authorize(ctx context.Context, namespace string) error {
	m.mu.RLock()
	inst, ok := m.byNamespace[namespace]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	plan, ok := m.plan(inst.PlanID)
	if !ok || !plan.Subscription {
		return nil
	}
	return m.billing.AuthorizeSubscription(ctx, namespace)
}

// CreateInstance provisions a dedicated engine for the owner on the plan.
// The namespace defaults to the instance id.
func (m *Manager) CreateInstance(owner, planID, namespace string) (*Instance, error) {
	if !ValidOwnerAddress(owner) {
		return nil, cache.ErrUnauthorized("missing or malformed owner address")
	}
	plan, ok := m.plan(planID)
	if !ok {
		return nil, cache.ErrInvalidOperation("unknown plan %q", planID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	if namespace == "" {
		namespace = id
	}
	if _, taken := m.byNamespace[namespace]; taken {
		return nil, cache.ErrInvalidOperation("namespace %q is already provisioned", namespace)
	}

	cfg := m.baseCfg
	cfg.MaxMemoryMB = plan.MaxMemoryMB
	eng := cache.NewEngine(cfg, m.bus, m.logger.WithPrefix("engine:"+namespace))

	inst := &Instance{
		ID:        id,
		Namespace: namespace,
		Owner:     owner,
		PlanID:    plan.ID,
		TEE:       plan.TEE,
		CreatedAt: time.Now(),
	}
	m.instances[id] = inst
	m.byNamespace[namespace] = inst
	m.engines[namespace] = eng
	if plan.TEE && m.teeProvider != nil {
		codec := tee.NewCodec(m.teeProvider, m.bus)
		m.codecs[namespace] = codec
		codec.RefreshAttestation(id)
	}

	m.bus.Emit(events.Event{Type: events.EventInstanceCreate, InstanceID: id, Namespace: namespace})
	m.logger.Info("instance provisioned", map[string]interface{}{
		"instance":  id,
		"namespace": namespace,
		"plan":      plan.ID,
		"tee":       plan.TEE,
	})
	return inst, nil
}

// GetInstance returns the record by id.
func (m *Manager) GetInstance(id string) (*Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[id]
	return inst, ok
}

// ListInstances returns records, filtered by owner when non-empty.
func (m *Manager) ListInstances(owner string) []*Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*Instance{}
	for _, inst := range m.instances {
		if owner == "" || inst.Owner == owner {
			out = append(out, inst)
		}
	}
	return out
}

// DeleteInstance tears the instance down. The caller's owner address must
// match the record.
func (m *Manager) DeleteInstance(id, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.instances[id]
	if !ok {
		return cache.NewError(cache.CodeInstanceNotFound, "instance %q not found", id)
	}
	if inst.Owner != owner {
		return cache.ErrUnauthorized("owner address does not match instance owner")
	}
	if eng, ok := m.engines[inst.Namespace]; ok {
		eng.FlushAll()
		eng.Close()
		delete(m.engines, inst.Namespace)
	}
	delete(m.codecs, inst.Namespace)
	delete(m.byNamespace, inst.Namespace)
	delete(m.instances, id)

	m.bus.Emit(events.Event{Type: events.EventInstanceDelete, InstanceID: id, Namespace: inst.Namespace})
	return nil
}

// InstanceCount returns the number of provisioned instances.
func (m *Manager) InstanceCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.instances)
}

// TEECount returns the number of TEE-backed instances.
func (m *Manager) TEECount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, inst := range m.instances {
		if inst.TEE {
			n++
		}
	}
	return n
}

// TotalStats aggregates the shared engine with every instance engine.
func (m *Manager) TotalStats() cache.EngineStats {
	m.mu.RLock()
	engines := make([]*cache.Engine, 0, len(m.engines)+1)
	engines = append(engines, m.shared)
	for _, eng := range m.engines {
		engines = append(engines, eng)
	}
	m.mu.RUnlock()

	var total cache.EngineStats
	for _, eng := range engines {
		st := eng.Stats()
		total.Namespaces += st.Namespaces
		total.Keys += st.Keys
		total.MemoryBytes += st.MemoryBytes
		total.MaxBytes += st.MaxBytes
		total.Hits += st.Hits
		total.Misses += st.Misses
		total.Evictions += st.Evictions
		total.ExpiredKeys += st.ExpiredKeys
	}
	return total
}

// Close shuts down every engine this manager constructed. The shared engine
// is owned by the caller.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ns, eng := range m.engines {
		eng.Close()
		delete(m.engines, ns)
	}
}
