package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dws-network/dws-cache/internal/cache"
	"github.com/dws-network/dws-cache/internal/events"
	"github.com/dws-network/dws-cache/internal/tee"
)

const testOwner = "0x1234567890abcdef1234567890abcdef12345678"

type refusingBilling struct{}

func (refusingBilling) AuthorizeSubscription(ctx context.Context, namespace string) error {
	return cache.NewError(cache.CodePaymentRequired, "subscription for %q is unpaid", namespace)
}

func newTestManager(t *testing.T, billing Billing) (*Manager, *cache.Engine) {
	t.Helper()
	cfg := cache.DefaultConfig()
	shared := cache.NewEngine(cfg, nil, nil)
	t.Cleanup(shared.Close)
	m := NewManager(shared, cfg, tee.NewSimulatedProvider("sim", "seed"), billing, events.NewBus(), nil)
	t.Cleanup(m.Close)
	return m, shared
}

func TestValidOwnerAddress(t *testing.T) {
	assert.True(t, ValidOwnerAddress(testOwner))
	assert.True(t, ValidOwnerAddress("1234567890abcdef1234567890abcdef12345678"))
	assert.False(t, ValidOwnerAddress(""))
	assert.False(t, ValidOwnerAddress("0x123"))
	assert.False(t, ValidOwnerAddress("0xZZ34567890abcdef1234567890abcdef12345678"))
}

func TestResolveFallsBackToSharedEngine(t *testing.T) {
	m, shared := newTestManager(t, nil)

	target := m.Resolve("unprovisioned")
	assert.Same(t, shared, target.Engine)
	assert.Nil(t, target.TEE)
	assert.Nil(t, target.Instance)
}

func TestCreateInstanceProvisionsDedicatedEngine(t *testing.T) {
	m, shared := newTestManager(t, nil)

	inst, err := m.CreateInstance(testOwner, "standard", "tenant")
	require.NoError(t, err)
	assert.Equal(t, "tenant", inst.Namespace)
	assert.Equal(t, "standard", inst.PlanID)
	assert.False(t, inst.TEE)

	target := m.Resolve("tenant")
	require.NotNil(t, target.Engine)
	assert.NotSame(t, shared, target.Engine)
	assert.Nil(t, target.TEE)
	assert.Equal(t, inst.ID, target.Instance.ID)
	assert.Equal(t, 1, m.InstanceCount())
}

func TestCreateInstanceDefaultsNamespaceToID(t *testing.T) {
	m, _ := newTestManager(t, nil)

	inst, err := m.CreateInstance(testOwner, "starter", "")
	require.NoError(t, err)
	assert.Equal(t, inst.ID, inst.Namespace)
}

func TestCreateInstanceValidation(t *testing.T) {
	m, _ := newTestManager(t, nil)

	_, err := m.CreateInstance("bogus", "standard", "")
	assert.True(t, cache.IsCode(err, cache.CodeUnauthorized))

	_, err = m.CreateInstance(testOwner, "no-such-plan", "")
	assert.True(t, cache.IsCode(err, cache.CodeInvalidOperation))

	_, err = m.CreateInstance(testOwner, "standard", "taken")
	require.NoError(t, err)
	_, err = m.CreateInstance(testOwner, "standard", "taken")
	assert.True(t, cache.IsCode(err, cache.CodeInvalidOperation))
}

func TestConfidentialPlanGetsTEECodec(t *testing.T) {
	m, _ := newTestManager(t, nil)

	inst, err := m.CreateInstance(testOwner, "confidential", "secure")
	require.NoError(t, err)
	assert.True(t, inst.TEE)

	target := m.Resolve("secure")
	require.NotNil(t, target.TEE)
	assert.Equal(t, 1, m.TEECount())
}

func TestBillingGateOnSubscriptionPlans(t *testing.T) {
	m, _ := newTestManager(t, refusingBilling{})

	_, err := m.CreateInstance(testOwner, "standard", "tenant")
	require.NoError(t, err)

	err = m.Authorize(context.Background(), "tenant")
	assert.True(t, cache.IsCode(err, cache.CodePaymentRequired))

	// Free plans and unprovisioned namespaces are never gated.
	_, err = m.CreateInstance(testOwner, "starter", "free")
	require.NoError(t, err)
	assert.NoError(t, m.Authorize(context.Background(), "free"))
	assert.NoError(t, m.Authorize(context.Background(), "unprovisioned"))
}

func TestDeleteInstanceRequiresMatchingOwner(t *testing.T) {
	m, _ := newTestManager(t, nil)

	inst, err := m.CreateInstance(testOwner, "standard", "tenant")
	require.NoError(t, err)

	err = m.DeleteInstance(inst.ID, "0xffff567890abcdef1234567890abcdef12345678")
	assert.True(t, cache.IsCode(err, cache.CodeUnauthorized))

	require.NoError(t, m.DeleteInstance(inst.ID, testOwner))
	assert.Equal(t, 0, m.InstanceCount())

	target := m.Resolve("tenant")
	assert.Nil(t, target.Instance, "deleted namespace falls back to the shared engine")

	err = m.DeleteInstance(inst.ID, testOwner)
	assert.True(t, cache.IsCode(err, cache.CodeInstanceNotFound))
}

func TestListInstancesFiltersByOwner(t *testing.T) {
	m, _ := newTestManager(t, nil)

	_, err := m.CreateInstance(testOwner, "starter", "a")
	require.NoError(t, err)
	_, err = m.CreateInstance("0xffff567890abcdef1234567890abcdef12345678", "starter", "b")
	require.NoError(t, err)

	assert.Len(t, m.ListInstances(""), 2)
	assert.Len(t, m.ListInstances(testOwner), 1)
}

func TestTotalStatsAggregatesEngines(t *testing.T) {
	m, shared := newTestManager(t, nil)

	_, err := shared.Set("default", "k", "v", cache.SetOptions{})
	require.NoError(t, err)

	_, err = m.CreateInstance(testOwner, "standard", "tenant")
	require.NoError(t, err)
	target := m.Resolve("tenant")
	_, err = target.Engine.Set("tenant", "k", "v", cache.SetOptions{})
	require.NoError(t, err)

	total := m.TotalStats()
	assert.Equal(t, int64(2), total.Keys)
	assert.Greater(t, total.MaxBytes, shared.Stats().MaxBytes)
}
