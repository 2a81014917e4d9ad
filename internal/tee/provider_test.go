package tee

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dws-network/dws-cache/internal/cache"
	"github.com/dws-network/dws-cache/internal/events"
)

func TestSimulatedProviderRoundTrip(t *testing.T) {
	p := NewSimulatedProvider("sim", "seed")
	ctx := context.Background()

	ct, err := p.Encrypt(ctx, []byte("secret value"))
	require.NoError(t, err)
	assert.NotEqual(t, "secret value", string(ct))
	assert.Contains(t, string(ct), "tee1:")

	pt, err := p.Decrypt(ctx, ct)
	require.NoError(t, err)
	assert.Equal(t, "secret value", string(pt))
}

func TestDecryptRejectsUnwrappedPayload(t *testing.T) {
	p := NewSimulatedProvider("sim", "seed")

	_, err := p.Decrypt(context.Background(), []byte("plain"))
	assert.Error(t, err)

	_, err = p.Decrypt(context.Background(), []byte("tee1:!!not-base64!!"))
	assert.Error(t, err)
}

func TestCodecErrorCodes(t *testing.T) {
	codec := NewCodec(NewSimulatedProvider("sim", "seed"), nil)
	ctx := context.Background()

	ct, err := codec.EncryptString(ctx, "v")
	require.NoError(t, err)
	pt, err := codec.DecryptString(ctx, ct)
	require.NoError(t, err)
	assert.Equal(t, "v", pt)

	_, err = codec.DecryptString(ctx, "not-encrypted")
	assert.True(t, cache.IsCode(err, cache.CodeAttestationFailed))
}

func TestRefreshAttestationEmitsEvent(t *testing.T) {
	bus := events.NewBus()
	var got []events.Event
	bus.Subscribe(events.EventAttestationRefresh, func(e events.Event) { got = append(got, e) })

	codec := NewCodec(NewSimulatedProvider("sim", ""), bus)
	codec.RefreshAttestation("inst-1")

	require.Len(t, got, 1)
	assert.Equal(t, "inst-1", got[0].InstanceID)
	assert.Equal(t, "sim", got[0].NodeID)
}
