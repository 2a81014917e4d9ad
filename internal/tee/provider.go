// Package tee provides the confidential-execution decorator: a pluggable
// encrypt/decrypt pair applied to every value crossing the engine boundary
// of a TEE-backed instance. The engine itself is unchanged by its presence.
package tee

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dws-network/dws-cache/internal/cache"
	"github.com/dws-network/dws-cache/internal/events"
)

// Provider encrypts and decrypts value payloads. Implementations perform
// network I/O; callers must never hold an engine critical section across a
// call.
type Provider interface {
	Name() string
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// Codec applies a Provider around string values and emits attestation
// lifecycle events.
type Codec struct {
	provider Provider
	bus      *events.Bus
}

// NewCodec wraps the provider.
func NewCodec(provider Provider, bus *events.Bus) *Codec {
	if bus == nil {
		bus = events.NewBus()
	}
	return &Codec{provider: provider, bus: bus}
}

// Provider returns the wrapped provider.
func (c *Codec) Provider() Provider { return c.provider }

// EncryptString encrypts a value before it enters the engine.
func (c *Codec) EncryptString(ctx context.Context, value string) (string, error) {
	out, err := c.provider.Encrypt(ctx, []byte(value))
	if err != nil {
		return "", cache.NewError(cache.CodeNodeUnavailable, "tee encrypt: %v", err)
	}
	return string(out), nil
}

// DecryptString decrypts a value after it leaves the engine.
func (c *Codec) DecryptString(ctx context.Context, value string) (string, error) {
	out, err := c.provider.Decrypt(ctx, []byte(value))
	if err != nil {
		return "", cache.NewError(cache.CodeAttestationFailed, "tee decrypt: %v", err)
	}
	return string(out), nil
}

// RefreshAttestation re-announces the provider, emitting AttestationRefresh.
func (c *Codec) RefreshAttestation(instanceID string) {
	c.bus.Emit(events.Event{
		Type:       events.EventAttestationRefresh,
		InstanceID: instanceID,
		NodeID:     c.provider.Name(),
	})
}

// SimulatedProvider is a deterministic keystream cipher for environments
// without a real enclave. It is explicitly not cryptographically secure.
type SimulatedProvider struct {
	name string
	key  []byte
}

// NewSimulatedProvider derives a keystream from the seed.
func NewSimulatedProvider(name, seed string) *SimulatedProvider {
	if seed == "" {
		seed = name
	}
	return &SimulatedProvider{name: name, key: []byte(seed)}
}

func (p *SimulatedProvider) Name() string { return p.name }

func (p *SimulatedProvider) xor(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ p.key[i%len(p.key)]
	}
	return out
}

// Encrypt XORs the plaintext with the keystream and base64-wraps it.
func (p *SimulatedProvider) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	return []byte("tee1:" + base64.StdEncoding.EncodeToString(p.xor(plaintext))), nil
}

// Decrypt reverses Encrypt.
func (p *SimulatedProvider) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	raw, ok := bytes.CutPrefix(ciphertext, []byte("tee1:"))
	if !ok {
		return nil, fmt.Errorf("payload is not tee-encoded")
	}
	decoded, err := base64.StdEncoding.DecodeString(string(raw))
	if err != nil {
		return nil, fmt.Errorf("malformed tee payload: %w", err)
	}
	return p.xor(decoded), nil
}

// HTTPProvider delegates to an external enclave service.
type HTTPProvider struct {
	name     string
	endpoint string
	client   *http.Client
}

// NewHTTPProvider points the codec at an enclave endpoint exposing
// POST /encrypt and POST /decrypt.
func NewHTTPProvider(name, endpoint string) *HTTPProvider {
	return &HTTPProvider{
		name:     name,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *HTTPProvider) Name() string { return p.name }

type teePayload struct {
	Data string `json:"data"`
}

func (p *HTTPProvider) roundTrip(ctx context.Context, op string, data []byte) ([]byte, error) {
	body, _ := json.Marshal(teePayload{Data: base64.StdEncoding.EncodeToString(data)})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/"+op, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tee provider %s returned %d", p.name, resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var out teePayload
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(out.Data)
}

// Encrypt calls the enclave's encrypt endpoint.
func (p *HTTPProvider) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	return p.roundTrip(ctx, "encrypt", plaintext)
}

// Decrypt calls the enclave's decrypt endpoint.
func (p *HTTPProvider) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	return p.roundTrip(ctx, "decrypt", ciphertext)
}
