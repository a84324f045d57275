package rest

import (
	"errors"
	"net/http"
	"sync"
)

// SecretStore is the keyed credential storage contract. The engine only
// reads tokens from it; persistence (keychain, file, vault) is the
// implementation's concern.
type SecretStore interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Remove(key string)
}

// MemorySecrets is a trivial in-process SecretStore, useful for tests and
// short-lived tools.
type MemorySecrets struct {
	mu      sync.RWMutex
	secrets map[string]string
}

var _ SecretStore = (*MemorySecrets)(nil)

// NewMemorySecrets builds an empty MemorySecrets.
func NewMemorySecrets() *MemorySecrets {
	return &MemorySecrets{secrets: make(map[string]string)}
}

// Get returns the secret under key.
func (m *MemorySecrets) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.secrets[key]
	return v, ok
}

// Set stores value under key.
func (m *MemorySecrets) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[key] = value
}

// Remove deletes the secret under key.
func (m *MemorySecrets) Remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.secrets, key)
}

// ErrMissingCredential is returned by BearerAuth.Adapt when the store has
// no token under the configured key.
var ErrMissingCredential = errors.New("missing credential")

// BearerAuth is an Interceptor that injects "Authorization: Bearer <token>"
// from a SecretStore on every attempt. Retry decisions are delegated to
// Next when set; otherwise every failure is terminal.
type BearerAuth struct {
	Store SecretStore
	Key   string
	Next  Interceptor
}

var _ Interceptor = BearerAuth{}

// Adapt injects the Authorization header, then delegates to Next.
func (a BearerAuth) Adapt(req *http.Request) (*http.Request, error) {
	token, ok := a.Store.Get(a.Key)
	if !ok || token == "" {
		return nil, ErrMissingCredential
	}
	req.Header.Set("Authorization", "Bearer "+token)

	if a.Next != nil {
		return a.Next.Adapt(req)
	}
	return req, nil
}

// Retry delegates to Next when present.
func (a BearerAuth) Retry(req *http.Request, err error, attempt int) RetryDecision {
	if a.Next != nil {
		return a.Next.Retry(req, err, attempt)
	}
	return Stop()
}
