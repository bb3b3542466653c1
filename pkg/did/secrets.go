package did

import (
	"sync"

	"github.com/pkg/errors"
)

type SecretType string

const (
	SecretTypeEd25519 SecretType = "Ed25519PrivateKey"
	SecretTypeX25519  SecretType = "X25519PrivateKey"
)

var (
	ErrNoSecret = errors.New("no matching secret")
)

// Secret is private key material addressed by "<did>#<key-label>". It is
// created at identity generation, read on every sign/decrypt and never
// mutated
type Secret struct {
	ID                  string     `yaml:"id"`
	Type                SecretType `yaml:"type"`
	PrivateKeyMultibase string     `yaml:"privateKeyMultibase"`
}

// String redacts key material from accidental logging
func (s Secret) String() string {
	return s.ID + " [redacted]"
}

// SecretStore owns private key material. All mutation goes through this
// surface; no other component writes its records
type SecretStore interface {
	Put(s Secret) error
	Get(id string) (*Secret, error)
	Delete(id string) error
	Clear() error
	Close() error
}

var _ SecretStore = (*MemSecretStore)(nil)

// MemSecretStore is an explicitly constructed in-memory secret store,
// created at agent start and closed at shutdown
type MemSecretStore struct {
	mu      sync.RWMutex
	secrets map[string]Secret
}

func NewMemSecretStore() *MemSecretStore {
	return &MemSecretStore{secrets: make(map[string]Secret)}
}

func (m *MemSecretStore) Put(s Secret) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.secrets[s.ID] = s

	return nil
}

func (m *MemSecretStore) Get(id string) (*Secret, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.secrets[id]
	if !ok {
		return nil, errors.Wrap(ErrNoSecret, id)
	}

	return &s, nil
}

func (m *MemSecretStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.secrets, id)

	return nil
}

func (m *MemSecretStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.secrets = make(map[string]Secret)

	return nil
}

func (m *MemSecretStore) Close() error {
	return m.Clear()
}
