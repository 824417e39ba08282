package extctx

import (
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

// SecretStorage keeps values sealed with XChaCha20-Poly1305 under a key that
// only lives in memory. Each value is bound to its name as additional data.
type SecretStorage struct {
	mu     sync.RWMutex
	aead   cipher.AEAD
	sealed map[string][]byte
}

func NewSecretStorage() (*SecretStorage, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate secret key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init secret cipher: %w", err)
	}
	return &SecretStorage{aead: aead, sealed: make(map[string][]byte)}, nil
}

// Store seals value under name.
func (s *SecretStorage) Store(name, value string) error {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(value)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	box := s.aead.Seal(nonce, nonce, []byte(value), []byte(name))

	s.mu.Lock()
	s.sealed[name] = box
	s.mu.Unlock()
	return nil
}

// Get opens the value stored under name.
func (s *SecretStorage) Get(name string) (string, bool, error) {
	s.mu.RLock()
	box, ok := s.sealed[name]
	s.mu.RUnlock()
	if !ok {
		return "", false, nil
	}

	ns := s.aead.NonceSize()
	if len(box) < ns {
		return "", false, fmt.Errorf("secret %s: sealed value too short", name)
	}
	plain, err := s.aead.Open(nil, box[:ns], box[ns:], []byte(name))
	if err != nil {
		return "", false, fmt.Errorf("secret %s: %w", name, err)
	}
	return string(plain), true, nil
}

// Delete removes name. Deleting a missing name is not an error.
func (s *SecretStorage) Delete(name string) {
	s.mu.Lock()
	delete(s.sealed, name)
	s.mu.Unlock()
}

// Names returns the stored secret names.
func (s *SecretStorage) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.sealed))
	for n := range s.sealed {
		names = append(names, n)
	}
	return names
}
