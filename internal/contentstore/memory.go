package contentstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/stemsi/examvault/internal/encryption"
)

// MemoryStore keeps envelopes in process memory, addressed by the SHA-256 of
// their JSON encoding. Used for local development and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (s *MemoryStore) Publish(_ context.Context, _ string, env *encryption.Envelope) (string, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	sum := sha256.Sum256(raw)
	handle := "sha256-" + hex.EncodeToString(sum[:])

	s.mu.Lock()
	s.blobs[handle] = raw
	s.mu.Unlock()
	return handle, nil
}

func (s *MemoryStore) Fetch(_ context.Context, handle string) (*encryption.Envelope, error) {
	s.mu.RLock()
	raw, ok := s.blobs[handle]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	var env encryption.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return &env, nil
}

// Put stores raw bytes under a handle, bypassing hashing. Tests use it to
// plant corrupt content.
func (s *MemoryStore) Put(handle string, raw []byte) {
	s.mu.Lock()
	s.blobs[handle] = raw
	s.mu.Unlock()
}
