package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"streamwatch/internal/domain"
)

// VerificationStore guarda el estado pendiente de verificación por sesión.
type VerificationStore interface {
	Put(sessionID string, pending domain.PendingVerification, ttl time.Duration) error
	Get(sessionID string) (domain.PendingVerification, bool, error)
	Delete(sessionID string) error
}

type memoryEntry struct {
	pending   domain.PendingVerification
	expiresAt time.Time
}

type memoryVerificationStore struct {
	mu    sync.Mutex
	items map[string]memoryEntry
}

func NewMemoryVerificationStore() VerificationStore {
	return &memoryVerificationStore{
		items: make(map[string]memoryEntry),
	}
}

func (s *memoryVerificationStore) Put(sessionID string, pending domain.PendingVerification, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(sessionID) == "" {
		return nil
	}
	s.items[sessionID] = memoryEntry{
		pending:   pending,
		expiresAt: time.Now().UTC().Add(ttl),
	}
	return nil
}

func (s *memoryVerificationStore) Get(sessionID string) (domain.PendingVerification, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.items[sessionID]
	if !ok {
		return domain.PendingVerification{}, false, nil
	}
	if time.Now().UTC().After(entry.expiresAt) {
		delete(s.items, sessionID)
		return domain.PendingVerification{}, false, nil
	}
	return entry.pending, true, nil
}

func (s *memoryVerificationStore) Delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, sessionID)
	return nil
}

type redisVerificationStore struct {
	client *redis.Client
	prefix string
}

func NewRedisVerificationStore(client *redis.Client) VerificationStore {
	if client == nil {
		return nil
	}
	return &redisVerificationStore{
		client: client,
		prefix: "verify:pending:",
	}
}

func (s *redisVerificationStore) Put(sessionID string, pending domain.PendingVerification, ttl time.Duration) error {
	if strings.TrimSpace(sessionID) == "" {
		return nil
	}
	payload, err := json.Marshal(pending)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	return s.client.Set(ctx, s.prefix+sessionID, payload, ttl).Err()
}

func (s *redisVerificationStore) Get(sessionID string) (domain.PendingVerification, bool, error) {
	if strings.TrimSpace(sessionID) == "" {
		return domain.PendingVerification{}, false, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	payload, err := s.client.Get(ctx, s.prefix+sessionID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return domain.PendingVerification{}, false, nil
		}
		return domain.PendingVerification{}, false, err
	}
	var pending domain.PendingVerification
	if err := json.Unmarshal(payload, &pending); err != nil {
		return domain.PendingVerification{}, false, err
	}
	return pending, true, nil
}

func (s *redisVerificationStore) Delete(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	return s.client.Del(ctx, s.prefix+sessionID).Err()
}
