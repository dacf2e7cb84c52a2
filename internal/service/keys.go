package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/faucetdb/tollgate/internal/auth"
	"github.com/faucetdb/tollgate/internal/clock"
	"github.com/faucetdb/tollgate/internal/store"
)

// ErrLifetimeTooLong is returned when a requested key lifetime exceeds the
// configured maximum.
var ErrLifetimeTooLong = errors.New("key lifetime exceeds maximum")

// KeyStore is the persistence the key service needs.
type KeyStore interface {
	AddKey(ctx context.Context, k auth.ExpiringKey) error
	GetKey(ctx context.Context, key auth.Key) (auth.ExpiringKey, error)
	ListKeys(ctx context.Context) ([]auth.ExpiringKey, error)
	RemoveKey(ctx context.Context, key auth.Key) error
	RemoveExpired(ctx context.Context, now clock.Instant) (int64, error)
}

// KeyService issues, verifies and removes expiring access keys. Keys are
// persisted through the store and cached in memory for listing; the cache
// is refreshed on every expiry sweep.
type KeyService struct {
	store       KeyStore
	logger      *slog.Logger
	maxLifetime time.Duration

	mu   sync.RWMutex
	keys map[auth.Key]auth.ExpiringKey
}

// NewKeyService creates a KeyService. A zero maxLifetime means no limit
// other than the range of the clock.
func NewKeyService(s KeyStore, maxLifetime time.Duration, logger *slog.Logger) *KeyService {
	if logger == nil {
		logger = slog.Default()
	}
	return &KeyService{
		store:       s,
		logger:      logger,
		maxLifetime: maxLifetime,
		keys:        make(map[auth.Key]auth.ExpiringKey),
	}
}

// GenerateKey creates a key valid for lifetime, persists it and caches it.
func (s *KeyService) GenerateKey(ctx context.Context, lifetime time.Duration) (auth.ExpiringKey, error) {
	if s.maxLifetime > 0 && lifetime > s.maxLifetime {
		return auth.ExpiringKey{}, fmt.Errorf("%w: %s > %s", ErrLifetimeTooLong, lifetime, s.maxLifetime)
	}

	k, err := auth.Generate(lifetime)
	if err != nil {
		return auth.ExpiringKey{}, err
	}

	s.logger.Debug("generated key", "key", k.Key.String(), "lifetime", lifetime)

	if err := s.store.AddKey(ctx, k); err != nil {
		return auth.ExpiringKey{}, fmt.Errorf("persist key: %w", err)
	}

	s.mu.Lock()
	s.keys[k.Key] = k
	s.mu.Unlock()
	return k, nil
}

// VerifyKey parses raw and checks that it names a known key that has not
// expired. The store is authoritative, so keys issued or revoked by another
// process sharing it are seen immediately. Parse failures match
// auth.ErrWrongLength; all others are *auth.Error values.
func (s *KeyService) VerifyKey(ctx context.Context, raw string) (auth.ExpiringKey, error) {
	const op = "service.VerifyKey"

	key, err := auth.ParseKey(raw)
	if err != nil {
		return auth.ExpiringKey{}, err
	}

	k, err := s.store.GetKey(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.evict(key)
			s.logger.Warn("key verification failed", "op", op, "error", "unknown key")
			return auth.ExpiringKey{}, auth.UnableToReadKey(op, key)
		}
		s.logger.Error("key verification failed", "op", op, "error", err)
		return auth.ExpiringKey{}, auth.VerificationFailed(op, err)
	}

	s.mu.Lock()
	s.keys[key] = k
	s.mu.Unlock()

	if err := auth.Verify(k, auth.WithOp(op)); err != nil {
		s.logger.Warn("key verification failed", "op", op, "error", err)
		return k, err
	}
	return k, nil
}

// LookupKey returns the stored key without checking its expiry. The cache
// is consulted first, then the store; store failures are reported as
// auth errors with the driver error preserved as the cause.
func (s *KeyService) LookupKey(ctx context.Context, key auth.Key) (auth.ExpiringKey, error) {
	const op = "service.LookupKey"

	s.mu.RLock()
	k, ok := s.keys[key]
	s.mu.RUnlock()
	if ok {
		return k, nil
	}

	k, err := s.store.GetKey(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return auth.ExpiringKey{}, auth.UnableToReadKey(op, key)
		}
		return auth.ExpiringKey{}, auth.VerificationFailed(op, err)
	}

	s.mu.Lock()
	s.keys[key] = k
	s.mu.Unlock()
	return k, nil
}

// RemoveKey deletes a key from the store and the cache.
func (s *KeyService) RemoveKey(ctx context.Context, key auth.Key) error {
	const op = "service.RemoveKey"

	if err := s.store.RemoveKey(ctx, key); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.evict(key)
			return auth.UnableToReadKey(op, key)
		}
		return auth.VerificationFailed(op, err)
	}
	s.evict(key)

	s.logger.Info("removed key", "key", key.String())
	return nil
}

// ReloadKeys replaces the cache with the contents of the store.
func (s *KeyService) ReloadKeys(ctx context.Context) (int, error) {
	n, err := s.refresh(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info("reloaded keys", "count", n)
	return n, nil
}

func (s *KeyService) refresh(ctx context.Context) (int, error) {
	list, err := s.store.ListKeys(ctx)
	if err != nil {
		return 0, fmt.Errorf("reload keys: %w", err)
	}

	keys := make(map[auth.Key]auth.ExpiringKey, len(list))
	for _, k := range list {
		keys[k.Key] = k
	}

	s.mu.Lock()
	s.keys = keys
	s.mu.Unlock()
	return len(keys), nil
}

func (s *KeyService) evict(key auth.Key) {
	s.mu.Lock()
	delete(s.keys, key)
	s.mu.Unlock()
}

// ListKeys returns the cached keys ordered by expiry.
func (s *KeyService) ListKeys() []auth.ExpiringKey {
	s.mu.RLock()
	list := make([]auth.ExpiringKey, 0, len(s.keys))
	for _, k := range s.keys {
		list = append(list, k)
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].ValidUntil != list[j].ValidUntil {
			return list[i].ValidUntil < list[j].ValidUntil
		}
		return list[i].Key.String() < list[j].Key.String()
	})
	return list
}

// RemoveExpired purges expired keys from the store, then refreshes the
// cache from it so that ListKeys also reflects keys added or removed by
// other processes since the last sweep.
func (s *KeyService) RemoveExpired(ctx context.Context) (int64, error) {
	n, err := s.store.RemoveExpired(ctx, clock.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("removed expired keys", "count", n)
	}

	if _, err := s.refresh(ctx); err != nil {
		return n, err
	}
	return n, nil
}
