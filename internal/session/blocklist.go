package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/patrickmn/go-cache"
)

// Blocklist remembers session cookies that were torn down before their expiry.
type Blocklist interface {
	// Add blocklists cookie until expiresAt.
	Add(ctx context.Context, cookie string, expiresAt time.Time) error
	Contains(ctx context.Context, cookie string) (bool, error)
}

// InMemoryBlocklist is a Blocklist backed by go-cache, which is safe for
// concurrent use. Entries are keyed by a digest so raw cookies are never held.
type InMemoryBlocklist struct {
	cache *cache.Cache
}

// BlocklistConfig holds the cache settings of InMemoryBlocklist.
type BlocklistConfig struct {
	DefaultExpiration time.Duration
	CleanupInterval   time.Duration
}

func NewInMemoryBlocklist(cfg BlocklistConfig) *InMemoryBlocklist {
	if cfg.DefaultExpiration <= 0 {
		cfg.DefaultExpiration = MaxAge
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Hour
	}
	return &InMemoryBlocklist{cache: cache.New(cfg.DefaultExpiration, cfg.CleanupInterval)}
}

func (b *InMemoryBlocklist) Add(_ context.Context, cookie string, expiresAt time.Time) error {
	if cookie == "" {
		return nil
	}
	ttl := time.Until(expiresAt)
	if expiresAt.IsZero() {
		ttl = MaxAge
	}
	// Already expired cookies are rejected by the provider anyway.
	if ttl <= 0 {
		return nil
	}
	b.cache.Set(digest(cookie), true, ttl)
	return nil
}

func (b *InMemoryBlocklist) Contains(_ context.Context, cookie string) (bool, error) {
	_, found := b.cache.Get(digest(cookie))
	return found, nil
}

func digest(cookie string) string {
	sum := sha256.Sum256([]byte(cookie))
	return hex.EncodeToString(sum[:])
}
