// Package cache memoizes transform results keyed by module identity, raw
// content and the transform chain that produced them.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Entry is one cached transform result. Value is opaque to the store.
type Entry struct {
	Value     []byte
	CreatedAt time.Time
}

// Store is a content-addressed transform result cache.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Put(ctx context.Context, key string, e Entry) error
	Close() error
}

// Key derives the cache key of a module transform.
func Key(moduleID string, raw []byte, signature string) string {
	sum := sha256.Sum256(raw)
	h := sha256.New()
	h.Write([]byte(moduleID))
	h.Write([]byte{0})
	h.Write(sum[:])
	h.Write([]byte{0})
	h.Write([]byte(signature))
	return hex.EncodeToString(h.Sum(nil))
}
