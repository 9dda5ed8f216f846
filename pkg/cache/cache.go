package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrCacheMiss = errors.New("cache: key not found")

// Service is the snapshot store shared by the adjustment and mark-price caches.
// Values are stored JSON-encoded; Get decodes into dest.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
	Exists(ctx context.Context, keys ...string) (bool, error)
}

// Key joins a namespace and id, e.g. Key("mark", "BTCUSDT") = "mark:BTCUSDT".
func Key(namespace, id string) string {
	return namespace + ":" + id
}

// NamespacePattern matches every key under namespace.
func NamespacePattern(namespace string) string {
	return namespace + ":*"
}

// matchPattern supports the trailing-star patterns produced by NamespacePattern.
func matchPattern(pattern, key string) bool {
	if p, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(key, p)
	}
	return pattern == key
}
