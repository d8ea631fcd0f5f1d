// Package storecache shares loaded store data between requests.
//
// Store data is normally loaded once per request. Stores that opt in can
// have their data kept in a Cache so concurrent requests for the same store
// and parameters skip the load entirely. Two implementations are provided:
// Memory for a single process and Redis for a fleet.
package storecache

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"strings"
	"time"
)

// ErrClosed is returned by operations on a closed cache.
var ErrClosed = errors.New("storecache: closed")

// Cache stores encoded store data under string keys.
type Cache interface {
	// Get decodes the entry for key into dst. It reports false when the entry
	// is missing or expired.
	Get(ctx context.Context, key string, dst any) (bool, error)
	// Set stores v under key for ttl. A zero ttl uses the cache default.
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Key builds a stable cache key from a store name and its parameters.
// Parameter order does not matter. Every part is query-escaped, so ':' and
// '=' inside names or values cannot produce the key of another store.
func Key(store string, state map[string]string) string {
	var b strings.Builder
	b.WriteString("hxstream:store:")
	b.WriteString(url.QueryEscape(store))

	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte(':')
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(state[k]))
	}
	return b.String()
}
