// Package cache provides byte caches for rendered API payloads: a
// process-local TTL map and a Redis-backed variant sharing one interface.
package cache

import "time"

// BytesCache stores opaque payloads under string keys with a TTL. A zero
// TTL means the entry never expires. Get reports a miss with ok=false; err
// is reserved for backend failures.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}
