package store

import "context"

// Backend is the minimal key/value contract the reaction store persists
// through. Get reports ok=false for a missing key. Implementations must be
// safe for concurrent use.
type Backend interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Close() error
}
