// Package setstore wraps the key/value backend that holds the member sets the
// expression evaluator operates on.
package setstore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnknownOperator is returned when a store operation is asked to
	// combine sets with an operator it does not implement.
	ErrUnknownOperator = errors.New("unknown set operator")
)

// SetStore is the minimal set-primitive surface the evaluator and the
// audience resolver need. Keys are opaque strings owned by the caller.
type SetStore interface {
	// Exists reports whether key currently holds a set.
	Exists(ctx context.Context, key string) (bool, error)

	// Members returns every member of the set at key. A missing key yields
	// an empty result, not an error.
	Members(ctx context.Context, key string) ([]string, error)

	// Union returns the combined members of the given keys without storing
	// anything.
	Union(ctx context.Context, keys ...string) ([]string, error)

	// Add inserts the values into the set at key, creating it if needed, and
	// returns the cardinality after the insert.
	Add(ctx context.Context, key string, values ...string) (int64, error)

	// InterStore stores the intersection of key1 and key2 at dest and
	// returns the resulting cardinality.
	InterStore(ctx context.Context, dest, key1, key2 string) (int64, error)

	// UnionStore stores the union of key1 and key2 at dest and returns the
	// resulting cardinality.
	UnionStore(ctx context.Context, dest, key1, key2 string) (int64, error)

	// DiffStore stores key1 minus key2 at dest and returns the resulting
	// cardinality. The operation is not commutative.
	DiffStore(ctx context.Context, dest, key1, key2 string) (int64, error)

	// Expire bounds the lifetime of the set at key.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}
