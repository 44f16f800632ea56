package kv

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when the key has no value.
	ErrNotFound = errors.New("kv: key not found")
	// ErrConflict is returned by Transact when the watched key changed
	// between the read and the conditional write.
	ErrConflict = errors.New("kv: transaction conflict")
)

// Mutation is the set of writes a transaction wants to apply. All puts and
// deletes commit together, and only if the watched key is unchanged.
type Mutation struct {
	Put    map[string][]byte
	Delete []string
}

// IsEmpty reports whether the transaction decided to change nothing.
func (m Mutation) IsEmpty() bool {
	return len(m.Put) == 0 && len(m.Delete) == 0
}

// Txn reads the current value of the watched key and returns the mutation to
// apply. It must be side-effect free: a conflicting transaction is re-run.
type Txn func(current []byte, exists bool) (Mutation, error)

// Store is a key/value store with optimistic transactions. Transact fences a
// multi-key write on a single watched key; there is no other locking
// primitive, callers retry on ErrConflict.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	Transact(ctx context.Context, watch string, fn Txn) error
}

// DefaultAttempts bounds the retry loop around conflicting transactions.
const DefaultAttempts = 5

// Update runs fn under an optimistic transaction, retrying up to attempts
// times when the watched key is contended. Any other error aborts
// immediately; ErrConflict is returned only once the attempts are exhausted.
func Update(ctx context.Context, s Store, watch string, attempts int, fn Txn) error {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = s.Transact(ctx, watch, fn)
		if !errors.Is(err, ErrConflict) {
			return err
		}
	}
	return err
}
