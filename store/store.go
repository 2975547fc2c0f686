// Package store provides the key-value persistence port behind the widget's
// session identity, plus the adapters that implement it. Persistence is
// best-effort: the controller treats a failing or empty store as "no prior
// session" and keeps working.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been set.
var ErrNotFound = errors.New("store: key not found")

// Store is the persistence port injected into the conversation controller.
// Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}
