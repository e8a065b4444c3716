// Package contentstore publishes encrypted exam envelopes to a
// content-addressed store and fetches them back by handle.
package contentstore

import (
	"context"
	"errors"

	"github.com/stemsi/examvault/internal/encryption"
)

var (
	// ErrNotFound means no store endpoint knows the handle.
	ErrNotFound = errors.New("content not found")
	// ErrUnavailable means the store could not be reached or answered badly.
	ErrUnavailable = errors.New("content store unavailable")
)

// ContentStore is a content-addressed blob store. Handles are opaque.
type ContentStore interface {
	Publish(ctx context.Context, name string, env *encryption.Envelope) (string, error)
	Fetch(ctx context.Context, handle string) (*encryption.Envelope, error)
}
