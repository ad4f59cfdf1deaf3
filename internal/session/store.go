package session

import (
	"context"
	"errors"
	"time"
)

const keyPrefix = "ivr:session:"

// ErrStoreUnavailable wraps backend failures so callers can tell a miss from
// an outage.
var ErrStoreUnavailable = errors.New("session: store unavailable")

// Store is the key-value contract every session backend satisfies. Keys are
// always namespaced under the session id; values are JSON encoded.
type Store interface {
	// Get decodes the value into dst. A missing or expired key reports
	// found=false with a nil error.
	Get(ctx context.Context, sessionID, key string, dst any) (bool, error)
	// Set writes the value with a time-to-live.
	Set(ctx context.Context, sessionID, key string, value any, ttl time.Duration) error
	// Append pushes the value onto a list and refreshes the list TTL.
	Append(ctx context.Context, sessionID, key string, value any, ttl time.Duration) error
	// List returns the raw JSON elements of a list in insertion order.
	List(ctx context.Context, sessionID, key string) ([][]byte, error)
}

func namespacedKey(sessionID, key string) string {
	return keyPrefix + sessionID + ":" + key
}
