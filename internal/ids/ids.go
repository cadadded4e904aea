// Package ids provides the two token generators the pipeline depends on:
// sortable globally-unique idempotency keys and cheap session-local ids for
// attachment cache entries.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewIdempotencyKey returns a new ULID string (26 chars). ULIDs are
// lexicographically sortable, so keys order outbox entries by creation time.
func NewIdempotencyKey() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), entropy).String()
}

// NewLocalID returns an id for an attachment cache entry. Unique within the
// session only; never sent to the server.
func NewLocalID() string {
	return uuid.NewString()
}
