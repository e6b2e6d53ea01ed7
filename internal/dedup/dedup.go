// Package dedup remembers message ids the controller has already claimed so
// that a redelivered request is not applied twice.
package dedup

import (
	"context"
	"time"
)

// DefaultTTL is how long a claimed id is remembered.
const DefaultTTL = 10 * time.Minute

type Store interface {
	// MarkProcessed claims id for ttl.  It returns true when this call made
	// the claim and false when the id was already claimed.
	MarkProcessed(ctx context.Context, id string, ttl time.Duration) (bool, error)
	// Release drops the claim on id so a later delivery is handled again.
	// Releasing an unclaimed id is not an error.
	Release(ctx context.Context, id string) error
	Close() error
}
