package store

import (
	"context"
	"time"
)

// GateStatusSuccess is the outcome written for every logged passage.
const GateStatusSuccess = "SUCCESS"

// PassageRecord describes one card presented at a gate.
type PassageRecord struct {
	CardCode string
	GateID   int64
	Entry    bool // false = departure
	At       time.Time
}

// PassageResult reports what the passage transaction found.  When Found is
// false no gate_log row was written.
type PassageResult struct {
	Found    bool
	Username string // empty when the card has no (or a dangling) owner
}

// GateLogStore writes gate_log as an append-only audit trail.
type GateLogStore interface {
	// RecordPassage resolves the card and its owner and appends one gate
	// event, all in one transaction.
	RecordPassage(ctx context.Context, rec PassageRecord) (PassageResult, error)
}

// RegistrationRecord is a new user+card pair.
type RegistrationRecord struct {
	CardCode string
	Username string
	Password string
	Email    string
}

// ReassignResult reports which lookups of a reassignment matched.
type ReassignResult struct {
	UserFound bool
	CardFound bool
}

// Applied is true when the card now belongs to the requested user.
func (r ReassignResult) Applied() bool { return r.UserFound && r.CardFound }

// RegistrationStore manages card-to-user bindings.  Each method is a single
// transaction; an error means nothing was persisted.
type RegistrationStore interface {
	// Register creates the user and a card bound to it.
	Register(ctx context.Context, rec RegistrationRecord) error

	// Reassign moves the card identified by cardCode to the user named
	// username.  Missing user or card is not an error.
	Reassign(ctx context.Context, cardCode, username string) (ReassignResult, error)

	// Unregister deletes the card and then its owner.  Returns false when no
	// card matched.
	Unregister(ctx context.Context, cardCode string) (bool, error)
}
