package controller

import "github.com/wkrzos/parked/internal/envelope"

// DefaultIdentity is the sender name stamped on responses when none is configured.
const DefaultIdentity = "db_controller"

// SelfFilter recognises messages this controller published itself.  The
// request and response topics may be the same, so every response is also
// delivered back to us.
type SelfFilter struct {
	identity string
}

func NewSelfFilter(identity string) SelfFilter {
	if identity == "" {
		identity = DefaultIdentity
	}
	return SelfFilter{identity: identity}
}

func (f SelfFilter) Identity() string { return f.identity }

func (f SelfFilter) IsSelf(env envelope.Envelope) bool {
	return env.Sender == f.identity
}
