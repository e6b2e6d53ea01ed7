package controller

import (
	"context"

	"github.com/wkrzos/parked/internal/envelope"
)

// Response is what a handler wants published.
type Response struct {
	Header string
	Action string // metrics label
	Status bool
	Body   any
}

// HandlerFunc serves one inbound header.  An error means the request was
// malformed and nothing is published.
type HandlerFunc func(ctx context.Context, env envelope.Envelope) (Response, error)

// Router maps an envelope header to exactly one handler.
type Router struct {
	routes map[string]HandlerFunc
}

func NewRouter() *Router {
	return &Router{routes: make(map[string]HandlerFunc)}
}

func (r *Router) Handle(header string, h HandlerFunc) {
	r.routes[header] = h
}

// Route returns the handler for header; ok is false for unknown headers.
func (r *Router) Route(header string) (HandlerFunc, bool) {
	h, ok := r.routes[header]
	return h, ok
}
