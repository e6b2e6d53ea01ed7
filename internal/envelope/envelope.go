// Package envelope encodes and decodes the JSON frame every bus message is
// wrapped in: {"header", "body", "sender", "id", "correlation_id"}.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var ErrEmptyHeader = errors.New("envelope header is required")

type Envelope struct {
	Header        string          `json:"header"`
	Body          json.RawMessage `json:"body"`
	Sender        string          `json:"sender"`
	ID            string          `json:"id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

// Decode parses a raw bus payload.  Body is kept raw so the handler that owns
// the header decides its shape.
func Decode(payload []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	env.Header = strings.TrimSpace(env.Header)
	if env.Header == "" {
		return Envelope{}, ErrEmptyHeader
	}
	return env, nil
}

// DecodeBody unmarshals the envelope body into v.  A missing body decodes as
// an empty object.
func (e Envelope) DecodeBody(v any) error {
	body := e.Body
	if len(body) == 0 || string(body) == "null" {
		body = []byte("{}")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s body: %w", e.Header, err)
	}
	return nil
}

// New builds an outbound envelope with a fresh id.
func New(header, sender string, body any, correlationID string) (Envelope, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s body: %w", header, err)
	}
	return Envelope{
		Header:        header,
		Body:          raw,
		Sender:        sender,
		ID:            uuid.NewString(),
		CorrelationID: correlationID,
	}, nil
}

func (e Envelope) Encode() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return b, nil
}
