package types

// Inbound headers.
const (
	HeaderEntry        = "entry"
	HeaderDeparture    = "departure"
	HeaderRegistration = "registration_response"
)

// Outbound headers.
const (
	HeaderDatabaseStatus       = "database_status"
	HeaderRegistrationResponse = "registration_response"
)

// Registration actions.
const (
	ActionAdd    = "add"
	ActionEdit   = "edit"
	ActionDelete = "delete"
)

// Gate roles resolved through the gate registry.
const (
	GateRoleEntry     = "entry_gate"
	GateRoleDeparture = "departure_gate"
)

// PassageRequest is the body of an "entry" or "departure" message.
type PassageRequest struct {
	CardUUID string `json:"card_uuid" validate:"required,notblank"`
}

// RegistrationRequest is the body of a "registration_response" message sent by the UI.
type RegistrationRequest struct {
	CardUUID string `json:"card_uuid" validate:"required,notblank"`
	Username string `json:"username" validate:"required,notblank"`
	Action   string `json:"action" validate:"required,oneof=add edit delete"`
}

// StatusResponse is the body published for every handled request.
type StatusResponse struct {
	Action   string `json:"action"`
	Status   bool   `json:"status"`
	CardUUID string `json:"card_uuid"`
	User     string `json:"user"`
}
