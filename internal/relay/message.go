package relay

import "encoding/json"

// Message types and actions of the gateway channel contract.
const (
	TypeRequest  = "request"
	TypeResponse = "response"
	TypeEvent    = "event"

	ActionVerifyToken   = "VERIFY_TOKEN"
	ActionFetchUserData = "FETCH_USER_DATA"
)

// Envelope wraps every message on the channel with its originating service.
type Envelope struct {
	From    string         `json:"from"`
	Payload map[string]any `json:"payload"`
}

// inboundEnvelope defers payload decoding until the action is known.
type inboundEnvelope struct {
	From    string          `json:"from"`
	Payload json.RawMessage `json:"payload"`
}

// request is the decoded payload of an inbound request message.
type request struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Token  string `json:"token"`
	UserID string `json:"userId"`
}
