package types

import "encoding/json"

// ClientMessage is the envelope of every inbound frame. Data is decoded once
// the receiving handler knows which payload the event carries.
type ClientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type ServerMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Decode unmarshals the payload into v. An absent payload decodes as the zero
// value so empty events like addSlot{} need no body.
func (m ClientMessage) Decode(v any) error {
	if len(m.Data) == 0 || string(m.Data) == "null" {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}
