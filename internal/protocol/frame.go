// ABOUTME: Typed JSON frame envelope exchanged over hub connections.
// ABOUTME: Defines the discriminated frame types and their payload structs.

package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidFrame indicates a malformed or unrecognized frame. The hub reports
// it to the offending connection but does not drop the connection.
var ErrInvalidFrame = errors.New("invalid frame")

// Type discriminates frame payloads on the wire.
type Type string

const (
	TypeChatMessage   Type = "chat_message"
	TypeRosterUpdate  Type = "roster_update"
	TypePMInvite      Type = "pm_invite"
	TypePMAccept      Type = "pm_accept"
	TypePMDecline     Type = "pm_decline"
	TypePMMessage     Type = "pm_message"
	TypePMDisconnect  Type = "pm_disconnect"
	TypePubkeyRequest Type = "pubkey_request"
	TypePubkeyResp    Type = "pubkey_response"
	TypeButtonClick   Type = "button_click"
	TypeBotTyping     Type = "bot_typing"
	TypeBotStream     Type = "bot_message_stream"
	TypeError         Type = "error"
)

// Frame is the envelope carried over every connection.
type Frame struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ChatMessage is a public broadcast chat line.
type ChatMessage struct {
	User    string `json:"user"`
	Message string `json:"message"`
}

// RosterUpdate carries the live list of connected identities.
type RosterUpdate struct {
	Users []string `json:"users"`
}

// PMControl is the shared shape of the private-channel control frames
// (invite/accept/decline/disconnect/pubkey_request). From is set on frames
// delivered by the hub; To is set by the sending client to address a peer.
type PMControl struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// PMMessage carries ciphertext between two private-channel endpoints. The hub
// only ever sees the opaque base64 ciphertext.
type PMMessage struct {
	From       string `json:"from,omitempty"`
	To         string `json:"to,omitempty"`
	Ciphertext string `json:"ciphertext"`
}

// PubkeyResponse publishes a participant's public key (base64 SPKI DER).
type PubkeyResponse struct {
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	PublicKey string `json:"public_key"`
}

// ButtonClick is a control frame for UI buttons rendered by the agent.
type ButtonClick struct {
	User string `json:"user,omitempty"`
	ID   string `json:"id"`
}

// BotTyping toggles the agent's typing indicator for a response.
type BotTyping struct {
	User   string `json:"user"`
	Typing bool   `json:"typing"`
}

// BotStream is one frame of a streamed agent response. A response is zero or
// more status/chunk frames followed by exactly one frame with IsComplete set,
// whose FullMessage is the reassembled text.
type BotStream struct {
	User        string `json:"user"`
	Chunk       string `json:"chunk,omitempty"`
	IsFirst     bool   `json:"is_first,omitempty"`
	IsComplete  bool   `json:"is_complete,omitempty"`
	Status      string `json:"status,omitempty"`
	FullMessage string `json:"full_message,omitempty"`
}

// ErrorFrame tells a connection its last frame could not be processed.
type ErrorFrame struct {
	Message string `json:"message"`
}

// New builds a frame from a payload, panicking only on unmarshalable payloads
// (all payload structs in this package marshal cleanly).
func New(t Type, payload any) Frame {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("protocol: marshaling %s payload: %v", t, err))
	}
	return Frame{Type: t, Data: data}
}

// Decode parses raw bytes into a Frame, validating the type discriminator.
func Decode(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	if !known(f.Type) {
		return Frame{}, fmt.Errorf("%w: unknown type %q", ErrInvalidFrame, f.Type)
	}
	return f, nil
}

// Payload unmarshals the frame data into dst, which must match the frame type.
func (f Frame) Payload(dst any) error {
	if len(f.Data) == 0 {
		return fmt.Errorf("%w: %s frame has no data", ErrInvalidFrame, f.Type)
	}
	if err := json.Unmarshal(f.Data, dst); err != nil {
		return fmt.Errorf("%w: decoding %s data: %v", ErrInvalidFrame, f.Type, err)
	}
	return nil
}

func known(t Type) bool {
	switch t {
	case TypeChatMessage, TypeRosterUpdate,
		TypePMInvite, TypePMAccept, TypePMDecline, TypePMMessage, TypePMDisconnect,
		TypePubkeyRequest, TypePubkeyResp,
		TypeButtonClick, TypeBotTyping, TypeBotStream, TypeError:
		return true
	}
	return false
}
