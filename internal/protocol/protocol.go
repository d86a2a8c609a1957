// Package protocol defines the WebSocket envelope exchanged with the UI layer.
package protocol

import "encoding/json"

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// TypeDeviceChanged carries one device.DeviceEvent from the server
	TypeDeviceChanged MessageType = "device-changed"

	// TypeStartListening is sent by a client to arm input capture
	TypeStartListening MessageType = "start_listening"

	// TypeStatus is the server's reply to TypeStartListening and TypeStatusRequest
	TypeStatus MessageType = "status"

	// TypeStatusRequest asks the server for the current capture status
	TypeStatusRequest MessageType = "status_req"

	// TypeError reports a failed client request
	TypeError MessageType = "error"

	// TypePing and TypePong are application-level heartbeats
	TypePing MessageType = "ping"
	TypePong MessageType = "pong"
)

// Message is the generic container for all WebSocket messages
type Message struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload,omitempty"`
}

// StartListeningPayload is the payload for TypeStartListening
type StartListeningPayload struct {
	Mode string `json:"mode,omitempty"` // "auto", "hook", "raw" or "both"
}

// ErrorPayload is the payload for TypeError
type ErrorPayload struct {
	Request MessageType `json:"request"`
	Error   string      `json:"error"`
}

// DecodePayload re-decodes a generic payload into out
func DecodePayload(msg Message, out any) error {
	if msg.Payload == nil {
		return nil
	}
	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
