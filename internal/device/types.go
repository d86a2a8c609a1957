// Package device captures global keyboard and mouse activity and republishes it
// as normalized DeviceEvents.
package device

import (
	"encoding/json"
	"fmt"
)

// Kind identifies the type of a DeviceEvent
type Kind string

const (
	MousePress      Kind = "MousePress"
	MouseRelease    Kind = "MouseRelease"
	MouseMove       Kind = "MouseMove"
	KeyboardPress   Kind = "KeyboardPress"
	KeyboardRelease Kind = "KeyboardRelease"
)

// Valid reports whether k is one of the five known kinds
func (k Kind) Valid() bool {
	switch k {
	case MousePress, MouseRelease, MouseMove, KeyboardPress, KeyboardRelease:
		return true
	}
	return false
}

// Point is an absolute cursor position
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// DeviceEvent is the canonical event delivered to the UI layer.
// Value is a string for press/release kinds and a Point for MouseMove.
type DeviceEvent struct {
	Kind  Kind `json:"kind"`
	Value any  `json:"value"`
}

// NewButtonEvent builds a MousePress or MouseRelease event
func NewButtonEvent(pressed bool, button string) DeviceEvent {
	if pressed {
		return DeviceEvent{Kind: MousePress, Value: button}
	}
	return DeviceEvent{Kind: MouseRelease, Value: button}
}

// NewKeyEvent builds a KeyboardPress or KeyboardRelease event
func NewKeyEvent(pressed bool, key string) DeviceEvent {
	if pressed {
		return DeviceEvent{Kind: KeyboardPress, Value: key}
	}
	return DeviceEvent{Kind: KeyboardRelease, Value: key}
}

// NewMoveEvent builds a MouseMove event
func NewMoveEvent(p Point) DeviceEvent {
	return DeviceEvent{Kind: MouseMove, Value: p}
}

// Validate checks that the payload shape matches the kind
func (e DeviceEvent) Validate() error {
	switch e.Kind {
	case MouseMove:
		if _, ok := e.Value.(Point); !ok {
			return fmt.Errorf("%w: %s needs a point, got %T", ErrPayloadMismatch, e.Kind, e.Value)
		}
	case MousePress, MouseRelease, KeyboardPress, KeyboardRelease:
		if _, ok := e.Value.(string); !ok {
			return fmt.Errorf("%w: %s needs a string, got %T", ErrPayloadMismatch, e.Kind, e.Value)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
	return nil
}

// UnmarshalJSON decodes the wire shape, restoring a Point for MouseMove.
func (e *DeviceEvent) UnmarshalJSON(data []byte) error {
	var wire struct {
		Kind  Kind            `json:"kind"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	switch {
	case wire.Kind == MouseMove:
		var p Point
		if err := json.Unmarshal(wire.Value, &p); err != nil {
			return fmt.Errorf("%w: %v", ErrPayloadMismatch, err)
		}
		e.Value = p
	case wire.Kind.Valid():
		var s string
		if err := json.Unmarshal(wire.Value, &s); err != nil {
			return fmt.Errorf("%w: %v", ErrPayloadMismatch, err)
		}
		e.Value = s
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, wire.Kind)
	}

	e.Kind = wire.Kind
	return nil
}
