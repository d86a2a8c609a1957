package device

import (
	"fmt"
	"log"
	"runtime"
	"strings"
)

// Mode selects which listener variants Start arms
type Mode string

const (
	ModeAuto Mode = "auto"
	ModeHook Mode = "hook"
	ModeRaw  Mode = "raw"
	ModeBoth Mode = "both"
)

// ParseMode parses a mode name; empty means ModeAuto
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeHook, ModeRaw, ModeBoth:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Resolve turns ModeAuto into the variants this platform supports
func (m Mode) Resolve() Mode {
	if m != ModeAuto {
		return m
	}
	if runtime.GOOS == "windows" {
		return ModeBoth
	}
	return ModeHook
}

// Status is a snapshot of the capture state. The listening flags are true
// only while a listener is installed and delivering input.
type Status struct {
	HookListening bool   `json:"hook_listening"`
	RawListening  bool   `json:"raw_listening"`
	Position      Point  `json:"position"`
	Dropped       uint64 `json:"dropped"`
}

// Service owns the process-wide capture state: one listener of each
// variant and the shared cursor accumulator. Create it once and share it.
type Service struct {
	Hook     *HookListener
	Raw      *RawInputListener
	position *Accumulator
}

// NewService wires both listeners. windowID names the window the raw-input
// listener attaches to.
func NewService(windowID string) *Service {
	pos := NewAccumulator()
	return &Service{
		Hook:     NewHookListener(nil),
		Raw:      NewRawInputListener(windowID, nil, pos),
		position: pos,
	}
}

// NewServiceWith builds a service from preconstructed listeners
func NewServiceWith(hook *HookListener, raw *RawInputListener) *Service {
	return &Service{Hook: hook, Raw: raw, position: raw.pos}
}

// Start arms the listeners selected by mode. The generic hook never
// returns, so it runs on its own goroutine and its terminal error is only
// logged; raw-input setup errors are returned. Repeated calls are no-ops
// for listeners that were already started.
func (s *Service) Start(mode Mode, p Publisher) error {
	mode = mode.Resolve()

	if mode == ModeHook || mode == ModeBoth {
		if !s.Hook.Listening() {
			go func() {
				if err := s.Hook.Start(p); err != nil {
					log.Printf("Device: Generic hook listener stopped: %v", err)
				}
			}()
		}
	}

	if mode == ModeRaw || mode == ModeBoth {
		if err := s.Raw.Start(p); err != nil {
			return err
		}
	}

	return nil
}

// Status reports which listeners are active, the position and total drops
func (s *Service) Status() Status {
	return Status{
		HookListening: s.Hook.Active(),
		RawListening:  s.Raw.Active(),
		Position:      s.position.Position(),
		Dropped:       s.Hook.Dropped() + s.Raw.Dropped(),
	}
}
