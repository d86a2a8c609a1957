package device

import (
	"encoding/binary"
	"fmt"
	"unsafe"
)

// Raw input packet types (RAWINPUTHEADER.dwType)
const (
	RawTypeMouse    = 0
	RawTypeKeyboard = 1
	RawTypeHID      = 2
)

// RawMouse flag bits (RAWMOUSE.usFlags)
const (
	MouseMoveRelative = 0x00
	MouseMoveAbsolute = 0x01
)

// rawHeaderSize is sizeof(RAWINPUTHEADER): two DWORDs followed by a HANDLE
// and a WPARAM, both pointer sized.
var rawHeaderSize = 8 + 2*int(unsafe.Sizeof(uintptr(0)))

// rawMouseSize is sizeof(RAWMOUSE)
const rawMouseSize = 24

// RawMouse is the decoded body of a mouse raw input packet
type RawMouse struct {
	Flags       uint16
	ButtonFlags uint16
	ButtonData  uint16
	RawButtons  uint32
	LastX       int32
	LastY       int32
	Extra       uint32
}

// RawHeaderSize returns the RAWINPUTHEADER size for this architecture
func RawHeaderSize() int {
	return rawHeaderSize
}

// DecodeRawMouse decodes a RAWINPUT buffer as returned by GetRawInputData.
// It returns ErrShortBuffer if buf cannot hold the header or, for mouse
// packets, the RAWMOUSE body, and ErrNotMouse for any other packet type.
//
// RAWMOUSE layout (little endian):
//
//	0  usFlags            uint16 (+2 padding)
//	4  usButtonFlags      uint16
//	6  usButtonData       uint16
//	8  ulRawButtons       uint32
//	12 lLastX             int32
//	16 lLastY             int32
//	20 ulExtraInformation uint32
func DecodeRawMouse(buf []byte) (RawMouse, error) {
	if len(buf) < rawHeaderSize {
		return RawMouse{}, fmt.Errorf("%w: %d bytes, header needs %d", ErrShortBuffer, len(buf), rawHeaderSize)
	}

	typ := binary.LittleEndian.Uint32(buf[0:4])
	if typ != RawTypeMouse {
		return RawMouse{}, fmt.Errorf("%w: type %d", ErrNotMouse, typ)
	}

	body := buf[rawHeaderSize:]
	if len(body) < rawMouseSize {
		return RawMouse{}, fmt.Errorf("%w: mouse body %d bytes, need %d", ErrShortBuffer, len(body), rawMouseSize)
	}

	return RawMouse{
		Flags:       binary.LittleEndian.Uint16(body[0:2]),
		ButtonFlags: binary.LittleEndian.Uint16(body[4:6]),
		ButtonData:  binary.LittleEndian.Uint16(body[6:8]),
		RawButtons:  binary.LittleEndian.Uint32(body[8:12]),
		LastX:       int32(binary.LittleEndian.Uint32(body[12:16])),
		LastY:       int32(binary.LittleEndian.Uint32(body[16:20])),
		Extra:       binary.LittleEndian.Uint32(body[20:24]),
	}, nil
}
