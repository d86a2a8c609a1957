package device

import "fmt"

// keyNames maps libuiohook virtual key codes (scan code set 1 based, identical
// on every platform) to the key names the UI model files use.
var keyNames = map[uint16]string{
	0x0001: "Escape",
	0x0002: "Num1",
	0x0003: "Num2",
	0x0004: "Num3",
	0x0005: "Num4",
	0x0006: "Num5",
	0x0007: "Num6",
	0x0008: "Num7",
	0x0009: "Num8",
	0x000A: "Num9",
	0x000B: "Num0",
	0x000C: "Minus",
	0x000D: "Equal",
	0x000E: "Backspace",
	0x000F: "Tab",
	0x0010: "KeyQ",
	0x0011: "KeyW",
	0x0012: "KeyE",
	0x0013: "KeyR",
	0x0014: "KeyT",
	0x0015: "KeyY",
	0x0016: "KeyU",
	0x0017: "KeyI",
	0x0018: "KeyO",
	0x0019: "KeyP",
	0x001A: "LeftBracket",
	0x001B: "RightBracket",
	0x001C: "Return",
	0x001D: "ControlLeft",
	0x001E: "KeyA",
	0x001F: "KeyS",
	0x0020: "KeyD",
	0x0021: "KeyF",
	0x0022: "KeyG",
	0x0023: "KeyH",
	0x0024: "KeyJ",
	0x0025: "KeyK",
	0x0026: "KeyL",
	0x0027: "SemiColon",
	0x0028: "Quote",
	0x0029: "BackQuote",
	0x002A: "ShiftLeft",
	0x002B: "BackSlash",
	0x002C: "KeyZ",
	0x002D: "KeyX",
	0x002E: "KeyC",
	0x002F: "KeyV",
	0x0030: "KeyB",
	0x0031: "KeyN",
	0x0032: "KeyM",
	0x0033: "Comma",
	0x0034: "Dot",
	0x0035: "Slash",
	0x0036: "ShiftRight",
	0x0037: "KpMultiply",
	0x0038: "Alt",
	0x0039: "Space",
	0x003A: "CapsLock",
	0x003B: "F1",
	0x003C: "F2",
	0x003D: "F3",
	0x003E: "F4",
	0x003F: "F5",
	0x0040: "F6",
	0x0041: "F7",
	0x0042: "F8",
	0x0043: "F9",
	0x0044: "F10",
	0x0045: "NumLock",
	0x0046: "ScrollLock",
	0x0047: "Kp7",
	0x0048: "Kp8",
	0x0049: "Kp9",
	0x004A: "KpMinus",
	0x004B: "Kp4",
	0x004C: "Kp5",
	0x004D: "Kp6",
	0x004E: "KpPlus",
	0x004F: "Kp1",
	0x0050: "Kp2",
	0x0051: "Kp3",
	0x0052: "Kp0",
	0x0053: "KpDelete",
	0x0057: "F11",
	0x0058: "F12",

	0x0E1C: "KpReturn",
	0x0E1D: "ControlRight",
	0x0E35: "KpDivide",
	0x0E37: "PrintScreen",
	0x0E38: "AltGr",
	0x0E45: "Pause",
	0x0E47: "Home",
	0x0E49: "PageUp",
	0x0E4F: "End",
	0x0E51: "PageDown",
	0x0E52: "Insert",
	0x0E53: "Delete",
	0x0E5B: "MetaLeft",
	0x0E5C: "MetaRight",

	0xE048: "UpArrow",
	0xE04B: "LeftArrow",
	0xE04D: "RightArrow",
	0xE050: "DownArrow",
}

// KeyName returns the canonical name for a libuiohook key code
func KeyName(code uint16) string {
	if name, ok := keyNames[code]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", code)
}

// ButtonName returns the canonical name for a libuiohook mouse button number
func ButtonName(button uint16) string {
	switch button {
	case 1:
		return "Left"
	case 2:
		return "Right"
	case 3:
		return "Middle"
	}
	return fmt.Sprintf("Unknown(%d)", button)
}
