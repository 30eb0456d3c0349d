package sender

import (
	"fmt"
	"strings"
)

// Translate maps a logical key name ("Enter", "Escape", "Up", "BSpace",
// "C-<letter>", …) to the byte sequence sent to the PTY. Control-letter
// translation uses the canonical c & 0x1f mask so that C-A, C-[, C-@
// all produce correct bytes (spec §4.I / §8 testable property).
func Translate(key string) ([]byte, error) {
	switch key {
	case "Enter":
		return []byte{'\r'}, nil
	case "Escape":
		return []byte{0x1b}, nil
	case "Tab":
		return []byte{'\t'}, nil
	case "BSpace", "Backspace":
		return []byte{0x7f}, nil
	case "Space":
		return []byte{' '}, nil
	case "Up":
		return []byte{0x1b, '[', 'A'}, nil
	case "Down":
		return []byte{0x1b, '[', 'B'}, nil
	case "Right":
		return []byte{0x1b, '[', 'C'}, nil
	case "Left":
		return []byte{0x1b, '[', 'D'}, nil
	}
	if strings.HasPrefix(key, "C-") && len(key) == 3 {
		c := key[2]
		return []byte{ControlByte(c)}, nil
	}
	if len(key) == 1 {
		return []byte{key[0]}, nil
	}
	return nil, fmt.Errorf("sender: unknown logical key %q", key)
}

// ControlByte applies the canonical control-letter mask c & 0x1f,
// correct for A-Z, @, [, \, ], ^, _.
func ControlByte(c byte) byte {
	return c & 0x1f
}
