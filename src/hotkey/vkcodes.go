package hotkey

import (
	"strconv"
	"strings"
)

var vkSpecial = map[string][]uint16{
	"ctrl":      {162, 163}, // VK_LCONTROL, VK_RCONTROL
	"alt":       {164, 165}, // VK_LMENU, VK_RMENU
	"shift":     {160, 161}, // VK_LSHIFT, VK_RSHIFT
	"cmd":       {91, 92},   // VK_LWIN, VK_RWIN
	"space":     {32},
	"enter":     {13},
	"esc":       {27},
	"tab":       {9},
	"backspace": {8},
	"delete":    {46},
	"insert":    {45},
	"home":      {36},
	"end":       {35},
	"pageup":    {33},
	"pagedown":  {34},
	"left":      {37},
	"up":        {38},
	"right":     {39},
	"down":      {40},
}

// keyNameToRawcodes maps a canonical key name to Windows virtual key codes,
// where gohook reports the VK code as Rawcode. Modifiers map to both sides.
func keyNameToRawcodes(keyName string) []uint16 {
	keyName = canonicalKey(strings.ToLower(strings.TrimSpace(keyName)))
	if codes, ok := vkSpecial[keyName]; ok {
		return codes
	}
	if len(keyName) == 1 {
		c := keyName[0]
		switch {
		case c >= 'a' && c <= 'z':
			return []uint16{uint16(65 + c - 'a')} // VK 0x41-0x5A
		case c >= '0' && c <= '9':
			return []uint16{uint16(48 + c - '0')} // VK 0x30-0x39
		}
	}
	if strings.HasPrefix(keyName, "f") {
		if n, err := strconv.Atoi(keyName[1:]); err == nil && n >= 1 && n <= 24 {
			return []uint16{uint16(111 + n)} // VK_F1 = 112
		}
	}
	return nil
}
