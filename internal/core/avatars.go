package core

import (
	"strings"
	"unicode"
)

// genericAvatar is used when a label has no letters to draw initials from.
const genericAvatar = "?"

// Initials returns up to two uppercase initials for an avatar badge.
func Initials(label string) string {
	label = strings.TrimPrefix(strings.TrimSpace(label), "@")
	var out []rune
	for _, word := range strings.Fields(label) {
		for _, r := range word {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				out = append(out, unicode.ToUpper(r))
				break
			}
		}
		if len(out) == 2 {
			break
		}
	}
	if len(out) == 0 {
		return genericAvatar
	}
	return string(out)
}
