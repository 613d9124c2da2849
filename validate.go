package main

import "strings"

// isValidISBN reports whether s is a plausible ISBN-10 or ISBN-13: the
// right length once hyphens/spaces are stripped, and digits (with a
// trailing X allowed for ISBN-10's check digit). This is a shape check, not
// a checksum validator -- good enough to reject obviously malformed input
// before it reaches a provider.
func isValidISBN(s string) bool {
	cleaned := strings.Map(func(r rune) rune {
		if r == '-' || r == ' ' {
			return -1
		}
		return r
	}, s)

	switch len(cleaned) {
	case 10:
		for i, r := range cleaned {
			if r >= '0' && r <= '9' {
				continue
			}
			if r == 'X' && i == 9 {
				continue
			}
			return false
		}
		return true
	case 13:
		for _, r := range cleaned {
			if r < '0' || r > '9' {
				return false
			}
		}
		return true
	default:
		return false
	}
}
