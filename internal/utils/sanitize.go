package utils

import (
	"strings"
	"unicode/utf8"
)

// SanitizeText strips markup-significant characters and control bytes from
// free-text input, trims whitespace and caps the length in bytes. The cap
// never splits a multi-byte rune.
func SanitizeText(s string, maxLen int) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch r {
		case '<', '>', '"', '\'', '`':
			continue
		}
		if r < 0x20 || r == 0x7F {
			continue
		}
		sb.WriteRune(r)
	}

	out := strings.TrimSpace(sb.String())
	if maxLen > 0 && len(out) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = out[:cut]
	}
	return out
}

// NormalizeEmail lowercases and trims an email address for lookups and
// storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsEmail is a light shape check; real validation happens when the OTP mail
// is delivered.
func IsEmail(email string) bool {
	email = strings.TrimSpace(email)
	at := strings.Index(email, "@")
	if at < 1 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	return strings.Contains(domain, ".") && !strings.ContainsAny(email, " \t\n")
}
