package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "hello", SanitizeText("  hello  ", 100))
	assert.Equal(t, "scriptalert(1)/script", SanitizeText(`<script>alert("1")</script>`, 100))
	assert.Equal(t, "ab", SanitizeText("a\x00\x1fb", 100))
	assert.Equal(t, "abc", SanitizeText("abcdef", 3))
	assert.Equal(t, "", SanitizeText("   ", 100))
}

func TestSanitizeTextCapKeepsValidUTF8(t *testing.T) {
	// "é" is two bytes; a 5-byte cap falls mid-rune and must back up to the
	// previous boundary instead of emitting a dangling lead byte.
	out := SanitizeText(strings.Repeat("é", 3), 5)
	assert.Equal(t, "éé", out)
	assert.True(t, utf8.ValidString(out))

	// Cap on a boundary is untouched.
	assert.Equal(t, "éé", SanitizeText(strings.Repeat("é", 3), 4))

	// A cap smaller than the first rune yields the empty string.
	out = SanitizeText("é", 1)
	assert.Equal(t, "", out)
	assert.True(t, utf8.ValidString(out))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "user@example.com", NormalizeEmail("  User@Example.COM "))
}

func TestIsEmail(t *testing.T) {
	assert.True(t, IsEmail("user@example.com"))
	assert.True(t, IsEmail(" user@example.co.in "))
	assert.False(t, IsEmail("userexample.com"))
	assert.False(t, IsEmail("@example.com"))
	assert.False(t, IsEmail("user@"))
	assert.False(t, IsEmail("user@nodot"))
	assert.False(t, IsEmail("us er@example.com"))
}
