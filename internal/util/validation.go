package util

import (
	"net/mail"
	"strings"

	"github.com/google/uuid"
)

func IsValidUUID(s string) bool {
	if s == "" {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

func IsValidEmail(s string) bool {
	if s == "" || !strings.Contains(s, "@") {
		return false
	}
	_, err := mail.ParseAddress(s)
	return err == nil
}

// NormalizeLinkingCode trims and upper-cases user input.
func NormalizeLinkingCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidLinkingCode reports whether an already normalized code has the right
// length and alphabet.
func IsValidLinkingCode(code string) bool {
	if len(code) != LinkingCodeLength {
		return false
	}
	for _, c := range code {
		if !strings.ContainsRune(LinkingCodeChars, c) {
			return false
		}
	}
	return true
}
