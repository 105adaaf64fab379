package utils

import (
	"regexp"
	"strings"
)

var e164Parts = regexp.MustCompile(`^(\+\d{1,3})(\d+)$`)

// MaskPhoneNumber hides all but the country code and last four digits.
// Example: +14155550123 -> +141••••0123
func MaskPhoneNumber(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}

	if m := e164Parts.FindStringSubmatch(phone); len(m) == 3 && len(m[2]) > 4 {
		rest := m[2]
		return m[1] + strings.Repeat("•", len(rest)-4) + rest[len(rest)-4:]
	}

	if len(phone) > 4 {
		return strings.Repeat("•", len(phone)-4) + phone[len(phone)-4:]
	}

	return strings.Repeat("•", len(phone))
}
