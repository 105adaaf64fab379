package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	e164Regex     = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
	areaCodeRegex = regexp.MustCompile(`^\d{3}$`)
)

func ValidateE164(phone string) error {
	if phone == "" {
		return fmt.Errorf("phone number is required")
	}

	if !e164Regex.MatchString(strings.TrimSpace(phone)) {
		return fmt.Errorf("phone number must be in E.164 format (e.g., +14155550123)")
	}

	return nil
}

// NormalizeE164 strips common punctuation before validating.
func NormalizeE164(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	phone = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "").Replace(phone)

	if phone != "" && !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}

	if err := ValidateE164(phone); err != nil {
		return "", err
	}

	return phone, nil
}

// ValidateAreaCode accepts a three digit North American area code.
func ValidateAreaCode(code string) error {
	if !areaCodeRegex.MatchString(strings.TrimSpace(code)) {
		return fmt.Errorf("area code must be exactly three digits")
	}
	return nil
}
