package service

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	maxFieldLen    = 128
	minPasswordLen = 8
	maxPasswordLen = 256
)

var genders = map[string]struct{}{"": {}, "MALE": {}, "FEMALE": {}, "OTHER": {}}

func required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return &ValidationError{Field: field, Reason: "must not be blank"}
	}
	if utf8.RuneCountInString(v) > maxFieldLen {
		return &ValidationError{Field: field, Reason: "too long"}
	}
	return nil
}

func validatePassword(pw string) error {
	if strings.TrimSpace(pw) == "" {
		return &ValidationError{Field: "password", Reason: "must not be blank"}
	}
	n := utf8.RuneCountInString(pw)
	if n < minPasswordLen {
		return &ValidationError{Field: "password", Reason: "must be at least 8 characters"}
	}
	if n > maxPasswordLen {
		return &ValidationError{Field: "password", Reason: "too long"}
	}
	return nil
}

// normalizeEmail lower-cases and validates a bare address (no display name).
func normalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if err := required("email", raw); err != nil {
		return "", err
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return "", &ValidationError{Field: "email", Reason: "must be a valid email address"}
	}
	return strings.ToLower(addr.Address), nil
}

func normalizeGender(g string) (string, error) {
	g = strings.ToUpper(strings.TrimSpace(g))
	if _, ok := genders[g]; !ok {
		return "", &ValidationError{Field: "gender", Reason: "must be MALE, FEMALE or OTHER"}
	}
	return g, nil
}
