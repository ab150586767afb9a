// internal/app/system/inputval/inputval.go

// Package inputval validates request field values before they reach stores
// or workflows. Validators return booleans; handlers translate failures into
// 400 domain errors with field-specific messages.
package inputval

import (
	"net/mail"
	"strings"
	"time"
)

// IsValidEmail reports whether s is a plausible address. Display-name forms
// ("Name <a@b>") are rejected; only the bare address is accepted.
func IsValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, " <>") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// Allowed values for the sex field.
func IsValidSex(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "M", "F":
		return true
	}
	return false
}

// IsValidPromotionYear bounds graduation years to a sane range around now.
func IsValidPromotionYear(year int) bool {
	current := time.Now().Year()
	return year >= 1990 && year <= current+6
}

// IsValidPassword enforces the minimum password length for registration and
// recovery.
func IsValidPassword(s string) bool {
	return len(s) >= 8
}

// IsValidServiceHours bounds a single activity's hour award.
func IsValidServiceHours(h int) bool {
	return h >= 0 && h <= 200
}
