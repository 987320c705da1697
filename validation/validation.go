package validation

import (
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

// MaxLen flags values longer than max runes.
func MaxLen(field, value string, max int, v Violations) {
	if utf8.RuneCountInString(value) > max {
		v[field] = "too_long"
	}
}

// MinLen flags non-empty values shorter than min runes.
func MinLen(field, value string, min int, v Violations) {
	if value != "" && utf8.RuneCountInString(value) < min {
		v[field] = "too_short"
	}
}

// Email accepts empty values; use Required for presence.
func Email(field, value string, v Violations) {
	if value == "" {
		return
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		v[field] = "invalid_email"
	}
}

// OneOf accepts empty values; use Required for presence.
func OneOf(field, value string, allowed []string, v Violations) {
	if value == "" {
		return
	}
	for _, a := range allowed {
		if a == value {
			return
		}
	}
	v[field] = "invalid_value"
}

// TimeRange flags an end that precedes its start.
func TimeRange(field string, start, end time.Time, v Violations) {
	if !end.IsZero() && end.Before(start) {
		v[field] = "end_before_start"
	}
}
