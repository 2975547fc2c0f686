package utils

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Minimal internal validator to avoid external dependency. Supports:
// - required
// - e164 (international phone format, e.g. +15551234567)
// - min=N / max=N (rune length bounds)
// - date (YYYY-MM-DD)
// - hhmm (24h clock time, e.g. 14:30)

var (
	reE164 = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)
	reHHMM = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
)

// ValidationError marks a failed field check so callers can render it next
// to the offending form field instead of treating it as a transport error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Message
}

// IsValidationError reports whether err (or anything it wraps) is a field
// validation failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ValidateStruct inspects struct tags `validate:"..."` and returns the first error encountered.
func ValidateStruct(s interface{}) error {
	v := reflect.ValueOf(s)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return fmt.Errorf("ValidateStruct expects a struct or pointer to struct")
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("validate")
		if tag == "" {
			continue
		}
		parts := strings.Split(tag, ",")
		fv := v.Field(i)
		var sval string
		if fv.IsValid() && fv.Kind() == reflect.String {
			sval = strings.TrimSpace(fv.String())
		}
		for _, p := range parts {
			p = strings.TrimSpace(p)
			switch {
			case p == "required":
				if sval == "" {
					return &ValidationError{Field: field.Name, Message: "is required"}
				}
			case p == "e164":
				if sval != "" && !reE164.MatchString(sval) {
					return &ValidationError{Field: field.Name, Message: "must be an international phone number like +15551234567"}
				}
			case p == "date":
				if sval != "" {
					if _, err := time.Parse("2006-01-02", sval); err != nil {
						return &ValidationError{Field: field.Name, Message: "must be a date in YYYY-MM-DD format"}
					}
				}
			case p == "hhmm":
				if sval != "" && !reHHMM.MatchString(sval) {
					return &ValidationError{Field: field.Name, Message: "must be a time like 14:30"}
				}
			case strings.HasPrefix(p, "min="):
				n, err := strconv.Atoi(strings.TrimPrefix(p, "min="))
				if err == nil && sval != "" && len([]rune(sval)) < n {
					return &ValidationError{Field: field.Name, Message: fmt.Sprintf("must be at least %d characters", n)}
				}
			case strings.HasPrefix(p, "max="):
				n, err := strconv.Atoi(strings.TrimPrefix(p, "max="))
				if err == nil && len([]rune(sval)) > n {
					return &ValidationError{Field: field.Name, Message: fmt.Sprintf("must be at most %d characters", n)}
				}
			}
		}
	}
	return nil
}
