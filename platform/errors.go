package platform

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx platform response decoded into its JSON envelope.
type APIError struct {
	StatusCode int
	Code       string
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("platform: status %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("platform: status %d", e.StatusCode)
}

// Detail returns the server-provided human-readable message for err, or ""
// when err is not a platform error or carried none.
func Detail(err error) string {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Detail
	}
	return ""
}

// IsConflict reports a double-booking style business conflict (slot already
// taken).
func IsConflict(err error) bool {
	var ae *APIError
	if !errors.As(err, &ae) {
		return false
	}
	return ae.StatusCode == http.StatusConflict || ae.Code == "conflict" || ae.Code == "slot_conflict"
}

// IsSessionGone reports that the escalated session no longer exists on the
// platform: a "gone" transport code or an error detail mentioning expiry.
func IsSessionGone(err error) bool {
	var ae *APIError
	if !errors.As(err, &ae) {
		return false
	}
	if ae.StatusCode == http.StatusGone || ae.Code == "gone" {
		return true
	}
	return strings.Contains(strings.ToLower(ae.Detail), "expired")
}
