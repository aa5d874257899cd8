// ABOUTME: Error type for failed remote API calls
// ABOUTME: Carries the service, action and message from unsuccessful responses
package session

import "fmt"

// APIError is returned when a service answers with an unsuccessful body or
// a non-2xx status.
type APIError struct {
	Service    string
	Action     string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s failed (status %d): %s", e.Service, e.Action, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Service, e.Action, e.Message)
}
