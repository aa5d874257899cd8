// ABOUTME: Error taxonomy for sync runs
// ABOUTME: Separates fatal fetch failures from per-patron upsert failures
package sync

import (
	"errors"
	"fmt"
)

var (
	// ErrFetch marks a roster or patron listing that could not be read in full.
	ErrFetch = errors.New("fetch failed")

	// ErrUpsert marks a single patron write that failed.
	ErrUpsert = errors.New("upsert failed")
)

// FetchError wraps a failed listing. It always aborts the run.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetch
}

// UpsertError wraps a failed set_patron call for one username.
type UpsertError struct {
	Username string
	Err      error
}

func (e *UpsertError) Error() string {
	return fmt.Sprintf("failed to upsert patron %s: %v", e.Username, e.Err)
}

func (e *UpsertError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support.
func (e *UpsertError) Is(target error) bool {
	return target == ErrUpsert
}

// UpsertPolicy decides what happens to the remaining writes after one fails.
type UpsertPolicy string

const (
	// UpsertContinue logs the failure and keeps going.
	UpsertContinue UpsertPolicy = "continue"
	// UpsertAbort stops the run at the first failed write.
	UpsertAbort UpsertPolicy = "abort"
)

// ParseUpsertPolicy validates a policy name. Empty means UpsertContinue.
func ParseUpsertPolicy(s string) (UpsertPolicy, error) {
	switch UpsertPolicy(s) {
	case "", UpsertContinue:
		return UpsertContinue, nil
	case UpsertAbort:
		return UpsertAbort, nil
	}
	return "", fmt.Errorf("invalid upsert policy %q (want %q or %q)", s, UpsertContinue, UpsertAbort)
}
