package bridge

import (
	"errors"
	"fmt"
)

// ErrCallNotFound is returned when the triggering call does not exist at the provider.
var ErrCallNotFound = errors.New("call not found")

// ErrCallNotActive is returned when the triggering call exists but is not in progress.
var ErrCallNotActive = errors.New("call not active")

// ErrDialFailed is returned when the invitee's leg could not be created.
var ErrDialFailed = errors.New("invitee dial failed")

// ErrProviderTimeout is returned when the provider did not answer within the
// configured request timeout.
var ErrProviderTimeout = errors.New("provider request timed out")

// RedirectError records one leg that could not be moved into the conference
// after its retry was spent.
type RedirectError struct {
	Role   LegRole
	CallID string
	Err    error
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("redirect of %s leg %s failed: %v", e.Role, e.CallID, e.Err)
}

func (e *RedirectError) Unwrap() error {
	return e.Err
}
