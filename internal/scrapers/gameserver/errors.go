package gameserver

import (
	"errors"
	"fmt"
)

var (
	ErrNoNonce          = errors.New("login did not return a nonce")
	ErrNoCookie         = errors.New("login did not set a session cookie")
	ErrNoSession        = errors.New("not logged in")
	ErrTransport        = errors.New("transport failure")
	ErrUnexpectedStatus = errors.New("unexpected response status")

	// ErrMissingPaginator means the first listing page could not be fetched
	// or parsed, a page without a paginator is not an error.
	ErrMissingPaginator = errors.New("could not read the first listing page")
	ErrMalformedPage    = errors.New("malformed listing page")
)

// MalformedPageError is returned when a listing page does not have the
// expected row/link structure.
type MalformedPageError struct {
	Page   int
	Reason error
}

func (e *MalformedPageError) Error() string {
	return fmt.Sprintf("%s (page %d): %s", ErrMalformedPage, e.Page, e.Reason)
}

func (e *MalformedPageError) Is(target error) bool {
	return target == ErrMalformedPage
}

func (e *MalformedPageError) Unwrap() error {
	return e.Reason
}
