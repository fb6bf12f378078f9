package domain

import (
	"errors"
	"fmt"
)

// Expected outcomes are sentinel errors checked with errors.Is; handlers map
// them to HTTP status codes in one place. Anything not in this list is a
// system fault and propagates wrapped.
var (
	// ErrInvalidInput marks missing or malformed caller input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDenied is returned for a bad or missing secret code, bad login
	// credentials, or an insufficient role. It is deliberately distinct from
	// ErrNotFound so a failed authorization never leaks entity existence.
	ErrDenied = errors.New("authorization denied")

	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate indicates a uniqueness violation (phone, national ID, email).
	ErrDuplicate = errors.New("already exists")

	// State-machine precondition violations.
	ErrBanned         = errors.New("visitor is banned")
	ErrAlreadyPresent = errors.New("visitor already has an open visit")
	ErrAlreadyLeft    = errors.New("visitor has already left")
	ErrAlreadyBanned  = errors.New("visitor already has an active ban")
	ErrNoActiveBan    = errors.New("visitor has no active ban")
	ErrNoVisitContext = errors.New("visitor has no visit history")

	// Biometric pipeline outcomes.
	ErrNoMatch        = errors.New("no visitor matched the probe image")
	ErrNoFaceDetected = errors.New("no face detected in image")
	ErrCorruptImage   = errors.New("image could not be decoded")
	ErrMatchTimeout   = errors.New("face matching timed out")
)

// CryptoError indicates the credential vault could not encrypt, decrypt or
// hash. It implies broken key configuration rather than bad input and is
// surfaced as a fatal condition for the request.
type CryptoError struct {
	Op  string
	Err error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("crypto %s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error { return e.Err }

// IsConflict reports whether err is one of the state-machine conflict
// outcomes translated from a storage constraint or precondition check.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyPresent) ||
		errors.Is(err, ErrAlreadyLeft) ||
		errors.Is(err, ErrAlreadyBanned) ||
		errors.Is(err, ErrNoActiveBan) ||
		errors.Is(err, ErrDuplicate)
}
