package flow

import "errors"

var (
	ErrInvalidTransition  = errors.New("invalid flow transition")
	ErrSubmissionInFlight = errors.New("reminder submission already in flight")
	ErrValidation         = errors.New("reminder form is invalid")
	ErrSubmissionFailed   = errors.New("reminder submission failed")
	ErrUnknownEvent       = errors.New("unknown flow event")
)
