package repository

import "errors"

var (
	ErrRequestFailed  = errors.New("subscriber API request failed")
	ErrInvalidStatus  = errors.New("subscriber API returned an unreadable status")
	ErrBindingFailure = errors.New("dapr binding invocation failed")
)
