package session

import "errors"

var (
	ErrNotFound = errors.New("flow session not found")
	ErrExpired  = errors.New("flow session expired")
)
