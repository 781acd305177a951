package payment

import "errors"

var (
	ErrUnknownService     = errors.New("unknown service")
	ErrInvalidCustomPrice = errors.New("please enter a valid amount for custom services")
	ErrNotConfigured      = errors.New("payment public key is not configured")
)
