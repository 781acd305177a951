package config

import "errors"

var (
	ErrUnknownBackend  = errors.New("unknown subscriber backend")
	ErrUnknownExporter = errors.New("unknown tracing exporter")
	ErrInvalidDuration = errors.New("duration must be positive")
)
