package config

import "errors"

var (
	// ErrUnsupportedFormat is returned for files that are neither YAML nor JSON.
	ErrUnsupportedFormat = errors.New("config: unsupported format")

	// ErrLoad is returned when the file cannot be read.
	ErrLoad = errors.New("config: load failed")

	// ErrParse is returned when the file cannot be parsed or decoded.
	ErrParse = errors.New("config: parse failed")

	// ErrInvalid is returned when a decoded value is out of range.
	ErrInvalid = errors.New("config: invalid value")

	// ErrMissingEnv is returned when a ${VAR} reference is not set.
	ErrMissingEnv = errors.New("config: missing required environment variables")
)
