package config

import "errors"

var (
	// ErrParsingConfig is returned when environment variables cannot be parsed
	// into the config struct.
	ErrParsingConfig = errors.New("config: failed to parse environment")

	// ErrReadingEnvFile is returned when an explicitly requested .env file
	// cannot be read.
	ErrReadingEnvFile = errors.New("config: failed to read env file")
)
