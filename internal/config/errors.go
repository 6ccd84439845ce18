package config

import "errors"

// Error variables for configuration loading.
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config file")
	ErrRootEmpty          = errors.New("root cannot be empty")
	ErrPortInvalid        = errors.New("port must be between 1 and 65535")
	ErrDurationInvalid    = errors.New("duration must be positive")
	ErrLogFormatInvalid   = errors.New("log_format must be text or json")
	ErrLogLevelInvalid    = errors.New("invalid log_level")
)
