package channel

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is matched by every *ConfigError.
var ErrInvalidConfig = errors.New("invalid channel configuration")

// ConfigError rejects a channel configuration before any session starts.
type ConfigError struct {
	Index  int // -1 when the problem is not tied to one channel
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := e.Reason
	if e.Index >= 0 {
		msg = fmt.Sprintf("channel %d: %s", e.Index, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return "channel config: " + msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

func (e *ConfigError) Is(target error) bool { return target == ErrInvalidConfig }

func configErr(index int, reason string, err error) *ConfigError {
	return &ConfigError{Index: index, Reason: reason, Err: err}
}
