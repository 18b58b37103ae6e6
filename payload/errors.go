package payload

import (
	"errors"
	"fmt"
)

// ErrConfigurationMissing is returned when a required payload key is absent.
var ErrConfigurationMissing = errors.New("configuration missing")

// IOError is returned when the payload file cannot be read or written.
type IOError struct {
	Path string
	Op   string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("payload %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// IsIOError checks if an error is a payload IOError
func IsIOError(err error) bool {
	var ioErr *IOError
	return errors.As(err, &ioErr)
}
