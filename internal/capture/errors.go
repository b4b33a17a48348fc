package capture

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is returned when an operation is not valid in the
	// session's current state
	ErrInvalidState = errors.New("invalid capture session state")
	// ErrSessionReset is returned when a pipeline result arrives after the
	// session was reset; the late result is discarded.
	ErrSessionReset = errors.New("capture session was reset")
	// ErrPayloadTooLarge is returned when the buffered audio exceeds the
	// configured limit
	ErrPayloadTooLarge = errors.New("audio payload too large")
)

// DeviceError reports a capture device acquisition or hardware failure.
// It aborts the session, which settles back to Idle.
type DeviceError struct {
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("capture device error: %v", e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// IsDeviceError reports whether err is a device failure
func IsDeviceError(err error) bool {
	var de *DeviceError
	return errors.As(err, &de)
}
