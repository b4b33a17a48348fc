package transcribe

import (
	"errors"
	"fmt"
)

// RemoteError reports a failed transcription exchange: a non-success
// response status or a transport failure. No partial note is ever created
// from a failed exchange.
type RemoteError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transcription service error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("transcription request failed: %v", e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsRemoteError reports whether err came from the remote exchange
func IsRemoteError(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}
