package capture

import (
	"context"
	"errors"
	"sync"
)

// Device grants exclusive access to an audio source for the lifetime of one
// recording. Open may fail (permission, hardware, already in use); the
// returned Stream must be closed on every exit path.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is one acquired recording channel. Closing it releases the
// underlying device.
type Stream interface {
	MIMEType() string
	Close() error
}

// UploadDevice models the client-side microphone in the HTTP arrangement:
// the browser records and streams chunks up, and "opening the device" means
// acquiring the single upload slot. Opening while a recording is in flight
// fails the way a busy microphone would.
type UploadDevice struct {
	mu       sync.Mutex
	mimeType string
	inUse    bool
}

// NewUploadDevice creates an upload device producing payloads of the given
// MIME type
func NewUploadDevice(mimeType string) *UploadDevice {
	return &UploadDevice{mimeType: mimeType}
}

// Open acquires the upload slot
func (d *UploadDevice) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, &DeviceError{Err: err}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inUse {
		return nil, &DeviceError{Err: errors.New("capture device already in use")}
	}
	d.inUse = true
	return &uploadStream{device: d}, nil
}

type uploadStream struct {
	device *UploadDevice
	once   sync.Once
}

func (s *uploadStream) MIMEType() string {
	return s.device.mimeType
}

func (s *uploadStream) Close() error {
	s.once.Do(func() {
		s.device.mu.Lock()
		s.device.inUse = false
		s.device.mu.Unlock()
	})
	return nil
}
