// Package capture manages the recording-to-transcription pipeline: one
// session at a time buffers audio chunks from an exclusively held device,
// then hands the finalized payload to the transcription provider and commits
// the parsed result as a new note.
package capture

import (
	"context"
	"sync"

	"github.com/talknote/talknote/internal/models"
	"github.com/talknote/talknote/internal/services/transcribe"
	"go.uber.org/zap"
)

// State is the capture session state
type State string

const (
	StateIdle                  State = "idle"
	StateCapturing             State = "capturing"
	StateAwaitingTranscription State = "awaiting_transcription"
	StateError                 State = "error"
)

// NoteCreator commits a finished pipeline result as a new note. Satisfied
// by the note store.
type NoteCreator interface {
	Create(ctx context.Context, text, title string, category models.Category) (*models.Note, error)
}

// Manager owns the single process-wide capture session. All transitions go
// through its lock; the lock is released around the remote transcription
// call so queries and resets stay responsive while a pipeline is in flight.
type Manager struct {
	device   Device
	provider transcribe.Provider
	notes    NoteCreator
	logger   *zap.Logger
	maxBytes int

	mu         sync.Mutex
	state      State
	stream     Stream
	chunks     [][]byte
	buffered   int
	mode       transcribe.Mode
	category   models.Category
	generation uint64
}

// NewManager creates a capture manager in the Idle state. maxBytes caps the
// buffered audio per session; zero means no cap.
func NewManager(device Device, provider transcribe.Provider, notes NoteCreator, logger *zap.Logger, maxBytes int) *Manager {
	return &Manager{
		device:   device,
		provider: provider,
		notes:    notes,
		logger:   logger,
		maxBytes: maxBytes,
		state:    StateIdle,
	}
}

// State returns the current session state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start begins a recording session. Valid from Idle; a device failure
// aborts the session with a DeviceError. Invoking Start while already
// capturing has toggle semantics: it behaves exactly like Stop and returns
// the note the pipeline produced.
func (m *Manager) Start(ctx context.Context, category models.Category, mode transcribe.Mode) (*models.Note, error) {
	m.mu.Lock()
	if m.state == StateCapturing {
		m.mu.Unlock()
		return m.Stop(ctx)
	}
	if m.state != StateIdle {
		m.mu.Unlock()
		return nil, ErrInvalidState
	}

	stream, err := m.device.Open(ctx)
	if err != nil {
		m.failLocked("device_open_failed", err)
		m.mu.Unlock()
		if IsDeviceError(err) {
			return nil, err
		}
		return nil, &DeviceError{Err: err}
	}

	m.state = StateCapturing
	m.stream = stream
	m.chunks = nil
	m.buffered = 0
	m.mode = mode
	m.category = category
	m.mu.Unlock()

	m.logger.Info("capture_started",
		zap.String("category", string(category)),
		zap.String("mode", string(mode)),
	)
	return nil, nil
}

// AppendChunk buffers one audio chunk in arrival order. Valid only while
// capturing.
func (m *Manager) AppendChunk(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateCapturing {
		return ErrInvalidState
	}
	if m.maxBytes > 0 && m.buffered+len(data) > m.maxBytes {
		return ErrPayloadTooLarge
	}
	chunk := make([]byte, len(data))
	copy(chunk, data)
	m.chunks = append(m.chunks, chunk)
	m.buffered += len(data)
	return nil
}

// Stop finalizes the buffered chunks into one payload, releases the device,
// and runs the pipeline: transcribe, parse, commit. On success the session
// settles in Idle and the created note is returned. On any failure the
// session passes through Error back to Idle and no note is created. A
// result arriving after Reset is discarded with ErrSessionReset.
func (m *Manager) Stop(ctx context.Context) (*models.Note, error) {
	m.mu.Lock()
	if m.state != StateCapturing {
		m.mu.Unlock()
		return nil, ErrInvalidState
	}

	payload := transcribe.AudioPayload{MIMEType: m.stream.MIMEType()}
	for _, chunk := range m.chunks {
		payload.Data = append(payload.Data, chunk...)
	}
	mode, category := m.mode, m.category
	gen := m.generation

	// Recording is finished: release the device before the remote call so
	// a failure in the pipeline can never leak it.
	m.releaseLocked()
	m.state = StateAwaitingTranscription
	m.mu.Unlock()

	raw, err := m.provider.Transcribe(ctx, payload, mode)
	if err != nil {
		m.settleFailure(gen, "transcription_failed", err)
		return nil, err
	}

	result := transcribe.Parse(raw)

	m.mu.Lock()
	if m.generation != gen || m.state != StateAwaitingTranscription {
		m.mu.Unlock()
		m.logger.Info("late_transcription_discarded")
		return nil, ErrSessionReset
	}
	m.mu.Unlock()

	note, err := m.notes.Create(ctx, result.Transcription, result.Title, category)
	if note == nil && err != nil {
		m.settleFailure(gen, "note_commit_failed", err)
		return nil, err
	}

	m.mu.Lock()
	if m.state == StateAwaitingTranscription && m.generation == gen {
		m.state = StateIdle
	}
	m.mu.Unlock()

	m.logger.Info("capture_committed",
		zap.String("note_id", note.ID),
		zap.String("category", string(category)),
	)
	// err is non-nil here only for a persistence failure; the note exists
	// in memory and the store will retry on the next mutation.
	return note, err
}

// Reset abandons the session from any non-terminal state and releases the
// device. An in-flight transcription is not cancellable; its late result is
// discarded when it lands.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.generation++
	m.releaseLocked()
	m.chunks = nil
	m.buffered = 0
	if m.state != StateIdle {
		m.logger.Info("capture_reset", zap.String("from_state", string(m.state)))
	}
	m.state = StateIdle
}

// settleFailure moves the session through Error back to Idle, unless a
// Reset already superseded this pipeline.
func (m *Manager) settleFailure(gen uint64, event string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.generation != gen {
		return
	}
	m.state = StateError
	m.logger.Error(event, zap.Error(err))
	m.state = StateIdle
}

// failLocked logs a failure that occurred before a session was established
func (m *Manager) failLocked(event string, err error) {
	m.state = StateError
	m.logger.Error(event, zap.Error(err))
	m.state = StateIdle
}

// releaseLocked closes the stream if one is held. Callers hold m.mu.
func (m *Manager) releaseLocked() {
	if m.stream != nil {
		if err := m.stream.Close(); err != nil {
			m.logger.Warn("capture_device_close_failed", zap.Error(err))
		}
		m.stream = nil
	}
}
