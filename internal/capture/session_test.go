package capture

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/talknote/talknote/internal/models"
	"github.com/talknote/talknote/internal/services/transcribe"
	"go.uber.org/zap"
)

type fakeStream struct {
	mimeType string
	mu       sync.Mutex
	closed   bool
}

func (s *fakeStream) MIMEType() string { return s.mimeType }

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeDevice struct {
	openErr error
	stream  *fakeStream
}

func (d *fakeDevice) Open(_ context.Context) (Stream, error) {
	if d.openErr != nil {
		return nil, &DeviceError{Err: d.openErr}
	}
	d.stream = &fakeStream{mimeType: "audio/webm"}
	return d.stream, nil
}

type fakeProvider struct {
	mu      sync.Mutex
	raw     string
	err     error
	release chan struct{} // nil means respond immediately
	payload transcribe.AudioPayload
	mode    transcribe.Mode
	calls   int
}

func (p *fakeProvider) Transcribe(_ context.Context, payload transcribe.AudioPayload, mode transcribe.Mode) (string, error) {
	p.mu.Lock()
	p.payload = payload
	p.mode = mode
	p.calls++
	release := p.release
	p.mu.Unlock()

	if release != nil {
		<-release
	}
	if p.err != nil {
		return "", p.err
	}
	return p.raw, nil
}

type fakeCreator struct {
	mu    sync.Mutex
	notes []*models.Note
	err   error
}

func (c *fakeCreator) Create(_ context.Context, text, title string, category models.Category) (*models.Note, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("note text is empty")
	}
	note := &models.Note{
		ID:        time.Now().Format(time.RFC3339Nano),
		Title:     title,
		Text:      text,
		Category:  category,
		CreatedAt: time.Now(),
	}
	c.notes = append(c.notes, note)
	return note, nil
}

func (c *fakeCreator) created() []*models.Note {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*models.Note(nil), c.notes...)
}

func waitForState(t *testing.T, m *Manager, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s, still %s", want, m.State())
}

func TestStartStopSuccess(t *testing.T) {
	t.Parallel()

	device := &fakeDevice{}
	provider := &fakeProvider{raw: `{"title":"T","transcription":"Body"}`}
	creator := &fakeCreator{}
	m := NewManager(device, provider, creator, zap.NewNop(), 0)
	ctx := context.Background()

	if _, err := m.Start(ctx, models.CategoryIdeas, transcribe.ModeNote); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if m.State() != StateCapturing {
		t.Fatalf("expected Capturing, got %s", m.State())
	}
	if err := m.AppendChunk([]byte("chunk-1 ")); err != nil {
		t.Fatal(err)
	}
	if err := m.AppendChunk([]byte("chunk-2")); err != nil {
		t.Fatal(err)
	}

	note, err := m.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if note.Title != "T" || note.Text != "Body" || note.Category != models.CategoryIdeas {
		t.Errorf("unexpected committed note: %+v", note)
	}
	if m.State() != StateIdle {
		t.Errorf("expected Idle after commit, got %s", m.State())
	}
	if !device.stream.isClosed() {
		t.Error("device must be released after a successful pipeline")
	}

	// The payload is the chunks concatenated in arrival order
	if !bytes.Equal(provider.payload.Data, []byte("chunk-1 chunk-2")) {
		t.Errorf("payload = %q", provider.payload.Data)
	}
	if provider.payload.MIMEType != "audio/webm" {
		t.Errorf("payload mime = %q", provider.payload.MIMEType)
	}
	if provider.mode != transcribe.ModeNote {
		t.Errorf("mode = %q", provider.mode)
	}
}

func TestStartToggle(t *testing.T) {
	t.Parallel()

	device := &fakeDevice{}
	provider := &fakeProvider{raw: `{"title":"T","transcription":"Body"}`}
	creator := &fakeCreator{}
	m := NewManager(device, provider, creator, zap.NewNop(), 0)
	ctx := context.Background()

	if _, err := m.Start(ctx, models.CategoryTodo, transcribe.ModeTodo); err != nil {
		t.Fatal(err)
	}
	if err := m.AppendChunk([]byte("audio")); err != nil {
		t.Fatal(err)
	}

	// Start while capturing is equivalent to Stop
	note, err := m.Start(ctx, models.CategoryTodo, transcribe.ModeTodo)
	if err != nil {
		t.Fatalf("toggled Start() error: %v", err)
	}
	if note == nil || note.Text != "Body" {
		t.Errorf("toggled Start must return the committed note, got %+v", note)
	}
	if m.State() != StateIdle {
		t.Errorf("expected Idle, got %s", m.State())
	}
}

func TestStartDeviceFailure(t *testing.T) {
	t.Parallel()

	device := &fakeDevice{openErr: errors.New("permission denied")}
	m := NewManager(device, &fakeProvider{}, &fakeCreator{}, zap.NewNop(), 0)

	_, err := m.Start(context.Background(), models.CategoryWork, transcribe.ModeNote)
	if !IsDeviceError(err) {
		t.Fatalf("expected DeviceError, got %v", err)
	}
	if m.State() != StateIdle {
		t.Errorf("session must settle in Idle after a device failure, got %s", m.State())
	}
}

func TestStopRemoteFailure(t *testing.T) {
	t.Parallel()

	device := &fakeDevice{}
	provider := &fakeProvider{err: &transcribe.RemoteError{StatusCode: 500, Message: "boom"}}
	creator := &fakeCreator{}
	m := NewManager(device, provider, creator, zap.NewNop(), 0)
	ctx := context.Background()

	if _, err := m.Start(ctx, models.CategoryWork, transcribe.ModeNote); err != nil {
		t.Fatal(err)
	}
	if err := m.AppendChunk([]byte("audio")); err != nil {
		t.Fatal(err)
	}

	_, err := m.Stop(ctx)
	if !transcribe.IsRemoteError(err) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if len(creator.created()) != 0 {
		t.Error("no partial note may be created on a failed pipeline")
	}
	if m.State() != StateIdle {
		t.Errorf("expected Idle, got %s", m.State())
	}
	if !device.stream.isClosed() {
		t.Error("device must be released on the failure path")
	}
}

func TestParseFallbackStillCommits(t *testing.T) {
	t.Parallel()

	device := &fakeDevice{}
	provider := &fakeProvider{raw: "not json at all"}
	creator := &fakeCreator{}
	m := NewManager(device, provider, creator, zap.NewNop(), 0)
	ctx := context.Background()

	if _, err := m.Start(ctx, models.CategoryPersonal, transcribe.ModeNote); err != nil {
		t.Fatal(err)
	}
	if err := m.AppendChunk([]byte("audio")); err != nil {
		t.Fatal(err)
	}

	note, err := m.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if note.Title != models.DefaultTitle || note.Text != "not json at all" {
		t.Errorf("degraded parse must still produce a usable note: %+v", note)
	}
}

func TestResetDiscardsLateResult(t *testing.T) {
	t.Parallel()

	device := &fakeDevice{}
	provider := &fakeProvider{raw: `{"title":"T","transcription":"Body"}`, release: make(chan struct{})}
	creator := &fakeCreator{}
	m := NewManager(device, provider, creator, zap.NewNop(), 0)
	ctx := context.Background()

	if _, err := m.Start(ctx, models.CategoryWork, transcribe.ModeNote); err != nil {
		t.Fatal(err)
	}
	if err := m.AppendChunk([]byte("audio")); err != nil {
		t.Fatal(err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := m.Stop(ctx)
		errCh <- err
	}()

	waitForState(t, m, StateAwaitingTranscription)

	// Abandon the session while the remote call is in flight, then let the
	// late result land.
	m.Reset()
	close(provider.release)

	if err := <-errCh; !errors.Is(err, ErrSessionReset) {
		t.Fatalf("expected ErrSessionReset, got %v", err)
	}
	if len(creator.created()) != 0 {
		t.Error("a late result must be discarded, not committed")
	}
	if m.State() != StateIdle {
		t.Errorf("expected Idle, got %s", m.State())
	}
}

func TestStartWhileAwaitingTranscription(t *testing.T) {
	t.Parallel()

	device := &fakeDevice{}
	provider := &fakeProvider{raw: `{"title":"T","transcription":"Body"}`, release: make(chan struct{})}
	m := NewManager(device, provider, &fakeCreator{}, zap.NewNop(), 0)
	ctx := context.Background()

	if _, err := m.Start(ctx, models.CategoryWork, transcribe.ModeNote); err != nil {
		t.Fatal(err)
	}
	if err := m.AppendChunk([]byte("audio")); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		_, _ = m.Stop(ctx)
		close(done)
	}()
	waitForState(t, m, StateAwaitingTranscription)

	if _, err := m.Start(ctx, models.CategoryWork, transcribe.ModeNote); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Start while awaiting transcription must fail, got %v", err)
	}

	close(provider.release)
	<-done
}

func TestAppendChunkOutsideCapture(t *testing.T) {
	t.Parallel()

	m := NewManager(&fakeDevice{}, &fakeProvider{}, &fakeCreator{}, zap.NewNop(), 0)
	if err := m.AppendChunk([]byte("audio")); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
}

func TestAppendChunkPayloadCap(t *testing.T) {
	t.Parallel()

	m := NewManager(&fakeDevice{}, &fakeProvider{}, &fakeCreator{}, zap.NewNop(), 8)
	ctx := context.Background()
	if _, err := m.Start(ctx, models.CategoryWork, transcribe.ModeNote); err != nil {
		t.Fatal(err)
	}
	if err := m.AppendChunk([]byte("12345678")); err != nil {
		t.Fatal(err)
	}
	if err := m.AppendChunk([]byte("9")); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestStopOutsideCapture(t *testing.T) {
	t.Parallel()

	m := NewManager(&fakeDevice{}, &fakeProvider{}, &fakeCreator{}, zap.NewNop(), 0)
	if _, err := m.Stop(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
}

func TestUploadDeviceExclusive(t *testing.T) {
	t.Parallel()

	device := NewUploadDevice("audio/webm")
	ctx := context.Background()

	stream, err := device.Open(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stream.MIMEType() != "audio/webm" {
		t.Errorf("mime = %q", stream.MIMEType())
	}
	if _, err := device.Open(ctx); !IsDeviceError(err) {
		t.Errorf("second open must fail while held, got %v", err)
	}
	if err := stream.Close(); err != nil {
		t.Fatal(err)
	}
	second, err := device.Open(ctx)
	if err != nil {
		t.Fatalf("open after release failed: %v", err)
	}
	_ = second.Close()
}
