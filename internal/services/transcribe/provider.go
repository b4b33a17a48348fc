// Package transcribe sends captured audio to a remote transcription service
// and extracts a structured {title, transcription} pair from its answer.
package transcribe

import (
	"context"
)

// Mode selects the instruction sent alongside the audio
type Mode string

const (
	// ModeNote asks for a plain transcription with a generated title
	ModeNote Mode = "note"
	// ModeTodo asks for checklist-formatted transcription lines
	ModeTodo Mode = "todo"
)

// AudioPayload is one finalized recording: the raw bytes of a single
// capture session plus their MIME type.
type AudioPayload struct {
	MIMEType string
	Data     []byte
}

// Provider is the interface for transcription backends. Transcribe performs
// a single request/response exchange and returns the raw text of the
// service's answer, which is not guaranteed to be valid structured data;
// Parse handles that.
type Provider interface {
	Transcribe(ctx context.Context, payload AudioPayload, mode Mode) (string, error)
}

// Instruction returns the prompt for a mode. Both prompts ask the service
// for a JSON object with "title" and "transcription" keys; the todo prompt
// additionally asks for checklist-item lines.
func Instruction(mode Mode) string {
	if mode == ModeTodo {
		return "Transcribe this audio as a to-do list. Each distinct task should be on a new line, " +
			"prefixed with '[ ] '. Also, generate a concise title (max 5 words). Format the output " +
			"as a clean JSON object with 'title' and 'transcription' keys. " +
			`Example: {"title": "Grocery List", "transcription": "[ ] Milk\n[ ] Eggs\n[ ] Bread"}`
	}
	return "Transcribe this audio. Also generate a short, concise title (max 5 words). Format the " +
		"output as a clean JSON object with 'title' and 'transcription' keys. " +
		`Example: {"title": "My Great Idea", "transcription": "This is my idea..."}`
}

// ProviderFactory creates a provider from string configuration
type ProviderFactory func(config map[string]string) (Provider, error)

// ProviderRegistry stores available transcription providers
type ProviderRegistry struct {
	providers map[string]ProviderFactory
}

// NewProviderRegistry creates an empty registry
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]ProviderFactory),
	}
}

// Register registers a provider factory under a name
func (r *ProviderRegistry) Register(name string, factory ProviderFactory) {
	r.providers[name] = factory
}

// GetProvider builds a provider by name
func (r *ProviderRegistry) GetProvider(name string, config map[string]string) (Provider, error) {
	factory, ok := r.providers[name]
	if !ok {
		return nil, &ErrProviderNotFound{Name: name}
	}
	return factory(config)
}

// ErrProviderNotFound is returned when a provider name is not registered
type ErrProviderNotFound struct {
	Name string
}

func (e *ErrProviderNotFound) Error() string {
	return "transcription provider not found: " + e.Name
}
