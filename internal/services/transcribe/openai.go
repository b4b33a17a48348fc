package transcribe

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	logpkg "github.com/talknote/talknote/internal/logger"
	"go.uber.org/zap"
)

const (
	// DefaultOpenAIModel is the default audio-capable chat model
	DefaultOpenAIModel = "gpt-4o-audio-preview"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
)

// OpenAIProvider implements Provider using OpenAI's chat completions with an
// inline audio content part. The same instruction prompts are used as for
// the Gemini provider, so the raw answer feeds the same parser.
type OpenAIProvider struct {
	client    openai.Client
	model     string
	logger    *zap.Logger
	debugMode bool
}

// NewOpenAIProvider creates an OpenAI-backed transcription provider
func NewOpenAIProvider(apiKey, baseURL, model string, logger *zap.Logger, debugMode bool) *OpenAIProvider {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(&http.Client{Timeout: DefaultTimeout}),
	)

	return &OpenAIProvider{
		client:    client,
		model:     model,
		logger:    logger,
		debugMode: debugMode,
	}
}

// Transcribe sends one chat completion carrying the audio and returns the
// raw answer text
func (p *OpenAIProvider) Transcribe(ctx context.Context, payload AudioPayload, mode Mode) (string, error) {
	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(Instruction(mode)),
		openai.InputAudioContentPart(openai.ChatCompletionContentPartInputAudioInputAudioParam{
			Data:   base64.StdEncoding.EncodeToString(payload.Data),
			Format: audioFormat(payload.MIMEType),
		}),
	}
	req := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(parts),
		},
	}

	if p.logger != nil && p.debugMode {
		p.logger.Debug("transcription_request",
			zap.String("provider", "openai"),
			zap.String("model", p.model),
			zap.String("mode", string(mode)),
			zap.String("mime_type", payload.MIMEType),
			zap.Int("audio_bytes", len(payload.Data)),
		)
	}

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, req)
	latency := time.Since(start)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &RemoteError{
				StatusCode: apiErr.StatusCode,
				Message:    logpkg.SanitizeError(apiErr),
				Err:        err,
			}
		}
		return "", &RemoteError{Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &RemoteError{Message: "no choices in response", Err: errors.New("empty response")}
	}

	text := resp.Choices[0].Message.Content
	if p.logger != nil && p.debugMode {
		p.logger.Debug("transcription_response",
			zap.String("provider", "openai"),
			zap.Int("response_length", len(text)),
			zap.String("response_preview", logpkg.SanitizeDebugContent(text)),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}
	return text, nil
}

// audioFormat maps a capture MIME type to the format names the API accepts
func audioFormat(mimeType string) string {
	mimeType = strings.ToLower(mimeType)
	switch {
	case strings.Contains(mimeType, "mpeg"), strings.Contains(mimeType, "mp3"):
		return "mp3"
	default:
		return "wav"
	}
}
