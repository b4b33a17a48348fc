package transcribe

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	logpkg "github.com/talknote/talknote/internal/logger"
	"go.uber.org/zap"
)

const (
	// DefaultGeminiBaseURL is the default generateContent API base URL
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	// DefaultGeminiModel is the default model to use
	DefaultGeminiModel = "gemini-2.0-flash"
	// DefaultTimeout is the default timeout for transcription calls
	DefaultTimeout = 60 * time.Second
)

// GeminiProvider implements Provider against a generateContent-style
// endpoint: one POST carrying the instruction text and the base64-encoded
// audio inline, one JSON response whose nested text field holds the answer.
type GeminiProvider struct {
	httpClient *http.Client
	baseURL    string
	model      string
	apiKey     string
	logger     *zap.Logger
	debugMode  bool
}

// NewGeminiProvider creates a Gemini-backed transcription provider
func NewGeminiProvider(apiKey, baseURL, model string, logger *zap.Logger, debugMode bool) *GeminiProvider {
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiProvider{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    baseURL,
		model:      model,
		apiKey:     apiKey,
		logger:     logger,
		debugMode:  debugMode,
	}
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Transcribe sends one request and returns the raw answer text
func (p *GeminiProvider) Transcribe(ctx context.Context, payload AudioPayload, mode Mode) (string, error) {
	body := geminiRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{Text: Instruction(mode)},
				{InlineData: &geminiInlineData{
					MIMEType: payload.MIMEType,
					Data:     base64.StdEncoding.EncodeToString(payload.Data),
				}},
			},
		}},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal transcription request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", p.baseURL, p.model, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to build transcription request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if p.logger != nil && p.debugMode {
		p.logger.Debug("transcription_request",
			zap.String("provider", "gemini"),
			zap.String("model", p.model),
			zap.String("mode", string(mode)),
			zap.String("mime_type", payload.MIMEType),
			zap.Int("audio_bytes", len(payload.Data)),
		)
	}

	start := time.Now()
	resp, err := p.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		return "", &RemoteError{Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &RemoteError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &RemoteError{
			StatusCode: resp.StatusCode,
			Message:    logpkg.SanitizeString(string(respBody), logpkg.MaxErrorMessageLength),
		}
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &RemoteError{StatusCode: resp.StatusCode, Message: "unreadable response body", Err: err}
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", &RemoteError{StatusCode: resp.StatusCode, Message: "no candidates in response", Err: errors.New("empty response")}
	}

	text := parsed.Candidates[0].Content.Parts[0].Text
	if p.logger != nil && p.debugMode {
		p.logger.Debug("transcription_response",
			zap.String("provider", "gemini"),
			zap.Int("response_length", len(text)),
			zap.String("response_preview", logpkg.SanitizeDebugContent(text)),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}
	return text, nil
}
