package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/talknote/talknote/internal/capture"
	"github.com/talknote/talknote/internal/models"
	"github.com/talknote/talknote/internal/services/transcribe"
	"github.com/talknote/talknote/internal/store"
	"github.com/talknote/talknote/internal/validation"
)

// CaptureHandler drives the process-wide capture session
type CaptureHandler struct {
	manager *capture.Manager
}

// NewCaptureHandler creates a new capture handler
func NewCaptureHandler(manager *capture.Manager) *CaptureHandler {
	return &CaptureHandler{manager: manager}
}

// RegisterRoutes registers capture routes on the given router.
// The router should already have the /api/v1/capture prefix.
func (h *CaptureHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/start", h.StartCapture).Methods("POST")
	r.HandleFunc("/chunk", h.AppendChunk).Methods("POST")
	r.HandleFunc("/stop", h.StopCapture).Methods("POST")
	r.HandleFunc("/cancel", h.CancelCapture).Methods("POST")
	r.HandleFunc("", h.SessionState).Methods("GET")
}

// StartCaptureRequest represents a capture start request
type StartCaptureRequest struct {
	Category string `json:"category" validate:"omitempty,note_category"`
	Mode     string `json:"mode" validate:"omitempty,capture_mode"`
}

// SessionStateResponse reports the capture session state
type SessionStateResponse struct {
	State string `json:"state"`
}

// StartCapture begins a capture session. Starting while a session is already
// capturing stops it instead, so the same control toggles recording.
func (h *CaptureHandler) StartCapture(w http.ResponseWriter, r *http.Request) {
	var req StartCaptureRequest
	if r.ContentLength != 0 && !decodeJSONBody(w, r, &req) {
		return
	}

	if err := validation.Validate.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", fmt.Sprintf("Validation failed: %s", validationErrors[0].Error()))
			return
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Validation failed")
		return
	}

	category := models.CategoryPersonal
	if req.Category != "" {
		category = models.Category(req.Category)
	}
	mode := transcribe.ModeNote
	if req.Mode != "" {
		mode = transcribe.Mode(req.Mode)
	}

	note, err := h.manager.Start(r.Context(), category, mode)
	if note != nil {
		// The start doubled as a stop and the pipeline produced a note.
		respondJSON(w, http.StatusCreated, note)
		return
	}
	if err != nil {
		h.respondCaptureError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, SessionStateResponse{State: string(h.manager.State())})
}

// AppendChunk buffers one chunk of raw audio for the active session
func (h *CaptureHandler) AppendChunk(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
			return
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Failed to read request body")
		return
	}

	if err := h.manager.AppendChunk(data); err != nil {
		h.respondCaptureError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// StopCapture finalizes the session, runs transcription, and returns the
// created note
func (h *CaptureHandler) StopCapture(w http.ResponseWriter, r *http.Request) {
	note, err := h.manager.Stop(r.Context())
	if note == nil && err != nil {
		h.respondCaptureError(w, err)
		return
	}
	if note == nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Capture produced no note")
		return
	}

	respondJSON(w, http.StatusCreated, note)
}

// CancelCapture discards the session and any in-flight transcription result
func (h *CaptureHandler) CancelCapture(w http.ResponseWriter, r *http.Request) {
	h.manager.Reset()
	respondJSON(w, http.StatusOK, SessionStateResponse{State: string(h.manager.State())})
}

// SessionState reports the current capture session state
func (h *CaptureHandler) SessionState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, SessionStateResponse{State: string(h.manager.State())})
}

func (h *CaptureHandler) respondCaptureError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, capture.ErrInvalidState):
		respondJSONError(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, capture.ErrSessionReset):
		respondJSONError(w, http.StatusConflict, "Conflict", "Capture session was cancelled")
	case errors.Is(err, capture.ErrPayloadTooLarge):
		respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", err.Error())
	case capture.IsDeviceError(err):
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Capture device unavailable")
	case transcribe.IsRemoteError(err):
		respondJSONError(w, http.StatusBadGateway, "Bad Gateway", "Transcription service failed")
	case store.IsPersistError(err):
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to persist note")
	default:
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Capture failed")
	}
}
