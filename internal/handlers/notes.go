package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/talknote/talknote/internal/models"
	"github.com/talknote/talknote/internal/store"
	"github.com/talknote/talknote/internal/validation"
)

// NoteHandler handles note-related requests
type NoteHandler struct {
	notes *store.Store
}

// NewNoteHandler creates a new note handler
func NewNoteHandler(notes *store.Store) *NoteHandler {
	return &NoteHandler{notes: notes}
}

// RegisterRoutes registers note routes on the given router.
// The router should already have the /api/v1 prefix.
func (h *NoteHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/notes", h.ListNotes).Methods("GET")
	r.HandleFunc("/notes", h.CreateNote).Methods("POST")
	r.HandleFunc("/notes/export", h.ExportNotes).Methods("GET")
	r.HandleFunc("/notes/import", h.ImportNotes).Methods("POST")
	r.HandleFunc("/notes/{id}", h.UpdateNote).Methods("PATCH")
	r.HandleFunc("/notes/{id}", h.DeleteNote).Methods("DELETE")
	r.HandleFunc("/notes/{id}/favorite", h.ToggleFavorite).Methods("POST")
	r.HandleFunc("/notes/{id}/todo/{line}", h.ToggleTodoLine).Methods("POST")
	r.HandleFunc("/notes/{id}/restore", h.RestoreNote).Methods("POST")
	r.HandleFunc("/trash/{id}", h.PurgeNote).Methods("DELETE")
}

const (
	// MaxNoteTextLength is the maximum length for note text
	MaxNoteTextLength = 50000
	// MaxNoteTitleLength is the maximum length for note titles
	MaxNoteTitleLength = 500
	// ExportFilenamePrefix is the prefix of the export attachment name
	ExportFilenamePrefix = "talknotes_"
)

// CreateNoteRequest represents a create note request
type CreateNoteRequest struct {
	Text     string `json:"text" validate:"required,min=1,max=50000"`
	Title    string `json:"title" validate:"omitempty,max=500"`
	Category string `json:"category" validate:"required,note_category"`
}

// UpdateNoteRequest represents a partial note update
type UpdateNoteRequest struct {
	Text  *string `json:"text,omitempty"`
	Title *string `json:"title,omitempty"`
}

// ListNotesResponse represents the response for listing notes
type ListNotesResponse struct {
	Notes []*models.Note `json:"notes"`
	View  string         `json:"view"`
	Total int            `json:"total"`
}

// ListNotes returns the filtered, sorted notes for a view
func (h *NoteHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	view := r.URL.Query().Get("view")
	if view == "" {
		view = string(models.ViewAll)
	}
	if err := validation.ValidateViewCategory(view); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	notes := h.notes.Query(store.Filter{
		View:   models.ViewCategory(view),
		Search: r.URL.Query().Get("q"),
	})

	respondJSON(w, http.StatusOK, ListNotesResponse{
		Notes: notes,
		View:  view,
		Total: len(notes),
	})
}

// CreateNote creates a typed note
func (h *NoteHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !decodeJSONBody(w, r, &req) {
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

	req.Text = validation.SanitizeText(req.Text)
	req.Title = validation.SanitizeText(req.Title)

	note, err := h.notes.Create(r.Context(), req.Text, req.Title, models.Category(req.Category))
	if err != nil && !store.IsPersistError(err) {
		if errors.Is(err, store.ErrEmptyText) {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Text is required and cannot be empty after sanitization")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to create note")
		return
	}

	respondJSON(w, http.StatusCreated, note)
}

// UpdateNote applies a partial update to an active note
func (h *NoteHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req UpdateNoteRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	patch := store.Patch{Title: req.Title}
	if req.Text != nil {
		sanitized := validation.SanitizeText(*req.Text)
		if sanitized == "" {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Text cannot be empty after sanitization")
			return
		}
		if len(sanitized) > MaxNoteTextLength {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", fmt.Sprintf("Text exceeds maximum length of %d characters", MaxNoteTextLength))
			return
		}
		patch.Text = &sanitized
	}
	if req.Title != nil && len(*req.Title) > MaxNoteTitleLength {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", fmt.Sprintf("Title exceeds maximum length of %d characters", MaxNoteTitleLength))
		return
	}

	if h.notes.Get(id) == nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Note not found")
		return
	}

	if err := h.notes.Update(r.Context(), id, patch); err != nil && !store.IsPersistError(err) {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to update note")
		return
	}

	respondJSON(w, http.StatusOK, h.notes.Get(id))
}

// DeleteNote moves an active note to trash
func (h *NoteHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if h.notes.Get(id) == nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Note not found")
		return
	}

	if err := h.notes.SoftDelete(r.Context(), id); err != nil && !store.IsPersistError(err) {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to delete note")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ToggleFavorite flips the favorite flag on a note
func (h *NoteHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if h.notes.Get(id) == nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Note not found")
		return
	}

	if err := h.notes.ToggleFavorite(r.Context(), id); err != nil && !store.IsPersistError(err) {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to toggle favorite")
		return
	}

	respondJSON(w, http.StatusOK, h.notes.Get(id))
}

// ToggleTodoLine toggles the checklist marker on one line of a note
func (h *NoteHandler) ToggleTodoLine(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	line, err := strconv.Atoi(vars["line"])
	if err != nil || line < 0 {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid line index")
		return
	}

	if h.notes.Get(id) == nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Note not found")
		return
	}

	if err := h.notes.ToggleTodoLine(r.Context(), id, line); err != nil && !store.IsPersistError(err) {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to toggle todo line")
		return
	}

	respondJSON(w, http.StatusOK, h.notes.Get(id))
}

// RestoreNote moves a trashed note back to the active collection
func (h *NoteHandler) RestoreNote(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if h.notes.Get(id) == nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Note not found")
		return
	}

	if err := h.notes.Restore(r.Context(), id); err != nil && !store.IsPersistError(err) {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to restore note")
		return
	}

	respondJSON(w, http.StatusOK, h.notes.Get(id))
}

// PurgeNote permanently removes a note from trash
func (h *NoteHandler) PurgeNote(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if h.notes.Get(id) == nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Note not found")
		return
	}

	if err := h.notes.Purge(r.Context(), id); err != nil && !store.IsPersistError(err) {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to purge note")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ExportNotes streams the active collection as a date-stamped JSON attachment
func (h *NoteHandler) ExportNotes(w http.ResponseWriter, r *http.Request) {
	data, err := h.notes.ExportAll()
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to export notes")
		return
	}

	filename := ExportFilenamePrefix + time.Now().UTC().Format("2006-01-02") + ".json"
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ImportNotes replaces the active collection with the posted JSON array.
// Trash is left untouched.
func (h *NoteHandler) ImportNotes(w http.ResponseWriter, r *http.Request) {
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

	if err := h.notes.ImportAll(r.Context(), data); err != nil && !store.IsPersistError(err) {
		if errors.Is(err, store.ErrMalformedImport) {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Import payload must be a JSON array of notes")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to import notes")
		return
	}

	active, trash := h.notes.Counts()
	respondJSON(w, http.StatusOK, map[string]int{"active": active, "trash": trash})
}

// decodeJSONBody decodes a JSON request body, writing the error response
// itself when decoding fails.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
			return false
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return false
	}
	return true
}
