package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/talknote/talknote/internal/database"
	"github.com/talknote/talknote/internal/models"
	"github.com/talknote/talknote/internal/validation"
)

// ThemeHandler stores the UI theme preference
type ThemeHandler struct {
	db *database.DB
}

// NewThemeHandler creates a new theme handler
func NewThemeHandler(db *database.DB) *ThemeHandler {
	return &ThemeHandler{db: db}
}

// RegisterRoutes registers theme routes on the given router.
// The router should already have the /api/v1 prefix.
func (h *ThemeHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/theme", h.GetTheme).Methods("GET")
	r.HandleFunc("/theme", h.PutTheme).Methods("PUT")
}

// ThemeRequest represents a theme update request
type ThemeRequest struct {
	Theme string `json:"theme"`
}

// ThemeResponse reports the stored theme
type ThemeResponse struct {
	Theme string `json:"theme"`
}

// GetTheme returns the stored theme, defaulting to light
func (h *ThemeHandler) GetTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := h.db.LoadTheme(r.Context())
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load theme")
		return
	}
	respondJSON(w, http.StatusOK, ThemeResponse{Theme: string(theme)})
}

// PutTheme stores the theme preference
func (h *ThemeHandler) PutTheme(w http.ResponseWriter, r *http.Request) {
	var req ThemeRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := validation.ValidateTheme(req.Theme); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	if err := h.db.SaveTheme(r.Context(), models.Theme(req.Theme)); err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to save theme")
		return
	}

	respondJSON(w, http.StatusOK, ThemeResponse{Theme: req.Theme})
}
