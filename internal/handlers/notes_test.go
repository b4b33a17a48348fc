package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/talknote/talknote/internal/models"
	"github.com/talknote/talknote/internal/store"
)

// memPersister keeps persisted collections in memory for handler tests
type memPersister struct {
	active []*models.Note
	trash  []*models.Note
}

func (p *memPersister) SaveActive(_ context.Context, notes []*models.Note) error {
	p.active = notes
	return nil
}

func (p *memPersister) SaveTrash(_ context.Context, notes []*models.Note) error {
	p.trash = notes
	return nil
}

func (p *memPersister) LoadActive(context.Context) ([]*models.Note, error) { return p.active, nil }
func (p *memPersister) LoadTrash(context.Context) ([]*models.Note, error)  { return p.trash, nil }

func newTestRouter(t *testing.T) (*mux.Router, *store.Store) {
	t.Helper()

	notes := store.New(&memPersister{}, zap.NewNop())
	router := mux.NewRouter()
	NewNoteHandler(notes).RegisterRoutes(router.PathPrefix("/api/v1").Subrouter())
	return router, notes
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func doRequest(t *testing.T, router *mux.Router, method, path, body string) (*http.Response, envelope) {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := w.Result()
	t.Cleanup(func() { resp.Body.Close() })

	var env envelope
	if resp.Header.Get("Content-Type") == "application/json" {
		_ = json.NewDecoder(resp.Body).Decode(&env)
	}
	return resp, env
}

func TestCreateNote(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "valid note",
			body:       `{"text":"Buy milk","title":"Groceries","category":"personal"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "title defaults when omitted",
			body:       `{"text":"Something","category":"work"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing text",
			body:       `{"category":"work"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "whitespace text",
			body:       `{"text":"   ","category":"work"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid category",
			body:       `{"text":"Hello","category":"sports"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "view selector rejected as category",
			body:       `{"text":"Hello","category":"favorites"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed body",
			body:       `{not json`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router, _ := newTestRouter(t)
			resp, env := doRequest(t, router, "POST", "/api/v1/notes", tt.body)

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, resp.StatusCode)
			}
			if tt.wantStatus == http.StatusCreated {
				if !env.Success {
					t.Error("Expected success envelope")
				}
				var note models.Note
				if err := json.Unmarshal(env.Data, &note); err != nil {
					t.Fatalf("Failed to decode note: %v", err)
				}
				if note.ID == "" {
					t.Error("Expected note id to be assigned")
				}
				if note.Title == "" {
					t.Error("Expected a non-empty title")
				}
			} else if env.Success {
				t.Error("Expected error envelope")
			}
		})
	}
}

func TestListNotes(t *testing.T) {
	t.Parallel()

	router, notes := newTestRouter(t)
	ctx := context.Background()

	a, _ := notes.Create(ctx, "Standup notes", "Monday", models.CategoryMeetings)
	b, _ := notes.Create(ctx, "Buy milk", "Groceries", models.CategoryPersonal)
	_ = notes.ToggleFavorite(ctx, b.ID)
	_ = notes.SoftDelete(ctx, a.ID)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantTotal  int
	}{
		{name: "default view", path: "/api/v1/notes", wantStatus: http.StatusOK, wantTotal: 1},
		{name: "favorites", path: "/api/v1/notes?view=favorites", wantStatus: http.StatusOK, wantTotal: 1},
		{name: "trash", path: "/api/v1/notes?view=trash", wantStatus: http.StatusOK, wantTotal: 1},
		{name: "search miss", path: "/api/v1/notes?q=zebra", wantStatus: http.StatusOK, wantTotal: 0},
		{name: "search hit", path: "/api/v1/notes?q=milk", wantStatus: http.StatusOK, wantTotal: 1},
		{name: "unknown view", path: "/api/v1/notes?view=archive", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, env := doRequest(t, router, "GET", tt.path, "")

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, resp.StatusCode)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var list ListNotesResponse
			if err := json.Unmarshal(env.Data, &list); err != nil {
				t.Fatalf("Failed to decode list: %v", err)
			}
			if list.Total != tt.wantTotal {
				t.Errorf("Expected %d notes, got %d", tt.wantTotal, list.Total)
			}
		})
	}
}

func TestNoteLifecycle(t *testing.T) {
	t.Parallel()

	router, notes := newTestRouter(t)

	resp, env := doRequest(t, router, "POST", "/api/v1/notes", `{"text":"Hello","category":"ideas"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", resp.StatusCode)
	}
	var note models.Note
	if err := json.Unmarshal(env.Data, &note); err != nil {
		t.Fatalf("Failed to decode note: %v", err)
	}

	resp, env = doRequest(t, router, "POST", "/api/v1/notes/"+note.ID+"/favorite", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	var favorited models.Note
	if err := json.Unmarshal(env.Data, &favorited); err != nil {
		t.Fatalf("Failed to decode note: %v", err)
	}
	if !favorited.IsFavorited {
		t.Error("Expected note to be favorited")
	}

	resp, _ = doRequest(t, router, "DELETE", "/api/v1/notes/"+note.ID, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", resp.StatusCode)
	}
	if active, trash := notes.Counts(); active != 0 || trash != 1 {
		t.Fatalf("Expected 0 active / 1 trash, got %d/%d", active, trash)
	}

	resp, _ = doRequest(t, router, "POST", "/api/v1/notes/"+note.ID+"/restore", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if active, trash := notes.Counts(); active != 1 || trash != 0 {
		t.Fatalf("Expected 1 active / 0 trash, got %d/%d", active, trash)
	}

	resp, _ = doRequest(t, router, "DELETE", "/api/v1/notes/"+note.ID, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", resp.StatusCode)
	}
	resp, _ = doRequest(t, router, "DELETE", "/api/v1/trash/"+note.ID, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", resp.StatusCode)
	}
	if _, trash := notes.Counts(); trash != 0 {
		t.Fatalf("Expected empty trash, got %d", trash)
	}

	resp, _ = doRequest(t, router, "POST", "/api/v1/notes/"+note.ID+"/restore", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("Expected status 404 after purge, got %d", resp.StatusCode)
	}
}

func TestUpdateNote(t *testing.T) {
	t.Parallel()

	router, notes := newTestRouter(t)
	note, _ := notes.Create(context.Background(), "Original", "Title", models.CategoryWork)

	resp, env := doRequest(t, router, "PATCH", "/api/v1/notes/"+note.ID, `{"text":"Edited"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	var updated models.Note
	if err := json.Unmarshal(env.Data, &updated); err != nil {
		t.Fatalf("Failed to decode note: %v", err)
	}
	if updated.Text != "Edited" {
		t.Errorf("Expected text 'Edited', got '%s'", updated.Text)
	}
	if updated.Title != "Title" {
		t.Errorf("Expected title unchanged, got '%s'", updated.Title)
	}

	resp, _ = doRequest(t, router, "PATCH", "/api/v1/notes/missing-id", `{"text":"Edited"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d", resp.StatusCode)
	}

	resp, _ = doRequest(t, router, "PATCH", "/api/v1/notes/"+note.ID, `{"text":"   "}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected status 400 for blank text, got %d", resp.StatusCode)
	}
}

func TestToggleTodoLineEndpoint(t *testing.T) {
	t.Parallel()

	router, notes := newTestRouter(t)
	note, _ := notes.Create(context.Background(), "[ ] first\nsecond", "Todos", models.CategoryTodo)

	resp, env := doRequest(t, router, "POST", "/api/v1/notes/"+note.ID+"/todo/0", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	var updated models.Note
	if err := json.Unmarshal(env.Data, &updated); err != nil {
		t.Fatalf("Failed to decode note: %v", err)
	}
	if !strings.HasPrefix(updated.Text, models.TodoChecked) {
		t.Errorf("Expected first line checked, got '%s'", updated.Text)
	}

	resp, _ = doRequest(t, router, "POST", "/api/v1/notes/"+note.ID+"/todo/notanumber", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", resp.StatusCode)
	}

	// Out-of-range line index is a no-op, not an error
	resp, _ = doRequest(t, router, "POST", "/api/v1/notes/"+note.ID+"/todo/99", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
}

func TestExportNotes(t *testing.T) {
	t.Parallel()

	router, notes := newTestRouter(t)
	_, _ = notes.Create(context.Background(), "Exported", "", models.CategoryWork)

	req := httptest.NewRequest("GET", "/api/v1/notes/export", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	disposition := resp.Header.Get("Content-Disposition")
	if !strings.Contains(disposition, "attachment") {
		t.Errorf("Expected attachment disposition, got '%s'", disposition)
	}
	if !strings.Contains(disposition, ExportFilenamePrefix) || !strings.Contains(disposition, ".json") {
		t.Errorf("Expected date-stamped json filename, got '%s'", disposition)
	}

	var exported []*models.Note
	if err := json.NewDecoder(resp.Body).Decode(&exported); err != nil {
		t.Fatalf("Failed to decode export: %v", err)
	}
	if len(exported) != 1 {
		t.Errorf("Expected 1 exported note, got %d", len(exported))
	}
}

func TestImportNotes(t *testing.T) {
	t.Parallel()

	router, notes := newTestRouter(t)
	_, _ = notes.Create(context.Background(), "Replaced", "", models.CategoryWork)

	payload := `[{"id":"01ABC","title":"Imported","text":"Body","category":"work","created_at":"2024-01-02T03:04:05Z","is_favorited":false,"color_index":2}]`
	resp, env := doRequest(t, router, "POST", "/api/v1/notes/import", payload)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var counts map[string]int
	if err := json.Unmarshal(env.Data, &counts); err != nil {
		t.Fatalf("Failed to decode counts: %v", err)
	}
	if counts["active"] != 1 {
		t.Errorf("Expected 1 active note after import, got %d", counts["active"])
	}
	if got := notes.Get("01ABC"); got == nil || got.Title != "Imported" {
		t.Errorf("Expected imported note to replace the collection, got %+v", got)
	}

	resp, _ = doRequest(t, router, "POST", "/api/v1/notes/import", `{"not":"an array"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected status 400 for malformed import, got %d", resp.StatusCode)
	}
}
