// Package store owns the in-memory note collections: the active collection
// and the trash collection. Every mutation runs to completion under one lock
// and triggers a wholesale write of the affected collection through the
// Persister, so the durable form never diverges from memory for longer than
// the duration of the operation.
package store

import (
	"context"
	"encoding/json"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/talknote/talknote/internal/models"
	"go.uber.org/zap"
)

// Persister is the durable key-value collaborator. Each collection is
// written wholesale and read once at process start.
type Persister interface {
	SaveActive(ctx context.Context, notes []*models.Note) error
	SaveTrash(ctx context.Context, notes []*models.Note) error
	LoadActive(ctx context.Context) ([]*models.Note, error)
	LoadTrash(ctx context.Context) ([]*models.Note, error)
}

// Patch is a partial note update. Nil fields are left unchanged.
type Patch struct {
	Text  *string
	Title *string
}

// Filter selects notes for Query
type Filter struct {
	View   models.ViewCategory
	Search string
}

// Store holds the active and trash collections
type Store struct {
	mu      sync.RWMutex
	active  []*models.Note
	trash   []*models.Note
	persist Persister
	logger  *zap.Logger
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// New creates a store backed by the given persister
func New(persist Persister, logger *zap.Logger) *Store {
	return &Store{
		persist: persist,
		logger:  logger,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
		now:     time.Now,
	}
}

// Load reads both collections from the persister. Called once at startup;
// missing keys yield empty collections.
func (s *Store) Load(ctx context.Context) error {
	active, err := s.persist.LoadActive(ctx)
	if err != nil {
		return &PersistError{Op: "load active", Err: err}
	}
	trash, err := s.persist.LoadTrash(ctx)
	if err != nil {
		return &PersistError{Op: "load trash", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
	s.trash = trash
	return nil
}

// Create adds a new note at the head of the active collection. The trimmed
// text must be non-empty; the title falls back to the default placeholder.
// The color index is derived from the active collection size at creation and
// never recomputed. A PersistError still carries the created note: the
// in-memory insert is not rolled back.
func (s *Store) Create(ctx context.Context, text, title string, category models.Category) (*models.Note, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	title = strings.TrimSpace(title)
	if title == "" {
		title = models.DefaultTitle
	}

	note := &models.Note{
		ID:          ulid.MustNew(ulid.Timestamp(now), s.entropy).String(),
		Title:       title,
		Text:        text,
		Category:    category,
		CreatedAt:   now,
		IsFavorited: false,
		ColorIndex:  len(s.active) % models.NoteColorCount,
	}

	s.active = append([]*models.Note{note}, s.active...)

	if err := s.persistActive(ctx); err != nil {
		return note.Clone(), err
	}
	return note.Clone(), nil
}

// Update applies a partial update to an active note. Unknown ids are a no-op.
func (s *Store) Update(ctx context.Context, id string, patch Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	note := findByID(s.active, id)
	if note == nil {
		return nil
	}
	if patch.Text != nil {
		note.Text = *patch.Text
	}
	if patch.Title != nil {
		note.Title = *patch.Title
	}
	return s.persistActive(ctx)
}

// ToggleFavorite flips the favorite flag on an active note. Unknown ids are
// a no-op.
func (s *Store) ToggleFavorite(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	note := findByID(s.active, id)
	if note == nil {
		return nil
	}
	note.IsFavorited = !note.IsFavorited
	return s.persistActive(ctx)
}

// ToggleTodoLine toggles the checklist marker on one line of a note's text.
// Out-of-range line indexes and unknown ids are no-ops.
func (s *Store) ToggleTodoLine(ctx context.Context, id string, lineIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	note := findByID(s.active, id)
	if note == nil {
		return nil
	}
	lines := strings.Split(note.Text, "\n")
	if lineIndex < 0 || lineIndex >= len(lines) {
		return nil
	}
	lines[lineIndex] = models.ToggleChecklistLine(lines[lineIndex])
	note.Text = strings.Join(lines, "\n")
	return s.persistActive(ctx)
}

// SoftDelete moves a note from the active collection to the head of the
// trash collection, all fields preserved verbatim.
func (s *Store) SoftDelete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := indexByID(s.active, id)
	if idx < 0 {
		return nil
	}
	note := s.active[idx]
	s.active = append(s.active[:idx], s.active[idx+1:]...)
	s.trash = append([]*models.Note{note}, s.trash...)
	return s.persistBoth(ctx)
}

// Restore moves a note from trash back to the head of the active collection
func (s *Store) Restore(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := indexByID(s.trash, id)
	if idx < 0 {
		return nil
	}
	note := s.trash[idx]
	s.trash = append(s.trash[:idx], s.trash[idx+1:]...)
	s.active = append([]*models.Note{note}, s.active...)
	return s.persistBoth(ctx)
}

// Purge removes a note from trash permanently
func (s *Store) Purge(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := indexByID(s.trash, id)
	if idx < 0 {
		return nil
	}
	s.trash = append(s.trash[:idx], s.trash[idx+1:]...)
	return s.persistTrash(ctx)
}

// Get returns a copy of the note with the given id, searching the active
// collection first, then trash. Returns nil when the id is unknown.
func (s *Store) Get(id string) *models.Note {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if note := findByID(s.active, id); note != nil {
		return note.Clone()
	}
	if note := findByID(s.trash, id); note != nil {
		return note.Clone()
	}
	return nil
}

// Query returns a filtered, sorted snapshot of a collection. The trash view
// returns the trash collection verbatim; the favorites view ignores the
// search text; every other view filters the active collection by a
// case-insensitive substring match against title or text, restricted to the
// view's category unless the view is "all". Results are ordered favorited
// first (stable partition), then newest first, with the id as tiebreaker.
func (s *Store) Query(filter Filter) []*models.Note {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if filter.View == models.ViewTrash {
		return cloneAll(s.trash)
	}

	var matched []*models.Note
	if filter.View == models.ViewFavorites {
		for _, n := range s.active {
			if n.IsFavorited {
				matched = append(matched, n)
			}
		}
	} else {
		query := strings.ToLower(filter.Search)
		for _, n := range s.active {
			if filter.View != models.ViewAll && n.Category != models.Category(filter.View) {
				continue
			}
			if query != "" &&
				!strings.Contains(strings.ToLower(n.Title), query) &&
				!strings.Contains(strings.ToLower(n.Text), query) {
				continue
			}
			matched = append(matched, n)
		}
	}

	result := cloneAll(matched)
	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.IsFavorited != b.IsFavorited {
			return a.IsFavorited
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return result
}

// Counts returns the sizes of the active and trash collections
func (s *Store) Counts() (active, trash int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.active), len(s.trash)
}

// ExportAll serializes the active collection as indented JSON
func (s *Store) ExportAll() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	notes := s.active
	if notes == nil {
		notes = []*models.Note{}
	}
	return json.MarshalIndent(notes, "", "  ")
}

// ImportAll replaces the active collection wholesale with the decoded
// payload. Malformed input is rejected with ErrMalformedImport and the store
// is left unchanged. The trash collection is not touched.
func (s *Store) ImportAll(ctx context.Context, data []byte) error {
	var notes []*models.Note
	if err := json.Unmarshal(data, &notes); err != nil {
		return ErrMalformedImport
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = notes
	return s.persistActive(ctx)
}

func (s *Store) persistActive(ctx context.Context) error {
	if err := s.persist.SaveActive(ctx, s.active); err != nil {
		s.logger.Error("persist_failed",
			zap.String("collection", "active"),
			zap.Error(err),
		)
		return &PersistError{Op: "active", Err: err}
	}
	return nil
}

func (s *Store) persistTrash(ctx context.Context) error {
	if err := s.persist.SaveTrash(ctx, s.trash); err != nil {
		s.logger.Error("persist_failed",
			zap.String("collection", "trash"),
			zap.Error(err),
		)
		return &PersistError{Op: "trash", Err: err}
	}
	return nil
}

func (s *Store) persistBoth(ctx context.Context) error {
	if err := s.persistActive(ctx); err != nil {
		return err
	}
	return s.persistTrash(ctx)
}

func findByID(notes []*models.Note, id string) *models.Note {
	if idx := indexByID(notes, id); idx >= 0 {
		return notes[idx]
	}
	return nil
}

func indexByID(notes []*models.Note, id string) int {
	for i, n := range notes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

func cloneAll(notes []*models.Note) []*models.Note {
	out := make([]*models.Note, len(notes))
	for i, n := range notes {
		out[i] = n.Clone()
	}
	return out
}
