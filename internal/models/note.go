package models

import (
	"strings"
	"time"
)

// Category classifies the content of a note
type Category string

const (
	CategoryWork     Category = "work"
	CategoryPersonal Category = "personal"
	CategoryIdeas    Category = "ideas"
	CategoryMeetings Category = "meetings"
	CategoryTodo     Category = "todo"
)

// ViewCategory selects which notes a query returns. It is a query selector,
// not a stored note attribute: "all", "favorites" and "trash" are never valid
// values of Note.Category.
type ViewCategory string

const (
	ViewAll       ViewCategory = "all"
	ViewFavorites ViewCategory = "favorites"
	ViewTrash     ViewCategory = "trash"
)

// NoteColorCount is the size of the fixed note color palette. ColorIndex is
// always in [0, NoteColorCount).
const NoteColorCount = 5

// DefaultTitle is used when a note is created without a usable title.
const DefaultTitle = "Untitled Note"

// Note represents a single note, active or trashed
type Note struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Text        string    `json:"text"`
	Category    Category  `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
	IsFavorited bool      `json:"is_favorited"`
	ColorIndex  int       `json:"color_index"`
}

// Clone returns a deep copy of the note. Notes hold only value fields, so a
// struct copy is sufficient, but mutations must never alias the original.
func (n *Note) Clone() *Note {
	c := *n
	return &c
}

// Checklist line markers used by todo notes. Each line of a todo note's text
// is either plain text or carries one of these prefixes.
const (
	TodoUnchecked = "[ ] "
	TodoChecked   = "[x] "
)

// ToggleChecklistLine applies the three-way toggle rule to a single line:
// plain text gains an unchecked marker, unchecked becomes checked, checked
// becomes unchecked. A line never returns to plain text once marked.
func ToggleChecklistLine(line string) string {
	switch {
	case strings.HasPrefix(line, TodoUnchecked):
		return TodoChecked + strings.TrimPrefix(line, TodoUnchecked)
	case strings.HasPrefix(line, TodoChecked):
		return TodoUnchecked + strings.TrimPrefix(line, TodoChecked)
	default:
		return TodoUnchecked + line
	}
}

// Theme is the UI theme preference persisted alongside the note collections
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)
