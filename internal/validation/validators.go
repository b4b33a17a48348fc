package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/talknote/talknote/internal/models"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Register custom validators for enums
	// These should never fail in normal operation, but panic loudly if they do
	if err := Validate.RegisterValidation("note_category", validateCategory); err != nil {
		panic(fmt.Sprintf("failed to register note_category validator: %v", err))
	}
	if err := Validate.RegisterValidation("capture_mode", validateCaptureMode); err != nil {
		panic(fmt.Sprintf("failed to register capture_mode validator: %v", err))
	}
}

// validateCategory validates that a string is a valid content Category
func validateCategory(fl validator.FieldLevel) bool {
	return ValidateCategory(fl.Field().String()) == nil
}

// validateCaptureMode validates a transcription mode ("note" or "todo")
func validateCaptureMode(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return value == "note" || value == "todo"
}

// SanitizeText sanitizes text input by trimming whitespace and removing
// control characters other than newline and tab
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidateCategory validates a content category string. View selectors
// ("all", "favorites", "trash") are deliberately not accepted here: they are
// query filters, never stored note attributes.
func ValidateCategory(value string) error {
	switch models.Category(value) {
	case models.CategoryWork, models.CategoryPersonal, models.CategoryIdeas,
		models.CategoryMeetings, models.CategoryTodo:
		return nil
	default:
		return fmt.Errorf("invalid category: %s (must be 'work', 'personal', 'ideas', 'meetings', or 'todo')", value)
	}
}

// ValidateViewCategory validates a query view selector: "all", "favorites",
// "trash", or any valid content category
func ValidateViewCategory(value string) error {
	switch models.ViewCategory(value) {
	case models.ViewAll, models.ViewFavorites, models.ViewTrash:
		return nil
	}
	if err := ValidateCategory(value); err != nil {
		return fmt.Errorf("invalid view: %s (must be 'all', 'favorites', 'trash', or a content category)", value)
	}
	return nil
}

// ValidateTheme validates a theme preference value
func ValidateTheme(value string) error {
	switch models.Theme(value) {
	case models.ThemeLight, models.ThemeDark:
		return nil
	default:
		return fmt.Errorf("invalid theme: %s (must be 'light' or 'dark')", value)
	}
}
