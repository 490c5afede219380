package domain

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// FormatLabel turns a snake_case column name into a display label,
// e.g. "on_scene_time" -> "On Scene Time".
func FormatLabel(column string) string {
	// Casers are stateful, so one per call.
	return cases.Title(language.English).String(strings.ReplaceAll(column, "_", " "))
}
