package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// DropReason names the rule that removed a row during cleaning.
type DropReason string

const (
	DropDisposition  DropReason = "disposition"
	DropOutOfWindow  DropReason = "out_of_window"
	DropNoOnScene    DropReason = "no_on_scene"
	DropOnSceneRange DropReason = "on_scene_range"
)

// DropReasons lists every reason in evaluation order.
func DropReasons() []DropReason {
	return []DropReason{DropDisposition, DropOutOfWindow, DropNoOnScene, DropOnSceneRange}
}

// DropError reports a row removed by a cleaning rule. It is not a data error.
type DropError struct {
	Reason DropReason
	ID     string
}

func (e *DropError) Error() string {
	return fmt.Sprintf("incident %s dropped: %s", e.ID, e.Reason)
}

// Rules configures the row filters applied by Clean.
type Rules struct {
	// DropDispositions are matched case-insensitively against the final disposition.
	DropDispositions []string
	// MinYear and MaxYear bound the call date to [MinYear, MaxYear). Zero disables a bound.
	MinYear int
	MaxYear int
	// MaxDuration is the exclusive upper bound, in minutes, of a plausible duration.
	MaxDuration float64
}

// DefaultRules returns the filters used for the 2012–2022 analyses.
func DefaultRules() Rules {
	return Rules{
		DropDispositions: []string{"Cancelled", "Duplicate"},
		MinYear:          2012,
		MaxYear:          2023,
		MaxDuration:      24 * 60,
	}
}

// Clean applies the row filters and derives durations. It returns the derived
// incident and an empty reason when the row is kept.
func Clean(inc Incident, rules Rules) (Incident, DropReason) {
	for _, d := range rules.DropDispositions {
		if strings.EqualFold(strings.TrimSpace(inc.Disposition), d) {
			return inc, DropDisposition
		}
	}
	if !inYearWindow(inc.CallDate, rules.MinYear, rules.MaxYear) {
		return inc, DropOutOfWindow
	}
	if inc.OnSceneAt == nil {
		return inc, DropNoOnScene
	}

	inc = Derive(inc, rules.MaxDuration)

	onScene := minutesBetween(inc.ReceivedAt, *inc.OnSceneAt)
	if !plausible(onScene, rules.MaxDuration) {
		return inc, DropOnSceneRange
	}
	return inc, ""
}

// Derive fills the ID, durations and calendar features. Durations outside
// [0, maxDuration) are left nil; on-scene time is set unconditionally so the
// caller can decide whether to keep the row. A non-positive maxDuration only
// rejects negative durations.
func Derive(inc Incident, maxDuration float64) Incident {
	inc.ID = generateID(inc.RowID, inc.CallNumber, inc.UnitID)

	if inc.OnSceneAt != nil {
		inc.OnSceneTime = minutesBetween(inc.ReceivedAt, *inc.OnSceneAt)
	}

	responseEnd := inc.ResponseAt
	if responseEnd == nil {
		responseEnd = inc.DispatchAt
	}
	inc.ResponseTime = span(&inc.ReceivedAt, responseEnd, maxDuration)
	inc.TransportTime = span(inc.TransportAt, inc.HospitalAt, maxDuration)
	inc.IntakeTime = span(&inc.ReceivedAt, inc.EntryAt, maxDuration)
	inc.QueueTime = span(inc.EntryAt, inc.DispatchAt, maxDuration)
	inc.TravelTime = span(inc.DispatchAt, inc.OnSceneAt, maxDuration)

	inc.Year = inc.ReceivedAt.Year()
	inc.Month = int(inc.ReceivedAt.Month())
	inc.Hour = inc.ReceivedAt.Hour()
	inc.Weekday = WeekdayLabel(inc.ReceivedAt.Weekday())
	inc.PeriodOfDay = PeriodOfDay(inc.Hour)
	return inc
}

// PeriodOfDay buckets an hour into the bins (-1,6], (6,12], (12,18], (18,24].
func PeriodOfDay(hour int) string {
	switch {
	case hour <= 6:
		return "Night"
	case hour <= 12:
		return "Morning"
	case hour <= 18:
		return "Afternoon"
	default:
		return "Evening"
	}
}

// PeriodsOfDay lists the period labels in chronological order.
func PeriodsOfDay() []string {
	return []string{"Night", "Morning", "Afternoon", "Evening"}
}

// Weekdays lists weekday labels starting on Monday.
func Weekdays() []string {
	return []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
}

// WeekdayLabel returns the three-letter label for a weekday.
func WeekdayLabel(d time.Weekday) string {
	return d.String()[:3]
}

func inYearWindow(t time.Time, minYear, maxYear int) bool {
	if minYear != 0 && t.Year() < minYear {
		return false
	}
	if maxYear != 0 && t.Year() >= maxYear {
		return false
	}
	return true
}

func minutesBetween(from, to time.Time) float64 {
	return to.Sub(from).Minutes()
}

func plausible(minutes, maxDuration float64) bool {
	if minutes < 0 {
		return false
	}
	return maxDuration <= 0 || minutes < maxDuration
}

// span returns the plausible minutes from start to end, or nil.
func span(start, end *time.Time, maxDuration float64) *float64 {
	if start == nil || end == nil {
		return nil
	}
	m := minutesBetween(*start, *end)
	if !plausible(m, maxDuration) {
		return nil
	}
	return &m
}

// generateID produces a deterministic ID from the row's identifying fields so
// reprocessing the same export yields the same keys.
func generateID(rowID, callNumber, unitID string) string {
	input := fmt.Sprintf("%s|%s|%s", rowID, callNumber, unitID)
	hash := sha256.Sum256([]byte(input))
	return "inc-" + hex.EncodeToString(hash[:8])
}
