package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock is a package-level time source so tests can freeze time via SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source for processing stamps. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Stamp records the processing time on an incident.
func Stamp(inc Incident) Incident {
	inc.ProcessedAt = clock.Now().UTC().Truncate(time.Second)
	return inc
}
