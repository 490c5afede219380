// Command validate checks a cleaned incident CSV against the raw export it was
// produced from. It replays parsing and cleaning on the raw rows, then verifies
// row accounting, the cleaning guarantees and the derived fields.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -raw data/mock/raw_calls.csv \
//	  -clean data/clean/raw_calls_clean.csv
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/couchcryptid/sffd-incident-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/sffd-incident-etl/internal/config"
	"github.com/couchcryptid/sffd-incident-etl/internal/domain"
)

const tolerance = 1e-6

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// replay is the outcome of re-running the cleaning rules on the raw rows.
type replay struct {
	rows        int
	parseErrors int
	dropped     map[domain.DropReason]int
	kept        map[string]domain.Incident
	duplicates  int
}

func main() {
	rawPath := flag.String("raw", "", "raw export CSV")
	cleanPath := flag.String("clean", "", "cleaned incident CSV produced from -raw")
	flag.Parse()

	if *rawPath == "" || *cleanPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		os.Exit(1)
	}

	if code := run(*rawPath, *cleanPath, cfg.Rules()); code != 0 {
		os.Exit(code)
	}
}

func run(rawPath, cleanPath string, rules domain.Rules) int {
	fmt.Println("=== SFFD Incident Cleaning Validation ===")
	fmt.Println()

	raw, err := replayRaw(rawPath, rules)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load raw CSV: %v\n", err)
		return 1
	}
	cleaned, err := csvfile.LoadIncidents(cleanPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load cleaned CSV: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateAccounting(raw, cleaned),
		validateCleaningRules(cleaned, rules),
		validateDerivedFields(raw, cleaned),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d raw, %d parse errors, %d cleaned\n", raw.rows, raw.parseErrors, len(cleaned))
	for _, r := range domain.DropReasons() {
		fmt.Printf("  dropped %-16s %d\n", r, raw.dropped[r])
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Replay ──

func replayRaw(path string, rules domain.Rules) (replay, error) {
	r, err := csvfile.Open(path)
	if err != nil {
		return replay{}, err
	}
	defer r.Close()

	out := replay{dropped: map[domain.DropReason]int{}, kept: map[string]domain.Incident{}}
	ctx := context.Background()
	for {
		batch, err := r.ExtractBatch(ctx, 1000)
		for _, ev := range batch {
			out.rows++
			if ev.Record == nil {
				out.parseErrors++
				continue
			}
			inc, perr := domain.ParseIncident(*ev.Record)
			if perr != nil {
				out.parseErrors++
				continue
			}
			inc, reason := domain.Clean(inc, rules)
			if reason != "" {
				out.dropped[reason]++
				continue
			}
			if _, dup := out.kept[inc.ID]; dup {
				out.duplicates++
			}
			out.kept[inc.ID] = inc
		}
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
	}
}

// ── Phase 1: row accounting ──

func validateAccounting(raw replay, cleaned []domain.Incident) *phase {
	p := &phase{name: "Phase 1: Row accounting"}

	dropped := 0
	for _, n := range raw.dropped {
		dropped += n
	}
	if want := raw.rows - raw.parseErrors - dropped; len(cleaned) != want {
		p.errorf("cleaned rows = %d, want %d (raw %d - parse errors %d - dropped %d)",
			len(cleaned), want, raw.rows, raw.parseErrors, dropped)
	}
	if raw.duplicates > 0 {
		p.errorf("raw export yields %d duplicate incident ids", raw.duplicates)
	}

	seen := make(map[string]bool, len(cleaned))
	for i, inc := range cleaned {
		if seen[inc.ID] {
			p.errorf("row %d: duplicate id %s", i+1, inc.ID)
		}
		seen[inc.ID] = true
		if _, ok := raw.kept[inc.ID]; !ok {
			p.errorf("row %d: id %s (call %s) not produced by replaying the raw export", i+1, inc.ID, inc.CallNumber)
		}
	}
	for id, inc := range raw.kept {
		if !seen[id] {
			p.errorf("id %s (call %s) kept by the rules but missing from the cleaned CSV", id, inc.CallNumber)
		}
	}
	return p
}

// ── Phase 2: cleaning guarantees ──

func validateCleaningRules(cleaned []domain.Incident, rules domain.Rules) *phase {
	p := &phase{name: "Phase 2: Cleaning guarantees"}

	for i, inc := range cleaned {
		for _, d := range rules.DropDispositions {
			if strings.EqualFold(strings.TrimSpace(inc.Disposition), d) {
				p.errorf("row %d: disposition %q should have been dropped", i+1, inc.Disposition)
			}
		}
		if inc.OnSceneAt == nil {
			p.errorf("row %d: missing on-scene timestamp", i+1)
		}
		if !inRange(inc.OnSceneTime, rules.MaxDuration) {
			p.errorf("row %d: on_scene_time %.3f outside [0, %.0f)", i+1, inc.OnSceneTime, rules.MaxDuration)
		}
		for name, v := range map[string]*float64{
			"response_time":  inc.ResponseTime,
			"transport_time": inc.TransportTime,
			"intake_time":    inc.IntakeTime,
			"queue_time":     inc.QueueTime,
			"travel_time":    inc.TravelTime,
		} {
			if v != nil && !inRange(*v, rules.MaxDuration) {
				p.errorf("row %d: %s %.3f outside [0, %.0f)", i+1, name, *v, rules.MaxDuration)
			}
		}
		if y := inc.CallDate.Year(); (rules.MinYear > 0 && y < rules.MinYear) || (rules.MaxYear > 0 && y >= rules.MaxYear) {
			p.errorf("row %d: call year %d outside [%d, %d)", i+1, y, rules.MinYear, rules.MaxYear)
		}
	}
	return p
}

func inRange(v, maxDuration float64) bool {
	return v >= 0 && (maxDuration <= 0 || v < maxDuration)
}

// ── Phase 3: derived fields ──

func validateDerivedFields(raw replay, cleaned []domain.Incident) *phase {
	p := &phase{name: "Phase 3: Derived fields"}

	for i, got := range cleaned {
		want, ok := raw.kept[got.ID]
		if !ok {
			continue
		}
		if math.Abs(got.OnSceneTime-want.OnSceneTime) > tolerance {
			p.errorf("row %d: on_scene_time = %.6f, want %.6f", i+1, got.OnSceneTime, want.OnSceneTime)
		}
		checkOptional(p, i+1, "response_time", got.ResponseTime, want.ResponseTime)
		checkOptional(p, i+1, "transport_time", got.TransportTime, want.TransportTime)
		checkOptional(p, i+1, "intake_time", got.IntakeTime, want.IntakeTime)
		checkOptional(p, i+1, "queue_time", got.QueueTime, want.QueueTime)
		checkOptional(p, i+1, "travel_time", got.TravelTime, want.TravelTime)

		if got.Year != want.Year || got.Month != want.Month || got.Hour != want.Hour {
			p.errorf("row %d: year/month/hour = %d/%d/%d, want %d/%d/%d",
				i+1, got.Year, got.Month, got.Hour, want.Year, want.Month, want.Hour)
		}
		if got.Weekday != want.Weekday {
			p.errorf("row %d: weekday = %q, want %q", i+1, got.Weekday, want.Weekday)
		}
		if got.PeriodOfDay != want.PeriodOfDay {
			p.errorf("row %d: period_of_day = %q, want %q", i+1, got.PeriodOfDay, want.PeriodOfDay)
		}
		if got.ProcessedAt.IsZero() {
			p.errorf("row %d: processed_at not set", i+1)
		}
	}
	return p
}

func checkOptional(p *phase, row int, name string, got, want *float64) {
	switch {
	case got == nil && want == nil:
	case got == nil || want == nil:
		p.errorf("row %d: %s presence mismatch (got %v, want %v)", row, name, got != nil, want != nil)
	case math.Abs(*got-*want) > tolerance:
		p.errorf("row %d: %s = %.6f, want %.6f", row, name, *got, *want)
	}
}
