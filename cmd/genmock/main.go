// Command genmock writes a deterministic synthetic raw SFFD calls-for-service
// export. A share of the rows is deliberately dirty (cancelled or duplicate
// dispositions, missing on-scene times, implausible durations, calls outside
// the analysis window) so the cleaning rules have something to drop. It runs
// the rows through the domain package and prints the expected cleaning outcome.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock/raw_calls.csv -rows 5000
//	go run ./cmd/genmock -out data/mock/raw_calls.csv -json-out data/mock/raw_calls.jsonl -seed 7
package main

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/couchcryptid/sffd-incident-etl/internal/domain"
)

const receivedLayout = "01/02/2006 03:04:05 PM"

type neighborhood struct {
	name      string
	battalion string
	station   string
	lat, lon  float64
}

var neighborhoods = []neighborhood{
	{"Mission", "B06", "07", 37.7599, -122.4148},
	{"Tenderloin", "B02", "03", 37.7847, -122.4141},
	{"South of Market", "B03", "01", 37.7785, -122.4056},
	{"Bayview Hunters Point", "B10", "09", 37.7298, -122.3851},
	{"Marina", "B04", "16", 37.8037, -122.4368},
	{"Sunset/Parkside", "B08", "22", 37.7471, -122.4930},
	{"Outer Richmond", "B07", "34", 37.7777, -122.4950},
	{"Chinatown", "B01", "02", 37.7941, -122.4078},
}

type callType struct {
	name  string
	group string
	// weight is the relative frequency.
	weight int
	// onScene is the typical minutes from receipt to arrival.
	onScene float64
}

var callTypes = []callType{
	{"Medical Incident", "Potentially Life-Threatening", 60, 9},
	{"Alarms", "Alarm", 12, 7},
	{"Structure Fire", "Alarm", 6, 6},
	{"Traffic Collision", "Potentially Life-Threatening", 8, 10},
	{"Outside Fire", "Fire", 4, 8},
	{"Citizen Assist / Service Call", "Non Life-threatening", 5, 14},
	{"Water Rescue", "Potentially Life-Threatening", 1, 12},
	{"Gas Leak (Natural and LP Gases)", "Non Life-threatening", 2, 11},
	{"Vehicle Fire", "Fire", 2, 8},
}

var unitTypes = []string{"MEDIC", "ENGINE", "TRUCK", "CHIEF", "PRIVATE"}

var dispositions = []string{"Code 2 Transport", "Fire", "Other", "No Merit", "Patient Declined Transport"}

type generator struct {
	rng       *rand.Rand
	startYear int
	years     int
	weightSum int
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the raw CSV")
	jsonOut := flag.String("json-out", "", "optional output path for the same rows as JSON lines")
	rows := flag.Int("rows", 2000, "rows to generate")
	seed := flag.Uint64("seed", 1, "random seed")
	startYear := flag.Int("start-year", 2016, "first year of generated calls")
	years := flag.Int("years", 8, "number of years covered")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *rows < 1 || *years < 1 {
		return fmt.Errorf("-rows and -years must be positive")
	}

	g := newGenerator(*seed, *startYear, *years)
	records := make([]domain.RawIncidentRecord, *rows)
	for i := range records {
		records[i] = g.record(i)
	}

	if err := writeCSV(*out, records); err != nil {
		return fmt.Errorf("writing CSV fixture: %w", err)
	}
	log.Printf("wrote raw CSV: %s (%d rows)", *out, len(records))

	if *jsonOut != "" {
		if err := writeJSONLines(*jsonOut, records); err != nil {
			return fmt.Errorf("writing JSON fixture: %w", err)
		}
		log.Printf("wrote JSON lines: %s", *jsonOut)
	}

	printStats(records, domain.DefaultRules())
	return nil
}

func newGenerator(seed uint64, startYear, years int) *generator {
	g := &generator{
		rng:       rand.New(rand.NewPCG(seed, seed^0x5ff0)),
		startYear: startYear,
		years:     years,
	}
	for _, ct := range callTypes {
		g.weightSum += ct.weight
	}
	return g
}

func (g *generator) callType() callType {
	n := g.rng.IntN(g.weightSum)
	for _, ct := range callTypes {
		if n < ct.weight {
			return ct
		}
		n -= ct.weight
	}
	return callTypes[0]
}

// record builds row i. Roughly one row in ten is dirty.
func (g *generator) record(i int) domain.RawIncidentRecord {
	ct := g.callType()
	hood := neighborhoods[g.rng.IntN(len(neighborhoods))]
	start := time.Date(g.startYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(g.years, 0, 0)
	received := start.Add(time.Duration(g.rng.Int64N(int64(end.Sub(start)/time.Second))) * time.Second)

	entry := received.Add(g.minutes(0.2, 1.5))
	dispatch := entry.Add(g.minutes(0.1, 2))
	response := dispatch.Add(g.minutes(0.2, 1))
	onScene := received.Add(g.minutes(ct.onScene*0.5, ct.onScene*1.5))
	available := onScene.Add(g.minutes(10, 60))

	callNumber := strconv.Itoa(160000000 + i/2)
	rec := domain.RawIncidentRecord{
		CallNumber:             callNumber,
		UnitID:                 fmt.Sprintf("%s%02d", unitTypes[i%len(unitTypes)][:1], 1+g.rng.IntN(60)),
		IncidentNumber:         strconv.Itoa(16000000 + i/2),
		CallType:               ct.name,
		CallDate:               received.Format("01/02/2006"),
		WatchDate:              received.Format("01/02/2006"),
		ReceivedDtTm:           received.Format(receivedLayout),
		EntryDtTm:              entry.Format(receivedLayout),
		DispatchDtTm:           dispatch.Format(receivedLayout),
		ResponseDtTm:           response.Format(receivedLayout),
		OnSceneDtTm:            onScene.Format(receivedLayout),
		CallFinalDisposition:   dispositions[g.rng.IntN(len(dispositions))],
		AvailableDtTm:          available.Format(receivedLayout),
		Address:                fmt.Sprintf("%d Block of Main St", 100*(1+g.rng.IntN(30))),
		City:                   "San Francisco",
		Zipcode:                strconv.Itoa(94102 + g.rng.IntN(30)),
		Battalion:              hood.battalion,
		StationArea:            hood.station,
		Box:                    strconv.Itoa(1000 + g.rng.IntN(9000)),
		OriginalPriority:       strconv.Itoa(2 + g.rng.IntN(2)),
		Priority:               strconv.Itoa(2 + g.rng.IntN(2)),
		FinalPriority:          strconv.Itoa(2 + g.rng.IntN(2)),
		ALSUnit:                strconv.FormatBool(g.rng.IntN(2) == 0),
		CallTypeGroup:          ct.group,
		NumberOfAlarms:         "1",
		UnitType:               unitTypes[i%len(unitTypes)],
		UnitSequence:           strconv.Itoa(1 + i%2),
		FirePreventionDistrict: strconv.Itoa(1 + g.rng.IntN(10)),
		SupervisorDistrict:     strconv.Itoa(1 + g.rng.IntN(11)),
		Neighborhood:           hood.name,
		RowID:                  fmt.Sprintf("%s-%d", callNumber, i),
		CaseLocation: fmt.Sprintf("POINT (%.6f %.6f)",
			hood.lon+g.rng.NormFloat64()*0.002, hood.lat+g.rng.NormFloat64()*0.002),
		AnalysisNeighborhoods: strconv.Itoa(1 + g.rng.IntN(41)),
	}
	if ct.name == "Medical Incident" && g.rng.IntN(2) == 0 {
		transport := available.Add(-g.minutes(5, 9))
		rec.TransportDtTm = transport.Format(receivedLayout)
		rec.HospitalDtTm = transport.Add(g.minutes(6, 20)).Format(receivedLayout)
	}

	switch g.rng.IntN(40) {
	case 0:
		rec.CallFinalDisposition = "Cancelled"
	case 1:
		rec.CallFinalDisposition = "Duplicate"
	case 2:
		rec.OnSceneDtTm = ""
	case 3:
		rec.OnSceneDtTm = received.Add(-g.minutes(1, 5)).Format(receivedLayout)
	case 4:
		rec.OnSceneDtTm = received.Add(26 * time.Hour).Format(receivedLayout)
	case 5:
		rec.Neighborhood = ""
	}
	return rec
}

// minutes draws a uniform duration in [lo, hi) minutes.
func (g *generator) minutes(lo, hi float64) time.Duration {
	m := lo + g.rng.Float64()*(hi-lo)
	return time.Duration(m * float64(time.Minute))
}

func writeCSV(path string, records []domain.RawIncidentRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(domain.RawColumns()); err != nil {
		return err
	}
	for _, rec := range records {
		if err := w.Write(rec.Row()); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func writeJSONLines(path string, records []domain.RawIncidentRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	enc := json.NewEncoder(bw)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return f.Close()
}

// outcome summarises what cleaning does to the generated rows.
type outcome struct {
	kept       int
	parseError int
	dropped    map[domain.DropReason]int
	byCallType map[string]int
}

func expectedOutcome(records []domain.RawIncidentRecord, rules domain.Rules) outcome {
	o := outcome{dropped: map[domain.DropReason]int{}, byCallType: map[string]int{}}
	for _, rec := range records {
		inc, err := domain.ParseIncident(rec)
		if err != nil {
			o.parseError++
			continue
		}
		inc, reason := domain.Clean(inc, rules)
		if reason != "" {
			o.dropped[reason]++
			continue
		}
		o.kept++
		o.byCallType[inc.CallType]++
	}
	return o
}

func printStats(records []domain.RawIncidentRecord, rules domain.Rules) {
	o := expectedOutcome(records, rules)

	fmt.Println("\n=== Expected cleaning outcome ===")
	fmt.Printf("Rows: %d\n", len(records))
	fmt.Printf("Kept: %d\n", o.kept)
	fmt.Printf("Parse errors: %d\n", o.parseError)
	for _, r := range domain.DropReasons() {
		fmt.Printf("Dropped (%s): %d\n", r, o.dropped[r])
	}

	types := make([]string, 0, len(o.byCallType))
	for t := range o.byCallType {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return o.byCallType[types[i]] > o.byCallType[types[j]] })
	fmt.Println("\nKept by call type:")
	for _, t := range types {
		fmt.Printf("  %s=%d\n", t, o.byCallType[t])
	}
}
