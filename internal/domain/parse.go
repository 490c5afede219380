package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrMissingColumn is returned when a raw header lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

const (
	dateLayout = "01/02/2006"
)

// dttmLayouts are tried in order for "... DtTm" columns.
var dttmLayouts = []string{
	"01/02/2006 03:04:05 PM",
	"01/02/2006 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	time.RFC3339,
}

// pointRe matches WKT points, e.g. "POINT (-122.4194 37.7749)".
var pointRe = regexp.MustCompile(`^\s*POINT\s*\(\s*(-?\d+(?:\.\d+)?)\s+(-?\d+(?:\.\d+)?)\s*\)\s*$`)

// requiredColumns must be present in every raw header.
var requiredColumns = []string{"Call Number", "Call Date", "Received DtTm"}

// rawColumns maps export headers to RawIncidentRecord fields.
var rawColumns = map[string]func(*RawIncidentRecord) *string{
	"Call Number":                          func(r *RawIncidentRecord) *string { return &r.CallNumber },
	"Unit ID":                              func(r *RawIncidentRecord) *string { return &r.UnitID },
	"Incident Number":                      func(r *RawIncidentRecord) *string { return &r.IncidentNumber },
	"Call Type":                            func(r *RawIncidentRecord) *string { return &r.CallType },
	"Call Date":                            func(r *RawIncidentRecord) *string { return &r.CallDate },
	"Watch Date":                           func(r *RawIncidentRecord) *string { return &r.WatchDate },
	"Received DtTm":                        func(r *RawIncidentRecord) *string { return &r.ReceivedDtTm },
	"Entry DtTm":                           func(r *RawIncidentRecord) *string { return &r.EntryDtTm },
	"Dispatch DtTm":                        func(r *RawIncidentRecord) *string { return &r.DispatchDtTm },
	"Response DtTm":                        func(r *RawIncidentRecord) *string { return &r.ResponseDtTm },
	"On Scene DtTm":                        func(r *RawIncidentRecord) *string { return &r.OnSceneDtTm },
	"Transport DtTm":                       func(r *RawIncidentRecord) *string { return &r.TransportDtTm },
	"Hospital DtTm":                        func(r *RawIncidentRecord) *string { return &r.HospitalDtTm },
	"Call Final Disposition":               func(r *RawIncidentRecord) *string { return &r.CallFinalDisposition },
	"Available DtTm":                       func(r *RawIncidentRecord) *string { return &r.AvailableDtTm },
	"Address":                              func(r *RawIncidentRecord) *string { return &r.Address },
	"City":                                 func(r *RawIncidentRecord) *string { return &r.City },
	"Zipcode of Incident":                  func(r *RawIncidentRecord) *string { return &r.Zipcode },
	"Battalion":                            func(r *RawIncidentRecord) *string { return &r.Battalion },
	"Station Area":                         func(r *RawIncidentRecord) *string { return &r.StationArea },
	"Box":                                  func(r *RawIncidentRecord) *string { return &r.Box },
	"Original Priority":                    func(r *RawIncidentRecord) *string { return &r.OriginalPriority },
	"Priority":                             func(r *RawIncidentRecord) *string { return &r.Priority },
	"Final Priority":                       func(r *RawIncidentRecord) *string { return &r.FinalPriority },
	"ALS Unit":                             func(r *RawIncidentRecord) *string { return &r.ALSUnit },
	"Call Type Group":                      func(r *RawIncidentRecord) *string { return &r.CallTypeGroup },
	"Number of Alarms":                     func(r *RawIncidentRecord) *string { return &r.NumberOfAlarms },
	"Unit Type":                            func(r *RawIncidentRecord) *string { return &r.UnitType },
	"Unit sequence in call dispatch":       func(r *RawIncidentRecord) *string { return &r.UnitSequence },
	"Fire Prevention District":             func(r *RawIncidentRecord) *string { return &r.FirePreventionDistrict },
	"Supervisor District":                  func(r *RawIncidentRecord) *string { return &r.SupervisorDistrict },
	"Neighborhooods - Analysis Boundaries": func(r *RawIncidentRecord) *string { return &r.Neighborhood },
	"RowID":                                func(r *RawIncidentRecord) *string { return &r.RowID },
	"case_location":                        func(r *RawIncidentRecord) *string { return &r.CaseLocation },
	"Analysis Neighborhoods":               func(r *RawIncidentRecord) *string { return &r.AnalysisNeighborhoods },
}

// RawColumns returns the export headers in their canonical order.
func RawColumns() []string {
	return []string{
		"Call Number", "Unit ID", "Incident Number", "Call Type", "Call Date", "Watch Date",
		"Received DtTm", "Entry DtTm", "Dispatch DtTm", "Response DtTm", "On Scene DtTm",
		"Transport DtTm", "Hospital DtTm", "Call Final Disposition", "Available DtTm",
		"Address", "City", "Zipcode of Incident", "Battalion", "Station Area", "Box",
		"Original Priority", "Priority", "Final Priority", "ALS Unit", "Call Type Group",
		"Number of Alarms", "Unit Type", "Unit sequence in call dispatch",
		"Fire Prevention District", "Supervisor District",
		"Neighborhooods - Analysis Boundaries", "RowID", "case_location", "Analysis Neighborhoods",
	}
}

// ColumnIndex maps a raw CSV header to column positions. Unknown columns are
// ignored; missing required columns are all named in one ErrMissingColumn error.
func ColumnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, known := rawColumns[h]; known {
			idx[h] = i
		}
	}
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, strconv.Quote(col))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return idx, nil
}

// RecordFromRow builds a RawIncidentRecord from one CSV row using an index
// produced by ColumnIndex. Short rows leave trailing fields empty.
func RecordFromRow(idx map[string]int, row []string) RawIncidentRecord {
	var rec RawIncidentRecord
	for col, i := range idx {
		if i >= len(row) {
			continue
		}
		*rawColumns[col](&rec) = strings.TrimSpace(row[i])
	}
	return rec
}

// Row renders a record back into a CSV row in RawColumns order.
func (r RawIncidentRecord) Row() []string {
	cols := RawColumns()
	row := make([]string, len(cols))
	for i, col := range cols {
		row[i] = *rawColumns[col](&r)
	}
	return row
}

// ParseRawEvent returns the raw record carried by an event, decoding the JSON
// payload when the source did not parse it already.
func ParseRawEvent(raw RawEvent) (RawIncidentRecord, error) {
	if raw.Record != nil {
		return *raw.Record, nil
	}
	var rec RawIncidentRecord
	if err := json.Unmarshal(raw.Value, &rec); err != nil {
		return RawIncidentRecord{}, fmt.Errorf("parse raw event: %w", err)
	}
	return rec, nil
}

// ParseIncident converts a raw record into an Incident with renamed fields,
// typed timestamps and coordinates. Derived fields are filled by [Derive].
func ParseIncident(rec RawIncidentRecord) (Incident, error) {
	if strings.TrimSpace(rec.CallNumber) == "" {
		return Incident{}, errors.New("parse incident: empty Call Number")
	}

	callDate, err := parseDate(rec.CallDate)
	if err != nil {
		return Incident{}, fmt.Errorf("parse incident: Call Date: %w", err)
	}
	if callDate == nil {
		return Incident{}, errors.New("parse incident: empty Call Date")
	}
	received, err := parseDtTm(rec.ReceivedDtTm)
	if err != nil {
		return Incident{}, fmt.Errorf("parse incident: Received DtTm: %w", err)
	}
	if received == nil {
		return Incident{}, errors.New("parse incident: empty Received DtTm")
	}

	inc := Incident{
		CallNumber:     rec.CallNumber,
		UnitID:         rec.UnitID,
		IncidentNumber: rec.IncidentNumber,
		CallType:       rec.CallType,
		CallTypeGroup:  rec.CallTypeGroup,
		CallDate:       *callDate,
		ReceivedAt:     *received,
		Disposition:    rec.CallFinalDisposition,
		Address:        rec.Address,
		Battalion:      rec.Battalion,
		StationArea:    rec.StationArea,
		ALSUnit:        parseBool(rec.ALSUnit),
		Alarms:         parseIntOrZero(rec.NumberOfAlarms),
		UnitType:       rec.UnitType,
		UnitSequence:   parseIntOrZero(rec.UnitSequence),
		Neighborhood:   rec.Neighborhood,
		RowID:          rec.RowID,
	}

	if inc.WatchDate, err = parseDate(rec.WatchDate); err != nil {
		return Incident{}, fmt.Errorf("parse incident: Watch Date: %w", err)
	}

	stamps := []struct {
		col string
		val string
		dst **time.Time
	}{
		{"Entry DtTm", rec.EntryDtTm, &inc.EntryAt},
		{"Dispatch DtTm", rec.DispatchDtTm, &inc.DispatchAt},
		{"Response DtTm", rec.ResponseDtTm, &inc.ResponseAt},
		{"On Scene DtTm", rec.OnSceneDtTm, &inc.OnSceneAt},
		{"Transport DtTm", rec.TransportDtTm, &inc.TransportAt},
		{"Hospital DtTm", rec.HospitalDtTm, &inc.HospitalAt},
		{"Available DtTm", rec.AvailableDtTm, &inc.AvailableAt},
	}
	for _, s := range stamps {
		t, err := parseDtTm(s.val)
		if err != nil {
			return Incident{}, fmt.Errorf("parse incident: %s: %w", s.col, err)
		}
		*s.dst = t
	}

	inc.Latitude, inc.Longitude = parsePoint(rec.CaseLocation)
	if inc.HasCoords() {
		inc.GeoSource = "original"
	}

	return inc, nil
}

// parseDate parses an MM/DD/YYYY date. Empty input yields nil. Exports that
// carry a time suffix on date columns are accepted too.
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return &t, nil
	}
	t, err := parseDtTm(s)
	if err != nil {
		return nil, err
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d, nil
}

// parseDtTm parses a DtTm column in any of dttmLayouts. Empty input yields nil.
func parseDtTm(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range dttmLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized timestamp %q", s)
}

// parsePoint extracts (lat, lon) from a WKT point. Returns zeros on failure.
func parsePoint(s string) (float64, float64) {
	m := pointRe.FindStringSubmatch(s)
	if len(m) != 3 {
		return 0, 0
	}
	lon, errLon := strconv.ParseFloat(m[1], 64)
	lat, errLat := strconv.ParseFloat(m[2], 64)
	if errLon != nil || errLat != nil {
		return 0, 0
	}
	return lat, lon
}

func parseIntOrZero(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return v
}

// parseBool accepts the export's "true"/"false" as well as "Y"/"N" and "1"/"0".
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "y", "yes", "1":
		return true
	default:
		return false
	}
}
