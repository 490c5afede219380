package csvfile

import (
	"fmt"
	"strconv"
	"time"

	"github.com/couchcryptid/sffd-incident-etl/internal/domain"
)

// column describes one field of the cleaned CSV.
type column struct {
	name   string
	encode func(inc *domain.Incident) string
	decode func(inc *domain.Incident, v string) error
}

var cleanColumns = []column{
	strCol("id", func(i *domain.Incident) *string { return &i.ID }),
	strCol("call_number", func(i *domain.Incident) *string { return &i.CallNumber }),
	strCol("unit_id", func(i *domain.Incident) *string { return &i.UnitID }),
	strCol("incident_number", func(i *domain.Incident) *string { return &i.IncidentNumber }),
	strCol("call_type", func(i *domain.Incident) *string { return &i.CallType }),
	strCol("call_type_group", func(i *domain.Incident) *string { return &i.CallTypeGroup }),
	timeCol("call_date", func(i *domain.Incident) *time.Time { return &i.CallDate }),
	optTimeCol("watch_date", func(i *domain.Incident) **time.Time { return &i.WatchDate }),
	timeCol("received_dttm", func(i *domain.Incident) *time.Time { return &i.ReceivedAt }),
	optTimeCol("entry_dttm", func(i *domain.Incident) **time.Time { return &i.EntryAt }),
	optTimeCol("dispatch_dttm", func(i *domain.Incident) **time.Time { return &i.DispatchAt }),
	optTimeCol("response_dttm", func(i *domain.Incident) **time.Time { return &i.ResponseAt }),
	optTimeCol("on_scene_dttm", func(i *domain.Incident) **time.Time { return &i.OnSceneAt }),
	optTimeCol("transport_dttm", func(i *domain.Incident) **time.Time { return &i.TransportAt }),
	optTimeCol("hospital_dttm", func(i *domain.Incident) **time.Time { return &i.HospitalAt }),
	optTimeCol("available_dttm", func(i *domain.Incident) **time.Time { return &i.AvailableAt }),
	strCol("call_final_disposition", func(i *domain.Incident) *string { return &i.Disposition }),
	strCol("address", func(i *domain.Incident) *string { return &i.Address }),
	strCol("battalion", func(i *domain.Incident) *string { return &i.Battalion }),
	strCol("station_area", func(i *domain.Incident) *string { return &i.StationArea }),
	{
		name:   "als_unit",
		encode: func(i *domain.Incident) string { return strconv.FormatBool(i.ALSUnit) },
		decode: func(i *domain.Incident, v string) error {
			if v == "" {
				return nil
			}
			b, err := strconv.ParseBool(v)
			i.ALSUnit = b
			return err
		},
	},
	intCol("number_of_alarms", func(i *domain.Incident) *int { return &i.Alarms }),
	strCol("unit_type", func(i *domain.Incident) *string { return &i.UnitType }),
	intCol("unit_sequence", func(i *domain.Incident) *int { return &i.UnitSequence }),
	strCol("neighborhood", func(i *domain.Incident) *string { return &i.Neighborhood }),
	strCol("row_id", func(i *domain.Incident) *string { return &i.RowID }),
	floatCol("latitude", func(i *domain.Incident) *float64 { return &i.Latitude }),
	floatCol("longitude", func(i *domain.Incident) *float64 { return &i.Longitude }),
	floatCol("on_scene_time", func(i *domain.Incident) *float64 { return &i.OnSceneTime }),
	optFloatCol("response_time", func(i *domain.Incident) **float64 { return &i.ResponseTime }),
	optFloatCol("transport_time", func(i *domain.Incident) **float64 { return &i.TransportTime }),
	optFloatCol("intake_time", func(i *domain.Incident) **float64 { return &i.IntakeTime }),
	optFloatCol("queue_time", func(i *domain.Incident) **float64 { return &i.QueueTime }),
	optFloatCol("travel_time", func(i *domain.Incident) **float64 { return &i.TravelTime }),
	intCol("year", func(i *domain.Incident) *int { return &i.Year }),
	intCol("month", func(i *domain.Incident) *int { return &i.Month }),
	intCol("hour", func(i *domain.Incident) *int { return &i.Hour }),
	strCol("weekday", func(i *domain.Incident) *string { return &i.Weekday }),
	strCol("period_of_day", func(i *domain.Incident) *string { return &i.PeriodOfDay }),
	strCol("geo_source", func(i *domain.Incident) *string { return &i.GeoSource }),
	timeCol("processed_at", func(i *domain.Incident) *time.Time { return &i.ProcessedAt }),
}

// CleanColumns returns the header of the cleaned CSV in write order.
func CleanColumns() []string {
	names := make([]string, len(cleanColumns))
	for i, c := range cleanColumns {
		names[i] = c.name
	}
	return names
}

// EncodeIncident renders an incident as a cleaned CSV row.
func EncodeIncident(inc domain.Incident) []string {
	row := make([]string, len(cleanColumns))
	for i, c := range cleanColumns {
		row[i] = c.encode(&inc)
	}
	return row
}

// DecodeIncident parses a cleaned CSV row. Columns absent from idx keep their
// zero value.
func DecodeIncident(idx map[string]int, row []string) (domain.Incident, error) {
	var inc domain.Incident
	for _, c := range cleanColumns {
		j, ok := idx[c.name]
		if !ok || j >= len(row) {
			continue
		}
		if err := c.decode(&inc, row[j]); err != nil {
			return domain.Incident{}, fmt.Errorf("decode incident: %s: %w", c.name, err)
		}
	}
	return inc, nil
}

func strCol(name string, field func(*domain.Incident) *string) column {
	return column{
		name:   name,
		encode: func(i *domain.Incident) string { return *field(i) },
		decode: func(i *domain.Incident, v string) error {
			*field(i) = v
			return nil
		},
	}
}

func intCol(name string, field func(*domain.Incident) *int) column {
	return column{
		name:   name,
		encode: func(i *domain.Incident) string { return strconv.Itoa(*field(i)) },
		decode: func(i *domain.Incident, v string) error {
			if v == "" {
				return nil
			}
			n, err := strconv.Atoi(v)
			*field(i) = n
			return err
		},
	}
}

func floatCol(name string, field func(*domain.Incident) *float64) column {
	return column{
		name:   name,
		encode: func(i *domain.Incident) string { return formatFloat(*field(i)) },
		decode: func(i *domain.Incident, v string) error {
			if v == "" {
				return nil
			}
			f, err := strconv.ParseFloat(v, 64)
			*field(i) = f
			return err
		},
	}
}

func optFloatCol(name string, field func(*domain.Incident) **float64) column {
	return column{
		name: name,
		encode: func(i *domain.Incident) string {
			if p := *field(i); p != nil {
				return formatFloat(*p)
			}
			return ""
		},
		decode: func(i *domain.Incident, v string) error {
			if v == "" {
				return nil
			}
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return err
			}
			*field(i) = &f
			return nil
		},
	}
}

func timeCol(name string, field func(*domain.Incident) *time.Time) column {
	return column{
		name: name,
		encode: func(i *domain.Incident) string {
			if t := *field(i); !t.IsZero() {
				return t.Format(time.RFC3339)
			}
			return ""
		},
		decode: func(i *domain.Incident, v string) error {
			if v == "" {
				return nil
			}
			t, err := time.Parse(time.RFC3339, v)
			*field(i) = t.UTC()
			return err
		},
	}
}

func optTimeCol(name string, field func(*domain.Incident) **time.Time) column {
	return column{
		name: name,
		encode: func(i *domain.Incident) string {
			if p := *field(i); p != nil {
				return p.Format(time.RFC3339)
			}
			return ""
		},
		decode: func(i *domain.Incident, v string) error {
			if v == "" {
				return nil
			}
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return err
			}
			t = t.UTC()
			*field(i) = &t
			return nil
		},
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
