package domain

import (
	"context"
	"time"
)

// RawIncidentRecord is one row of the raw export, keyed by the export's
// column headers. Kafka producers publish the same shape as flat JSON.
type RawIncidentRecord struct {
	CallNumber             string `json:"Call Number"`
	UnitID                 string `json:"Unit ID"`
	IncidentNumber         string `json:"Incident Number"`
	CallType               string `json:"Call Type"`
	CallDate               string `json:"Call Date"`
	WatchDate              string `json:"Watch Date"`
	ReceivedDtTm           string `json:"Received DtTm"`
	EntryDtTm              string `json:"Entry DtTm"`
	DispatchDtTm           string `json:"Dispatch DtTm"`
	ResponseDtTm           string `json:"Response DtTm"`
	OnSceneDtTm            string `json:"On Scene DtTm"`
	TransportDtTm          string `json:"Transport DtTm"`
	HospitalDtTm           string `json:"Hospital DtTm"`
	CallFinalDisposition   string `json:"Call Final Disposition"`
	AvailableDtTm          string `json:"Available DtTm"`
	Address                string `json:"Address"`
	City                   string `json:"City"`
	Zipcode                string `json:"Zipcode of Incident"`
	Battalion              string `json:"Battalion"`
	StationArea            string `json:"Station Area"`
	Box                    string `json:"Box"`
	OriginalPriority       string `json:"Original Priority"`
	Priority               string `json:"Priority"`
	FinalPriority          string `json:"Final Priority"`
	ALSUnit                string `json:"ALS Unit"`
	CallTypeGroup          string `json:"Call Type Group"`
	NumberOfAlarms         string `json:"Number of Alarms"`
	UnitType               string `json:"Unit Type"`
	UnitSequence           string `json:"Unit sequence in call dispatch"`
	FirePreventionDistrict string `json:"Fire Prevention District"`
	SupervisorDistrict     string `json:"Supervisor District"`
	Neighborhood           string `json:"Neighborhooods - Analysis Boundaries"`
	RowID                  string `json:"RowID"`
	CaseLocation           string `json:"case_location"`
	AnalysisNeighborhoods  string `json:"Analysis Neighborhoods"`
}

// RawEvent is an unprocessed record from a source. Record is set by sources
// that parse rows themselves (CSV); Value carries the JSON payload otherwise.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Record    *RawIncidentRecord
	Headers   map[string]string
	Source    string // topic name or file path
	Partition int
	Offset    int64 // Kafka offset or 1-based CSV data line
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// Incident is the cleaned, renamed and enriched form of a raw record.
// Optional timestamps and durations are nil when absent or implausible.
type Incident struct {
	ID             string `json:"id"`
	CallNumber     string `json:"call_number"`
	UnitID         string `json:"unit_id"`
	IncidentNumber string `json:"incident_number"`
	CallType       string `json:"call_type"`
	CallTypeGroup  string `json:"call_type_group,omitempty"`

	CallDate     time.Time  `json:"call_date"`
	WatchDate    *time.Time `json:"watch_date,omitempty"`
	ReceivedAt   time.Time  `json:"received_dttm"`
	EntryAt      *time.Time `json:"entry_dttm,omitempty"`
	DispatchAt   *time.Time `json:"dispatch_dttm,omitempty"`
	ResponseAt   *time.Time `json:"response_dttm,omitempty"`
	OnSceneAt    *time.Time `json:"on_scene_dttm,omitempty"`
	TransportAt  *time.Time `json:"transport_dttm,omitempty"`
	HospitalAt   *time.Time `json:"hospital_dttm,omitempty"`
	AvailableAt  *time.Time `json:"available_dttm,omitempty"`
	Disposition  string     `json:"call_final_disposition"`
	Address      string     `json:"address,omitempty"`
	Battalion    string     `json:"battalion,omitempty"`
	StationArea  string     `json:"station_area,omitempty"`
	ALSUnit      bool       `json:"als_unit"`
	Alarms       int        `json:"number_of_alarms"`
	UnitType     string     `json:"unit_type,omitempty"`
	UnitSequence int        `json:"unit_sequence"`
	Neighborhood string     `json:"neighborhood,omitempty"`
	RowID        string     `json:"row_id,omitempty"`
	Latitude     float64    `json:"latitude,omitempty"`
	Longitude    float64    `json:"longitude,omitempty"`

	// Derived durations in minutes.
	OnSceneTime   float64  `json:"on_scene_time"`
	ResponseTime  *float64 `json:"response_time,omitempty"`
	TransportTime *float64 `json:"transport_time,omitempty"`
	IntakeTime    *float64 `json:"intake_time,omitempty"`
	QueueTime     *float64 `json:"queue_time,omitempty"`
	TravelTime    *float64 `json:"travel_time,omitempty"`

	// Calendar features of the received timestamp.
	Year        int    `json:"year"`
	Month       int    `json:"month"`
	Hour        int    `json:"hour"`
	Weekday     string `json:"weekday"`
	PeriodOfDay string `json:"period_of_day"`

	GeoSource   string    `json:"geo_source,omitempty"` // "original", "forward", "polygon", "failed"
	ProcessedAt time.Time `json:"processed_at"`
}

// HasCoords reports whether the incident carries a coordinate pair.
func (i Incident) HasCoords() bool {
	return i.Latitude != 0 || i.Longitude != 0
}

// OutputEvent is the serialized form destined for a sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}
