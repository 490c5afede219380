package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testReceived = "04/01/2022 10:15:00 AM"
	testLocation = "POINT (-122.41942 37.77493)"
)

func testRecord() RawIncidentRecord {
	return RawIncidentRecord{
		CallNumber:           "220910123",
		UnitID:               "M55",
		IncidentNumber:       "22045678",
		CallType:             "Medical Incident",
		CallDate:             "04/01/2022",
		WatchDate:            "04/01/2022",
		ReceivedDtTm:         testReceived,
		EntryDtTm:            "04/01/2022 10:16:30 AM",
		DispatchDtTm:         "04/01/2022 10:17:00 AM",
		ResponseDtTm:         "04/01/2022 10:18:00 AM",
		OnSceneDtTm:          "04/01/2022 10:25:00 AM",
		TransportDtTm:        "04/01/2022 10:40:00 AM",
		HospitalDtTm:         "04/01/2022 10:52:00 AM",
		CallFinalDisposition: "Code 2 Transport",
		AvailableDtTm:        "04/01/2022 11:30:00 AM",
		Address:              "100 Block of MARKET ST",
		Battalion:            "B03",
		StationArea:          "13",
		ALSUnit:              "true",
		CallTypeGroup:        "Potentially Life-Threatening",
		NumberOfAlarms:       "1",
		UnitType:             "MEDIC",
		UnitSequence:         "1",
		Neighborhood:         "Financial District/South Beach",
		RowID:                "220910123-M55",
		CaseLocation:         testLocation,
	}
}

func TestColumnIndex(t *testing.T) {
	t.Run("known and unknown columns", func(t *testing.T) {
		idx, err := ColumnIndex([]string{"\ufeffCall Number", "Foo", "Call Date", "Received DtTm", "Unit ID"})
		require.NoError(t, err)
		assert.Equal(t, 0, idx["Call Number"])
		assert.Equal(t, 4, idx["Unit ID"])
		assert.NotContains(t, idx, "Foo")
	})

	t.Run("missing required column", func(t *testing.T) {
		_, err := ColumnIndex([]string{"Call Number", "Call Date"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMissingColumn))
		assert.Contains(t, err.Error(), "Received DtTm")
	})

	t.Run("every missing required column is named", func(t *testing.T) {
		_, err := ColumnIndex([]string{"Call Number", "Unit ID"})
		require.ErrorIs(t, err, ErrMissingColumn)
		assert.Equal(t, `missing required column: "Call Date", "Received DtTm"`, err.Error())
	})
}

func TestRecordFromRow(t *testing.T) {
	rec := testRecord()
	idx, err := ColumnIndex(RawColumns())
	require.NoError(t, err)

	got := RecordFromRow(idx, rec.Row())
	assert.Equal(t, rec, got)

	short := RecordFromRow(idx, []string{"1", "E01"})
	assert.Equal(t, "1", short.CallNumber)
	assert.Equal(t, "E01", short.UnitID)
	assert.Empty(t, short.CaseLocation)
}

func TestParseRawEvent(t *testing.T) {
	t.Run("pre-parsed record", func(t *testing.T) {
		rec := testRecord()
		got, err := ParseRawEvent(RawEvent{Record: &rec, Value: []byte("ignored")})
		require.NoError(t, err)
		assert.Equal(t, rec, got)
	})

	t.Run("json payload", func(t *testing.T) {
		data := []byte(`{"Call Number":"1","Call Date":"01/02/2020","Received DtTm":"01/02/2020 01:00:00 PM","Unit ID":"E01"}`)
		got, err := ParseRawEvent(RawEvent{Value: data})
		require.NoError(t, err)
		assert.Equal(t, "1", got.CallNumber)
		assert.Equal(t, "E01", got.UnitID)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		_, err := ParseRawEvent(RawEvent{Value: []byte("{invalid json")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse raw event")
	})
}

func TestParseIncident(t *testing.T) {
	t.Run("full record", func(t *testing.T) {
		inc, err := ParseIncident(testRecord())
		require.NoError(t, err)

		assert.Equal(t, "220910123", inc.CallNumber)
		assert.Equal(t, "M55", inc.UnitID)
		assert.Equal(t, "Medical Incident", inc.CallType)
		assert.Equal(t, time.Date(2022, 4, 1, 0, 0, 0, 0, time.UTC), inc.CallDate)
		assert.Equal(t, time.Date(2022, 4, 1, 10, 15, 0, 0, time.UTC), inc.ReceivedAt)
		require.NotNil(t, inc.OnSceneAt)
		assert.Equal(t, time.Date(2022, 4, 1, 10, 25, 0, 0, time.UTC), *inc.OnSceneAt)
		require.NotNil(t, inc.WatchDate)
		assert.True(t, inc.ALSUnit)
		assert.Equal(t, 1, inc.Alarms)
		assert.Equal(t, 1, inc.UnitSequence)
		assert.Equal(t, "B03", inc.Battalion)
		assert.Equal(t, "Financial District/South Beach", inc.Neighborhood)
		assert.InDelta(t, 37.77493, inc.Latitude, 1e-9)
		assert.InDelta(t, -122.41942, inc.Longitude, 1e-9)
		assert.Equal(t, "original", inc.GeoSource)
	})

	t.Run("PM timestamps", func(t *testing.T) {
		rec := testRecord()
		rec.ReceivedDtTm = "04/01/2022 11:55:00 PM"
		inc, err := ParseIncident(rec)
		require.NoError(t, err)
		assert.Equal(t, 23, inc.ReceivedAt.Hour())
	})

	t.Run("24-hour and ISO timestamps", func(t *testing.T) {
		rec := testRecord()
		rec.ReceivedDtTm = "04/01/2022 22:05:00"
		rec.OnSceneDtTm = "2022-04-01T22:11:30"
		inc, err := ParseIncident(rec)
		require.NoError(t, err)
		assert.Equal(t, 22, inc.ReceivedAt.Hour())
		require.NotNil(t, inc.OnSceneAt)
		assert.Equal(t, 30, inc.OnSceneAt.Second())
	})

	t.Run("missing optional timestamps", func(t *testing.T) {
		rec := testRecord()
		rec.TransportDtTm = ""
		rec.HospitalDtTm = ""
		rec.OnSceneDtTm = ""
		inc, err := ParseIncident(rec)
		require.NoError(t, err)
		assert.Nil(t, inc.TransportAt)
		assert.Nil(t, inc.HospitalAt)
		assert.Nil(t, inc.OnSceneAt)
	})

	t.Run("no location", func(t *testing.T) {
		rec := testRecord()
		rec.CaseLocation = ""
		inc, err := ParseIncident(rec)
		require.NoError(t, err)
		assert.False(t, inc.HasCoords())
		assert.Empty(t, inc.GeoSource)
	})

	errCases := []struct {
		name   string
		mutate func(*RawIncidentRecord)
		want   string
	}{
		{"empty call number", func(r *RawIncidentRecord) { r.CallNumber = "" }, "Call Number"},
		{"empty call date", func(r *RawIncidentRecord) { r.CallDate = "" }, "Call Date"},
		{"bad call date", func(r *RawIncidentRecord) { r.CallDate = "2022/13/45" }, "Call Date"},
		{"empty received", func(r *RawIncidentRecord) { r.ReceivedDtTm = "" }, "Received DtTm"},
		{"bad dispatch", func(r *RawIncidentRecord) { r.DispatchDtTm = "yesterday" }, "Dispatch DtTm"},
	}
	for _, tt := range errCases {
		t.Run(tt.name, func(t *testing.T) {
			rec := testRecord()
			tt.mutate(&rec)
			_, err := ParseIncident(rec)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParsePoint(t *testing.T) {
	tests := []struct {
		name  string
		input string
		lat   float64
		lon   float64
	}{
		{"standard", "POINT (-122.4 37.7)", 37.7, -122.4},
		{"no space before paren", "POINT(-122.5 37.8)", 37.8, -122.5},
		{"padded", "  POINT ( -122.45  37.75 )  ", 37.75, -122.45},
		{"empty", "", 0, 0},
		{"garbage", "(37.7, -122.4)", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lat, lon := parsePoint(tt.input)
			assert.Equal(t, tt.lat, lat)
			assert.Equal(t, tt.lon, lon)
		})
	}
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"true", "TRUE", "Y", "yes", "1"} {
		assert.True(t, parseBool(s), s)
	}
	for _, s := range []string{"false", "N", "0", "", "maybe"} {
		assert.False(t, parseBool(s), s)
	}
}
