// Package domain models San Francisco Fire Department (SFFD) "Calls for
// Service" records and the rules that turn a raw export row into a cleaned
// incident.
//
// # Data Source
//
// Records come from the DataSF "Fire Department Calls for Service" export, one
// row per unit dispatched to a call. A single call (Call Number) can therefore
// appear several times, once per responding unit, and several calls can share
// an Incident Number.
//
// # Export Conventions
//
// Date columns:
//
//	"Call Date", "Watch Date"   →  "04/26/2022"          (MM/DD/YYYY)
//	"... DtTm" columns           →  "04/26/2022 03:10:42 PM"
//
// Timestamps are local San Francisco wall-clock times without a zone. They are
// kept as naive times in UTC so that differences between milestones are exact
// for the durations derived here. Older exports use 24-hour DtTm values and
// some re-exports use ISO-8601; both are accepted.
//
// Location:
//
//	"case_location" holds WKT, e.g. "POINT (-122.4194 37.7749)".
//	WKT orders coordinates longitude first.
//
// Neighborhood:
//
//	"Neighborhooods - Analysis Boundaries" (sic, three o's) names one of the 41
//	analysis neighborhoods. Missing values are resolved from coordinates when
//	boundary polygons are configured.
//
// # Derived Durations
//
// All durations are in minutes:
//
//	on_scene_time   on-scene − received
//	response_time   response − received (dispatch − received when no response stamp)
//	transport_time  hospital − transport
//	intake_time     entry − received
//	queue_time      dispatch − entry
//	travel_time     on-scene − dispatch
//
// A duration is plausible only in [0, MaxDuration), one day by default.
// Negative values come from AM/PM confusion in the source system.
//
// # Cleaning
//
// A row is dropped when its final disposition is Cancelled or Duplicate, its
// call date falls outside the configured year window, it has no on-scene
// timestamp, or its on-scene time is implausible. Optional durations that are
// implausible are cleared instead. See [Clean].
//
// # ID Generation
//
// Incident IDs are deterministic SHA-256 hashes of row_id|call_number|unit_id so
// replays of the same export produce the same keys downstream. See [generateID].
package domain
