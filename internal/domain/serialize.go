package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// SerializeIncident marshals an incident into a sink message keyed by its ID.
func SerializeIncident(inc Incident) (OutputEvent, error) {
	data, err := json.Marshal(inc)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize incident: %w", err)
	}
	return OutputEvent{
		Key:   []byte(inc.ID),
		Value: data,
		Headers: map[string]string{
			"call_type":    inc.CallType,
			"processed_at": inc.ProcessedAt.Format(time.RFC3339),
		},
	}, nil
}
