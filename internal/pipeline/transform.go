package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/sffd-incident-etl/internal/domain"
)

// IncidentTransformer implements Transformer using the domain parse and clean
// functions with optional location enrichment.
type IncidentTransformer struct {
	geocoder domain.Geocoder
	resolver domain.NeighborhoodResolver
	rules    domain.Rules
	logger   *slog.Logger
}

// NewTransformer creates an IncidentTransformer. Pass a nil geocoder or
// resolver to disable that enrichment step.
func NewTransformer(geocoder domain.Geocoder, resolver domain.NeighborhoodResolver, rules domain.Rules, logger *slog.Logger) *IncidentTransformer {
	return &IncidentTransformer{
		geocoder: geocoder,
		resolver: resolver,
		rules:    rules,
		logger:   logger,
	}
}

func (t *IncidentTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.Incident, error) {
	rec, err := domain.ParseRawEvent(raw)
	if err != nil {
		return domain.Incident{}, err
	}

	inc, err := domain.ParseIncident(rec)
	if err != nil {
		return domain.Incident{}, err
	}

	inc, reason := domain.Clean(inc, t.rules)
	if reason != "" {
		id := inc.RowID
		if id == "" {
			id = inc.CallNumber
		}
		return domain.Incident{}, &domain.DropError{Reason: reason, ID: id}
	}

	inc = domain.EnrichLocation(ctx, inc, t.geocoder, t.resolver, t.logger)
	return domain.Stamp(inc), nil
}
