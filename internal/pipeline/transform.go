package pipeline

import (
	"context"
	"log/slog"

	"github.com/Bhupin123/Sismicity/internal/domain"
)

// FeatureTransformer implements Transformer for USGS GeoJSON features with
// optional reverse geocoding of unlabeled events.
type FeatureTransformer struct {
	geocoder domain.Geocoder
	logger   *slog.Logger
}

// NewTransformer creates a FeatureTransformer. Pass a nil geocoder to disable
// geocoding enrichment.
func NewTransformer(geocoder domain.Geocoder, logger *slog.Logger) *FeatureTransformer {
	return &FeatureTransformer{
		geocoder: geocoder,
		logger:   logger,
	}
}

func (t *FeatureTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.Event, error) {
	event, err := domain.ParseFeature(raw)
	if err != nil {
		return domain.Event{}, err
	}

	event = domain.EnrichWithGeocoding(ctx, event, t.geocoder, t.logger)
	return domain.StampIngested(event), nil
}
