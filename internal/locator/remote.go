package locator

import (
	"context"
	"fmt"

	"github.com/injury-assessment-server/internal/domain"
)

// NearbySearcher is the remote nearby-search call.
type NearbySearcher interface {
	NearbySearch(ctx context.Context, query domain.FacilityQuery) ([]domain.FacilityRecord, error)
}

// RemoteLocator asks a nearby-search service and ranks what it returns.
type RemoteLocator struct {
	client NearbySearcher
	opts   Options
}

// NewRemoteLocator creates a locator over client.
func NewRemoteLocator(client NearbySearcher, opts Options) *RemoteLocator {
	return &RemoteLocator{client: client, opts: opts}
}

// Locate calls the remote service. Results are re-ranked locally so the
// distance annotation and ordering match the other backends.
func (r *RemoteLocator) Locate(ctx context.Context, center *domain.Coordinates) ([]domain.FacilityRecord, error) {
	q := r.opts.query(center)
	records, err := r.client.NearbySearch(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrLocatorUnavailable, err)
	}
	return domain.RankByDistance(records, q.Center, q.RadiusMeters, q.CategoryFilter, r.opts.MaxResults), nil
}
