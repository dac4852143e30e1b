package locator

import (
	"context"
	"fmt"

	"github.com/injury-assessment-server/internal/domain"
)

// DirectoryLocator queries the facility directory.
type DirectoryLocator struct {
	dir  domain.FacilityDirectory
	opts Options
}

// NewDirectoryLocator creates a locator over dir.
func NewDirectoryLocator(dir domain.FacilityDirectory, opts Options) *DirectoryLocator {
	return &DirectoryLocator{dir: dir, opts: opts}
}

// Locate runs a nearby query against the directory.
func (d *DirectoryLocator) Locate(ctx context.Context, center *domain.Coordinates) ([]domain.FacilityRecord, error) {
	q := d.opts.query(center)
	records, err := d.dir.Nearby(ctx, q.Center, q.RadiusMeters, q.CategoryFilter, d.opts.MaxResults)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrLocatorUnavailable, err)
	}
	return records, nil
}
