package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/injury-assessment-server/internal/domain"
)

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

// ExportJSON writes every facility in the directory as JSON.
func ExportJSON(ctx context.Context, store domain.FacilityDirectory, writer io.Writer) error {
	all, err := store.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list facilities: %w", err)
	}

	export := &Export{
		Version:    ExportVersion,
		ExportedAt: time.Now().UTC(),
		Count:      len(all),
		Facilities: all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// ImportJSON upserts the facilities of an export. Invalid entries are
// skipped and counted.
func ImportJSON(ctx context.Context, store domain.FacilityDirectory, reader io.Reader) (imported int, skipped int, err error) {
	var export Export
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, entry := range export.Facilities {
		if err := validateEntry(entry); err != nil {
			skipped++
			continue
		}
		entry.ID = 0
		if err := store.Upsert(ctx, entry); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}

// Seed loads records into an empty directory. A directory that already
// holds facilities is left alone.
func Seed(ctx context.Context, store domain.FacilityDirectory, records []domain.FacilityRecord, logger *logrus.Logger) (int, error) {
	count, err := store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count facilities: %w", err)
	}
	if count > 0 || len(records) == 0 {
		return 0, nil
	}

	seeded := 0
	for _, r := range records {
		entry := &domain.FacilityEntry{FacilityRecord: r}
		entry.DistanceKm = nil
		if err := store.Upsert(ctx, entry); err != nil {
			if domain.IsValidationError(err) {
				logger.WithError(err).WithField("facility", r.Name).Warn("Skipping invalid seed facility")
				continue
			}
			return seeded, err
		}
		seeded++
	}

	logger.WithField("count", seeded).Info("Seeded facility directory")
	return seeded, nil
}
