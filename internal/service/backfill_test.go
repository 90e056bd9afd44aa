package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avisio/hub/internal/models"
	"github.com/avisio/hub/internal/normalizer"
)

// mockBackfillRepo simulates the unprocessed filter: enriched records drop
// out of subsequent fetches, excluded IDs are filtered, and fetch order is
// the slice order (newest first, mirroring created_at DESC).
type mockBackfillRepo struct {
	records   []models.Feedback
	remaining map[uuid.UUID]bool
	fetches   int
}

func newMockBackfillRepo(records []models.Feedback) *mockBackfillRepo {
	remaining := map[uuid.UUID]bool{}
	for _, r := range records {
		remaining[r.ID] = true
	}

	return &mockBackfillRepo{records: records, remaining: remaining}
}

func (m *mockBackfillRepo) ListUnprocessed(
	_ context.Context, _ *uuid.UUID, excludeIDs []uuid.UUID, limit int,
) ([]models.Feedback, error) {
	m.fetches++

	excluded := map[uuid.UUID]bool{}
	for _, id := range excludeIDs {
		excluded[id] = true
	}

	out := []models.Feedback{}
	for _, r := range m.records {
		if len(out) == limit {
			break
		}

		if m.remaining[r.ID] && !excluded[r.ID] {
			out = append(out, r)
		}
	}

	return out, nil
}

type mockEnricher struct {
	enrichFunc func(ctx context.Context, record *models.Feedback, result normalizer.Result) error
	repo       *mockBackfillRepo
	results    []normalizer.Result
}

func (m *mockEnricher) EnrichRecord(ctx context.Context, record *models.Feedback, result normalizer.Result) error {
	m.results = append(m.results, result)

	if m.enrichFunc != nil {
		if err := m.enrichFunc(ctx, record, result); err != nil {
			return err
		}
	}

	// Success removes the record from the unprocessed set.
	delete(m.repo.remaining, record.ID)

	return nil
}

// failingIDSet builds an enrichFunc that fails for every ID in ids.
func failingIDSet(ids []models.Feedback) func(context.Context, *models.Feedback, normalizer.Result) error {
	failing := map[uuid.UUID]bool{}
	for _, r := range ids {
		failing[r.ID] = true
	}

	return func(_ context.Context, record *models.Feedback, _ normalizer.Result) error {
		if failing[record.ID] {
			return errors.New("db down")
		}

		return nil
	}
}

func backfillRecords(n int) []models.Feedback {
	records := make([]models.Feedback, n)
	for i := range records {
		records[i] = models.Feedback{
			ID:           uuid.New(),
			RestaurantID: uuid.New(),
			PositiveText: "Service rapide et souriant",
		}
	}

	return records
}

func TestBackfillServiceRun(t *testing.T) {
	t.Run("processes all records across multiple batches", func(t *testing.T) {
		repo := newMockBackfillRepo(backfillRecords(120))
		enricher := &mockEnricher{repo: repo}

		svc := NewBackfillService(repo, enricher, 50, 10000, slog.Default())

		stats, err := svc.Run(context.Background(), nil)

		require.NoError(t, err)
		assert.Equal(t, 120, stats.Processed)
		assert.Equal(t, 0, stats.Errors)
		// 50 + 50 + 20, then an empty fetch ends the run.
		assert.Equal(t, 4, repo.fetches)
		assert.Empty(t, repo.remaining)
	})

	t.Run("counts failed records without aborting", func(t *testing.T) {
		records := backfillRecords(10)
		failing := records[3].ID
		repo := newMockBackfillRepo(records)
		enricher := &mockEnricher{repo: repo}
		enricher.enrichFunc = func(_ context.Context, record *models.Feedback, _ normalizer.Result) error {
			if record.ID == failing {
				return errors.New("db down")
			}

			return nil
		}

		svc := NewBackfillService(repo, enricher, 50, 10000, slog.Default())

		stats, err := svc.Run(context.Background(), nil)

		require.NoError(t, err)
		assert.Equal(t, 9, stats.Processed)
		assert.Equal(t, 1, stats.Errors)
	})

	t.Run("advances past a fully failing batch", func(t *testing.T) {
		// 50 newest records all fail the persist step; 10 healthy older
		// records sit behind them. The fetch window must move past the
		// failures instead of terminating with the backlog intact.
		records := backfillRecords(60)
		repo := newMockBackfillRepo(records)
		enricher := &mockEnricher{repo: repo}
		enricher.enrichFunc = failingIDSet(records[:50])

		svc := NewBackfillService(repo, enricher, 50, 10000, slog.Default())

		stats, err := svc.Run(context.Background(), nil)

		require.NoError(t, err)
		assert.Equal(t, 10, stats.Processed)
		assert.Equal(t, 50, stats.Errors)
		// Each failing record was attempted exactly once.
		assert.Len(t, enricher.results, 60)
	})

	t.Run("stops when only failures remain", func(t *testing.T) {
		repo := newMockBackfillRepo(backfillRecords(5))
		enricher := &mockEnricher{repo: repo}
		enricher.enrichFunc = func(context.Context, *models.Feedback, normalizer.Result) error {
			return errors.New("db down")
		}

		svc := NewBackfillService(repo, enricher, 50, 10000, slog.Default())

		stats, err := svc.Run(context.Background(), nil)

		require.NoError(t, err)
		assert.Equal(t, 0, stats.Processed)
		assert.Equal(t, 5, stats.Errors)
		// Each record failed once; the run did not spin on them.
		assert.Len(t, enricher.results, 5)
	})

	t.Run("uses the keyword classifier for enrichment", func(t *testing.T) {
		negative := "le plat était froid"
		record := models.Feedback{
			ID:           uuid.New(),
			PositiveText: "Accueil parfait",
			NegativeText: &negative,
		}
		repo := newMockBackfillRepo([]models.Feedback{record})
		enricher := &mockEnricher{repo: repo}

		svc := NewBackfillService(repo, enricher, 50, 10000, slog.Default())

		_, err := svc.Run(context.Background(), nil)

		require.NoError(t, err)
		require.Len(t, enricher.results, 1)

		result := enricher.results[0]
		assert.Equal(t, "Accueil parfait le plat était froid", result.NormalizedText)
		assert.Contains(t, result.Themes, "accueil")
		assert.Contains(t, result.Themes, "température")
		assert.True(t, models.ValidSeverity(result.Severity))
	})

	t.Run("cancelled context stops the run", func(t *testing.T) {
		repo := newMockBackfillRepo(backfillRecords(10))
		enricher := &mockEnricher{repo: repo}

		// With 1 record/sec the second record waits; cancel before that.
		svc := NewBackfillService(repo, enricher, 50, 1, slog.Default())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := svc.Run(ctx, nil)

		assert.Error(t, err)
	})
}
