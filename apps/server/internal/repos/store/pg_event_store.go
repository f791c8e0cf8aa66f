package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/tilsley/repolens/apps/server/internal/repos"
)

const instrName = "github.com/tilsley/repolens"

// Compile-time check: *PGEventStore implements repos.EventStore.
var _ repos.EventStore = (*PGEventStore)(nil)

// PGEventStore appends terminal build outcomes to the build_events table.
type PGEventStore struct {
	pool *pgxpool.Pool

	// OTel business metrics emitted on every RecordBuild call.
	buildDuration metric.Float64Histogram
	buildComplete metric.Int64Counter
	filesScanned  metric.Int64Counter
}

// NewPGEventStore creates a new PGEventStore with the given connection pool.
func NewPGEventStore(pool *pgxpool.Pool) *PGEventStore {
	m := otel.Meter(instrName)

	buildDuration, _ := m.Float64Histogram("repolens.build.duration",
		metric.WithDescription("Full-repository build duration in milliseconds"),
		metric.WithUnit("ms"))
	buildComplete, _ := m.Int64Counter("repolens.build.completed",
		metric.WithDescription("Number of builds that reached a terminal state"))
	filesScanned, _ := m.Int64Counter("repolens.build.files",
		metric.WithDescription("Number of files counted by successful builds"))

	return &PGEventStore{
		pool:          pool,
		buildDuration: buildDuration,
		buildComplete: buildComplete,
		filesScanned:  filesScanned,
	}
}

// RecordBuild inserts an event row and emits OTel business metrics.
func (s *PGEventStore) RecordBuild(ctx context.Context, e repos.BuildEvent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO build_events (build_id, owner, repo, status, duration_ms, files_count, webhooks, error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.BuildID, e.Owner, e.Repo, string(e.Status), e.DurationMs, e.FilesCount, e.Webhooks, nilIfEmpty(e.Error),
	)
	if err != nil {
		return fmt.Errorf("insert build_event: %w", err)
	}

	s.emitMetrics(ctx, e)
	return nil
}

// BuildCounts returns the number of recorded events per status.
func (s *PGEventStore) BuildCounts(ctx context.Context) (map[repos.BuildStatus]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM build_events GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("build counts query: %w", err)
	}
	defer rows.Close()

	out := make(map[repos.BuildStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan build counts: %w", err)
		}
		out[repos.BuildStatus(status)] = n
	}
	return out, rows.Err()
}

func (s *PGEventStore) emitMetrics(ctx context.Context, e repos.BuildEvent) {
	attrs := metric.WithAttributes(attribute.String("status", string(e.Status)))
	s.buildComplete.Add(ctx, 1, attrs)
	s.buildDuration.Record(ctx, float64(e.DurationMs), attrs)
	if e.Status == repos.BuildSucceeded {
		s.filesScanned.Add(ctx, int64(e.FilesCount))
	}
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
