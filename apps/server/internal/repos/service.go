// Package repos holds the repository-assembly use cases and the ports they
// depend on. It has no framework imports; adapters live in subpackages.
package repos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tilsley/repolens/apps/server/internal/workerpool"
)

// Service is the application-level orchestrator. Every full-repository build
// runs through the pool, so at most pool-size assemblies are in flight.
type Service struct {
	clients   ClientFactory
	assembler Assembler
	pool      BuildPool
	builds    BuildStore
	events    EventStore
	log       *slog.Logger
}

// NewService creates a Service. events may be nil to disable audit records.
func NewService(clients ClientFactory, assembler Assembler, pool BuildPool, builds BuildStore, events EventStore, log *slog.Logger) *Service {
	return &Service{
		clients:   clients,
		assembler: assembler,
		pool:      pool,
		builds:    builds,
		events:    events,
		log:       log,
	}
}

// PoolStats reports the pool's pending and undelivered task counts.
func (s *Service) PoolStats() (pending, inFlight int) {
	return s.pool.Pending(), s.pool.InFlight()
}

// ListRepositories returns one page of the credential's repositories. Listing
// is cheap and bypasses the pool.
func (s *Service) ListRepositories(ctx context.Context, token string, page int) ([]RepoSummary, error) {
	if page < 1 {
		page = 1
	}
	list, err := s.clients.ForToken(token).ListRepositories(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("list repositories page %d: %w", page, err)
	}
	return list, nil
}

// FullRepository assembles the full view of owner/repo through the pool and
// waits for the outcome. Cancelling ctx abandons the build.
func (s *Service) FullRepository(ctx context.Context, token, owner, repo string) (*FullRepository, error) {
	start := time.Now()
	f, err := s.pool.Submit(ctx, s.buildWork(token, owner, repo))
	if err != nil {
		return nil, fmt.Errorf("submit build for %s/%s: %w", owner, repo, err)
	}
	full, err := f.Wait(ctx)
	s.record(ctx, f.ID(), owner, repo, start, full, err)
	if err != nil {
		return nil, fmt.Errorf("build %s/%s: %w", owner, repo, err)
	}
	return full, nil
}

// SubmitBuild queues an assembly and returns its pending record immediately.
// The record is updated once the build settles; poll it with GetBuild.
func (s *Service) SubmitBuild(ctx context.Context, token, owner, repo string) (*Build, error) {
	start := time.Now()
	f, err := s.pool.Submit(ctx, s.buildWork(token, owner, repo))
	if err != nil {
		return nil, fmt.Errorf("submit build for %s/%s: %w", owner, repo, err)
	}

	b := Build{
		ID:          f.ID(),
		Owner:       owner,
		Repo:        repo,
		Status:      BuildPending,
		SubmittedAt: start.UTC(),
	}
	if err := s.builds.Save(ctx, b); err != nil {
		f.Cancel()
		return nil, fmt.Errorf("save build %q: %w", b.ID, err)
	}

	// The build outlives the request that submitted it.
	bg := context.WithoutCancel(ctx)
	go func() {
		full, err := f.Wait(bg)
		s.record(bg, b.ID, owner, repo, start, full, err)

		final := b
		now := time.Now().UTC()
		final.CompletedAt = &now
		final.Status = statusFor(err)
		if err != nil {
			final.Error = err.Error()
		} else {
			final.Result = full
		}
		if err := s.builds.Save(bg, final); err != nil {
			s.log.Error("failed to save build result", "buildId", b.ID, "error", err)
		}
	}()

	return &b, nil
}

// GetBuild returns the record of an asynchronous build.
func (s *Service) GetBuild(ctx context.Context, id string) (*Build, error) {
	b, err := s.builds.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get build %q: %w", id, err)
	}
	if b == nil {
		return nil, BuildNotFoundError{ID: id}
	}
	return b, nil
}

func (s *Service) buildWork(token, owner, repo string) workerpool.Work[*FullRepository] {
	return func(ctx context.Context) (*FullRepository, error) {
		return s.assembler.Assemble(ctx, s.clients.ForToken(token), owner, repo)
	}
}

func (s *Service) record(ctx context.Context, id, owner, repo string, start time.Time, full *FullRepository, err error) {
	status := statusFor(err)
	if err != nil {
		s.log.Warn("build failed", "buildId", id, "owner", owner, "repo", repo, "status", status, "error", err)
	} else {
		s.log.Info("build completed", "buildId", id, "owner", owner, "repo", repo, "files", full.FilesCount)
	}
	if s.events == nil {
		return
	}
	ev := BuildEvent{
		BuildID:    id,
		Owner:      owner,
		Repo:       repo,
		Status:     status,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		ev.Error = err.Error()
	} else if full != nil {
		ev.FilesCount = full.FilesCount
		ev.Webhooks = len(full.ActiveWebhooks)
	}
	if err := s.events.RecordBuild(ctx, ev); err != nil {
		s.log.Error("failed to record build event", "buildId", id, "error", err)
	}
}

func statusFor(err error) BuildStatus {
	switch {
	case err == nil:
		return BuildSucceeded
	case errors.Is(err, workerpool.ErrTimeout):
		return BuildTimedOut
	default:
		return BuildFailed
	}
}
