package repos_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilsley/repolens/apps/server/internal/repos"
	githubadapter "github.com/tilsley/repolens/apps/server/internal/repos/adapters/github"
	"github.com/tilsley/repolens/apps/server/internal/workerpool"
	"github.com/tilsley/repolens/pkg/logging"
)

// ─── Stubs ────────────────────────────────────────────────────────────────────

type singleClient struct{ client repos.RemoteRepoClient }

func (f singleClient) ForToken(string) repos.RemoteRepoClient { return f.client }

type stubAssembler struct {
	assembleFn func(ctx context.Context, owner, repo string) (*repos.FullRepository, error)
}

func (a *stubAssembler) Assemble(ctx context.Context, _ repos.RemoteRepoClient, owner, repo string) (*repos.FullRepository, error) {
	return a.assembleFn(ctx, owner, repo)
}

type memBuilds struct {
	mu     sync.Mutex
	builds map[string]repos.Build
	saves  int
}

func (m *memBuilds) Save(_ context.Context, b repos.Build) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.builds == nil {
		m.builds = make(map[string]repos.Build)
	}
	m.builds[b.ID] = b
	m.saves++
	return nil
}

func (m *memBuilds) Get(_ context.Context, id string) (*repos.Build, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.builds[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

type recordingEvents struct {
	mu     sync.Mutex
	events []repos.BuildEvent
}

type failingBuilds struct{ err error }

func (f failingBuilds) Save(context.Context, repos.Build) error { return f.err }

func (f failingBuilds) Get(context.Context, string) (*repos.Build, error) { return nil, f.err }

func (r *recordingEvents) RecordBuild(_ context.Context, e repos.BuildEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingEvents) all() []repos.BuildEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]repos.BuildEvent(nil), r.events...)
}

func newService(t *testing.T, timeout time.Duration, asm repos.Assembler) (*repos.Service, *memBuilds, *recordingEvents, *githubadapter.InMem) {
	t.Helper()
	pool := workerpool.New[*repos.FullRepository](workerpool.Config{
		Workers: 2, Timeout: timeout, PollInterval: time.Millisecond,
	}, logging.Discard())
	pool.Start(context.Background())
	t.Cleanup(pool.Stop)

	client := githubadapter.NewInMem()
	builds := &memBuilds{}
	events := &recordingEvents{}
	return repos.NewService(singleClient{client}, asm, pool, builds, events, logging.Discard()), builds, events, client
}

func fixed(full *repos.FullRepository, err error) *stubAssembler {
	return &stubAssembler{assembleFn: func(context.Context, string, string) (*repos.FullRepository, error) {
		return full, err
	}}
}

// ─── FullRepository ──────────────────────────────────────────────────────────

func TestFullRepository_RecordsSuccess(t *testing.T) {
	full := &repos.FullRepository{Name: "billing-api", FilesCount: 5, ActiveWebhooks: []repos.Webhook{{ID: 1}}}
	svc, _, events, _ := newService(t, time.Minute, fixed(full, nil))

	got, err := svc.FullRepository(context.Background(), "", "acme", "billing-api")

	require.NoError(t, err)
	assert.Same(t, full, got)
	evs := events.all()
	require.Len(t, evs, 1)
	assert.Equal(t, repos.BuildSucceeded, evs[0].Status)
	assert.Equal(t, 5, evs[0].FilesCount)
	assert.Equal(t, 1, evs[0].Webhooks)
	assert.NotEmpty(t, evs[0].BuildID)
}

func TestFullRepository_FailureIsWrapped(t *testing.T) {
	boom := errors.New("boom")
	svc, _, events, _ := newService(t, time.Minute, fixed(nil, boom))

	_, err := svc.FullRepository(context.Background(), "", "acme", "billing-api")

	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "acme/billing-api")
	require.Len(t, events.all(), 1)
	assert.Equal(t, repos.BuildFailed, events.all()[0].Status)
}

func TestFullRepository_TimeoutIsDistinct(t *testing.T) {
	slow := &stubAssembler{assembleFn: func(ctx context.Context, _, _ string) (*repos.FullRepository, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	svc, _, events, _ := newService(t, 20*time.Millisecond, slow)

	_, err := svc.FullRepository(context.Background(), "", "acme", "billing-api")

	assert.ErrorIs(t, err, workerpool.ErrTimeout)
	require.Len(t, events.all(), 1)
	assert.Equal(t, repos.BuildTimedOut, events.all()[0].Status)
}

func TestFullRepository_CallerCancelAbandonsBuild(t *testing.T) {
	started := make(chan struct{})
	slow := &stubAssembler{assembleFn: func(ctx context.Context, _, _ string) (*repos.FullRepository, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	svc, _, _, _ := newService(t, time.Minute, slow)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := svc.FullRepository(ctx, "", "acme", "billing-api")

	assert.ErrorIs(t, err, context.Canceled)
	pending, inFlight := svc.PoolStats()
	assert.Zero(t, pending)
	assert.Zero(t, inFlight)
}

// ─── Async builds ────────────────────────────────────────────────────────────

func TestSubmitBuild_PendingThenSucceeded(t *testing.T) {
	release := make(chan struct{})
	asm := &stubAssembler{assembleFn: func(context.Context, string, string) (*repos.FullRepository, error) {
		<-release
		return &repos.FullRepository{Name: "billing-api", FilesCount: 2}, nil
	}}
	svc, _, events, _ := newService(t, time.Minute, asm)

	b, err := svc.SubmitBuild(context.Background(), "", "acme", "billing-api")
	require.NoError(t, err)
	assert.Equal(t, repos.BuildPending, b.Status)

	got, err := svc.GetBuild(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, repos.BuildPending, got.Status)

	close(release)
	require.Eventually(t, func() bool {
		got, err := svc.GetBuild(context.Background(), b.ID)
		return err == nil && got.Status == repos.BuildSucceeded
	}, time.Second, 2*time.Millisecond)

	got, err = svc.GetBuild(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Result.FilesCount)
	assert.NotNil(t, got.CompletedAt)
	assert.Len(t, events.all(), 1)
}

func TestSubmitBuild_OutlivesSubmittingRequest(t *testing.T) {
	svc, _, _, _ := newService(t, time.Minute, fixed(&repos.FullRepository{Name: "x"}, nil))
	ctx, cancel := context.WithCancel(context.Background())

	b, err := svc.SubmitBuild(ctx, "", "acme", "x")
	require.NoError(t, err)
	cancel()

	require.Eventually(t, func() bool {
		got, err := svc.GetBuild(context.Background(), b.ID)
		return err == nil && got.Status == repos.BuildSucceeded
	}, time.Second, 2*time.Millisecond)
}

func TestSubmitBuild_FailureRecordsError(t *testing.T) {
	svc, _, _, _ := newService(t, time.Minute, fixed(nil, errors.New("upstream down")))

	b, err := svc.SubmitBuild(context.Background(), "", "acme", "billing-api")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := svc.GetBuild(context.Background(), b.ID)
		return err == nil && got.Status == repos.BuildFailed && got.Error != ""
	}, time.Second, 2*time.Millisecond)
}

func TestSubmitBuild_SaveFailureDropsQueuedBuild(t *testing.T) {
	pool := workerpool.New[*repos.FullRepository](workerpool.Config{
		Workers: 1, Timeout: time.Minute, PollInterval: time.Millisecond,
	}, logging.Discard())
	t.Cleanup(pool.Stop)

	var runs atomic.Int32
	asm := &stubAssembler{assembleFn: func(context.Context, string, string) (*repos.FullRepository, error) {
		runs.Add(1)
		return &repos.FullRepository{}, nil
	}}
	storeDown := errors.New("redis down")
	svc := repos.NewService(singleClient{githubadapter.NewInMem()}, asm, pool,
		failingBuilds{err: storeDown}, nil, logging.Discard())

	_, err := svc.SubmitBuild(context.Background(), "", "acme", "billing-api")
	require.ErrorIs(t, err, storeDown)

	pending, inFlight := svc.PoolStats()
	assert.Zero(t, pending)
	assert.Zero(t, inFlight)

	pool.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, runs.Load(), "an unrecorded build must not run")
}

func TestGetBuild_Unknown(t *testing.T) {
	svc, _, _, _ := newService(t, time.Minute, fixed(nil, nil))

	_, err := svc.GetBuild(context.Background(), "missing")

	var nf repos.BuildNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.ID)
}

// ─── ListRepositories ────────────────────────────────────────────────────────

func TestListRepositories_ClampsPage(t *testing.T) {
	svc, _, _, client := newService(t, time.Minute, fixed(nil, nil))
	client.AddRepo("acme", "one", repos.RepoMetadata{Name: "one", Owner: "acme"})

	list, err := svc.ListRepositories(context.Background(), "", 0)

	require.NoError(t, err)
	assert.Equal(t, []repos.RepoSummary{{Name: "one", Owner: "acme"}}, list)
}

func TestListRepositories_TransportError(t *testing.T) {
	svc, _, _, client := newService(t, time.Minute, fixed(nil, nil))
	client.FailOn("ListRepositories", errors.New("rate limited"))

	_, err := svc.ListRepositories(context.Background(), "", 1)

	var te *repos.TransportError
	assert.ErrorAs(t, err, &te)
}
