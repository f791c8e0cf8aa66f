package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/tilsley/repolens/apps/server/internal/platform/validation"
	"github.com/tilsley/repolens/apps/server/internal/repos"
	githubadapter "github.com/tilsley/repolens/apps/server/internal/repos/adapters/github"
	"github.com/tilsley/repolens/apps/server/internal/repos/assembler"
	"github.com/tilsley/repolens/apps/server/internal/repos/handler"
	"github.com/tilsley/repolens/apps/server/internal/repos/scanner"
	"github.com/tilsley/repolens/apps/server/internal/repos/store"
	"github.com/tilsley/repolens/apps/server/internal/workerpool"
	"github.com/tilsley/repolens/pkg/logging"
	"github.com/tilsley/repolens/schemas"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ─── Stubs ────────────────────────────────────────────────────────────────────

// tokenFactory hands out the same in-memory client for every token and
// remembers which tokens were asked for.
type tokenFactory struct {
	client *githubadapter.InMem
	mu     sync.Mutex
	tokens []string
}

func (f *tokenFactory) ForToken(token string) repos.RemoteRepoClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	return f.client
}

func (f *tokenFactory) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tokens...)
}

// ─── Test server builder ──────────────────────────────────────────────────────

type testServer struct {
	router  *gin.Engine
	client  *githubadapter.InMem
	factory *tokenFactory
	builds  *store.MemoryBuildStore
}

func newTestServer(t *testing.T, timeout time.Duration, validate bool) *testServer {
	t.Helper()
	client := githubadapter.NewInMem()
	client.AddRepo("acme", "billing-api", repos.RepoMetadata{
		Name: "billing-api", Owner: "acme", Size: 42, Visibility: "public",
	})
	client.SetFile("acme", "billing-api", "a.txt", "hello")
	client.SetFile("acme", "billing-api", "config.yml", "service: billing\n")
	client.SetFile("acme", "billing-api", "sub/other.yml", "x: 1\n")
	client.AddWebhooks("acme", "billing-api", repos.Webhook{ID: 5000000000, Name: "web", Type: "Repository", Events: []string{"push"}, Active: true})

	ts := &testServer{
		client:  client,
		factory: &tokenFactory{client: client},
		builds:  store.NewMemoryBuildStore(),
	}

	pool := workerpool.New[*repos.FullRepository](workerpool.Config{
		Workers:      2,
		Timeout:      timeout,
		PollInterval: time.Millisecond,
	}, logging.Discard())
	pool.Start(context.Background())
	t.Cleanup(pool.Stop)

	svc := repos.NewService(ts.factory, assembler.New(scanner.New()), pool, ts.builds, nil, logging.Discard())

	r := gin.New()
	if validate {
		mw, err := validation.New(schemas.OpenAPISpec)
		require.NoError(t, err)
		r.Use(mw)
	}
	require.NoError(t, handler.RegisterRoutes(r, svc, logging.Discard()))
	ts.router = r
	return ts
}

func (ts *testServer) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}
