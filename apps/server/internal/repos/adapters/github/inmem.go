package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tilsley/repolens/apps/server/internal/repos"
)

// Compile-time check: *InMem implements repos.RemoteRepoClient.
var _ repos.RemoteRepoClient = (*InMem)(nil)

const (
	memBlobPrefix = "mem://blob/"
	memTreeSHA    = "tree:"
	memBlobSHA    = "blob:"
)

// InMem is an in-memory repos.RemoteRepoClient for unit tests. Directory
// listings follow file insertion order, not lexicographic order, so tests can
// pin down enumeration-order semantics.
type InMem struct {
	mu       sync.Mutex
	repos    map[string]*memRepo // "owner/repo"
	listing  []repos.RepoSummary
	failures map[string]error // op -> error
	calls    map[string]int   // op -> count
	latency  time.Duration
	active   map[string]int
	peak     map[string]int
}

type memRepo struct {
	meta  repos.RepoMetadata
	paths []string          // insertion order
	files map[string]string // path -> content
	hooks []repos.Webhook
}

// NewInMem creates an empty InMem client.
func NewInMem() *InMem {
	return &InMem{
		repos:    make(map[string]*memRepo),
		failures: make(map[string]error),
		calls:    make(map[string]int),
		active:   make(map[string]int),
		peak:     make(map[string]int),
	}
}

// AddRepo registers a repository with the given metadata.
func (m *InMem) AddRepo(owner, repo string, meta repos.RepoMetadata) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.repo(owner, repo)
	r.meta = meta
	m.listing = append(m.listing, repos.RepoSummary{Name: repo, Owner: owner, Size: meta.Size})
}

// SetFile seeds a file, creating the repository if needed.
func (m *InMem) SetFile(owner, repo, path, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.repo(owner, repo)
	if _, ok := r.files[path]; !ok {
		r.paths = append(r.paths, path)
	}
	r.files[path] = content
}

// AddWebhooks appends hooks to a repository.
func (m *InMem) AddWebhooks(owner, repo string, hooks ...repos.Webhook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.repo(owner, repo)
	r.hooks = append(r.hooks, hooks...)
}

// FailOn makes every call of op (a method name such as "GetContents") fail
// with err. A nil err clears the failure.
func (m *InMem) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// SetLatency delays every call, honouring context cancellation.
func (m *InMem) SetLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency = d
}

// Calls returns how many times op was invoked.
func (m *InMem) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// PeakConcurrency returns the highest number of simultaneous op calls seen.
func (m *InMem) PeakConcurrency(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peak[op]
}

func (m *InMem) repo(owner, repo string) *memRepo {
	key := owner + "/" + repo
	r, ok := m.repos[key]
	if !ok {
		r = &memRepo{
			meta:  repos.RepoMetadata{Name: repo, Owner: owner, Visibility: "public"},
			files: make(map[string]string),
		}
		m.repos[key] = r
	}
	return r
}

// enter records the call and applies latency. The returned func must be
// called when the operation finishes.
func (m *InMem) enter(ctx context.Context, op string) (func(), error) {
	m.mu.Lock()
	m.calls[op]++
	m.active[op]++
	if m.active[op] > m.peak[op] {
		m.peak[op] = m.active[op]
	}
	latency, failure := m.latency, m.failures[op]
	m.mu.Unlock()

	leave := func() {
		m.mu.Lock()
		m.active[op]--
		m.mu.Unlock()
	}
	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			leave()
			return nil, ctx.Err()
		}
	}
	if failure != nil {
		leave()
		return nil, &repos.TransportError{Op: op, Message: failure.Error(), Err: failure}
	}
	return leave, nil
}

// ListRepositories pages through repositories registered with AddRepo.
func (m *InMem) ListRepositories(ctx context.Context, page int) ([]repos.RepoSummary, error) {
	leave, err := m.enter(ctx, "ListRepositories")
	if err != nil {
		return nil, err
	}
	defer leave()
	m.mu.Lock()
	defer m.mu.Unlock()
	return paginate(m.listing, page, MaxPerPage), nil
}

// GetMetadata returns nil when the repository is unknown.
func (m *InMem) GetMetadata(ctx context.Context, owner, repo string) (*repos.RepoMetadata, error) {
	leave, err := m.enter(ctx, "GetMetadata")
	if err != nil {
		return nil, err
	}
	defer leave()
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.repos[owner+"/"+repo]
	if !ok {
		return nil, nil
	}
	meta := r.meta
	return &meta, nil
}

// GetContents lists the immediate children of dir ("" for the root). It
// returns nil when the repository or directory does not exist.
func (m *InMem) GetContents(ctx context.Context, owner, repo, dir string) ([]repos.TreeNode, error) {
	leave, err := m.enter(ctx, "GetContents")
	if err != nil {
		return nil, err
	}
	defer leave()
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.repos[owner+"/"+repo]
	if !ok {
		return nil, nil
	}
	nodes := r.children(owner, repo, dir, false)
	if len(nodes) == 0 && dir != "" {
		return nil, nil
	}
	return nodes, nil
}

// GetTreeRecursive returns every descendant of the directory identified by
// sha, with paths relative to that directory.
func (m *InMem) GetTreeRecursive(ctx context.Context, owner, repo, sha string) ([]repos.TreeNode, error) {
	leave, err := m.enter(ctx, "GetTreeRecursive")
	if err != nil {
		return nil, err
	}
	defer leave()
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.repos[owner+"/"+repo]
	if !ok || !strings.HasPrefix(sha, memTreeSHA) {
		return nil, nil
	}
	return r.children(owner, repo, strings.TrimPrefix(sha, memTreeSHA), true), nil
}

// GetFileContent returns the base64-encoded file, or nil if it does not exist.
func (m *InMem) GetFileContent(ctx context.Context, owner, repo, path string) (*repos.Blob, error) {
	leave, err := m.enter(ctx, "GetFileContent")
	if err != nil {
		return nil, err
	}
	defer leave()
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.repos[owner+"/"+repo]
	if !ok {
		return nil, nil
	}
	content, ok := r.files[path]
	if !ok {
		return nil, nil
	}
	return encodedBlob(content), nil
}

// GetBlob resolves a blob URL handed out in a tree listing.
func (m *InMem) GetBlob(ctx context.Context, url string) (*repos.Blob, error) {
	leave, err := m.enter(ctx, "GetBlob")
	if err != nil {
		return nil, err
	}
	defer leave()
	parts := strings.SplitN(strings.TrimPrefix(url, memBlobPrefix), "/", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed blob url %q", url)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.repos[parts[0]+"/"+parts[1]]
	if !ok {
		return nil, fmt.Errorf("blob %q not found", url)
	}
	content, ok := r.files[parts[2]]
	if !ok {
		return nil, fmt.Errorf("blob %q not found", url)
	}
	return encodedBlob(content), nil
}

// ListWebhooks pages through hooks added with AddWebhooks.
func (m *InMem) ListWebhooks(ctx context.Context, owner, repo string, page, perPage int) ([]repos.Webhook, error) {
	leave, err := m.enter(ctx, "ListWebhooks")
	if err != nil {
		return nil, err
	}
	defer leave()
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.repos[owner+"/"+repo]
	if !ok {
		return []repos.Webhook{}, nil
	}
	return paginate(r.hooks, page, perPage), nil
}

// children lists entries under dir in insertion order. With recursive set,
// every descendant is returned (directories included) relative to dir.
func (r *memRepo) children(owner, repo, dir string, recursive bool) []repos.TreeNode {
	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}
	seen := make(map[string]bool)
	var nodes []repos.TreeNode
	for _, p := range r.paths {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := p[len(prefix):]
		segs := strings.Split(rest, "/")
		limit := 1
		if recursive {
			limit = len(segs)
		}
		for i := 0; i < limit; i++ {
			rel := strings.Join(segs[:i+1], "/")
			if seen[rel] {
				continue
			}
			seen[rel] = true
			full := prefix + rel
			node := repos.TreeNode{Path: full, Name: segs[i]}
			if recursive {
				node.Path = rel
			}
			if i == len(segs)-1 {
				node.Kind = repos.NodeFile
				node.SHA = memBlobSHA + full
				node.URL = memBlobPrefix + owner + "/" + repo + "/" + full
			} else {
				node.Kind = repos.NodeDir
				node.SHA = memTreeSHA + full
			}
			nodes = append(nodes, node)
		}
	}
	return nodes
}

func encodedBlob(content string) *repos.Blob {
	return &repos.Blob{
		Content:  base64.StdEncoding.EncodeToString([]byte(content)),
		Encoding: "base64",
	}
}

func paginate[T any](items []T, page, perPage int) []T {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = MaxPerPage
	}
	start := (page - 1) * perPage
	if start >= len(items) {
		return []T{}
	}
	end := min(start+perPage, len(items))
	out := make([]T, end-start)
	copy(out, items[start:end])
	return out
}
