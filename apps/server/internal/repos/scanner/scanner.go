// Package scanner walks a repository's file tree from its root, counting every
// file and locating the first configuration file in traversal order.
//
// Two strategies are available and yield the same file count for any tree:
//
//   - BreadthFirst lists directories level by level, expanding the frontier in
//     fixed-size concurrent batches.
//   - Recursive lists the root, then fetches each top-level directory's full
//     recursive tree in a single call.
//
// "First" means earliest discovered: directory-entry enumeration order, then
// expansion order. It is never lexicographic path order.
package scanner

import (
	"context"
	"encoding/base64"
	"fmt"
	"path"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/tilsley/repolens/apps/server/internal/repos"
)

// Strategy selects the traversal algorithm.
type Strategy string

const (
	BreadthFirst Strategy = "bfs"
	Recursive    Strategy = "recursive"
)

// ParseStrategy maps a config string to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(s) {
	case "", string(BreadthFirst), "breadth-first":
		return BreadthFirst, nil
	case string(Recursive):
		return Recursive, nil
	default:
		return "", fmt.Errorf("unknown scan strategy %q (want bfs or recursive)", s)
	}
}

// DefaultBatchSize is how many directories are expanded concurrently.
const DefaultBatchSize = 5

// DefaultConfigSuffixes are the file suffixes recognised as configuration files.
var DefaultConfigSuffixes = []string{".yml"}

// ContentReader is the slice of repos.RemoteRepoClient the scanner needs.
type ContentReader interface {
	GetContents(ctx context.Context, owner, repo, path string) ([]repos.TreeNode, error)
	GetTreeRecursive(ctx context.Context, owner, repo, sha string) ([]repos.TreeNode, error)
	GetFileContent(ctx context.Context, owner, repo, path string) (*repos.Blob, error)
	GetBlob(ctx context.Context, url string) (*repos.Blob, error)
}

// Result is the outcome of one scan. ConfigValid is set when ConfigContent is,
// and reports whether the content parses as YAML.
type Result struct {
	FilesCount    int
	ConfigFile    *repos.TreeNode
	ConfigContent *string
	ConfigValid   *bool
}

// Scanner is safe for concurrent use; it holds configuration only.
type Scanner struct {
	strategy  Strategy
	batchSize int
	match     func(path string) bool
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithStrategy selects the traversal algorithm.
func WithStrategy(st Strategy) Option {
	return func(s *Scanner) { s.strategy = st }
}

// WithBatchSize bounds how many directory or tree listings are in flight at
// once. Values below one are ignored.
func WithBatchSize(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithConfigSuffixes recognises files whose path ends in any suffix
// (case-insensitive) as configuration files.
func WithConfigSuffixes(suffixes ...string) Option {
	return func(s *Scanner) {
		if len(suffixes) > 0 {
			s.match = suffixMatcher(suffixes)
		}
	}
}

// WithConfigMatcher replaces the configuration file predicate.
func WithConfigMatcher(match func(path string) bool) Option {
	return func(s *Scanner) {
		if match != nil {
			s.match = match
		}
	}
}

// New creates a Scanner. Defaults: BreadthFirst, DefaultBatchSize, ".yml".
func New(opts ...Option) *Scanner {
	s := &Scanner{
		strategy:  BreadthFirst,
		batchSize: DefaultBatchSize,
		match:     suffixMatcher(DefaultConfigSuffixes),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Strategy returns the configured traversal algorithm.
func (s *Scanner) Strategy() Strategy { return s.strategy }

// Scan walks owner/repo from its root. A missing root is not an error: it
// yields zero files and no configuration content.
func (s *Scanner) Scan(ctx context.Context, client ContentReader, owner, repo string) (*Result, error) {
	root, err := client.GetContents(ctx, owner, repo, "")
	if err != nil {
		return nil, fmt.Errorf("list root of %s/%s: %w", owner, repo, err)
	}
	if root == nil {
		return &Result{}, nil
	}

	w := &walk{match: s.match}
	switch s.strategy {
	case Recursive:
		err = s.recursive(ctx, client, owner, repo, root, w)
	default:
		err = s.breadthFirst(ctx, client, owner, repo, root, w)
	}
	if err != nil {
		return nil, err
	}

	res := &Result{FilesCount: w.files}
	if w.found == nil {
		return res, nil
	}
	res.ConfigFile = w.found
	content, err := s.fetch(ctx, client, owner, repo, w)
	if err != nil {
		return nil, err
	}
	if content != nil {
		valid := isYAML(*content)
		res.ConfigContent = content
		res.ConfigValid = &valid
	}
	return res, nil
}

// breadthFirst expands the frontier in batches of s.batchSize. Listings within
// a batch are fetched concurrently and visited in frontier order.
func (s *Scanner) breadthFirst(ctx context.Context, client ContentReader, owner, repo string, root []repos.TreeNode, w *walk) error {
	frontier := w.visit(root)
	for len(frontier) > 0 {
		var next []repos.TreeNode
		for start := 0; start < len(frontier); start += s.batchSize {
			batch := frontier[start:min(start+s.batchSize, len(frontier))]
			listings := make([][]repos.TreeNode, len(batch))

			g, gctx := errgroup.WithContext(ctx)
			for i, dir := range batch {
				g.Go(func() error {
					nodes, err := client.GetContents(gctx, owner, repo, dir.Path)
					if err != nil {
						return fmt.Errorf("list %s/%s:%s: %w", owner, repo, dir.Path, err)
					}
					listings[i] = nodes
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			for _, nodes := range listings {
				next = append(next, w.visit(nodes)...)
			}
		}
		frontier = next
	}
	return nil
}

// recursive visits root files first, then every top-level directory's
// flattened tree in root enumeration order.
func (s *Scanner) recursive(ctx context.Context, client ContentReader, owner, repo string, root []repos.TreeNode, w *walk) error {
	dirs := w.visit(root)
	trees := make([][]repos.TreeNode, len(dirs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchSize)
	for i, dir := range dirs {
		g.Go(func() error {
			nodes, err := client.GetTreeRecursive(gctx, owner, repo, dir.SHA)
			if err != nil {
				return fmt.Errorf("tree %s/%s:%s: %w", owner, repo, dir.Path, err)
			}
			trees[i] = nodes
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, nodes := range trees {
		for _, n := range nodes {
			if n.Kind != repos.NodeFile {
				continue
			}
			n.Path = path.Join(dirs[i].Path, n.Path)
			w.file(n, true)
		}
	}
	return nil
}

func (s *Scanner) fetch(ctx context.Context, client ContentReader, owner, repo string, w *walk) (*string, error) {
	var (
		blob *repos.Blob
		err  error
	)
	if w.foundInTree {
		blob, err = client.GetBlob(ctx, w.found.URL)
	} else {
		blob, err = client.GetFileContent(ctx, owner, repo, w.found.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", w.found.Path, err)
	}
	if blob == nil {
		return nil, nil
	}
	return decode(w.found.Path, *blob)
}

// walk accumulates the count and the first match across visits.
type walk struct {
	match       func(string) bool
	files       int
	found       *repos.TreeNode
	foundInTree bool
}

// visit counts files in enumeration order and returns the directories.
func (w *walk) visit(nodes []repos.TreeNode) []repos.TreeNode {
	var dirs []repos.TreeNode
	for _, n := range nodes {
		switch n.Kind {
		case repos.NodeFile:
			w.file(n, false)
		case repos.NodeDir:
			dirs = append(dirs, n)
		}
	}
	return dirs
}

func (w *walk) file(n repos.TreeNode, inTree bool) {
	w.files++
	if w.found == nil && w.match(n.Path) {
		w.found = &n
		w.foundInTree = inTree
	}
}

// decode turns a transport-encoded payload into text. Encoding "none" means
// the API withheld the content (files over 1 MB); it yields no content.
func decode(p string, b repos.Blob) (*string, error) {
	switch strings.ToLower(b.Encoding) {
	case "base64":
		raw, err := base64.StdEncoding.DecodeString(b.Content)
		if err != nil {
			return nil, fmt.Errorf("decode base64 content for %s: %w", p, err)
		}
		s := string(raw)
		return &s, nil
	case "", "utf-8", "utf8":
		s := b.Content
		return &s, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q for %s", b.Encoding, p)
	}
}

func isYAML(content string) bool {
	var v any
	return yaml.Unmarshal([]byte(content), &v) == nil
}

func suffixMatcher(suffixes []string) func(string) bool {
	lowered := make([]string, 0, len(suffixes))
	for _, s := range suffixes {
		if s = strings.TrimSpace(s); s != "" {
			lowered = append(lowered, strings.ToLower(s))
		}
	}
	return func(p string) bool {
		lp := strings.ToLower(p)
		for _, s := range lowered {
			if strings.HasSuffix(lp, s) {
				return true
			}
		}
		return false
	}
}
