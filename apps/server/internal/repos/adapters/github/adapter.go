// Package github implements repos.RemoteRepoClient on top of the go-github
// library. Wire it up with an authenticated *github.Client from
// apps/server/internal/platform/github.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"

	gogithub "github.com/google/go-github/v75/github"

	platformgithub "github.com/tilsley/repolens/apps/server/internal/platform/github"
	"github.com/tilsley/repolens/apps/server/internal/repos"
)

// MaxPerPage is the largest page size the API accepts for list endpoints.
const MaxPerPage = 100

// Compile-time checks.
var (
	_ repos.RemoteRepoClient = (*Adapter)(nil)
	_ repos.ClientFactory    = (*Factory)(nil)
)

// Adapter wraps a go-github client. "Not found" responses become nil or empty
// results; every other failure becomes a *repos.TransportError.
type Adapter struct {
	gh *gogithub.Client
}

// New creates an Adapter from an authenticated *github.Client.
func New(gh *gogithub.Client) *Adapter {
	return &Adapter{gh: gh}
}

// ListRepositories returns one page (up to MaxPerPage) of the authenticated
// user's repositories.
func (a *Adapter) ListRepositories(ctx context.Context, page int) ([]repos.RepoSummary, error) {
	list, _, err := a.gh.Repositories.ListByAuthenticatedUser(ctx, &gogithub.RepositoryListByAuthenticatedUserOptions{
		ListOptions: gogithub.ListOptions{Page: page, PerPage: MaxPerPage},
	})
	if err != nil {
		return nil, transportError("list repositories", err)
	}
	out := make([]repos.RepoSummary, 0, len(list))
	for _, r := range list {
		out = append(out, repos.RepoSummary{
			Name:  r.GetName(),
			Owner: r.GetOwner().GetLogin(),
			Size:  r.GetSize(),
		})
	}
	return out, nil
}

// GetMetadata returns nil when the repository does not exist.
func (a *Adapter) GetMetadata(ctx context.Context, owner, repo string) (*repos.RepoMetadata, error) {
	r, _, err := a.gh.Repositories.Get(ctx, owner, repo)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, transportError(fmt.Sprintf("get repository %s/%s", owner, repo), err)
	}
	return &repos.RepoMetadata{
		Name:       r.GetName(),
		Owner:      r.GetOwner().GetLogin(),
		Size:       r.GetSize(),
		Visibility: r.GetVisibility(),
		IsPrivate:  r.GetPrivate(),
	}, nil
}

// GetContents lists a directory. It returns nil when the path does not exist
// or names a file.
func (a *Adapter) GetContents(ctx context.Context, owner, repo, dir string) ([]repos.TreeNode, error) {
	_, entries, _, err := a.gh.Repositories.GetContents(ctx, owner, repo, dir, nil)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, transportError(fmt.Sprintf("get contents %s/%s:%s", owner, repo, dir), err)
	}
	if entries == nil {
		return nil, nil
	}
	nodes := make([]repos.TreeNode, 0, len(entries))
	for _, e := range entries {
		nodes = append(nodes, repos.TreeNode{
			Path: e.GetPath(),
			Name: e.GetName(),
			Kind: contentKind(e.GetType()),
			SHA:  e.GetSHA(),
			URL:  e.GetURL(),
		})
	}
	return nodes, nil
}

// GetTreeRecursive fetches the full tree below sha in one call. Paths are
// relative to that tree.
func (a *Adapter) GetTreeRecursive(ctx context.Context, owner, repo, sha string) ([]repos.TreeNode, error) {
	tree, _, err := a.gh.Git.GetTree(ctx, owner, repo, sha, true)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, transportError(fmt.Sprintf("get tree %s/%s@%s", owner, repo, sha), err)
	}
	nodes := make([]repos.TreeNode, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		nodes = append(nodes, repos.TreeNode{
			Path: e.GetPath(),
			Name: path.Base(e.GetPath()),
			Kind: treeKind(e.GetType()),
			SHA:  e.GetSHA(),
			URL:  e.GetURL(),
		})
	}
	return nodes, nil
}

// GetFileContent fetches a single file through the contents API. It returns
// nil when the path does not exist or is a directory. The payload is left in
// its transport encoding.
func (a *Adapter) GetFileContent(ctx context.Context, owner, repo, filePath string) (*repos.Blob, error) {
	file, _, _, err := a.gh.Repositories.GetContents(ctx, owner, repo, filePath, nil)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, transportError(fmt.Sprintf("get file %s/%s:%s", owner, repo, filePath), err)
	}
	if file == nil || file.GetType() != "file" {
		return nil, nil
	}
	var content string
	if file.Content != nil {
		content = *file.Content
	}
	return &repos.Blob{Content: content, Encoding: file.GetEncoding()}, nil
}

// GetBlob fetches a git blob by its API URL, as handed out in tree listings.
// It returns nil when the blob does not exist.
func (a *Adapter) GetBlob(ctx context.Context, url string) (*repos.Blob, error) {
	req, err := a.gh.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build blob request %s: %w", url, err)
	}
	var blob gogithub.Blob
	_, err = a.gh.Do(ctx, req, &blob)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, transportError("get blob "+url, err)
	}
	return &repos.Blob{Content: blob.GetContent(), Encoding: blob.GetEncoding()}, nil
}

// ListWebhooks returns one page of hooks. A missing repository yields an
// empty page.
func (a *Adapter) ListWebhooks(ctx context.Context, owner, repo string, page, perPage int) ([]repos.Webhook, error) {
	hooks, _, err := a.gh.Repositories.ListHooks(ctx, owner, repo, &gogithub.ListOptions{
		Page:    page,
		PerPage: min(perPage, MaxPerPage),
	})
	if isNotFound(err) {
		return []repos.Webhook{}, nil
	}
	if err != nil {
		return nil, transportError(fmt.Sprintf("list hooks %s/%s page %d", owner, repo, page), err)
	}
	out := make([]repos.Webhook, 0, len(hooks))
	for _, h := range hooks {
		out = append(out, repos.Webhook{
			ID:     h.GetID(),
			Name:   h.GetName(),
			Type:   h.GetType(),
			Events: h.Events,
			Active: h.GetActive(),
		})
	}
	return out, nil
}

// Factory builds an Adapter per caller credential.
type Factory struct {
	fallback *gogithub.Client
	baseURL  string
}

// NewFactory creates a Factory. fallback serves callers that supply no token;
// baseURL is used for per-token clients ("" for api.github.com).
func NewFactory(fallback *gogithub.Client, baseURL string) *Factory {
	return &Factory{fallback: fallback, baseURL: baseURL}
}

// ForToken returns a client acting as token, or the fallback client when
// token is empty.
func (f *Factory) ForToken(token string) repos.RemoteRepoClient {
	if token == "" {
		return New(f.fallback)
	}
	return New(platformgithub.NewTokenClient(token, f.baseURL))
}

func isNotFound(err error) bool {
	var er *gogithub.ErrorResponse
	return errors.As(err, &er) && er.Response != nil && er.Response.StatusCode == http.StatusNotFound
}

func transportError(op string, err error) error {
	te := &repos.TransportError{Op: op, Message: err.Error(), Err: err}
	var er *gogithub.ErrorResponse
	if errors.As(err, &er) {
		te.Message = er.Message
		if er.Response != nil {
			te.Status = er.Response.StatusCode
		}
	}
	return te
}

func contentKind(t string) repos.NodeKind {
	switch t {
	case "file", "symlink":
		return repos.NodeFile
	case "dir":
		return repos.NodeDir
	default:
		return repos.NodeSubmodule
	}
}

func treeKind(t string) repos.NodeKind {
	switch t {
	case "blob":
		return repos.NodeFile
	case "tree":
		return repos.NodeDir
	default:
		return repos.NodeSubmodule
	}
}
