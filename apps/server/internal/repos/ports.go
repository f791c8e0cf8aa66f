package repos

import (
	"context"

	"github.com/tilsley/repolens/apps/server/internal/workerpool"
)

// RemoteRepoClient issues the individual calls against the source-control API.
// Not-found conditions come back as nil or empty results; every other failure
// is returned as an error, typically a *TransportError.
type RemoteRepoClient interface {
	ListRepositories(ctx context.Context, page int) ([]RepoSummary, error)
	GetMetadata(ctx context.Context, owner, repo string) (*RepoMetadata, error)
	GetContents(ctx context.Context, owner, repo, path string) ([]TreeNode, error)
	GetTreeRecursive(ctx context.Context, owner, repo, sha string) ([]TreeNode, error)
	GetFileContent(ctx context.Context, owner, repo, path string) (*Blob, error)
	GetBlob(ctx context.Context, url string) (*Blob, error)
	ListWebhooks(ctx context.Context, owner, repo string, page, perPage int) ([]Webhook, error)
}

// ClientFactory hands out a client acting with the given credential. An empty
// token selects the server's default credential.
type ClientFactory interface {
	ForToken(token string) RemoteRepoClient
}

// Assembler builds the full view of a single repository.
type Assembler interface {
	Assemble(ctx context.Context, client RemoteRepoClient, owner, repo string) (*FullRepository, error)
}

// BuildPool bounds how many assemblies run at once.
type BuildPool interface {
	Submit(ctx context.Context, work workerpool.Work[*FullRepository]) (*workerpool.Future[*FullRepository], error)
	Pending() int
	InFlight() int
}

// BuildStore keeps asynchronous build records for status polling.
type BuildStore interface {
	Save(ctx context.Context, b Build) error
	Get(ctx context.Context, id string) (*Build, error)
}

// EventStore records terminal build outcomes.
type EventStore interface {
	RecordBuild(ctx context.Context, e BuildEvent) error
}
