package repos

import "time"

// NodeKind distinguishes files from directories in a repository tree.
type NodeKind string

const (
	NodeFile      NodeKind = "file"
	NodeDir       NodeKind = "dir"
	NodeSubmodule NodeKind = "submodule"
)

// TreeNode is a single entry returned by a directory listing or a recursive
// tree listing. Paths from a directory listing are repository-relative; paths
// from a recursive tree listing are relative to the listed tree. Nodes are
// transient; the scanner discards them once counted.
type TreeNode struct {
	Path string
	Name string
	Kind NodeKind
	SHA  string
	URL  string // API URL of the blob or tree
}

// Blob is a file payload as delivered by the remote API, still in its
// transport encoding (usually "base64").
type Blob struct {
	Content  string
	Encoding string
}

// Webhook is a repository hook.
type Webhook struct {
	ID     int64    `json:"id"`
	Name   string   `json:"name"`
	Type   string   `json:"type"`
	Events []string `json:"events"`
	Active bool     `json:"active"`
}

// RepoSummary is one entry of the authenticated user's repository listing.
type RepoSummary struct {
	Name  string `json:"name"`
	Owner string `json:"owner"`
	Size  int    `json:"size"`
}

// RepoMetadata is the subset of repository metadata the full view exposes.
type RepoMetadata struct {
	Name       string
	Owner      string
	Size       int
	Visibility string
	IsPrivate  bool
}

// FullRepository is the composite view produced by one assembly.
type FullRepository struct {
	Name              string    `json:"name"`
	Owner             string    `json:"owner"`
	Size              int       `json:"size"`
	Visibility        string    `json:"visibility"`
	IsPrivate         bool      `json:"isPrivate"`
	FilesCount        int       `json:"filesCount"`
	ConfigFilePath    *string   `json:"configFilePath"`
	ConfigFileContent *string   `json:"configFileContent"`
	ConfigFileValid   *bool     `json:"configFileValid"`
	ActiveWebhooks    []Webhook `json:"activeWebhooks"`
}

// BuildStatus is the lifecycle state of an asynchronous build.
type BuildStatus string

const (
	BuildPending   BuildStatus = "pending"
	BuildSucceeded BuildStatus = "succeeded"
	BuildFailed    BuildStatus = "failed"
	BuildTimedOut  BuildStatus = "timed_out"
)

// Build tracks an asynchronous full-repository assembly. Its ID is the worker
// pool correlation id.
type Build struct {
	ID          string          `json:"id"`
	Owner       string          `json:"owner"`
	Repo        string          `json:"repo"`
	Status      BuildStatus     `json:"status"`
	Result      *FullRepository `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	SubmittedAt time.Time       `json:"submittedAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// BuildEvent is the audit record written when an assembly reaches a terminal
// state.
type BuildEvent struct {
	BuildID    string
	Owner      string
	Repo       string
	Status     BuildStatus
	DurationMs int64
	FilesCount int
	Webhooks   int
	Error      string
}
