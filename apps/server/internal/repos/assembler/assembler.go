// Package assembler builds the composite view of one repository from three
// independent lookups: metadata, a content scan and the webhook listing.
package assembler

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tilsley/repolens/apps/server/internal/repos"
	"github.com/tilsley/repolens/apps/server/internal/repos/scanner"
)

// DefaultPageSize is the webhook page size; it is the API maximum.
const DefaultPageSize = 100

// Compile-time check: *Assembler implements repos.Assembler.
var _ repos.Assembler = (*Assembler)(nil)

// Scanner walks a repository's content tree.
type Scanner interface {
	Scan(ctx context.Context, client scanner.ContentReader, owner, repo string) (*scanner.Result, error)
}

// Assembler runs the three lookups concurrently. If any of them fails the
// others are cancelled and no partial result is returned.
type Assembler struct {
	scan     Scanner
	pageSize int
	tracer   trace.Tracer
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithPageSize sets the webhook page size. Values outside 1..100 are ignored.
func WithPageSize(n int) Option {
	return func(a *Assembler) {
		if n > 0 && n <= DefaultPageSize {
			a.pageSize = n
		}
	}
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(a *Assembler) { a.tracer = t }
}

// New creates an Assembler.
func New(scan Scanner, opts ...Option) *Assembler {
	a := &Assembler{
		scan:     scan,
		pageSize: DefaultPageSize,
		tracer:   otel.Tracer("github.com/tilsley/repolens/assembler"),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Assemble fetches and combines everything known about owner/repo.
func (a *Assembler) Assemble(ctx context.Context, client repos.RemoteRepoClient, owner, repo string) (*repos.FullRepository, error) {
	ctx, span := a.tracer.Start(ctx, "assembler.Assemble",
		trace.WithAttributes(
			attribute.String("owner", owner),
			attribute.String("repo", repo),
		))
	defer span.End()

	var (
		meta  *repos.RepoMetadata
		res   *scanner.Result
		hooks []repos.Webhook
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		meta, err = a.metadata(gctx, client, owner, repo)
		return err
	})
	g.Go(func() error {
		var err error
		res, err = a.content(gctx, client, owner, repo)
		return err
	})
	g.Go(func() error {
		var err error
		hooks, err = a.webhooks(gctx, client, owner, repo)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	full := &repos.FullRepository{
		Name:              meta.Name,
		Owner:             meta.Owner,
		Size:              meta.Size,
		Visibility:        meta.Visibility,
		IsPrivate:         meta.IsPrivate,
		FilesCount:        res.FilesCount,
		ConfigFileContent: res.ConfigContent,
		ConfigFileValid:   res.ConfigValid,
		ActiveWebhooks:    hooks,
	}
	if res.ConfigFile != nil {
		p := res.ConfigFile.Path
		full.ConfigFilePath = &p
	}
	span.SetAttributes(
		attribute.Int("files_count", full.FilesCount),
		attribute.Int("webhooks", len(hooks)),
	)
	return full, nil
}

func (a *Assembler) metadata(ctx context.Context, client repos.RemoteRepoClient, owner, repo string) (*repos.RepoMetadata, error) {
	ctx, span := a.tracer.Start(ctx, "assembler.metadata")
	defer span.End()

	meta, err := client.GetMetadata(ctx, owner, repo)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("metadata for %s/%s: %w", owner, repo, err)
	}
	if meta == nil {
		return nil, repos.RepositoryNotFoundError{Owner: owner, Repo: repo}
	}
	return meta, nil
}

func (a *Assembler) content(ctx context.Context, client repos.RemoteRepoClient, owner, repo string) (*scanner.Result, error) {
	ctx, span := a.tracer.Start(ctx, "assembler.scan")
	defer span.End()

	res, err := a.scan.Scan(ctx, client, owner, repo)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("scan %s/%s: %w", owner, repo, err)
	}
	span.SetAttributes(attribute.Int("files_count", res.FilesCount))
	return res, nil
}

// webhooks pages through the hook listing. A full page means there may be
// more; a short (or empty) page ends the listing.
func (a *Assembler) webhooks(ctx context.Context, client repos.RemoteRepoClient, owner, repo string) ([]repos.Webhook, error) {
	ctx, span := a.tracer.Start(ctx, "assembler.webhooks")
	defer span.End()

	all := []repos.Webhook{}
	for page := 1; ; page++ {
		hooks, err := client.ListWebhooks(ctx, owner, repo, page, a.pageSize)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("webhooks for %s/%s page %d: %w", owner, repo, page, err)
		}
		all = append(all, hooks...)
		if len(hooks) < a.pageSize {
			span.SetAttributes(attribute.Int("pages", page))
			return all, nil
		}
	}
}
