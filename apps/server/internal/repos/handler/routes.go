// Package handler exposes the repos.Service over REST and GraphQL.
package handler

import (
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/graphql-go/graphql"

	"github.com/tilsley/repolens/apps/server/internal/repos"
)

// Handler translates HTTP requests into calls on the repos.Service.
type Handler struct {
	svc    *repos.Service
	log    *slog.Logger
	schema graphql.Schema
}

// RegisterRoutes mounts the repolens API onto the given Gin engine.
func RegisterRoutes(r *gin.Engine, svc *repos.Service, log *slog.Logger) error {
	schema, err := NewSchema(svc)
	if err != nil {
		return fmt.Errorf("build graphql schema: %w", err)
	}
	h := &Handler{svc: svc, log: log, schema: schema}

	r.GET("/health", h.Health)

	// Repositories
	r.GET("/repositories", h.ListRepositories)
	r.GET("/repositories/:owner/:repo/full", h.FullRepository)
	r.POST("/repositories/:owner/:repo/builds", h.SubmitBuild)

	// Asynchronous builds
	r.GET("/builds/:id", h.GetBuild)

	r.POST("/graphql", h.GraphQL)
	return nil
}
