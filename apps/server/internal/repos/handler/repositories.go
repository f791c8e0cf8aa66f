package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tilsley/repolens/apps/server/internal/repos"
	"github.com/tilsley/repolens/apps/server/internal/workerpool"
)

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	pending, inFlight := h.svc.PoolStats()
	c.JSON(http.StatusOK, gin.H{"status": "ok", "pending": pending, "inFlight": inFlight})
}

// ListRepositories handles GET /repositories?page=N.
func (h *Handler) ListRepositories(c *gin.Context) {
	page := 1
	if v := c.Query("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a positive integer"})
			return
		}
		page = n
	}

	list, err := h.svc.ListRepositories(c.Request.Context(), bearerToken(c), page)
	if err != nil {
		h.writeError(c, "failed to list repositories", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// FullRepository handles GET /repositories/:owner/:repo/full and waits for
// the pooled build to settle.
func (h *Handler) FullRepository(c *gin.Context) {
	owner, repo := c.Param("owner"), c.Param("repo")

	full, err := h.svc.FullRepository(c.Request.Context(), bearerToken(c), owner, repo)
	if err != nil {
		h.writeError(c, "failed to build repository", err, "owner", owner, "repo", repo)
		return
	}
	c.JSON(http.StatusOK, full)
}

// SubmitBuild handles POST /repositories/:owner/:repo/builds.
func (h *Handler) SubmitBuild(c *gin.Context) {
	owner, repo := c.Param("owner"), c.Param("repo")

	b, err := h.svc.SubmitBuild(c.Request.Context(), bearerToken(c), owner, repo)
	if err != nil {
		h.writeError(c, "failed to submit build", err, "owner", owner, "repo", repo)
		return
	}
	c.Header("Location", "/builds/"+b.ID)
	c.JSON(http.StatusAccepted, b)
}

// GetBuild handles GET /builds/:id.
func (h *Handler) GetBuild(c *gin.Context) {
	id := c.Param("id")

	b, err := h.svc.GetBuild(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "failed to get build", err, "buildId", id)
		return
	}
	c.JSON(http.StatusOK, b)
}

// writeError maps domain errors to status codes. Only unexpected failures
// are logged at error level.
func (h *Handler) writeError(c *gin.Context, msg string, err error, attrs ...any) {
	status := statusOf(err)
	attrs = append(attrs, "status", status, "error", err)
	if status >= http.StatusInternalServerError {
		h.log.Error(msg, attrs...)
	} else {
		h.log.Info(msg, attrs...)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusOf(err error) int {
	var (
		repoNotFound  repos.RepositoryNotFoundError
		buildNotFound repos.BuildNotFoundError
		transport     *repos.TransportError
	)
	switch {
	case errors.Is(err, workerpool.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &repoNotFound), errors.As(err, &buildNotFound):
		return http.StatusNotFound
	case errors.As(err, &transport):
		if transport.Status == http.StatusUnauthorized || transport.Status == http.StatusForbidden {
			return transport.Status
		}
		return http.StatusBadGateway
	case errors.Is(err, workerpool.ErrStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// bearerToken returns the caller's credential from "Authorization: Bearer x"
// (or the GitHub-style "token x"); empty selects the server default.
func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	for _, scheme := range []string{"Bearer ", "bearer ", "token "} {
		if t, ok := strings.CutPrefix(auth, scheme); ok {
			return strings.TrimSpace(t)
		}
	}
	return ""
}
