package fakegithub

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const maxPerPage = 100

// RegisterRoutes mounts the emulated API. baseURL is the externally visible
// address used in the "url" fields of responses.
func RegisterRoutes(r *gin.Engine, s *Store, baseURL string, log *slog.Logger) {
	h := &server{store: s, base: strings.TrimSuffix(baseURL, "/")}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/user/repos", h.listRepos)
	r.GET("/repos/:owner/:repo", h.getRepo)
	r.GET("/repos/:owner/:repo/contents/*path", h.getContents)
	r.GET("/repos/:owner/:repo/git/trees/:sha", h.getTree)
	r.GET("/repos/:owner/:repo/git/blobs/:sha", h.getBlob)
	r.GET("/repos/:owner/:repo/hooks", h.listHooks)
	log.Debug("github emulator routes registered", "baseURL", h.base)
}

type server struct {
	store *Store
	base  string
}

func (h *server) listRepos(c *gin.Context) {
	page, perPage := paging(c)
	all := h.store.list()
	out := make([]gin.H, 0, perPage)
	for _, r := range window(all, page, perPage) {
		out = append(out, h.repoJSON(r))
	}
	c.JSON(http.StatusOK, out)
}

func (h *server) getRepo(c *gin.Context) {
	r, ok := h.store.lookup(c.Param("owner"), c.Param("repo"))
	if !ok {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, h.repoJSON(r))
}

// getContents returns a file object for a file path and an entry array for a
// directory, matching the real endpoint.
func (h *server) getContents(c *gin.Context) {
	r, ok := h.store.lookup(c.Param("owner"), c.Param("repo"))
	if !ok {
		notFound(c)
		return
	}
	path := strings.Trim(c.Param("path"), "/")

	if content, ok := h.store.file(r, path); ok {
		c.JSON(http.StatusOK, gin.H{
			"type":     "file",
			"name":     path[strings.LastIndex(path, "/")+1:],
			"path":     path,
			"sha":      h.store.sha(r, path, false),
			"size":     len(content),
			"encoding": "base64",
			"content":  base64.StdEncoding.EncodeToString([]byte(content)),
		})
		return
	}

	entries := h.store.children(r, path, false)
	if len(entries) == 0 && path != "" {
		notFound(c)
		return
	}
	out := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		out = append(out, h.contentJSON(r, e))
	}
	c.JSON(http.StatusOK, out)
}

func (h *server) getTree(c *gin.Context) {
	r, ok := h.store.lookup(c.Param("owner"), c.Param("repo"))
	if !ok {
		notFound(c)
		return
	}
	obj, ok := h.store.object(c.Param("sha"))
	if !ok || !obj.isDir || obj.repo != r.owner+"/"+r.name {
		notFound(c)
		return
	}

	recursive := c.Query("recursive") != ""
	entries := h.store.children(r, obj.path, recursive)
	tree := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		rel := strings.TrimPrefix(e.path, obj.path+"/")
		kind, mode := "blob", "100644"
		if e.isDir {
			kind, mode = "tree", "040000"
		}
		sha := h.store.sha(r, e.path, e.isDir)
		tree = append(tree, gin.H{
			"path": rel,
			"mode": mode,
			"type": kind,
			"sha":  sha,
			"url":  h.objectURL(r, kind, sha),
		})
	}
	c.JSON(http.StatusOK, gin.H{"sha": c.Param("sha"), "tree": tree, "truncated": false})
}

func (h *server) getBlob(c *gin.Context) {
	r, ok := h.store.lookup(c.Param("owner"), c.Param("repo"))
	if !ok {
		notFound(c)
		return
	}
	obj, ok := h.store.object(c.Param("sha"))
	if !ok || obj.isDir {
		notFound(c)
		return
	}
	content, ok := h.store.file(r, obj.path)
	if !ok {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sha":      c.Param("sha"),
		"size":     len(content),
		"encoding": "base64",
		"content":  base64.StdEncoding.EncodeToString([]byte(content)),
	})
}

func (h *server) listHooks(c *gin.Context) {
	r, ok := h.store.lookup(c.Param("owner"), c.Param("repo"))
	if !ok {
		notFound(c)
		return
	}
	page, perPage := paging(c)
	c.JSON(http.StatusOK, window(h.store.hooks(r), page, perPage))
}

func (h *server) repoJSON(r *repoData) gin.H {
	return gin.H{
		"name":       r.name,
		"full_name":  r.owner + "/" + r.name,
		"owner":      gin.H{"login": r.owner},
		"size":       len(r.files),
		"visibility": r.visibility,
		"private":    r.visibility != "public",
	}
}

func (h *server) contentJSON(r *repoData, e entry) gin.H {
	kind, objKind := "file", "blobs"
	if e.isDir {
		kind, objKind = "dir", "trees"
	}
	sha := h.store.sha(r, e.path, e.isDir)
	return gin.H{
		"type": kind,
		"name": e.name,
		"path": e.path,
		"sha":  sha,
		"url":  fmt.Sprintf("%s/repos/%s/%s/git/%s/%s", h.base, r.owner, r.name, objKind, sha),
	}
}

func (h *server) objectURL(r *repoData, kind, sha string) string {
	return fmt.Sprintf("%s/repos/%s/%s/git/%ss/%s", h.base, r.owner, r.name, kind, sha)
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"message":           "Not Found",
		"documentation_url": "https://docs.github.com/rest",
	})
}

func paging(c *gin.Context) (page, perPage int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "30"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > maxPerPage {
		perPage = min(max(perPage, 1), maxPerPage)
	}
	return page, perPage
}

func window[T any](items []T, page, perPage int) []T {
	start := (page - 1) * perPage
	if start >= len(items) {
		return []T{}
	}
	return items[start:min(start+perPage, len(items))]
}
