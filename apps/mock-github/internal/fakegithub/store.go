// Package fakegithub serves the slice of the GitHub REST API that repolens
// reads: repository listing and metadata, contents, git trees and blobs, and
// hooks. Content lives in memory.
package fakegithub

import (
	"crypto/sha1" //nolint:gosec // object ids, not security
	"encoding/hex"
	"sort"
	"strings"
	"sync"
)

// Hook is a repository webhook in GitHub's response shape.
type Hook struct {
	ID     int64    `json:"id"`
	Name   string   `json:"name"`
	Type   string   `json:"type"`
	Events []string `json:"events"`
	Active bool     `json:"active"`
}

type repoData struct {
	owner      string
	name       string
	visibility string
	files      map[string]string // path -> content
	hooks      []Hook
}

// entry is a node below some directory.
type entry struct {
	path  string // repository-relative
	name  string
	isDir bool
}

// Store holds every seeded repository. Object ids are derived from the
// repository and path, so the same path always maps to the same sha.
type Store struct {
	mu      sync.RWMutex
	repos   map[string]*repoData // "owner/repo"
	order   []string
	objects map[string]object // sha -> object
	nextID  int64
}

type object struct {
	repo  string
	path  string
	isDir bool
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		repos:   make(map[string]*repoData),
		objects: make(map[string]object),
		nextID:  100000,
	}
}

// AddRepo registers an empty repository.
func (s *Store) AddRepo(owner, name, visibility string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repo(owner, name).visibility = visibility
}

// SetFile writes a file on the default branch.
func (s *Store) SetFile(owner, name, path, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repo(owner, name).files[path] = content
}

// AddHook appends a webhook with a fresh id.
func (s *Store) AddHook(owner, name, hookName string, events []string, active bool) Hook {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	h := Hook{ID: s.nextID, Name: hookName, Type: "Repository", Events: events, Active: active}
	r := s.repo(owner, name)
	r.hooks = append(r.hooks, h)
	return h
}

func (s *Store) repo(owner, name string) *repoData {
	key := owner + "/" + name
	r, ok := s.repos[key]
	if !ok {
		r = &repoData{owner: owner, name: name, visibility: "public", files: make(map[string]string)}
		s.repos[key] = r
		s.order = append(s.order, key)
	}
	return r
}

func (s *Store) lookup(owner, name string) (*repoData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.repos[owner+"/"+name]
	return r, ok
}

func (s *Store) list() []*repoData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*repoData, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.repos[key])
	}
	return out
}

// sha returns the object id for path and remembers what it names.
func (s *Store) sha(r *repoData, path string, isDir bool) string {
	sum := sha1.Sum([]byte(r.owner + "/" + r.name + ":" + path)) //nolint:gosec
	id := hex.EncodeToString(sum[:])
	s.mu.Lock()
	s.objects[id] = object{repo: r.owner + "/" + r.name, path: path, isDir: isDir}
	s.mu.Unlock()
	return id
}

func (s *Store) object(sha string) (object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[sha]
	return o, ok
}

func (s *Store) file(r *repoData, path string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := r.files[path]
	return c, ok
}

func (s *Store) hooks(r *repoData) []Hook {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Hook(nil), r.hooks...)
}

// children lists the entries under dir sorted by name, as GitHub does. With
// recursive set every descendant is returned, directories included.
func (s *Store) children(r *repoData, dir string, recursive bool) []entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}
	seen := map[string]bool{}
	var out []entry
	for p := range r.files {
		rest, ok := strings.CutPrefix(p, prefix)
		if !ok || rest == "" {
			continue
		}
		segs := strings.Split(rest, "/")
		depth := 1
		if recursive {
			depth = len(segs)
		}
		for i := 0; i < depth; i++ {
			full := prefix + strings.Join(segs[:i+1], "/")
			if seen[full] {
				continue
			}
			seen[full] = true
			out = append(out, entry{path: full, name: segs[i], isDir: i < len(segs)-1})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out
}
