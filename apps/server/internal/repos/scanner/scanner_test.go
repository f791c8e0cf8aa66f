package scanner_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilsley/repolens/apps/server/internal/repos"
	githubadapter "github.com/tilsley/repolens/apps/server/internal/repos/adapters/github"
	"github.com/tilsley/repolens/apps/server/internal/repos/scanner"
)

var strategies = []scanner.Strategy{scanner.BreadthFirst, scanner.Recursive}

func seed(files map[string]string, order ...string) *githubadapter.InMem {
	m := githubadapter.NewInMem()
	for _, p := range order {
		m.SetFile("acme", "api", p, files[p])
	}
	return m
}

// ─── Counting and matching ───────────────────────────────────────────────────

func TestScan_CountsFilesAndFindsConfig(t *testing.T) {
	files := map[string]string{
		"a.txt":         "hello",
		"config.yml":    "k: v\n",
		"sub/one.txt":   "1",
		"sub/two.txt":   "2",
		"sub/other.yml": "other: true\n",
	}
	for _, st := range strategies {
		t.Run(string(st), func(t *testing.T) {
			m := seed(files, "a.txt", "config.yml", "sub/one.txt", "sub/two.txt", "sub/other.yml")

			res, err := scanner.New(scanner.WithStrategy(st)).Scan(context.Background(), m, "acme", "api")

			require.NoError(t, err)
			assert.Equal(t, 5, res.FilesCount)
			require.NotNil(t, res.ConfigFile)
			assert.Equal(t, "config.yml", res.ConfigFile.Path)
			require.NotNil(t, res.ConfigContent)
			assert.Equal(t, "k: v\n", *res.ConfigContent)
			require.NotNil(t, res.ConfigValid)
			assert.True(t, *res.ConfigValid)
		})
	}
}

func TestScan_EarliestDiscoveredNotLexicographic(t *testing.T) {
	files := map[string]string{
		"zeta.yml":  "z: 1\n",
		"alpha.yml": "a: 1\n",
	}
	for _, st := range strategies {
		t.Run(string(st), func(t *testing.T) {
			m := seed(files, "zeta.yml", "alpha.yml")

			res, err := scanner.New(scanner.WithStrategy(st)).Scan(context.Background(), m, "acme", "api")

			require.NoError(t, err)
			require.NotNil(t, res.ConfigFile)
			assert.Equal(t, "zeta.yml", res.ConfigFile.Path)
		})
	}
}

func TestScan_RootFilesBeatNestedFiles(t *testing.T) {
	files := map[string]string{
		"deploy/app.yml": "nested: true\n",
		"README.md":      "#",
		"root.yml":       "root: true\n",
	}
	for _, st := range strategies {
		t.Run(string(st), func(t *testing.T) {
			m := seed(files, "deploy/app.yml", "README.md", "root.yml")

			res, err := scanner.New(scanner.WithStrategy(st)).Scan(context.Background(), m, "acme", "api")

			require.NoError(t, err)
			assert.Equal(t, 3, res.FilesCount)
			assert.Equal(t, "root.yml", res.ConfigFile.Path)
			assert.Equal(t, "root: true\n", *res.ConfigContent)
		})
	}
}

func TestScan_NestedMatchUsesFullPath(t *testing.T) {
	m := seed(map[string]string{"deploy/charts/values.yml": "replicas: 2\n", "main.go": "package main"},
		"main.go", "deploy/charts/values.yml")

	for _, st := range strategies {
		t.Run(string(st), func(t *testing.T) {
			res, err := scanner.New(scanner.WithStrategy(st)).Scan(context.Background(), m, "acme", "api")

			require.NoError(t, err)
			require.NotNil(t, res.ConfigFile)
			assert.Equal(t, "deploy/charts/values.yml", res.ConfigFile.Path)
			assert.Equal(t, "replicas: 2\n", *res.ConfigContent)
		})
	}
}

func TestScan_NoConfigFile(t *testing.T) {
	m := seed(map[string]string{"a.txt": "a", "b/c.json": "{}"}, "a.txt", "b/c.json")

	res, err := scanner.New().Scan(context.Background(), m, "acme", "api")

	require.NoError(t, err)
	assert.Equal(t, 2, res.FilesCount)
	assert.Nil(t, res.ConfigFile)
	assert.Nil(t, res.ConfigContent)
	assert.Nil(t, res.ConfigValid)
}

func TestScan_MissingRootIsEmpty(t *testing.T) {
	m := githubadapter.NewInMem()

	res, err := scanner.New().Scan(context.Background(), m, "acme", "ghost")

	require.NoError(t, err)
	assert.Equal(t, 0, res.FilesCount)
	assert.Nil(t, res.ConfigContent)
}

func TestScan_InvalidYAMLIsReported(t *testing.T) {
	m := seed(map[string]string{"broken.yml": "key: [unterminated\n"}, "broken.yml")

	res, err := scanner.New().Scan(context.Background(), m, "acme", "api")

	require.NoError(t, err)
	require.NotNil(t, res.ConfigValid)
	assert.False(t, *res.ConfigValid)
	assert.Equal(t, "key: [unterminated\n", *res.ConfigContent)
}

func TestScan_CustomSuffixes(t *testing.T) {
	m := seed(map[string]string{"a.yml": "a: 1\n", "b.YAML": "b: 1\n"}, "a.yml", "b.YAML")

	res, err := scanner.New(scanner.WithConfigSuffixes(".yaml")).Scan(context.Background(), m, "acme", "api")

	require.NoError(t, err)
	assert.Equal(t, "b.YAML", res.ConfigFile.Path)
}

// ─── Strategy equivalence ────────────────────────────────────────────────────

func TestScan_StrategiesAgreeOnCount(t *testing.T) {
	trees := [][]string{
		{"only.txt"},
		{"a/b/c/d/e/deep.txt"},
		{"x.txt", "d1/a", "d1/b", "d2/c", "d2/sub/d", "d2/sub/e", "d3/f/g/h"},
	}
	for i, paths := range trees {
		t.Run(fmt.Sprintf("tree%d", i), func(t *testing.T) {
			files := make(map[string]string, len(paths))
			for _, p := range paths {
				files[p] = p
			}
			m := seed(files, paths...)

			bfs, err := scanner.New(scanner.WithStrategy(scanner.BreadthFirst)).Scan(context.Background(), m, "acme", "api")
			require.NoError(t, err)
			rec, err := scanner.New(scanner.WithStrategy(scanner.Recursive)).Scan(context.Background(), m, "acme", "api")
			require.NoError(t, err)

			assert.Equal(t, len(paths), bfs.FilesCount)
			assert.Equal(t, bfs.FilesCount, rec.FilesCount)
		})
	}
}

func TestScan_RecursiveFetchesTreeOncePerTopLevelDir(t *testing.T) {
	m := seed(map[string]string{"a/1": "", "a/b/2": "", "c/3": ""}, "a/1", "a/b/2", "c/3")

	_, err := scanner.New(scanner.WithStrategy(scanner.Recursive)).Scan(context.Background(), m, "acme", "api")

	require.NoError(t, err)
	assert.Equal(t, 1, m.Calls("GetContents"))
	assert.Equal(t, 2, m.Calls("GetTreeRecursive"))
}

func TestScan_RecursiveMatchFetchedAsBlob(t *testing.T) {
	m := seed(map[string]string{"deploy/app.yml": "a: 1\n"}, "deploy/app.yml")

	_, err := scanner.New(scanner.WithStrategy(scanner.Recursive)).Scan(context.Background(), m, "acme", "api")

	require.NoError(t, err)
	assert.Equal(t, 1, m.Calls("GetBlob"))
	assert.Equal(t, 0, m.Calls("GetFileContent"))
}

// ─── Concurrency and failures ────────────────────────────────────────────────

func TestScan_BreadthFirstBoundsConcurrency(t *testing.T) {
	var paths []string
	files := map[string]string{}
	for i := range 12 {
		p := fmt.Sprintf("dir%02d/file.txt", i)
		paths = append(paths, p)
		files[p] = "x"
	}
	m := seed(files, paths...)
	m.SetLatency(5 * time.Millisecond)

	res, err := scanner.New(scanner.WithBatchSize(3)).Scan(context.Background(), m, "acme", "api")

	require.NoError(t, err)
	assert.Equal(t, 12, res.FilesCount)
	assert.LessOrEqual(t, m.PeakConcurrency("GetContents"), 3)
	assert.Equal(t, 13, m.Calls("GetContents"))
}

func TestScan_ListingFailurePropagates(t *testing.T) {
	boom := errors.New("rate limited")
	for st, op := range map[scanner.Strategy]string{
		scanner.BreadthFirst: "GetContents",
		scanner.Recursive:    "GetTreeRecursive",
	} {
		t.Run(string(st), func(t *testing.T) {
			m := seed(map[string]string{"a/b.txt": "x"}, "a/b.txt")
			m.FailOn(op, boom)

			_, err := scanner.New(scanner.WithStrategy(st)).Scan(context.Background(), m, "acme", "api")

			var te *repos.TransportError
			require.ErrorAs(t, err, &te)
			assert.ErrorIs(t, err, boom)
		})
	}
}

func TestScan_ContentFetchFailurePropagates(t *testing.T) {
	m := seed(map[string]string{"app.yml": "a: 1\n"}, "app.yml")
	m.FailOn("GetFileContent", errors.New("boom"))

	_, err := scanner.New().Scan(context.Background(), m, "acme", "api")

	assert.Error(t, err)
}

func TestParseStrategy(t *testing.T) {
	for in, want := range map[string]scanner.Strategy{
		"":              scanner.BreadthFirst,
		"bfs":           scanner.BreadthFirst,
		"breadth-first": scanner.BreadthFirst,
		"RECURSIVE":     scanner.Recursive,
	} {
		got, err := scanner.ParseStrategy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := scanner.ParseStrategy("dfs")
	assert.Error(t, err)
}
