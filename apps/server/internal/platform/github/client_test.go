package github_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	platformgithub "github.com/tilsley/repolens/apps/server/internal/platform/github"
)

func TestNewTokenClient_SendsTokenAndAPIVersion(t *testing.T) {
	var gotAuth, gotVersion, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotVersion = r.Header.Get(platformgithub.APIVersionHeader)
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"billing-api","owner":{"login":"acme"}}`))
	}))
	defer srv.Close()

	c := platformgithub.NewTokenClient("s3cret", srv.URL)
	r, _, err := c.Repositories.Get(context.Background(), "acme", "billing-api")

	require.NoError(t, err)
	assert.Equal(t, "billing-api", r.GetName())
	assert.Equal(t, "Bearer s3cret", gotAuth)
	assert.Equal(t, platformgithub.APIVersion, gotVersion)
	assert.Equal(t, "/repos/acme/billing-api", gotPath)
}

func TestNewTokenClient_AnonymousWithoutToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := platformgithub.NewTokenClient("", srv.URL)
	_, _, err := c.Repositories.Get(context.Background(), "acme", "billing-api")

	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestVersionTransport_KeepsExplicitVersion(t *testing.T) {
	var gotVersion string
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		gotVersion = r.Header.Get(platformgithub.APIVersionHeader)
	}))
	defer srv.Close()

	client := &http.Client{Transport: platformgithub.NewVersionTransport(nil)}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, http.NoBody)
	require.NoError(t, err)
	req.Header.Set(platformgithub.APIVersionHeader, "2026-03-10")

	resp, err := client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "2026-03-10", gotVersion)
}

func TestNewAppClient_MissingKeyFails(t *testing.T) {
	_, err := platformgithub.NewAppClient(1, 2, "/nonexistent/key.pem", "")

	assert.Error(t, err)
}
