// Command mock-github serves an in-memory subset of the GitHub REST API for
// running repolens locally without network access or credentials. Point the
// server at it with GITHUB_API_URL=http://localhost:9090/.
package main

import (
	"os"

	"github.com/gin-gonic/gin"

	"github.com/tilsley/repolens/apps/mock-github/internal/fakegithub"
	"github.com/tilsley/repolens/pkg/logging"
)

func main() {
	log := logging.New("mock-github")

	port := os.Getenv("PORT")
	if port == "" {
		port = "9090"
	}
	baseURL := os.Getenv("MOCK_GITHUB_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:" + port
	}

	s := fakegithub.NewStore()
	fakegithub.Seed(s)

	r := gin.New()
	r.Use(gin.Recovery())
	fakegithub.RegisterRoutes(r, s, baseURL, log)

	log.Info("mock github listening", "port", port, "baseURL", baseURL)
	if err := r.Run(":" + port); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}
