package fakegithub

import "fmt"

const owner = "acme"

type envCfg struct {
	replicas string
	tag      string
}

var appEnvs = map[string]map[string]envCfg{
	"billing-api": {
		"dev":     {replicas: "1", tag: "dev-latest"},
		"staging": {replicas: "2", tag: "v1.2.0"},
		"prod":    {replicas: "3", tag: "v1.1.0"},
	},
	"user-service": {
		"dev":     {replicas: "1", tag: "dev-latest"},
		"staging": {replicas: "2", tag: "v2.0.0-rc1"},
		"prod":    {replicas: "3", tag: "v1.9.0"},
	},
}

// Seed populates s with a gitops repository, one repository per app and a
// repository with enough hooks to need more than one page.
func Seed(s *Store) {
	s.AddRepo(owner, "gitops", "internal")
	for _, app := range []string{"billing-api", "user-service"} {
		seedGitopsApp(s, app)
		seedAppRepo(s, app)
	}
	s.SetFile(owner, "gitops", "README.md", "# gitops\n")
	s.AddHook(owner, "gitops", "web", []string{"push"}, true)

	s.AddRepo(owner, "platform-events", "private")
	s.SetFile(owner, "platform-events", "README.md", "# platform-events\n")
	for i := 0; i < 130; i++ {
		s.AddHook(owner, "platform-events", "web", []string{"push", "pull_request"}, i%10 != 0)
	}

	s.AddRepo(owner, "empty", "public")
}

func seedGitopsApp(s *Store, app string) {
	s.SetFile(owner, "gitops", fmt.Sprintf("apps/%s/base/application.yaml", app), baseApplication(app))
	s.SetFile(owner, "gitops", fmt.Sprintf("apps/%s/base/service-monitor.yaml", app), serviceMonitor(app))
	for env, cfg := range appEnvs[app] {
		s.SetFile(owner, "gitops", fmt.Sprintf("apps/%s/overlays/%s/values.yml", app, env),
			envValues(app, env, cfg.replicas, cfg.tag))
	}
}

func seedAppRepo(s *Store, app string) {
	s.AddRepo(owner, app, "private")
	s.SetFile(owner, app, ".github/workflows/ci.yml", ciWorkflow())
	s.SetFile(owner, app, "Makefile", "build:\n\tgo build ./...\n")
	s.SetFile(owner, app, "deploy/config.yml", fmt.Sprintf("service: %s\nport: 8080\n", app))
	s.AddHook(owner, app, "web", []string{"push"}, true)
}

func baseApplication(app string) string {
	return fmt.Sprintf(`apiVersion: argoproj.io/v1alpha1
kind: Application
metadata:
  name: %s
  namespace: argocd
spec:
  project: default
  source:
    repoURL: https://charts.example.com/generic
    chart: generic-app
    targetRevision: 1.0.0
    helm:
      values: |
        nameOverride: %s
        image:
          repository: acme/%s
        serviceMonitor:
          enabled: true
  destination:
    server: https://kubernetes.default.svc
  syncPolicy:
    automated:
      prune: true
      selfHeal: true
`, app, app, app)
}

func envValues(app, env, replicas, tag string) string {
	return fmt.Sprintf(`nameOverride: %s
namespace: %s
replicaCount: %s
image:
  repository: acme/%s
  tag: %s
serviceMonitor:
  enabled: true
`, app, env, replicas, app, tag)
}

func serviceMonitor(app string) string {
	return fmt.Sprintf(`apiVersion: monitoring.coreos.com/v1
kind: ServiceMonitor
metadata:
  name: %s
  namespace: monitoring
spec:
  selector:
    matchLabels:
      app: %s
  endpoints:
    - port: metrics
      interval: 30s
`, app, app)
}

func ciWorkflow() string {
	return `name: CI
on:
  push:
    branches: [main]
  pull_request:
    branches: [main]
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
      - name: Build
        run: make build
      - name: Test
        run: make test
`
}
