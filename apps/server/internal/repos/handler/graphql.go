package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/graphql-go/graphql"

	"github.com/tilsley/repolens/apps/server/internal/repos"
)

type tokenKey struct{}

// graphQLRequest is the standard POST body.
type graphQLRequest struct {
	Query         string         `json:"query" binding:"required"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

// GraphQL handles POST /graphql. Execution errors are reported in the
// response envelope with status 200.
func (h *Handler) GraphQL(c *gin.Context) {
	var req graphQLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := context.WithValue(c.Request.Context(), tokenKey{}, bearerToken(c))
	res := graphql.Do(graphql.Params{
		Schema:         h.schema,
		RequestString:  req.Query,
		OperationName:  req.OperationName,
		VariableValues: req.Variables,
		Context:        ctx,
	})
	if res.HasErrors() {
		h.log.Info("graphql request returned errors", "errors", res.Errors)
	}
	c.JSON(http.StatusOK, res)
}

var webhookType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Webhook",
	Fields: graphql.Fields{
		// Hook ids exceed the 32-bit GraphQL Int range.
		"id":     &graphql.Field{Type: graphql.Float},
		"name":   &graphql.Field{Type: graphql.String},
		"type":   &graphql.Field{Type: graphql.String},
		"events": &graphql.Field{Type: graphql.NewList(graphql.String)},
		"active": &graphql.Field{Type: graphql.Boolean},
	},
})

var fullRepositoryType = graphql.NewObject(graphql.ObjectConfig{
	Name: "FullRepository",
	Fields: graphql.Fields{
		"name":              &graphql.Field{Type: graphql.String},
		"owner":             &graphql.Field{Type: graphql.String},
		"size":              &graphql.Field{Type: graphql.Int},
		"visibility":        &graphql.Field{Type: graphql.String},
		"isPrivate":         &graphql.Field{Type: graphql.Boolean},
		"filesCount":        &graphql.Field{Type: graphql.Int},
		"configFilePath":    &graphql.Field{Type: graphql.String},
		"configFileContent": &graphql.Field{Type: graphql.String},
		"configFileValid":   &graphql.Field{Type: graphql.Boolean},
		"activeWebhooks":    &graphql.Field{Type: graphql.NewList(webhookType)},
	},
})

// NewSchema builds the query schema:
//
//	repositories(token, page): [Repository]
//	fullRepository(token, owner, repo): FullRepository
//	Repository.fullRepo(token): FullRepository
//
// A token argument overrides the request's Authorization header.
func NewSchema(svc *repos.Service) (graphql.Schema, error) {
	repositoryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Repository",
		Fields: graphql.Fields{
			"name":  &graphql.Field{Type: graphql.String},
			"owner": &graphql.Field{Type: graphql.String},
			"size":  &graphql.Field{Type: graphql.Int},
			"fullRepo": &graphql.Field{
				Type: fullRepositoryType,
				Args: graphql.FieldConfigArgument{
					"token": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					src, _ := p.Source.(map[string]any)
					owner, _ := src["owner"].(string)
					name, _ := src["name"].(string)
					full, err := svc.FullRepository(p.Context, tokenArg(p), owner, name)
					if err != nil {
						return nil, err
					}
					return fullValue(full), nil
				},
			},
		},
	})

	queryFields := graphql.Fields{
		"repositories": &graphql.Field{
			Type: graphql.NewList(repositoryType),
			Args: graphql.FieldConfigArgument{
				"token": &graphql.ArgumentConfig{Type: graphql.String},
				"page":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 1},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				page, _ := p.Args["page"].(int)
				list, err := svc.ListRepositories(p.Context, tokenArg(p), page)
				if err != nil {
					return nil, err
				}
				out := make([]map[string]any, 0, len(list))
				for _, r := range list {
					out = append(out, map[string]any{"name": r.Name, "owner": r.Owner, "size": r.Size})
				}
				return out, nil
			},
		},
		"fullRepository": &graphql.Field{
			Type: fullRepositoryType,
			Args: graphql.FieldConfigArgument{
				"token": &graphql.ArgumentConfig{Type: graphql.String},
				"owner": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				"repo":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				owner, _ := p.Args["owner"].(string)
				repo, _ := p.Args["repo"].(string)
				full, err := svc.FullRepository(p.Context, tokenArg(p), owner, repo)
				if err != nil {
					return nil, err
				}
				return fullValue(full), nil
			},
		},
	}

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{
			Name:   "Query",
			Fields: queryFields,
		}),
	})
}

func tokenArg(p graphql.ResolveParams) string {
	if t, ok := p.Args["token"].(string); ok && t != "" {
		return t
	}
	t, _ := p.Context.Value(tokenKey{}).(string)
	return t
}

func fullValue(f *repos.FullRepository) map[string]any {
	hooks := make([]map[string]any, 0, len(f.ActiveWebhooks))
	for _, w := range f.ActiveWebhooks {
		hooks = append(hooks, map[string]any{
			"id":     float64(w.ID),
			"name":   w.Name,
			"type":   w.Type,
			"events": w.Events,
			"active": w.Active,
		})
	}
	v := map[string]any{
		"name":           f.Name,
		"owner":          f.Owner,
		"size":           f.Size,
		"visibility":     f.Visibility,
		"isPrivate":      f.IsPrivate,
		"filesCount":     f.FilesCount,
		"activeWebhooks": hooks,
	}
	if f.ConfigFilePath != nil {
		v["configFilePath"] = *f.ConfigFilePath
	}
	if f.ConfigFileContent != nil {
		v["configFileContent"] = *f.ConfigFileContent
	}
	if f.ConfigFileValid != nil {
		v["configFileValid"] = *f.ConfigFileValid
	}
	return v
}
