// Package validation checks inbound requests against the embedded OpenAPI
// document before they reach a handler.
package validation

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"
)

type options struct {
	skip []string
}

// Option configures the middleware.
type Option func(*options)

// SkipPrefixes bypasses validation for request paths with any of the given
// prefixes.
func SkipPrefixes(prefixes ...string) Option {
	return func(o *options) { o.skip = append(o.skip, prefixes...) }
}

// New builds a Gin middleware that validates path parameters, query
// parameters and bodies against spec. Routes absent from spec pass through.
// Rejections are answered with 400 and an {"error": ...} body.
func New(spec []byte, opts ...Option) (gin.HandlerFunc, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(spec)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build openapi router: %w", err)
	}

	return func(c *gin.Context) {
		for _, p := range o.skip {
			if strings.HasPrefix(c.Request.URL.Path, p) {
				c.Next()
				return
			}
		}

		route, pathParams, err := router.FindRoute(c.Request)
		if err != nil {
			// Not part of the documented surface.
			c.Next()
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			},
		}
		if err := openapi3filter.ValidateRequest(c.Request.Context(), input); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": describe(err)})
			return
		}
		c.Next()
	}, nil
}

// describe shortens kin-openapi's multi-line errors to their first line and
// names the offending parameter when there is one.
func describe(err error) string {
	var re *openapi3filter.RequestError
	if errors.As(err, &re) && re.Parameter != nil {
		return fmt.Sprintf("invalid %s parameter %q: %s", re.Parameter.In, re.Parameter.Name, firstLine(re.Err))
	}
	return firstLine(err)
}

func firstLine(err error) string {
	if err == nil {
		return "invalid request"
	}
	msg, _, _ := strings.Cut(err.Error(), "\n")
	return msg
}
