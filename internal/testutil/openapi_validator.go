// Package testutil provides testing utilities for integration tests.
package testutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
)

// OpenAPIValidator checks recorded round trips against api/openapi/openapi.yaml.
type OpenAPIValidator struct {
	router routers.Router
}

// Exchange is one completed round trip as seen by Client.
type Exchange struct {
	Request      *http.Request
	RequestBody  []byte
	Response     *http.Response
	ResponseBody []byte
}

// NewOpenAPIValidator loads the document at path or fails the test.
func NewOpenAPIValidator(t *testing.T, path string) *OpenAPIValidator {
	t.Helper()

	v, err := LoadOpenAPIValidator(path)
	if err != nil {
		t.Fatalf("load OpenAPI validator: %v", err)
	}
	return v
}

// LoadOpenAPIValidator is NewOpenAPIValidator for TestMain, where no
// *testing.T exists yet.
func LoadOpenAPIValidator(path string) (*OpenAPIValidator, error) {
	loader := openapi3.NewLoader()

	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if len(doc.Servers) > 0 {
		return nil, fmt.Errorf("%s: servers must be empty so routes match on full paths", path)
	}

	// legacy.NewRouter validates the document.
	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build router for %s: %w", path, err)
	}
	return &OpenAPIValidator{router: router}, nil
}

// Covers reports whether path serves a JSON body described by the document.
// Health checks and the document itself are plain text or YAML.
func Covers(path string) bool {
	return path == "/version" || strings.HasPrefix(path, "/api/v1/")
}

// Check returns every way ex departs from the document, or nil.
//
// The response is always checked. The request is checked only when the
// server accepted it (status below 400).
func (v *OpenAPIValidator) Check(ex Exchange) error {
	req := ex.Request
	if !Covers(req.URL.Path) {
		return nil
	}

	route, pathParams, err := v.router.FindRoute(req)
	if err != nil {
		return fmt.Errorf("%s %s is not documented: %w", req.Method, req.URL.Path, err)
	}

	input := &openapi3filter.RequestValidationInput{
		Request:    req,
		PathParams: pathParams,
		Route:      route,
		Options: &openapi3filter.Options{
			MultiError: true,
			// Bearer tokens are checked by the server, not by the document.
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		},
	}

	var errs []error
	status := ex.Response.StatusCode

	if status < http.StatusBadRequest {
		req.Body = io.NopCloser(bytes.NewReader(ex.RequestBody))
		if err := openapi3filter.ValidateRequest(context.Background(), input); err != nil {
			errs = append(errs, fmt.Errorf("accepted request violates the document: %w\nrequest body: %s",
				err, truncateBody(ex.RequestBody)))
		}
	}

	err = openapi3filter.ValidateResponse(context.Background(), &openapi3filter.ResponseValidationInput{
		RequestValidationInput: input,
		Status:                 status,
		Header:                 ex.Response.Header,
		Body:                   io.NopCloser(bytes.NewReader(ex.ResponseBody)),
		Options: &openapi3filter.Options{
			MultiError:            true,
			IncludeResponseStatus: true,
		},
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("status %d response violates the document: %w\nresponse body: %s",
			status, err, truncateBody(ex.ResponseBody)))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, errors.Join(errs...))
}

func truncateBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
