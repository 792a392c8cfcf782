package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tphakala/cyanwatch/internal/errors"
)

// maxErrorBody caps how much of a failed response body is kept for diagnostics
const maxErrorBody = 512

// StatusError reports a non-2xx response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
}

// ErrorCategory maps 401/403 to authorization and 404 to not-found.
func (e *StatusError) ErrorCategory() errors.ErrorCategory {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.CategoryAuthorization
	case http.StatusNotFound:
		return errors.CategoryNotFound
	default:
		return errors.CategoryHTTP
	}
}

// Request describes one JSON round trip.
type Request struct {
	Method    string
	URL       string
	Header    http.Header
	Body      any // JSON-encoded unless nil, []byte, string or io.Reader
	Component string
}

// DoJSON sends r and decodes a 2xx JSON response into out (skipped when out
// is nil or the body is empty). Transport failures are categorized as
// network errors; non-2xx responses wrap a *StatusError.
func (c *Client) DoJSON(ctx context.Context, r Request, out any) error {
	start := time.Now()

	body, isJSON, err := encodeBody(r.Body)
	if err != nil {
		return c.buildError(err, r, errors.CategoryValidation)
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, r.URL, body)
	if err != nil {
		return c.buildError(err, r, errors.CategoryValidation)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if isJSON && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(ctx, req)
	if err != nil {
		category := errors.CategoryNetwork
		if ctx.Err() != nil {
			category = errors.CategoryCancellation
		}
		return errors.New(err).
			Component(r.Component).
			Category(category).
			NetworkContext(r.URL, c.defaultTimeout).
			Timing(method, time.Since(start)).
			Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		se := &StatusError{Method: method, URL: r.URL, StatusCode: resp.StatusCode, Body: string(snippet)}
		return errors.New(se).
			Component(r.Component).
			Category(se.ErrorCategory()).
			Context("status_code", resp.StatusCode).
			Timing(method, time.Since(start)).
			Build()
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return errors.New(fmt.Errorf("failed to decode response: %w", err)).
			Component(r.Component).
			Category(errors.CategoryFileParsing).
			Context("status_code", resp.StatusCode).
			Build()
	}
	return nil
}

func (c *Client) buildError(err error, r Request, category errors.ErrorCategory) error {
	return errors.New(err).
		Component(r.Component).
		Category(category).
		Build()
}
