package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// testClient returns a client closed at cleanup. A nil cfg uses DefaultConfig.
func testClient(t *testing.T, cfg *Config) *Client {
	t.Helper()
	if cfg == nil {
		def := DefaultConfig()
		cfg = &def
	}
	c := New(cfg)
	t.Cleanup(func() { c.Close() })
	return c
}

// providerServer stands in for the enrichment provider.
func providerServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func closeBody(t *testing.T, resp *http.Response) {
	t.Helper()
	if resp == nil || resp.Body == nil {
		return
	}
	if err := resp.Body.Close(); err != nil {
		t.Logf("close response body: %v", err)
	}
}
