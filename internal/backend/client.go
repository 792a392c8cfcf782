// Package backend is the client for the application backend: the user's
// persisted locations and the batch job endpoints.
package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tphakala/cyanwatch/internal/errors"
	"github.com/tphakala/cyanwatch/internal/httpclient"
	"github.com/tphakala/cyanwatch/internal/location"
	"github.com/tphakala/cyanwatch/internal/logger"
)

const componentName = "backend"

// ErrUnauthorized is returned, without a request being sent, when the
// session is no longer authorized.
var ErrUnauthorized = errors.NewStd("user is not authorized")

// Authorizer is the external session collaborator.
type Authorizer interface {
	IsAuthorized() bool
	ForceLogout(reason string)
}

// TokenSource is implemented by authorizers that carry a bearer token.
type TokenSource interface {
	Token() string
}

// Config holds backend client settings
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string

	// Transport overrides the HTTP transport (tests)
	Transport http.RoundTripper
}

// Client talks to the backend API. Safe for concurrent use.
type Client struct {
	baseURL string
	auth    Authorizer
	http    *httpclient.Client
	log     logger.Logger
}

// NewClient creates a backend client. auth must not be nil.
func NewClient(config Config, auth Authorizer) (*Client, error) {
	if auth == nil {
		return nil, errors.Newf("authorizer is required").
			Component(componentName).
			Category(errors.CategoryConfiguration).
			Build()
	}
	if _, err := url.ParseRequestURI(config.BaseURL); err != nil {
		return nil, errors.New(err).
			Component(componentName).
			Category(errors.CategoryConfiguration).
			Context("base_url", config.BaseURL).
			Build()
	}

	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		auth:    auth,
		http: httpclient.New(&httpclient.Config{
			DefaultTimeout: config.Timeout,
			UserAgent:      config.UserAgent,
			Transport:      config.Transport,
		}),
		log: logger.Global().Module(componentName),
	}, nil
}

// Close releases pooled connections
func (c *Client) Close() {
	c.http.Close()
}

// authorize gates every call. An unauthorized session is logged out once per
// rejected call and no request is issued.
func (c *Client) authorize(op string) error {
	if c.auth.IsAuthorized() {
		return nil
	}
	c.auth.ForceLogout("session expired during " + op)
	c.log.Warn("request skipped, not authorized", logger.String("operation", op))
	return errors.New(ErrUnauthorized).
		Component(componentName).
		Category(errors.CategoryAuthorization).
		Context("operation", op).
		Build()
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	if err := c.authorize(op); err != nil {
		return err
	}

	header := http.Header{}
	if ts, ok := c.auth.(TokenSource); ok {
		if token := ts.Token(); token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}

	err := c.http.DoJSON(ctx, httpclient.Request{
		Method:    method,
		URL:       c.baseURL + path,
		Header:    header,
		Body:      body,
		Component: componentName,
	}, out)
	if err != nil {
		c.log.Debug("request failed",
			logger.String("operation", op),
			logger.Error(err))
		return err
	}
	return nil
}

// LocationRecord is a persisted user location as the backend stores it.
type LocationRecord struct {
	ID        int               `json:"id"`
	Type      location.DataType `json:"type,omitempty"`
	Name      string            `json:"name"`
	Latitude  float64           `json:"latitude"`
	Longitude float64           `json:"longitude"`
	Marked    bool              `json:"marked"`
	Compare   bool              `json:"compare"`
	Notes     []string          `json:"notes"`
}

// RecordFromLocation extracts the persisted fields of loc.
func RecordFromLocation(loc location.Location) LocationRecord {
	notes := loc.Notes
	if notes == nil {
		notes = []string{}
	}
	return LocationRecord{
		ID:        loc.ID,
		Type:      loc.Type,
		Name:      loc.Name,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		Marked:    loc.Marked,
		Compare:   loc.Compare,
		Notes:     notes,
	}
}

// ListLocations returns the user's locations for a data type.
func (c *Client) ListLocations(ctx context.Context, dataType location.DataType) ([]LocationRecord, error) {
	var records []LocationRecord
	if err := c.do(ctx, "list_locations", http.MethodGet, "/locations/"+url.PathEscape(dataType.String()), nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// AddLocation persists a newly created location.
func (c *Client) AddLocation(ctx context.Context, loc location.Location) error {
	return c.do(ctx, "add_location", http.MethodPost, "/location/add", RecordFromLocation(loc), nil)
}

// EditLocation persists the user-authored state of a location.
func (c *Client) EditLocation(ctx context.Context, loc location.Location) error {
	return c.do(ctx, "edit_location", http.MethodPost, "/location/edit", RecordFromLocation(loc), nil)
}

// DeleteLocation removes a location upstream.
func (c *Client) DeleteLocation(ctx context.Context, id int, dataType location.DataType) error {
	path := "/location/delete/" + strconv.Itoa(id) + "/" + url.PathEscape(dataType.String())
	return c.do(ctx, "delete_location", http.MethodGet, path, nil, nil)
}
