// Package provider fetches remote-sensed water-quality time series for a
// location from the external data provider.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/tphakala/cyanwatch/internal/errors"
	"github.com/tphakala/cyanwatch/internal/httpclient"
	"github.com/tphakala/cyanwatch/internal/location"
	"github.com/tphakala/cyanwatch/internal/logger"
)

const (
	componentName = "provider"

	// imageType is the only satellite product the provider serves per location
	imageType = "olci"
)

// Config holds provider client settings
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	UserAgent         string

	// Transport overrides the HTTP transport (tests)
	Transport http.RoundTripper
}

// DefaultConfig returns the provider defaults
func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://cyan.epa.gov/cyan/cyano",
		Timeout:           30 * time.Second,
		RequestsPerSecond: 10,
		Burst:             5,
		UserAgent:         "cyanwatch",
	}
}

// Client issues enrichment fetches. Safe for concurrent use; every call
// waits on a shared rate limiter before touching the network.
type Client struct {
	config  Config
	http    *httpclient.Client
	limiter *rate.Limiter
	log     logger.Logger
}

// NewClient creates a provider client, filling zero config values with defaults
func NewClient(config Config) (*Client, error) {
	def := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = def.Timeout
	}
	if config.RequestsPerSecond == 0 {
		config.RequestsPerSecond = def.RequestsPerSecond
	}
	if config.Burst == 0 {
		config.Burst = def.Burst
	}

	if _, err := url.ParseRequestURI(config.BaseURL); err != nil {
		return nil, errors.New(err).
			Component(componentName).
			Category(errors.CategoryConfiguration).
			Context("base_url", config.BaseURL).
			Build()
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &Client{
		config: config,
		http: httpclient.New(&httpclient.Config{
			DefaultTimeout: config.Timeout,
			UserAgent:      config.UserAgent,
			Transport:      config.Transport,
		}),
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
		log:     logger.Global().Module(componentName),
	}, nil
}

// DataURL builds the provider URL for a location's coordinates and series.
func (c *Client) DataURL(lat, lon float64, dataType location.DataType) string {
	q := url.Values{}
	q.Set("type", imageType)
	q.Set("frequency", dataType.Frequency())

	return fmt.Sprintf("%s/location/data/%s/%s/all?%s",
		c.config.BaseURL,
		strconv.FormatFloat(lat, 'f', -1, 64),
		strconv.FormatFloat(lon, 'f', -1, 64),
		q.Encode())
}

// Fetch retrieves the full time series for loc. There is no retry; a failed
// fetch returns its error exactly once.
func (c *Client) Fetch(ctx context.Context, loc location.Location) (*location.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.New(err).
			Component(componentName).
			Category(errors.CategoryCancellation).
			Context("location_id", loc.ID).
			Build()
	}

	start := time.Now()
	var resp location.Response
	err := c.http.DoJSON(ctx, httpclient.Request{
		Method:    http.MethodGet,
		URL:       c.DataURL(loc.Latitude, loc.Longitude, loc.Type),
		Component: componentName,
	}, &resp)
	if err != nil {
		c.log.Debug("fetch failed",
			logger.Int("location_id", loc.ID),
			logger.String("type", loc.Type.String()),
			logger.Error(err))
		return nil, err
	}

	c.log.Trace("fetch completed",
		logger.Int("location_id", loc.ID),
		logger.Int("outputs", len(resp.Outputs)),
		logger.Duration("elapsed", time.Since(start)))

	return &resp, nil
}

// Close releases pooled connections
func (c *Client) Close() {
	c.http.Close()
}
