// Package client talks to the remote collector over HTTPS.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Endpoint paths on the collector.
const (
	PathNow     = "/now"
	PathMeasure = "/measure"
)

const (
	// RxBufferSize bounds the response body read from the collector.
	RxBufferSize   = 8192
	defaultTimeout = 10 * time.Second
	contentTypeKey = "Content-Type"
	contentJSON    = "application/json"
)

// ErrResponseTooLarge is returned when a response does not fit the receive buffer.
var ErrResponseTooLarge = errors.New("client: response exceeds receive buffer")

// Config describes how to reach the collector.
type Config struct {
	BaseURL            string
	InsecureSkipVerify bool // certificates are not verified when true
	Timeout            time.Duration
}

// Client performs the two calls the node makes against the collector.
type Client struct {
	base string
	http *http.Client
}

// New builds a client. The TLS configuration honours InsecureSkipVerify.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // the node has no trust store
		MinVersion:         tls.VersionTLS12,
	}
	return &Client{
		base: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		http: &http.Client{Timeout: timeout, Transport: transport},
	}
}

// NewWithHTTPClient wraps an existing http.Client, e.g. one from httptest.
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	return &Client{base: strings.TrimRight(strings.TrimSpace(baseURL), "/"), http: hc}
}

// BaseURL returns the normalized collector base URL.
func (c *Client) BaseURL() string { return c.base }

// Fetch issues GET {base}{path} and returns the body, at most RxBufferSize bytes.
// The status code is not interpreted.
func (c *Client) Fetch(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build GET %s: %w", path, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, RxBufferSize+1))
	if err != nil {
		return nil, fmt.Errorf("read GET %s body: %w", path, err)
	}
	if len(body) > RxBufferSize {
		return nil, fmt.Errorf("GET %s: %w", path, ErrResponseTooLarge)
	}
	return body, nil
}

// PostJSON sends body to {base}{path}. Only transport success is reported;
// the response status and body are discarded.
func (c *Client) PostJSON(ctx context.Context, path string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build POST %s: %w", path, err)
	}
	req.Header.Set(contentTypeKey, contentJSON)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, RxBufferSize))
	_ = resp.Body.Close()
	return nil
}
