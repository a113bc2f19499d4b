package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/sdnpulse/sdnpulse/internal/parse"
)

// ErrUnexpectedStatus is returned for non-2xx HTTP responses.
var ErrUnexpectedStatus = errors.New("unexpected status")

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 8 << 20

// HTTPConfig configures an HTTP endpoint.
type HTTPConfig struct {
	URL     string            `yaml:"url" json:"url" validate:"required,url"`
	Method  string            `yaml:"method" json:"method,omitempty" validate:"omitempty,oneof=GET POST"`
	Headers map[string]string `yaml:"headers" json:"-"`
	Format  string            `yaml:"format" json:"format,omitempty"`
}

// HTTPEndpoint fetches and decodes a document over HTTP.
type HTTPEndpoint struct {
	client  *http.Client
	url     string
	method  string
	headers map[string]string
	format  string
}

// NewHTTPEndpoint creates an endpoint. A nil client uses a pooled client.
func NewHTTPEndpoint(client *http.Client, cfg HTTPConfig) *HTTPEndpoint {
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
	}
	method := cfg.Method
	if method == "" {
		method = http.MethodGet
	}
	format := cfg.Format
	if format == "" {
		format = parse.FormatJSON
	}
	return &HTTPEndpoint{
		client:  client,
		url:     cfg.URL,
		method:  method,
		headers: cfg.Headers,
		format:  format,
	}
}

func newHTTPFromConfig(cfg EndpointConfig, reveal Reveal) (Endpoint, error) {
	if cfg.HTTP == nil {
		return nil, missingSection("http")
	}
	if !parse.Supported(cfg.HTTP.Format) {
		return nil, fmt.Errorf("http: unsupported format %q", cfg.HTTP.Format)
	}
	httpCfg := *cfg.HTTP
	if len(httpCfg.Headers) > 0 {
		headers := make(map[string]string, len(httpCfg.Headers))
		for k, v := range httpCfg.Headers {
			plain, err := reveal(v)
			if err != nil {
				return nil, fmt.Errorf("http: header %s: %w", k, err)
			}
			headers[k] = plain
		}
		httpCfg.Headers = headers
	}
	return NewHTTPEndpoint(nil, httpCfg), nil
}

// Attempt performs one request.
func (e *HTTPEndpoint) Attempt(ctx context.Context) (any, error) {
	req, err := http.NewRequestWithContext(ctx, e.method, e.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range e.headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	return parse.Decode(e.format, body)
}
