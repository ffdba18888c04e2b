// Package subgraph queries The Graph style GraphQL endpoints for pair and block data.
package subgraph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/machinebox/graphql"
	"go.uber.org/zap"
)

const DefaultTimeout = 30 * time.Second

var (
	// ErrTransport wraps failures reaching the endpoint or GraphQL errors it returned.
	ErrTransport = errors.New("subgraph transport error")
	// ErrMalformedResponse wraps responses missing fields or carrying unparsable values.
	ErrMalformedResponse = errors.New("subgraph malformed response")
	// ErrNoBlocks is returned when the block index has no block after the timestamp.
	ErrNoBlocks = errors.New("subgraph returned no blocks")
)

// ClientOption configures an endpoint client.
type ClientOption func(*endpoint)

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) ClientOption {
	return func(e *endpoint) {
		e.timeout = d
	}
}

// WithHTTPClient sets a custom http.Client. Its transport is wrapped so non-2xx
// responses still fail.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(e *endpoint) {
		e.httpClient = client
	}
}

// WithLogger routes request logging to logger at debug level.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(e *endpoint) {
		e.logger = logger
	}
}

type endpoint struct {
	url        string
	client     *graphql.Client
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger
}

func newEndpoint(url string, opts ...ClientOption) (*endpoint, error) {
	if url == "" {
		return nil, fmt.Errorf("endpoint url is required")
	}
	e := &endpoint{
		url:     url,
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.httpClient == nil {
		e.httpClient = &http.Client{Timeout: e.timeout}
	}
	e.httpClient = withStatusCheck(e.httpClient)

	e.client = graphql.NewClient(url, graphql.WithHTTPClient(e.httpClient))
	e.client.Log = func(s string) {
		e.logger.Debug("graphql", zap.String("endpoint", e.url), zap.String("msg", s))
	}
	return e, nil
}

// run executes a query under the per-request timeout and decodes data into resp.
func (e *endpoint) run(ctx context.Context, op string, req *graphql.Request, resp interface{}) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	if err := e.client.Run(ctx, req, resp); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrTransport, err)
	}
	return nil
}

// statusTransport rejects non-2xx responses. graphql.Client only looks at the
// status when the body fails to decode, so a 503 with a JSON body would pass.
type statusTransport struct {
	base http.RoundTripper
}

func (t statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: unexpected status %s", ErrTransport, resp.Status)
	}
	return resp, nil
}

// withStatusCheck returns a copy of client whose transport is a statusTransport.
func withStatusCheck(client *http.Client) *http.Client {
	if _, ok := client.Transport.(statusTransport); ok {
		return client
	}
	wrapped := *client
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped.Transport = statusTransport{base: base}
	return &wrapped
}
