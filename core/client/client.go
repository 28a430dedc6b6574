package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/xagent-cli/xagent/core/retry"
	"github.com/xagent-cli/xagent/providers/ai"
	"github.com/xagent-cli/xagent/providers/ai/anthropic"
	"github.com/xagent-cli/xagent/providers/ai/endpoint"
	"github.com/xagent-cli/xagent/providers/ai/openai"
	"github.com/xagent-cli/xagent/providers/observability"
)

var (
	// ErrClosed is returned by every call made after Close.
	ErrClosed = errors.New("client closed")

	// ErrNoBaseURL is returned by New and Reconfigure for an empty base URL.
	ErrNoBaseURL = errors.New("base URL is required")

	// ErrNilMiddleware is returned when a MiddlewareConfig has no Complete.
	ErrNilMiddleware = errors.New("middleware Complete function is nil")
)

// Config is the client configuration. A copy is taken by New and Reconfigure.
type Config struct {
	BaseURL string
	APIKey  string

	// Model is used when CompletionOptions.Model is empty.
	Model string

	// Models, when non-empty, is returned by Models instead of querying the
	// vendor.
	Models []string

	// Retry is the policy for buffered calls. Nil selects retry.DefaultConfig.
	Retry *retry.Config

	// HTTPClient defaults to a client with its own cloned transport, shared
	// by every configuration of one Client, so Close only drops this
	// client's idle connections.
	HTTPClient *http.Client

	// Observer is notified of every call. Nil disables notifications; a
	// per-call observer can still be attached with
	// observability.ContextWithObserver.
	Observer observability.Observer

	Middlewares []MiddlewareConfig
}

// Client is safe for concurrent use.
type Client struct {
	current atomic.Pointer[snapshot]

	// defaultHTTP serves every snapshot whose Config has no HTTPClient.
	defaultHTTP *http.Client

	mu     sync.Mutex
	calls  map[uint64]context.CancelFunc
	nextID uint64
	closed bool
}

var _ ai.Completer = (*Client)(nil)

// snapshot is an immutable view of the configuration used by one call.
type snapshot struct {
	config   Config
	retry    retry.Config
	endpoint endpoint.Endpoint
	codec    ai.Codec
	http     *http.Client
	observer observability.Observer
	complete CompleteFunc
	stream   StreamFunc
}

// New validates cfg, resolves its endpoint and returns a ready client.
func New(cfg Config) (*Client, error) {
	c := &Client{
		calls:       map[uint64]context.CancelFunc{},
		defaultHTTP: &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
	}
	snap, err := c.newSnapshot(cfg)
	if err != nil {
		return nil, err
	}
	c.current.Store(snap)
	return c, nil
}

// Reconfigure atomically replaces the configuration. Calls already in flight
// finish with the configuration they started with.
func (c *Client) Reconfigure(cfg Config) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	snap, err := c.newSnapshot(cfg)
	if err != nil {
		return err
	}
	c.current.Store(snap)
	return nil
}

// Endpoint returns the currently resolved endpoint.
func (c *Client) Endpoint() endpoint.Endpoint {
	return c.current.Load().endpoint
}

// Abort cancels every in-flight call. The client stays usable.
func (c *Client) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, cancel := range c.calls {
		cancel()
		delete(c.calls, id)
	}
}

// Close aborts in-flight calls, drops idle connections and makes every later
// call fail with ErrClosed. Close is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.Abort()
	c.defaultHTTP.CloseIdleConnections()
	if custom := c.current.Load().http; custom != c.defaultHTTP {
		custom.CloseIdleConnections()
	}
	return nil
}

// track registers a cancellable call context. The returned release func must
// be called when the call ends.
func (c *Client) track(ctx context.Context) (context.Context, func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, nil, ErrClosed
	}

	ctx, cancel := context.WithCancel(ctx)
	id := c.nextID
	c.nextID++
	c.calls[id] = cancel

	release := func() {
		c.mu.Lock()
		delete(c.calls, id)
		c.mu.Unlock()
		cancel()
	}
	return ctx, release, nil
}

func (c *Client) newSnapshot(cfg Config) (*snapshot, error) {
	if cfg.BaseURL == "" {
		return nil, ErrNoBaseURL
	}
	for i, middleware := range cfg.Middlewares {
		if middleware.Complete == nil {
			return nil, fmt.Errorf("middleware %d: %w", i, ErrNilMiddleware)
		}
	}

	snap := &snapshot{
		config:   cfg,
		retry:    retry.DefaultConfig(),
		endpoint: endpoint.Resolve(cfg.BaseURL),
		http:     cfg.HTTPClient,
		observer: cfg.Observer,
	}
	if cfg.Retry != nil {
		snap.retry = *cfg.Retry
	}
	if snap.http == nil {
		snap.http = c.defaultHTTP
	}
	if snap.observer == nil {
		snap.observer = observability.Nop{}
	}

	switch snap.endpoint.Format {
	case endpoint.FormatAnthropic:
		snap.codec = anthropic.New()
	default:
		snap.codec = openai.New()
	}

	snap.complete = buildCompleteChain(func(ctx context.Context, request Request) (*ai.CompletionResponse, error) {
		result := c.run(ctx, snap, request)
		return result.Value, result.Err
	}, cfg.Middlewares)
	snap.stream = buildStreamChain(func(ctx context.Context, request Request) *ai.Stream {
		return c.openStream(ctx, snap, request)
	}, cfg.Middlewares)
	return snap, nil
}

// request builds the chain input, selecting the configured model when the
// options do not name one.
func (snap *snapshot) request(messages []ai.Message, options ai.CompletionOptions) Request {
	model := options.Model
	if model == "" {
		model = snap.config.Model
	}
	return Request{Model: model, Messages: messages, Options: options}
}

func (snap *snapshot) requestInfo(request Request, stream bool) observability.RequestInfo {
	return observability.RequestInfo{
		Family:   string(snap.endpoint.Family),
		Format:   snap.codec.Name(),
		URL:      snap.endpoint.URL(),
		Model:    request.Model,
		Stream:   stream,
		Messages: len(request.Messages),
		Tools:    len(request.Options.Tools),
	}
}

// observerFor adds the per-call observer carried by ctx, if any.
func (snap *snapshot) observerFor(ctx context.Context) observability.Observer {
	return observability.Multi(snap.observer, observability.ObserverFromContext(ctx))
}
