// Package echovendor is a fake LLM vendor built on echo. It speaks both wire
// formats, buffered and streamed, and answers every completion by echoing the
// last message of the conversation back as the assistant turn: its text and
// its tool calls. Status faults can be queued to exercise retry paths.
//
// It backs the client tests and the CLI's echo-vendor subcommand.
package echovendor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	maxBodyBytes        = 4 << 20
	shutdownGracePeriod = 5 * time.Second
)

// Call is one request received by the vendor.
type Call struct {
	Method string
	Path   string
	Header http.Header
	Body   json.RawMessage
}

// Vendor is the fake. The zero value is not usable; call New.
type Vendor struct {
	app *echo.Echo

	// APIKey, when set, is required as a bearer token or x-api-key header.
	APIKey string

	// Models is served by the model listing endpoints.
	Models []string

	mu      sync.Mutex
	faults  []int
	calls   []Call
	counter int
	server  *httptest.Server
}

// New returns a vendor with its routes registered but not listening.
func New() *Vendor {
	v := &Vendor{Models: []string{"echo-small", "echo-large"}}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(v.record)

	e.GET("/*", v.handleModels)
	e.POST("/*", v.handleCompletion)
	v.app = e
	return v
}

// Start serves the vendor on a local test listener and returns its base URL.
func (v *Vendor) Start() string {
	v.server = httptest.NewServer(v.app)
	return v.server.URL
}

// Close stops a vendor started with Start.
func (v *Vendor) Close() {
	if v.server != nil {
		v.server.Close()
	}
}

// Handler exposes the routes, for embedding in another server.
func (v *Vendor) Handler() http.Handler {
	return v.app
}

// Run serves on addr until ctx is cancelled.
func (v *Vendor) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		if err := v.app.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	slog.Info("echo vendor listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := v.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("echo vendor shutdown failed: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

// FailNext queues HTTP statuses returned, one per request, before the vendor
// answers normally again.
func (v *Vendor) FailNext(statuses ...int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.faults = append(v.faults, statuses...)
}

// Calls returns a copy of every request received so far.
func (v *Vendor) Calls() []Call {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Call(nil), v.calls...)
}

// record stores the request and restores its body for the handler.
func (v *Vendor) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		request := c.Request()
		body, err := io.ReadAll(io.LimitReader(request.Body, maxBodyBytes))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
		}
		request.Body = io.NopCloser(strings.NewReader(string(body)))

		v.mu.Lock()
		v.calls = append(v.calls, Call{
			Method: request.Method,
			Path:   request.URL.Path,
			Header: request.Header.Clone(),
			Body:   json.RawMessage(body),
		})
		v.mu.Unlock()
		return next(c)
	}
}

// nextFault pops the next queued status, or returns zero.
func (v *Vendor) nextFault() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.faults) == 0 {
		return 0
	}
	status := v.faults[0]
	v.faults = v.faults[1:]
	return status
}

func (v *Vendor) nextID() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.counter++
	return v.counter
}

func (v *Vendor) authorized(request *http.Request) bool {
	if v.APIKey == "" {
		return true
	}
	return request.Header.Get("Authorization") == "Bearer "+v.APIKey ||
		request.Header.Get("x-api-key") == v.APIKey
}

func (v *Vendor) handleModels(c echo.Context) error {
	if !strings.HasSuffix(c.Request().URL.Path, "/models") {
		return echo.ErrNotFound
	}
	if !v.authorized(c.Request()) {
		return writeError(c, isNative(c), http.StatusUnauthorized, "invalid api key")
	}
	if status := v.nextFault(); status != 0 {
		return writeError(c, isNative(c), status, http.StatusText(status))
	}

	data := make([]map[string]string, 0, len(v.Models))
	for _, id := range v.Models {
		data = append(data, map[string]string{"id": id, "display_name": id, "owned_by": "echovendor"})
	}
	return c.JSON(http.StatusOK, map[string]any{"object": "list", "data": data})
}

func (v *Vendor) handleCompletion(c echo.Context) error {
	path := c.Request().URL.Path
	native := strings.HasSuffix(path, "/messages")
	if !native && !strings.HasSuffix(path, "/chat/completions") {
		return echo.ErrNotFound
	}
	if !v.authorized(c.Request()) {
		return writeError(c, native, http.StatusUnauthorized, "invalid api key")
	}
	if status := v.nextFault(); status != 0 {
		return writeError(c, native, status, http.StatusText(status))
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return writeError(c, native, http.StatusBadRequest, "unreadable body")
	}
	if native {
		return v.handleMessages(c, body)
	}
	return v.handleChat(c, body)
}

func isNative(c echo.Context) bool {
	return c.Request().Header.Get("anthropic-version") != ""
}

// writeError answers in the error envelope of the requested format.
func writeError(c echo.Context, native bool, status int, message string) error {
	errorType := "api_error"
	switch {
	case status == http.StatusTooManyRequests:
		errorType = "rate_limit_error"
	case status == http.StatusUnauthorized:
		errorType = "authentication_error"
	case status < 500:
		errorType = "invalid_request_error"
	}
	if native {
		return c.JSON(status, map[string]any{
			"type":  "error",
			"error": map[string]string{"type": errorType, "message": message},
		})
	}
	return c.JSON(status, map[string]any{
		"error": map[string]string{"type": errorType, "message": message},
	})
}

// writeSSE writes one server-sent event frame and flushes it. An empty event
// name omits the event line.
func writeSSE(c echo.Context, event string, payload any) error {
	var data []byte
	switch p := payload.(type) {
	case string:
		data = []byte(p)
	default:
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal SSE payload: %w", err)
		}
		data = encoded
	}
	w := c.Response()
	if event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
			return fmt.Errorf("write SSE event name: %w", err)
		}
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write SSE data: %w", err)
	}
	w.Flush()
	return nil
}

func startStream(c echo.Context) {
	header := c.Response().Header()
	header.Set(echo.HeaderContentType, "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)
}

// chunks splits text into word-sized pieces, keeping the separators.
func chunks(text string) []string {
	var out []string
	for text != "" {
		i := strings.IndexByte(text, ' ')
		if i < 0 {
			out = append(out, text)
			break
		}
		out = append(out, text[:i+1])
		text = text[i+1:]
	}
	return out
}

// countTokens is a whitespace word count, good enough for a fake.
func countTokens(text string) int {
	return len(strings.Fields(text))
}
