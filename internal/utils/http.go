package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/xagent-cli/xagent/core/apierror"
)

// maxResponseBodySize caps buffered reads of response and error bodies (10 MB).
const maxResponseBodySize int64 = 10 * 1024 * 1024

// DoPost sends body as JSON and returns the raw 2xx response body.
//
// Every failure comes back as an *apierror.Error: transport errors are
// classified with apierror.Classify, non-2xx statuses with
// apierror.FromResponse. The response body is always closed.
func DoPost(ctx context.Context, client *http.Client, url string, header http.Header, body any) ([]byte, error) {
	request, err := newJSONRequest(ctx, http.MethodPost, url, header, body)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Accept", "application/json")
	return doBuffered(client, request)
}

// DoGet performs a GET and returns the raw 2xx response body.
func DoGet(ctx context.Context, client *http.Client, url string, header http.Header) ([]byte, error) {
	request, err := newJSONRequest(ctx, http.MethodGet, url, header, nil)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Accept", "application/json")
	return doBuffered(client, request)
}

// DoPostStream sends body as JSON and returns the response with its body left
// open for incremental reading. The caller owns the body and must close it.
// On non-2xx statuses the body is drained, closed and classified.
func DoPostStream(ctx context.Context, client *http.Client, url string, header http.Header, body any) (*http.Response, error) {
	request, err := newJSONRequest(ctx, http.MethodPost, url, header, body)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Accept", "text/event-stream")

	response, err := httpClient(client).Do(request)
	if err != nil {
		return nil, apierror.Classify(fmt.Errorf("error sending stream request: %w", err))
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		defer CloseWithLog(response.Body)
		errorBody, _ := io.ReadAll(io.LimitReader(response.Body, maxResponseBodySize))
		return nil, apierror.FromResponse(response.StatusCode, response.Header, errorBody)
	}
	return response, nil
}

// CloseWithLog closes c and logs a failure instead of returning it, so a
// close error never masks the primary result.
func CloseWithLog(c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		slog.Warn("failed to close response body", "error", err.Error())
	}
}

func newJSONRequest(ctx context.Context, method, url string, header http.Header, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, apierror.New(apierror.ClassClient, "error marshaling request body", err)
		}
		reader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, apierror.New(apierror.ClassClient, "error creating request", err)
	}
	for key, values := range header {
		for _, value := range values {
			request.Header.Add(key, value)
		}
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	return request, nil
}

func doBuffered(client *http.Client, request *http.Request) ([]byte, error) {
	response, err := httpClient(client).Do(request)
	if err != nil {
		return nil, apierror.Classify(fmt.Errorf("error sending request: %w", err))
	}
	defer CloseWithLog(response.Body)

	responseBody, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBodySize))
	if err != nil {
		return nil, apierror.Classify(fmt.Errorf("error reading response body: %w", err))
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, apierror.FromResponse(response.StatusCode, response.Header, responseBody)
	}
	return responseBody, nil
}

func httpClient(client *http.Client) *http.Client {
	if client == nil {
		return http.DefaultClient
	}
	return client
}
