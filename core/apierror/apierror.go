// Package apierror is the failure taxonomy of the wire client. Raw transport
// errors and non-2xx responses are classified once, at the transport layer,
// into an *Error whose Class is the only thing the retry executor and the
// completion client look at.
package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Class is the failure category of an Error.
type Class string

const (
	ClassClient    Class = "client"     // non-retryable 4xx
	ClassRateLimit Class = "rate_limit" // 429
	ClassServer    Class = "server"     // 5xx
	ClassNetwork   Class = "network"    // connection refused, reset, DNS
	ClassTimeout   Class = "timeout"    // deadline or transport timeout
	ClassCancelled Class = "cancelled"  // caller cancelled the call
	ClassDecode    Class = "decode"     // malformed response body
)

// Error is a classified wire-client failure.
type Error struct {
	Class      Class
	StatusCode int           // zero for transport failures
	Body       string        // raw response body, HTML rendered to Markdown
	Message    string        // vendor error message when one could be extracted
	RetryAfter time.Duration // parsed Retry-After header, zero when absent
	Err        error         // underlying cause, if any
}

func (e *Error) Error() string {
	var builder strings.Builder
	builder.WriteString(string(e.Class))
	if e.StatusCode != 0 {
		fmt.Fprintf(&builder, " (status %d)", e.StatusCode)
	}
	switch {
	case e.Message != "":
		builder.WriteString(": ")
		builder.WriteString(e.Message)
	case e.Err != nil:
		builder.WriteString(": ")
		builder.WriteString(e.Err.Error())
	}
	return builder.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an Error of the given class.
func New(class Class, message string, err error) *Error {
	return &Error{Class: class, Message: message, Err: err}
}

// ClassOf returns the class of the first *Error in err's chain, or "" when
// there is none.
func ClassOf(err error) Class {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Class
	}
	return ""
}

// Classify maps a raw transport error to an *Error. Errors that are already
// classified are returned as is.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, context.Canceled):
		return &Error{Class: ClassCancelled, Message: "request cancelled", Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Class: ClassTimeout, Message: "request timed out", Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Class: ClassTimeout, Err: err}
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return &Error{Class: ClassNetwork, Message: "connection closed mid-response", Err: err}
	}
	return &Error{Class: ClassNetwork, Err: err}
}

// FromContext reports why ctx ended: a timeout when its deadline passed,
// otherwise a cancellation. It returns nil while ctx is live.
func FromContext(ctx context.Context) *Error {
	err := ctx.Err()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Class: ClassTimeout, Message: "call timed out", Err: err}
	default:
		return &Error{Class: ClassCancelled, Message: "call cancelled", Err: err}
	}
}

// Decode wraps a body that could not be parsed.
func Decode(err error, body []byte) *Error {
	return &Error{Class: ClassDecode, Body: truncate(string(body)), Err: err}
}

// FromResponse classifies a non-2xx HTTP response.
func FromResponse(status int, header http.Header, body []byte) *Error {
	apiErr := &Error{
		StatusCode: status,
		Class:      classForStatus(status),
		Body:       RenderBody(header.Get("Content-Type"), body),
	}
	apiErr.Message = extractMessage(body)
	if apiErr.Message == "" {
		apiErr.Message = firstLine(apiErr.Body)
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	apiErr.RetryAfter = parseRetryAfter(header.Get("Retry-After"))
	return apiErr
}

func classForStatus(status int) Class {
	switch {
	case status == http.StatusTooManyRequests:
		return ClassRateLimit
	case status == http.StatusRequestTimeout:
		return ClassTimeout
	case status >= 500:
		return ClassServer
	default:
		return ClassClient
	}
}

// extractMessage understands the error envelopes used by both protocol
// families: {"error":{"message":...}}, {"error":"..."} and {"message":...}.
func extractMessage(body []byte) string {
	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	if len(envelope.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(envelope.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
		var text string
		if err := json.Unmarshal(envelope.Error, &text); err == nil && text != "" {
			return text
		}
	}
	return envelope.Message
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if wait := time.Until(at); wait > 0 {
			return wait
		}
	}
	return 0
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if index := strings.IndexByte(text, '\n'); index >= 0 {
		text = text[:index]
	}
	return truncate(text)
}
