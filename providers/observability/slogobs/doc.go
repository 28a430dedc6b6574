// Package slogobs provides an observability.Observer that writes structured
// log records through log/slog, plus a compact single-line slog.Handler for
// interactive use.
package slogobs
