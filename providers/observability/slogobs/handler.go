package slogobs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/mattn/go-isatty"
)

// NewHandler returns a slog.Handler writing format to output at level.
func NewHandler(format Format, level slog.Leveler, output io.Writer) slog.Handler {
	if output == nil {
		output = os.Stderr
	}
	options := &slog.HandlerOptions{Level: level}
	switch format {
	case FormatJSON:
		return slog.NewJSONHandler(output, options)
	case FormatText:
		return slog.NewTextHandler(output, options)
	}
	return &CompactHandler{
		level:  level,
		output: output,
		colors: isTerminal(output),
		mu:     &sync.Mutex{},
	}
}

// CompactHandler writes one line per record: time, level, message and the
// attributes encoded as a JSON object.
type CompactHandler struct {
	level  slog.Leveler
	output io.Writer
	colors bool
	mu     *sync.Mutex
	attrs  []slog.Attr
	prefix string
}

// Enabled reports whether level is at or above the handler's level.
func (h *CompactHandler) Enabled(_ context.Context, level slog.Level) bool {
	minimum := slog.LevelInfo
	if h.level != nil {
		minimum = h.level.Level()
	}
	return level >= minimum
}

// Handle writes r.
func (h *CompactHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 256)
	buf = append(buf, r.Time.Format("2006-01-02 15:04:05")...)
	buf = append(buf, ' ')
	level := fmt.Sprintf("%5s", r.Level.String())
	if h.colors {
		buf = append(buf, colorFor(r.Level)...)
		buf = append(buf, level...)
		buf = append(buf, colorReset...)
	} else {
		buf = append(buf, level...)
	}
	buf = append(buf, ' ')
	buf = append(buf, r.Message...)

	fields := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, attr := range h.attrs {
		addField(fields, "", attr)
	}
	r.Attrs(func(attr slog.Attr) bool {
		addField(fields, h.prefix, attr)
		return true
	})
	if len(fields) > 0 {
		encoded, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(fields)
		if err != nil {
			encoded = []byte(`{"!BADATTRS":true}`)
		}
		buf = append(buf, " → "...)
		buf = append(buf, encoded...)
	}
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.output.Write(buf)
	return err
}

// WithAttrs returns a handler that adds attrs to every record.
func (h *CompactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append([]slog.Attr{}, h.attrs...)
	for _, attr := range attrs {
		attr.Key = h.prefix + attr.Key
		clone.attrs = append(clone.attrs, attr)
	}
	return &clone
}

// WithGroup returns a handler that prefixes later attribute keys with name.
func (h *CompactHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

func addField(fields map[string]any, prefix string, attr slog.Attr) {
	value := attr.Value.Resolve()
	if value.Kind() == slog.KindGroup {
		for _, member := range value.Group() {
			addField(fields, prefix+attr.Key+".", member)
		}
		return
	}
	if attr.Key == "" {
		return
	}
	switch value.Kind() {
	case slog.KindDuration:
		fields[prefix+attr.Key] = value.Duration().String()
	case slog.KindAny:
		if err, ok := value.Any().(error); ok {
			fields[prefix+attr.Key] = err.Error()
			return
		}
		fields[prefix+attr.Key] = value.Any()
	default:
		fields[prefix+attr.Key] = value.Any()
	}
}

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGreen  = "\033[32m"
	colorBlue   = "\033[34m"
)

func colorFor(level slog.Level) string {
	switch {
	case level < slog.LevelInfo:
		return colorBlue
	case level < slog.LevelWarn:
		return colorGreen
	case level < slog.LevelError:
		return colorYellow
	default:
		return colorRed
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
