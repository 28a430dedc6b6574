// Package decoder turns a chunked byte stream into canonical stream events.
//
// Network reads split the stream at arbitrary byte offsets, including inside
// a JSON payload or a multi-byte UTF-8 sequence. The Decoder keeps one
// growable buffer, hands only complete lines to the family line handler and
// holds the trailing partial line back until more bytes arrive. Splitting on
// '\n' is safe for UTF-8 because that byte never occurs inside a multi-byte
// sequence.
package decoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/xagent-cli/xagent/core/apierror"
	"github.com/xagent-cli/xagent/providers/ai"
)

// MaxLineSize bounds a single buffered line. A vendor that sends more than
// this without a newline is treated as a decode failure.
const MaxLineSize = 8 * 1024 * 1024

const readBufferSize = 32 * 1024

// ErrLineTooLong is carried by the error event emitted when MaxLineSize is exceeded.
var ErrLineTooLong = errors.New("stream line exceeds maximum size")

// Decoder is a call-local line splitter. It is not safe for concurrent use.
type Decoder struct {
	handler ai.LineHandler
	buffer  []byte
	done    bool
}

// New returns a Decoder feeding lines to handler.
func New(handler ai.LineHandler) *Decoder {
	return &Decoder{handler: handler}
}

// Done reports whether a terminal event has been produced.
func (d *Decoder) Done() bool {
	return d.done
}

// Feed appends chunk and returns the events produced by every line it
// completes. Once a terminal event has been returned, Feed returns nothing.
func (d *Decoder) Feed(chunk []byte) []ai.StreamEvent {
	if d.done {
		return nil
	}
	d.buffer = append(d.buffer, chunk...)

	var events []ai.StreamEvent
	consumed := 0
	for !d.done {
		newline := bytes.IndexByte(d.buffer[consumed:], '\n')
		if newline < 0 {
			break
		}
		line := d.buffer[consumed : consumed+newline]
		consumed += newline + 1
		events = d.handle(events, line)
	}

	if d.done {
		d.buffer = nil
		return events
	}

	// Shift the held-back partial line to the front.
	remaining := copy(d.buffer, d.buffer[consumed:])
	d.buffer = d.buffer[:remaining]

	if len(d.buffer) > MaxLineSize {
		d.done = true
		d.buffer = nil
		events = append(events, ai.ErrorEvent(apierror.Decode(ErrLineTooLong, nil)))
	}
	return events
}

// Finish flushes the final unterminated line at end of input. When the
// stream produced no terminal event, the handler's StreamFinisher is asked
// for one, falling back to done(stop).
func (d *Decoder) Finish() []ai.StreamEvent {
	if d.done {
		return nil
	}

	var events []ai.StreamEvent
	if len(d.buffer) > 0 {
		line := d.buffer
		d.buffer = nil
		events = d.handle(events, line)
		if d.done {
			return events
		}
	}

	if finisher, ok := d.handler.(ai.StreamFinisher); ok {
		for _, event := range finisher.Finish() {
			events = append(events, event)
			if event.Terminal() {
				d.done = true
				return events
			}
		}
	}

	d.done = true
	return append(events, ai.DoneEvent(ai.FinishReasonStop))
}

// handle passes one line to the handler and keeps events up to and
// including the first terminal one.
func (d *Decoder) handle(events []ai.StreamEvent, line []byte) []ai.StreamEvent {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	for _, event := range d.handler.HandleLine(string(line)) {
		events = append(events, event)
		if event.Terminal() {
			d.done = true
			break
		}
	}
	return events
}

// Decode reads reader to the end and yields the decoded events. The
// sequence always ends with exactly one terminal event:
//   - the handler's own done or error event,
//   - done with the remembered finish reason (or stop) at end of input,
//   - an error event when a read fails,
//   - done(cancelled) when ctx is cancelled, or a timeout error event when
//     its deadline passed.
func Decode(ctx context.Context, reader io.Reader, handler ai.LineHandler) iter.Seq[ai.StreamEvent] {
	return func(yield func(ai.StreamEvent) bool) {
		decoder := New(handler)
		chunk := make([]byte, readBufferSize)

		for {
			if ctx.Err() != nil {
				yield(Interrupted(ctx))
				return
			}

			n, err := reader.Read(chunk)
			if n > 0 {
				for _, event := range decoder.Feed(chunk[:n]) {
					if !yield(event) {
						return
					}
				}
				if decoder.Done() {
					return
				}
			}

			switch {
			case err == nil:
				continue
			case errors.Is(err, io.EOF):
				if ctx.Err() != nil {
					yield(Interrupted(ctx))
					return
				}
				for _, event := range decoder.Finish() {
					if !yield(event) {
						return
					}
				}
				return
			case ctx.Err() != nil:
				yield(Interrupted(ctx))
				return
			default:
				yield(ai.ErrorEvent(apierror.Classify(fmt.Errorf("error reading stream: %w", err))))
				return
			}
		}
	}
}

// Interrupted returns the terminal event for a stream whose ctx has ended:
// an error event of class timeout after a deadline, done(cancelled) otherwise.
func Interrupted(ctx context.Context) ai.StreamEvent {
	if apiErr := apierror.FromContext(ctx); apiErr != nil && apiErr.Class == apierror.ClassTimeout {
		return ai.ErrorEvent(apiErr)
	}
	return ai.DoneEvent(ai.FinishReasonCancelled)
}
