// Package stream decodes HTTP response bodies incrementally, turning raw
// byte chunks into typed values as they arrive.
//
// Two framing modes are supported. PlainJSON models a server that writes
// one complete JSON object per network read boundary: every append is
// decoded as a whole and the buffer never accumulates across decode
// passes. EventStream interprets the bytes as "data: ..." lines, emitting
// one value per line and dropping the [DONE] sentinel.
package stream

import (
	"bytes"
	"strings"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/osvaldn/go-httpcore/pkg/rest"
)

// Mode selects the framing of a Decoder.
type Mode int

const (
	// PlainJSON decodes every appended chunk as one complete JSON value.
	PlainJSON Mode = iota

	// EventStream decodes "data: ..." lines, one value per line.
	EventStream
)

const (
	_dataPrefix   = "data: "
	_doneSentinel = "[DONE]"
)

// Decoder is an incremental buffer-to-value decoder. One Decoder serves
// one response stream; it owns its buffer and is not shared across tasks.
// Append must be called from a single goroutine (the transport's chunk
// callback); Finish may be called from any goroutine and delivers the
// terminal event exactly once.
type Decoder[T any] struct {
	mode     Mode
	buf      bytes.Buffer
	onChunk  func(rest.Response[T])
	onFinish func(error)
	finish   sync.Once
	metrics  *rest.Collector
}

// DecoderOption configures a Decoder.
type DecoderOption[T any] func(*Decoder[T])

// WithMetrics records emitted chunks on the given collector.
func WithMetrics[T any](m *rest.Collector) DecoderOption[T] {
	return func(d *Decoder[T]) { d.metrics = m }
}

// NewDecoder builds a Decoder. onChunk receives one envelope per decoded
// value (or per value-level decode failure); onFinish receives the single
// terminal event.
func NewDecoder[T any](mode Mode, onChunk func(rest.Response[T]), onFinish func(error), opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{
		mode:     mode,
		onChunk:  onChunk,
		onFinish: onFinish,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Append feeds the next chunk of body bytes into the decoder, emitting
// zero or more envelopes through the chunk callback.
func (d *Decoder[T]) Append(p []byte) {
	d.buf.Write(p)

	switch d.mode {
	case PlainJSON:
		d.decodeWhole()
	case EventStream:
		d.decodeLines()
	}
}

// Finish emits the terminal event. Exactly one terminal event is
// delivered regardless of how many chunks were emitted or how many times
// Finish is called.
func (d *Decoder[T]) Finish(err error) {
	d.finish.Do(func() {
		if d.onFinish != nil {
			d.onFinish(err)
		}
	})
}

// decodeWhole decodes the entire buffer as one T and clears it, success or
// not: a failed pass never retries against unchanged bytes.
func (d *Decoder[T]) decodeWhole() {
	body := append([]byte(nil), d.buf.Bytes()...)
	d.buf.Reset()

	d.emit(body)
}

// decodeLines splits the buffered text into lines, decodes each "data: "
// payload independently, and clears the buffer. A failed line emits an
// error envelope for that line only and never aborts the stream.
func (d *Decoder[T]) decodeLines() {
	text := d.buf.String()
	d.buf.Reset()

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if !strings.HasPrefix(line, _dataPrefix) {
			continue
		}

		payload := strings.TrimPrefix(line, _dataPrefix)
		if payload == _doneSentinel {
			continue
		}

		d.emit([]byte(payload))
	}
}

func (d *Decoder[T]) emit(body []byte) {
	var v T
	if err := sonic.Unmarshal(body, &v); err != nil {
		d.onChunk(rest.Response[T]{
			Body: body,
			Err:  &rest.Error{Kind: rest.KindDecoding, Body: body, Cause: err},
		})
		return
	}

	d.metrics.StreamChunk()
	d.onChunk(rest.Response[T]{Body: body, Value: v})
}
