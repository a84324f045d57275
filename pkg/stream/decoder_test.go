package stream

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osvaldn/go-httpcore/pkg/rest"
)

type event struct {
	A int `json:"a"`
}

func collect[T any]() (*[]rest.Response[T], *[]error, func(rest.Response[T]), func(error)) {
	chunks := &[]rest.Response[T]{}
	finishes := &[]error{}
	return chunks, finishes,
		func(r rest.Response[T]) { *chunks = append(*chunks, r) },
		func(err error) { *finishes = append(*finishes, err) }
}

func TestDecoderPlainJSON(t *testing.T) {
	chunks, finishes, onChunk, onFinish := collect[event]()
	dec := NewDecoder(PlainJSON, onChunk, onFinish)

	dec.Append([]byte(`{"a":1}`))
	dec.Append([]byte(`{"a":2}`))
	dec.Finish(nil)

	require.Len(t, *chunks, 2)
	assert.Equal(t, 1, (*chunks)[0].Value.A)
	assert.Equal(t, 2, (*chunks)[1].Value.A)
	require.Len(t, *finishes, 1)
	assert.NoError(t, (*finishes)[0])
}

func TestDecoderPlainJSONBadChunkDoesNotPoisonNext(t *testing.T) {
	chunks, _, onChunk, onFinish := collect[event]()
	dec := NewDecoder(PlainJSON, onChunk, onFinish)

	dec.Append([]byte(`{"a":`))
	dec.Append([]byte(`{"a":3}`))

	require.Len(t, *chunks, 2)
	assert.True(t, rest.IsKind((*chunks)[0].Err, rest.KindDecoding))
	require.NoError(t, (*chunks)[1].Err)
	assert.Equal(t, 3, (*chunks)[1].Value.A)
}

func TestDecoderEventStream(t *testing.T) {
	chunks, _, onChunk, onFinish := collect[event]()
	dec := NewDecoder(EventStream, onChunk, onFinish)

	dec.Append([]byte("data: {\"a\":1}\ndata: {\"a\":2}\n\ndata: [DONE]\n"))

	require.Len(t, *chunks, 2)
	assert.Equal(t, 1, (*chunks)[0].Value.A)
	assert.Equal(t, 2, (*chunks)[1].Value.A)
}

func TestDecoderEventStreamIgnoresNonDataLines(t *testing.T) {
	chunks, _, onChunk, onFinish := collect[event]()
	dec := NewDecoder(EventStream, onChunk, onFinish)

	dec.Append([]byte("data: {\"a\":1}\n[DONE]\n"))

	require.Len(t, *chunks, 1)
	assert.Equal(t, 1, (*chunks)[0].Value.A)
}

func TestDecoderEventStreamBadLineContinues(t *testing.T) {
	chunks, _, onChunk, onFinish := collect[event]()
	dec := NewDecoder(EventStream, onChunk, onFinish)

	dec.Append([]byte("data: not-json\ndata: {\"a\":5}\n"))

	require.Len(t, *chunks, 2)
	assert.True(t, rest.IsKind((*chunks)[0].Err, rest.KindDecoding))
	assert.Equal(t, 5, (*chunks)[1].Value.A)
}

func TestDecoderFinishOnce(t *testing.T) {
	_, finishes, onChunk, onFinish := collect[event]()
	dec := NewDecoder[event](PlainJSON, onChunk, onFinish)

	dec.Finish(nil)
	dec.Finish(io.ErrUnexpectedEOF)

	require.Len(t, *finishes, 1)
	assert.NoError(t, (*finishes)[0])
}

func TestRunEventStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		io.WriteString(w, "data: {\"a\":1}\n")
		flusher.Flush()
		io.WriteString(w, "data: {\"a\":2}\ndata: [DONE]\n")
	}))
	defer srv.Close()

	chunks, finishes, onChunk, onFinish := collect[event]()
	dec := NewDecoder(EventStream, onChunk, onFinish)

	err := Run(context.Background(), NewRunner(), rest.Spec{URL: srv.URL}, dec)
	require.NoError(t, err)

	require.Len(t, *chunks, 2)
	assert.Equal(t, 1, (*chunks)[0].Value.A)
	assert.Equal(t, 2, (*chunks)[1].Value.A)
	require.Len(t, *finishes, 1)
	assert.NoError(t, (*finishes)[0])
}

func TestRunNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	chunks, finishes, onChunk, onFinish := collect[event]()
	dec := NewDecoder(EventStream, onChunk, onFinish)

	err := Run(context.Background(), NewRunner(), rest.Spec{URL: srv.URL}, dec)
	require.Error(t, err)
	assert.True(t, rest.IsKind(err, rest.KindRequestFailed))

	assert.Empty(t, *chunks)
	require.Len(t, *finishes, 1)
	assert.True(t, rest.IsKind((*finishes)[0], rest.KindRequestFailed))
}

func TestRunContextTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, finishes, onChunk, onFinish := collect[event]()
	dec := NewDecoder(EventStream, onChunk, onFinish)

	err := Run(ctx, NewRunner(), rest.Spec{URL: srv.URL}, dec)
	require.Error(t, err)
	assert.True(t, rest.IsKind(err, rest.KindTimeout))
	require.Len(t, *finishes, 1)
}
