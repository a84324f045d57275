package transfer

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/url"
	"os"
	"strings"

	"github.com/gofrs/uuid"

	"github.com/osvaldn/go-httpcore/pkg/rest"
)

// Body describes an upload payload. Size is -1 when the length is not
// known up front, which disables progress ratios for the task.
type Body struct {
	// ContentType is sent as the request Content-Type header.
	ContentType string

	// Size is the payload length in bytes, or -1 when unknown.
	Size int64

	open func() (io.ReadCloser, error)
}

// Bytes builds a Body from an in-memory payload. An empty contentType
// defaults to application/octet-stream.
func Bytes(p []byte, contentType string) Body {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return Body{
		ContentType: contentType,
		Size:        int64(len(p)),
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(p)), nil
		},
	}
}

// File builds a Body that streams the file at path without loading it
// into memory. The file is opened when the upload starts; a missing or
// unreadable file fails the task with an invalid request error.
func File(path, contentType string) Body {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	size := int64(-1)
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}

	return Body{
		ContentType: contentType,
		Size:        size,
		open: func() (io.ReadCloser, error) {
			f, err := os.Open(path)
			if err != nil {
				return nil, &rest.Error{Kind: rest.KindInvalidRequest, Cause: err}
			}
			return f, nil
		},
	}
}

// FormURLEncoded builds an application/x-www-form-urlencoded Body from
// ordered parameters.
func FormURLEncoded(params []rest.Param) Body {
	values := url.Values{}
	for _, p := range params {
		values.Add(p.Name, rest.ParamString(p.Value))
	}
	encoded := values.Encode()
	return Bytes([]byte(encoded), "application/x-www-form-urlencoded")
}

// MultipartBuilder assembles a multipart/form-data payload. Parts are
// written in the order they are added, and the payload is closed with the
// final boundary line. The first error sticks and surfaces at Finalize.
type MultipartBuilder struct {
	buf    bytes.Buffer
	writer *multipart.Writer
	err    error
}

// NewMultipartBuilder returns a builder with a fresh random boundary.
func NewMultipartBuilder() *MultipartBuilder {
	b := &MultipartBuilder{}
	b.writer = multipart.NewWriter(&b.buf)

	if id, err := uuid.NewV4(); err == nil {
		boundary := "httpcore-" + strings.ReplaceAll(id.String(), "-", "")
		if err := b.writer.SetBoundary(boundary); err != nil {
			b.err = err
		}
	}
	return b
}

// Boundary returns the boundary string used between parts.
func (b *MultipartBuilder) Boundary() string { return b.writer.Boundary() }

// AddField appends a plain form field part.
func (b *MultipartBuilder) AddField(name, value string) *MultipartBuilder {
	if b.err != nil {
		return b
	}
	b.err = b.writer.WriteField(name, value)
	return b
}

// AddBytes appends a file part with an in-memory payload.
func (b *MultipartBuilder) AddBytes(field, filename string, p []byte) *MultipartBuilder {
	if b.err != nil {
		return b
	}
	part, err := b.writer.CreateFormFile(field, filename)
	if err != nil {
		b.err = err
		return b
	}
	_, b.err = part.Write(p)
	return b
}

// AddFile appends a file part read from disk. An unreadable file is
// reported as an invalid request error at Finalize rather than a silent
// empty part.
func (b *MultipartBuilder) AddFile(field, path string) *MultipartBuilder {
	if b.err != nil {
		return b
	}

	p, err := os.ReadFile(path)
	if err != nil {
		b.err = &rest.Error{Kind: rest.KindInvalidRequest, Cause: err}
		return b
	}

	name := path
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		name = path[i+1:]
	}
	return b.AddBytes(field, name, p)
}

// Finalize writes the closing boundary and returns the assembled Body.
// The builder must not be reused afterwards.
func (b *MultipartBuilder) Finalize() (Body, error) {
	if b.err != nil {
		return Body{}, b.err
	}
	if err := b.writer.Close(); err != nil {
		return Body{}, err
	}
	return Bytes(b.buf.Bytes(), b.writer.FormDataContentType()), nil
}
