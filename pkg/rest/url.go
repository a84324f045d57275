package rest

import (
	"errors"
	"io"
	"net/url"
	"strings"

	"github.com/valyala/fasttemplate"
)

var (
	// ErrMissingURLParam is returned when the URL template references a
	// parameter that was not provided.
	ErrMissingURLParam = errors.New("missing value for URL parameter")

	// ErrEmptyURLParam is returned when a path parameter expands to the
	// empty string.
	ErrEmptyURLParam = errors.New("empty value for URL parameter")
)

const (
	noneEscape int = iota
	pathEscape
	queryEscape
)

// expandTemplate substitutes {name} placeholders in the path and query of u
// with the given params, escaping each substitution for the component it
// lands in. A URL without placeholders is returned unchanged.
func expandTemplate(u *url.URL, params map[string]string) (*url.URL, error) {
	if !strings.Contains(u.Path, "{") && !strings.Contains(u.RawQuery, "{") {
		return u, nil
	}

	expanded := *u

	p, err := fasttemplate.ExecuteFuncStringWithErr(u.Path, "{", "}",
		func(w io.Writer, tag string) (int, error) { return writeParam(w, tag, params, noneEscape) })
	if err != nil {
		return nil, err
	}

	rawPath, err := fasttemplate.ExecuteFuncStringWithErr(u.Path, "{", "}",
		func(w io.Writer, tag string) (int, error) { return writeParam(w, tag, params, pathEscape) })
	if err != nil {
		return nil, err
	}

	rawQuery, err := fasttemplate.ExecuteFuncStringWithErr(u.RawQuery, "{", "}",
		func(w io.Writer, tag string) (int, error) { return writeParam(w, tag, params, queryEscape) })
	if err != nil {
		return nil, err
	}

	expanded.Path = p
	expanded.RawPath = rawPath
	expanded.RawQuery = rawQuery
	return &expanded, nil
}

func writeParam(w io.Writer, tag string, params map[string]string, mode int) (int, error) {
	v, ok := params[tag]
	if !ok {
		return 0, ErrMissingURLParam
	}
	if v == "" && mode != queryEscape {
		return 0, ErrEmptyURLParam
	}

	switch mode {
	case pathEscape:
		v = url.PathEscape(v)
	case queryEscape:
		v = url.QueryEscape(v)
	}

	return w.Write([]byte(v))
}
