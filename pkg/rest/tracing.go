package rest

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const _instrumentationName = "github.com/osvaldn/go-httpcore/pkg/rest"

var (
	_methodAttr   = attribute.Key("http.request.method")
	_urlAttr      = attribute.Key("url.full")
	_statusAttr   = attribute.Key("http.response.status_code")
	_attemptsAttr = attribute.Key("httpcore.client.attempts")
)

// newSpan opens one span per logical call, covering every attempt of the
// retry chain.
func newSpan(ctx context.Context, method, url string) (context.Context, trace.Span) {
	tracer := otel.Tracer(_instrumentationName)

	ctx, span := tracer.Start(ctx, fmt.Sprintf("HTTP %s", method))
	span.SetAttributes(_methodAttr.String(method), _urlAttr.String(url))

	return ctx, span
}

// endSpan records the terminal outcome and closes the span.
func endSpan(span trace.Span, attempt, status int, err error) {
	span.SetAttributes(_attemptsAttr.Int(attempt + 1))
	if status > 0 {
		span.SetAttributes(_statusAttr.Int(status))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}
