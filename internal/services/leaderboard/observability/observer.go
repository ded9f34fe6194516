// Package observability logs and traces each leaderboard request.
package observability

import (
	"context"
	"log"
	"time"

	"github.com/louisbranch/leaderboard/internal/platform/requestctx"
	"github.com/louisbranch/leaderboard/internal/services/leaderboard/command"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/louisbranch/leaderboard/internal/services/leaderboard"

type startedAtContextKey struct{}

// Observer writes one log line when a request arrives and one when its
// envelope is emitted, and wraps the request in a span.
type Observer struct {
	logger *log.Logger
	tracer trace.Tracer
	clock  func() time.Time
}

var _ command.Observer = (*Observer)(nil)

// Option customizes an Observer.
type Option func(*Observer)

// WithTracer replaces the global tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Observer) {
		o.tracer = tracer
	}
}

// WithClock replaces time.Now for latency measurement.
func WithClock(clock func() time.Time) Option {
	return func(o *Observer) {
		o.clock = clock
	}
}

// New builds an Observer logging to logger, or to the standard logger when
// logger is nil.
func New(logger *log.Logger, opts ...Option) *Observer {
	if logger == nil {
		logger = log.Default()
	}
	o := &Observer{logger: logger}
	for _, opt := range opts {
		opt(o)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}
	return o
}

func (o *Observer) now() time.Time {
	if o.clock == nil {
		return time.Now()
	}
	return o.clock()
}

// RequestReceived starts the request span.
func (o *Observer) RequestReceived(ctx context.Context, req command.Request) context.Context {
	ctx, span := o.tracer.Start(ctx, "leaderboard.request", trace.WithSpanKind(trace.SpanKindServer))
	span.SetAttributes(
		attribute.String("leaderboard.client", req.ClientIdentity),
		attribute.Bool("leaderboard.command_present", req.Command.Present),
		attribute.Int("leaderboard.body_bytes", len(req.RawBody)),
	)
	if id := requestctx.RequestIDFromContext(ctx); id != "" {
		span.SetAttributes(attribute.String("leaderboard.request_id", id))
	}
	o.logger.Printf("request received id=%s client=%s command=%q", requestctx.RequestIDFromContext(ctx), req.ClientIdentity, req.Command.Value)
	return context.WithValue(ctx, startedAtContextKey{}, o.now())
}

// CommandResolved tags the span with the command being run.
func (o *Observer) CommandResolved(ctx context.Context, name command.Name, protected bool) {
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("leaderboard.command", string(name)),
		attribute.Bool("leaderboard.protected", protected),
	)
}

// ResponseEmitted records the outcome and ends the span.
func (o *Observer) ResponseEmitted(ctx context.Context, env command.Envelope) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("leaderboard.error", env.Error))
	if env.OK() {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, env.Error)
	}
	span.End()

	var elapsed time.Duration
	if started, ok := ctx.Value(startedAtContextKey{}).(time.Time); ok {
		elapsed = o.now().Sub(started)
	}
	o.logger.Printf("response emitted id=%s command=%q error=%q elapsed=%s", requestctx.RequestIDFromContext(ctx), env.CommandName(), env.Error, elapsed)
}
