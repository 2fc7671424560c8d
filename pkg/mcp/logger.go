package mcp

import (
	"context"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/macropower/resc/pkg/log"
)

// TracedToolHandler is the handler signature wrapped by [WithTracing].
type TracedToolHandler[In, Out any] func(
	context.Context,
	*mcp.ServerSession,
	*mcp.CallToolParamsFor[In],
) (*mcp.CallToolResultFor[Out], error)

// WithTracing wraps handler with a span per tool call, and logs the call.
// Errors and results flagged with IsError mark the span as failed.
func WithTracing[In, Out any](
	tracer trace.Tracer,
	handler TracedToolHandler[In, Out],
) mcp.ToolHandlerFor[In, Out] {
	return func(
		ctx context.Context,
		session *mcp.ServerSession,
		params *mcp.CallToolParamsFor[In],
	) (*mcp.CallToolResultFor[Out], error) {
		tool := params.Name

		ctx, span := tracer.Start(ctx, "tool "+tool,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", tool)),
		)
		defer span.End()

		logger := log.WithContext(ctx).With(slog.String("tool", tool))

		logger.DebugContext(ctx, "handling tool call",
			slog.Any("progress_token", params.GetProgressToken()),
			slog.Any("args", params.Arguments),
		)

		start := time.Now()
		result, err := handler(ctx, session, params)

		switch {
		case err != nil:
			logger.ErrorContext(ctx, "tool call failed", slog.Any("err", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())

		case result != nil && result.IsError:
			logger.DebugContext(ctx, "tool call returned an error result")
			span.SetStatus(codes.Error, "error result")

		default:
			logger.DebugContext(ctx, "tool call completed",
				slog.Duration("duration", time.Since(start)),
			)
		}

		return result, err
	}
}
