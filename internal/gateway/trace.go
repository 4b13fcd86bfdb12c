package gateway

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rollsum/internal/conversation"
)

const tracerName = "rollsum/internal/gateway"

type tracedGateway struct {
	next   conversation.Gateway
	tracer trace.Tracer
}

// Traced records one span per Generate call using the global tracer provider.
func Traced(next conversation.Gateway) conversation.Gateway {
	return TracedWith(next, otel.GetTracerProvider())
}

// TracedWith is Traced with an explicit tracer provider.
func TracedWith(next conversation.Gateway, tp trace.TracerProvider) conversation.Gateway {
	return &tracedGateway{next: next, tracer: tp.Tracer(tracerName)}
}

func (g *tracedGateway) Generate(ctx context.Context, turns []conversation.Turn) (conversation.Turn, error) {
	ctx, span := g.tracer.Start(ctx, "gateway.generate",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int("gateway.turns", len(turns))))
	defer span.End()

	reply, err := g.next.Generate(ctx, turns)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return reply, err
	}
	span.SetAttributes(attribute.Int("gateway.reply_chars", len(reply.Content)))
	return reply, nil
}
