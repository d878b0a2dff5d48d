package service

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/campusworks/edubase"
)

// AuditService is the log sink. Emission is fire-and-forget: the
// mutation already committed, so sink failures are reported out-of-band
// and never surfaced to the caller.
type AuditService struct {
	signal *SignalService
}

func NewAuditService(signal *SignalService) *AuditService {
	return &AuditService{signal: signal}
}

func (s *AuditService) Emit(ctx context.Context, event edubase.Event) {
	attrs := []any{
		slog.String("type", event.Type),
		slog.String("subtype", event.Subtype),
		slog.Int64("actorId", event.ActorID),
		slog.String("kind", event.Kind),
		slog.Int64("objectId", event.ObjectID),
		slog.String("identifier", event.Identifier),
		slog.String("module", "audit"),
	}
	if span := trace.SpanFromContext(ctx); span.SpanContext().HasTraceID() {
		attrs = append(attrs, slog.String("traceId", span.SpanContext().TraceID().String()))
	}
	slog.InfoContext(ctx, "audit", attrs...)

	if s.signal == nil {
		return
	}
	if err := s.signal.Publish(ctx, event); err != nil {
		slog.WarnContext(
			ctx, "Failed to publish audit event",
			slog.String("error", err.Error()),
			slog.String("module", "audit"),
		)
	}
}
