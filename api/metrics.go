package api

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("tabi-api/api")

type sessionRequestMetrics struct {
	logger        *log.Logger
	span          trace.Span
	start         time.Time
	authDuration  time.Duration
	roleDuration  time.Duration
	issueDuration time.Duration
	anonymous     bool
	errorStage    string
}

// newSessionRequestMetrics opens a trace span for the request and collects
// per-stage timings for the structured log line emitted on completion.
func newSessionRequestMetrics(ctx context.Context, logger *log.Logger) (*sessionRequestMetrics, context.Context) {
	spanCtx, span := tracer.Start(ctx, "session.issue")
	return &sessionRequestMetrics{logger: logger, span: span, start: time.Now()}, spanCtx
}

func (m *sessionRequestMetrics) ObserveAuth(d time.Duration) {
	if d > 0 {
		m.authDuration = d
	}
}

func (m *sessionRequestMetrics) ObserveRole(d time.Duration) {
	if d > 0 {
		m.roleDuration = d
	}
}

func (m *sessionRequestMetrics) ObserveIssue(d time.Duration) {
	if d > 0 {
		m.issueDuration = d
	}
}

func (m *sessionRequestMetrics) SetAnonymous(anon bool) {
	m.anonymous = anon
}

func (m *sessionRequestMetrics) SetErrorStage(stage string) {
	if stage != "" {
		m.errorStage = stage
	}
}

func (m *sessionRequestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}
	if m.span != nil {
		m.span.SetAttributes(
			attribute.Int("http.status_code", status),
			attribute.Bool("session.anonymous", m.anonymous),
		)
		if err != nil {
			m.span.SetStatus(codes.Error, err.Error())
		}
		m.span.End()
	}
	if m.logger == nil {
		return
	}

	fields := log.Fields{
		"route":     "/api/session",
		"status":    status,
		"total_ms":  durationToMillis(time.Since(m.start)),
		"anonymous": m.anonymous,
	}
	if m.authDuration > 0 {
		fields["auth_ms"] = durationToMillis(m.authDuration)
	}
	if m.roleDuration > 0 {
		fields["role_ms"] = durationToMillis(m.roleDuration)
	}
	if m.issueDuration > 0 {
		fields["issue_ms"] = durationToMillis(m.issueDuration)
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	entry := m.logger.WithFields(fields)
	if err != nil || m.errorStage != "" {
		entry.Warn("session request")
		return
	}
	entry.Info("session request")
}

type mutationRequestMetrics struct {
	logger        *log.Logger
	span          trace.Span
	start         time.Time
	applyDuration time.Duration
	received      int
	applied       int
	ignored       int
	duplicates    int
	errorStage    string
}

func newMutationRequestMetrics(ctx context.Context, logger *log.Logger) (*mutationRequestMetrics, context.Context) {
	spanCtx, span := tracer.Start(ctx, "board.mutate")
	return &mutationRequestMetrics{logger: logger, span: span, start: time.Now()}, spanCtx
}

func (m *mutationRequestMetrics) ObserveApply(d time.Duration) {
	if d > 0 {
		m.applyDuration = d
	}
}

func (m *mutationRequestMetrics) SetCounts(received, applied, ignored, duplicates int) {
	m.received = received
	m.applied = applied
	m.ignored = ignored
	m.duplicates = duplicates
}

func (m *mutationRequestMetrics) SetErrorStage(stage string) {
	if stage != "" {
		m.errorStage = stage
	}
}

func (m *mutationRequestMetrics) Log(status int, roomID string, err error) {
	if m == nil {
		return
	}
	if m.span != nil {
		m.span.SetAttributes(
			attribute.Int("http.status_code", status),
			attribute.String("room.id", roomID),
			attribute.Int("mutations.applied", m.applied),
			attribute.Int("mutations.ignored", m.ignored),
		)
		if err != nil {
			m.span.SetStatus(codes.Error, err.Error())
		}
		m.span.End()
	}
	if m.logger == nil {
		return
	}

	fields := log.Fields{
		"route":      "/api/rooms/:room/mutations",
		"room":       roomID,
		"status":     status,
		"total_ms":   durationToMillis(time.Since(m.start)),
		"received":   m.received,
		"applied":    m.applied,
		"ignored":    m.ignored,
		"duplicates": m.duplicates,
	}
	if m.applyDuration > 0 {
		fields["apply_ms"] = durationToMillis(m.applyDuration)
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	entry := m.logger.WithFields(fields)
	if err != nil || m.errorStage != "" {
		entry.Warn("mutation request")
		return
	}
	entry.Debug("mutation request")
}

func durationToMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
