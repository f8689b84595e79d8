package db

import (
	"context"
	"log/slog"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Hook interface
// ─────────────────────────────────────────────────────────────────────────────

// Hook is called before and after every statement execution.
//
// BeforeQuery may return a derived context (for example one carrying a
// tracing span); that context is the one passed to the driver and to
// AfterQuery. Implementations MUST be goroutine-safe and SHOULD be
// non-blocking. Panics inside a hook are recovered and logged.
type Hook interface {
	BeforeQuery(ctx context.Context, query string, args []any) context.Context

	// AfterQuery is invoked after the driver returns. duration is the
	// wall-clock time spent in the driver call. err is the (already mapped)
	// error returned to the caller: nil on success. For QueryRow it runs
	// from Row.Scan, so scan errors such as constraint violations on
	// INSERT ... RETURNING are reported.
	AfterQuery(ctx context.Context, query string, args []any, duration time.Duration, err error)
}

// ─────────────────────────────────────────────────────────────────────────────
// hookChain: internal dispatcher
// ─────────────────────────────────────────────────────────────────────────────

type hookChain struct {
	hooks []Hook
}

func newHookChain(hooks []Hook) hookChain {
	filtered := make([]Hook, 0, len(hooks))
	for _, h := range hooks {
		if h != nil {
			filtered = append(filtered, h)
		}
	}
	return hookChain{hooks: filtered}
}

func (c hookChain) Before(ctx context.Context, query string, args []any) context.Context {
	for _, h := range c.hooks {
		ctx = safeBeforeQuery(h, ctx, query, args)
	}
	return ctx
}

// After runs hooks in reverse order so nested spans close innermost first.
func (c hookChain) After(ctx context.Context, query string, args []any, d time.Duration, err error) {
	for i := len(c.hooks) - 1; i >= 0; i-- {
		safeAfterQuery(c.hooks[i], ctx, query, args, d, err)
	}
}

func safeBeforeQuery(h Hook, ctx context.Context, query string, args []any) (out context.Context) {
	out = ctx
	defer func() {
		if r := recover(); r != nil {
			slog.Error("catalog/db: hook panic in BeforeQuery", "panic", r)
			out = ctx
		}
	}()
	if next := h.BeforeQuery(ctx, query, args); next != nil {
		out = next
	}
	return out
}

func safeAfterQuery(h Hook, ctx context.Context, query string, args []any, d time.Duration, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("catalog/db: hook panic in AfterQuery", "panic", r)
		}
	}()
	h.AfterQuery(ctx, query, args, d, err)
}

// ─────────────────────────────────────────────────────────────────────────────
// Built-in hooks
// ─────────────────────────────────────────────────────────────────────────────

// ── Logging hook ─────────────────────────────────────────────────────────────

// LogHookConfig configures the structured logging hook.
type LogHookConfig struct {
	// Logger defaults to slog.Default() if nil.
	Logger *slog.Logger
	// SlowQueryThreshold logs a warning when duration exceeds this value.
	// Zero disables slow-query logging.
	SlowQueryThreshold time.Duration
	// LogArgs includes bound parameters in log entries.
	LogArgs bool
}

// NewLogHook returns a Hook that emits structured log entries via slog.
func NewLogHook(cfg LogHookConfig) Hook {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &logHook{cfg: cfg, logger: logger}
}

type logHook struct {
	cfg    LogHookConfig
	logger *slog.Logger
}

func (h *logHook) BeforeQuery(ctx context.Context, _ string, _ []any) context.Context { return ctx }

func (h *logHook) AfterQuery(ctx context.Context, query string, args []any, d time.Duration, err error) {
	attrs := []any{
		slog.String("query", trimQuery(query)),
		slog.Duration("duration", d),
	}
	if h.cfg.LogArgs && len(args) > 0 {
		attrs = append(attrs, slog.Any("args", args))
	}

	// Not-found and constraint violations are ordinary outcomes for the
	// caller, not query failures.
	if err != nil && !IsNotFound(err) && !IsDuplicateKey(err) && !IsCheckViolation(err) {
		h.logger.ErrorContext(ctx, "catalog/db: query error", append(attrs, slog.Any("error", err))...)
		return
	}

	if h.cfg.SlowQueryThreshold > 0 && d > h.cfg.SlowQueryThreshold {
		h.logger.WarnContext(ctx, "catalog/db: slow query", attrs...)
		return
	}

	h.logger.DebugContext(ctx, "catalog/db: query", attrs...)
}

func trimQuery(q string) string {
	if len(q) > 500 {
		return q[:500] + "…"
	}
	return q
}

// ── Metrics hook ─────────────────────────────────────────────────────────────

// MetricsCollector is the interface a metrics backend implements.
type MetricsCollector interface {
	// RecordQuery is called after every statement.
	// success is false if the statement failed; ErrNotFound counts as success.
	RecordQuery(query string, duration time.Duration, success bool)
}

// NewMetricsHook returns a Hook that delegates to a MetricsCollector.
func NewMetricsHook(collector MetricsCollector) Hook {
	return &metricsHook{c: collector}
}

type metricsHook struct{ c MetricsCollector }

func (h *metricsHook) BeforeQuery(ctx context.Context, _ string, _ []any) context.Context { return ctx }
func (h *metricsHook) AfterQuery(_ context.Context, query string, _ []any, d time.Duration, err error) {
	h.c.RecordQuery(query, d, err == nil || IsNotFound(err))
}

// ── Tracing hook ─────────────────────────────────────────────────────────────

// Tracer is the interface a tracing backend implements.
type Tracer interface {
	// StartSpan is called before the query. The returned context must carry
	// the span so that EndSpan can finish it.
	StartSpan(ctx context.Context, query string) context.Context
	// EndSpan is called after the query completes.
	EndSpan(ctx context.Context, err error)
}

// NewTracingHook returns a Hook wrapping a Tracer.
func NewTracingHook(t Tracer) Hook { return &tracingHook{t: t} }

type tracingHook struct{ t Tracer }

func (h *tracingHook) BeforeQuery(ctx context.Context, query string, _ []any) context.Context {
	return h.t.StartSpan(ctx, query)
}

func (h *tracingHook) AfterQuery(ctx context.Context, _ string, _ []any, _ time.Duration, err error) {
	h.t.EndSpan(ctx, err)
}
