// Package observability wires the process's default slog logger through an
// OpenTelemetry log pipeline, in addition to a plain human-readable stream
// on stdout. There is no tracing or metrics surface here — this proxy's
// non-goals exclude a metrics endpoint, but structured logging is carried
// regardless, the way every service in this codebase's lineage carries it.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// instrumentationName identifies this process's logs to whatever backend
// receives the OTLP export.
const instrumentationName = "github.com/florianilch/copilot-bridge"

// Instrument installs the process-wide default slog logger. Every log
// record is written twice: once as plain text or JSON on stdout for a human
// or a log collector tailing the process, and once through an
// OpenTelemetry LoggerProvider floored at logLevel via minsev, exported
// either to an OTLP collector (when OTEL_EXPORTER_OTLP_LOGS_ENDPOINT is
// set) or, by default, to stdout as OTLP-shaped JSON.
func Instrument(logLevel slog.Level, logFormat string) error {
	exporter, err := newExporter(context.Background())
	if err != nil {
		return fmt.Errorf("building log exporter: %w", err)
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(
			minsev.NewLogProcessor(sdklog.NewBatchProcessor(exporter), severity(logLevel)),
		),
	)

	otelHandler := otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(provider))
	localHandler := newLocalHandler(logFormat, logLevel)

	slog.SetDefault(slog.New(teeHandler{local: localHandler, otel: otelHandler}))
	return nil
}

func newLocalHandler(logFormat string, logLevel slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: logLevel}
	if logFormat == "json" {
		return slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.NewTextHandler(os.Stdout, opts)
}

// newExporter picks an OTLP gRPC or HTTP exporter when a collector endpoint
// is configured in the environment (the standard OTEL_EXPORTER_OTLP_*
// variables), falling back to a stdout exporter otherwise so a bare local
// run still produces inspectable OTLP-shaped output.
func newExporter(ctx context.Context) (sdklog.Exporter, error) {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT")
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if endpoint == "" {
		return stdoutlog.New()
	}

	protocol := os.Getenv("OTEL_EXPORTER_OTLP_LOGS_PROTOCOL")
	if protocol == "" {
		protocol = os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL")
	}

	if protocol == "http/protobuf" {
		return otlploghttp.New(ctx)
	}
	return otlploggrpc.New(ctx)
}

// severity adapts a slog.Level into the minsev processor's floor, below
// which records are dropped before ever reaching the exporter.
func severity(level slog.Level) otellog.Severity {
	switch {
	case level <= slog.LevelDebug:
		return otellog.SeverityDebug
	case level <= slog.LevelInfo:
		return otellog.SeverityInfo
	case level <= slog.LevelWarn:
		return otellog.SeverityWarn
	default:
		return otellog.SeverityError
	}
}

// teeHandler fans every record out to both the local human-readable handler
// and the OpenTelemetry-backed one, since slog has no built-in multi-handler.
type teeHandler struct {
	local slog.Handler
	otel  slog.Handler
}

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return t.local.Enabled(ctx, level) || t.otel.Enabled(ctx, level)
}

func (t teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs [2]error
	if t.local.Enabled(ctx, record.Level) {
		errs[0] = t.local.Handle(ctx, record.Clone())
	}
	if t.otel.Enabled(ctx, record.Level) {
		errs[1] = t.otel.Handle(ctx, record.Clone())
	}
	if errs[0] != nil {
		return errs[0]
	}
	return errs[1]
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return teeHandler{local: t.local.WithAttrs(attrs), otel: t.otel.WithAttrs(attrs)}
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	return teeHandler{local: t.local.WithGroup(name), otel: t.otel.WithGroup(name)}
}
