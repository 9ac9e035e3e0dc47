package infra

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"go.opentelemetry.io/otel/trace"

	"document-signing-certificate-issuer/config"
)

// ContextHandler はコンテキスト上の相関情報をログに付与するslogハンドラ。
// Lambdaのリクエストと、OpenTelemetryが有効な場合はトレース/スパンを付与する。
type ContextHandler struct {
	slog.Handler
	projectID   string
	otelEnabled bool
}

// NewContextHandler は相関情報付きのslogハンドラを生成する。
func NewContextHandler(next slog.Handler, cfg *config.Config) *ContextHandler {
	return &ContextHandler{
		Handler:     next,
		projectID:   cfg.GoogleCloudProject,
		otelEnabled: cfg.OtelEnabled,
	}
}

// Handle はレコードに相関情報を追加して次のハンドラに渡す。
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		r.AddAttrs(slog.String("awsRequestId", lc.AwsRequestID))
	}
	if h.otelEnabled {
		r.AddAttrs(h.traceAttrs(trace.SpanContextFromContext(ctx))...)
	}
	return h.Handler.Handle(ctx, r)
}

// traceAttrs はスパンのトレース属性を返す。GCPプロジェクト指定時はCloud Logging用のキーも含める。
func (h *ContextHandler) traceAttrs(sc trace.SpanContext) []slog.Attr {
	if !sc.IsValid() {
		return nil
	}
	traceID, spanID := sc.TraceID().String(), sc.SpanID().String()
	attrs := []slog.Attr{
		slog.String("trace", traceID),
		slog.String("spanId", spanID),
		slog.Bool("traceSampled", sc.IsSampled()),
	}
	if h.projectID != "" {
		attrs = append(attrs,
			slog.String("logging.googleapis.com/trace", "projects/"+h.projectID+"/traces/"+traceID),
			slog.String("logging.googleapis.com/spanId", spanID),
		)
	}
	return attrs
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.wrap(h.Handler.WithAttrs(attrs))
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return h.wrap(h.Handler.WithGroup(name))
}

func (h *ContextHandler) wrap(next slog.Handler) *ContextHandler {
	c := *h
	c.Handler = next
	return &c
}

// ParseLevel はLOG_LEVELの値をslogのレベルに変換する。未知の値はINFOとする。
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger は相関情報付きのJSONロガーをデフォルトに設定する。
func SetupLogger(cfg *config.Config, level slog.Level) {
	json := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(NewContextHandler(json, cfg)))
}
