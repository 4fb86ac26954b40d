// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// base 是全局日志实例，所有服务共享同一个输出格式。
var base = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Init 在服务启动时设置服务名和日志级别。
// 各 cmd 的 main 函数在加载配置后调用一次。
func Init(serviceName, level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	base = zerolog.New(os.Stdout).
		Level(lvl).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

// L 返回不带请求上下文的全局 Logger。
func L() *zerolog.Logger {
	return &base
}

// Ctx 返回一个携带链路信息的 Logger。
// 如果 ctx 中存在有效的 otel Span，则自动附加 trace_id / span_id 字段，
// 便于在日志系统中与 Jaeger 链路互相跳转。
func Ctx(ctx context.Context) *zerolog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return &base
	}
	l := base.With().
		Str("trace_id", sc.TraceID().String()).
		Str("span_id", sc.SpanID().String()).
		Logger()
	return &l
}
