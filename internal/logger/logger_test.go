package logger

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q)=%v, want %v", in, got, want)
		}
	}
}

func TestNewZapLogger_JSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l := NewZapLogger(&ZapLoggerConfig{Encoding: "json", Level: "warn", OutputPaths: []string{path}})
	l.Info("hidden")
	l.Warn("history persist failed", zap.String("file", "history.json"))
	_ = l.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"history persist failed"`) || !strings.Contains(out, `"file":"history.json"`) {
		t.Fatalf("unexpected log output: %s", out)
	}
}

func TestStartSpan_Noop(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "noop")
	EndSpan(span, nil)
	if fields := TraceFields(ctx); fields != nil {
		t.Fatalf("noop span should not carry trace fields, got %v", fields)
	}
}

func TestInitTracer_ExportsSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	shutdown, err := InitTracer(&buf, "test")
	if err != nil {
		t.Fatalf("InitTracer: %v", err)
	}

	ctx, span := StartSpan(context.Background(), "calculate")
	if fields := TraceFields(ctx); len(fields) != 2 {
		t.Fatalf("expected trace_id/span_id fields, got %v", fields)
	}
	EndSpan(span, nil)

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !strings.Contains(buf.String(), `"Name": "calculate"`) {
		t.Fatalf("span not exported: %s", buf.String())
	}
}
