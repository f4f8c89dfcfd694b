package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func counterValue(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue next
				}
			}
			if c := metric.GetCounter(); c != nil {
				return c.GetValue()
			}
			if h := metric.GetHistogram(); h != nil {
				return float64(h.GetSampleCount())
			}
		}
	}
	return 0
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetupLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger("info", "json", &buf)
	logger.Debug("hidden")
	logger.Info("stored", "digest", "abc")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec["msg"] != "stored" || rec["digest"] != "abc" {
		t.Errorf("record = %v", rec)
	}
}

func TestPrettyHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger("debug", "text", &buf)
	logger.WithGroup("gc").With("backend", "fs").Warn("removed", "name", "x.tmp")

	out := buf.String()
	for _, want := range []string{"WRN", "removed", "gc.backend=fs", "gc.name=x.tmp"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("color codes written to non-terminal: %q", out)
	}
}

func TestOperationRecordsMetrics(t *testing.T) {
	m := NewMetrics()
	var buf bytes.Buffer
	logger := SetupLogger("debug", "json", &buf)

	op, _ := StartOperation(context.Background(), logger, m, "store")
	op.End(nil)
	op, _ = StartOperation(context.Background(), logger, m, "store")
	op.End(errors.New("boom"))

	if got := counterValue(t, m, "scs_operation_total", map[string]string{"operation": "store", "status": "ok"}); got != 1 {
		t.Errorf("ok count = %v, want 1", got)
	}
	if got := counterValue(t, m, "scs_operation_total", map[string]string{"operation": "store", "status": "error"}); got != 1 {
		t.Errorf("error count = %v, want 1", got)
	}
	if got := counterValue(t, m, "scs_operation_duration_seconds", map[string]string{"operation": "store", "status": "ok"}); got != 1 {
		t.Errorf("duration samples = %v, want 1", got)
	}
	if !strings.Contains(buf.String(), "operation failed") {
		t.Errorf("missing failure log: %s", buf.String())
	}
}

func TestNilMetricsSafe(t *testing.T) {
	var m *Metrics
	m.AddBytes("in", 10)
	m.CountObject("block", "written")
	m.CountError("store", "io")

	op, _ := StartOperation(context.Background(), nil, nil, "load")
	op.End(nil)
}

func TestMetricsHelpers(t *testing.T) {
	m := NewMetrics()
	m.AddBytes("in", 10)
	m.AddBytes("in", 5)
	m.AddBytes("in", 0)
	m.CountObject("block", "written")
	m.CountObject("block", "written")
	m.CountError("check", "checksum")

	if got := counterValue(t, m, "scs_bytes_processed_total", map[string]string{"direction": "in"}); got != 15 {
		t.Errorf("bytes = %v, want 15", got)
	}
	if got := counterValue(t, m, "scs_objects_total", map[string]string{"kind": "block", "result": "written"}); got != 2 {
		t.Errorf("objects = %v, want 2", got)
	}
	if got := counterValue(t, m, "scs_errors_total", map[string]string{"operation": "check", "type": "checksum"}); got != 1 {
		t.Errorf("errors = %v, want 1", got)
	}
}

func TestShutdownOrder(t *testing.T) {
	var order []string
	s := &ShutdownCoordinator{}
	s.Register("first", func(context.Context) error { order = append(order, "first"); return nil })
	s.Register("second", func(context.Context) error { order = append(order, "second"); return errors.New("fail") })
	s.Register("third", func(context.Context) error { order = append(order, "third"); return nil })

	err := s.Shutdown(context.Background())
	if err == nil || !strings.Contains(err.Error(), "second: fail") {
		t.Errorf("err = %v, want second: fail", err)
	}
	if strings.Join(order, ",") != "third,second,first" {
		t.Errorf("order = %v", order)
	}

	order = nil
	if err := s.Shutdown(context.Background()); err != nil {
		t.Errorf("second shutdown: %v", err)
	}
	if len(order) != 0 {
		t.Errorf("handlers ran twice: %v", order)
	}
}

func TestNewWritesMetricsFileOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scs.prom")
	var buf bytes.Buffer
	obs, err := New(context.Background(), Config{
		LogLevel:    "info",
		LogFormat:   "json",
		MetricsFile: path,
		ServiceName: "scs",
	}, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	obs.Metrics.AddBytes("out", 3)

	if err := obs.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read metrics file: %v", err)
	}
	if !strings.Contains(string(data), `scs_bytes_processed_total{direction="out"} 3`) {
		t.Errorf("metrics file missing counter:\n%s", data)
	}
}

func TestNewRejectsUnknownProtocol(t *testing.T) {
	_, err := New(context.Background(), Config{
		OTLPEndpoint: "localhost:4317",
		OTLPProtocol: "carrier-pigeon",
	}, &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected error for unknown protocol")
	}
}
