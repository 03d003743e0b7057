package metrics

import (
	"testing"

	"github.com/dailyyoga/regstats/logger"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func gather(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	t.Fatalf("metric %s not found", name)
	return nil
}

func TestName(t *testing.T) {
	tests := []struct {
		parts []string
		want  string
	}{
		{[]string{"national", RefreshTotal}, "regstats_national_refresh_total"},
		{[]string{"shan-dong", SnapshotRegions}, "regstats_shan_dong_snapshot_regions"},
		{[]string{"", HTTPRequests}, "regstats_http_requests_total"},
	}
	for _, tt := range tests {
		if got := Name(tt.parts...); got != tt.want {
			t.Errorf("Name(%v) = %q, want %q", tt.parts, got, tt.want)
		}
	}
}

func TestPrometheus_Counter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheus(reg)

	c.IncCounter("test_counter", 5)
	c.IncCounter("test_counter", 3)

	f := gather(t, reg, "test_counter")
	if v := f.GetMetric()[0].GetCounter().GetValue(); v != 8 {
		t.Errorf("counter value = %v, want 8", v)
	}
}

func TestPrometheus_GaugeAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheus(reg)

	c.SetGauge("test_gauge", 42.5)
	c.SetGauge("test_gauge", 7)
	c.ObserveHistogram("test_seconds", 0.2)
	c.ObserveHistogram("test_seconds", 1.3)

	if v := gather(t, reg, "test_gauge").GetMetric()[0].GetGauge().GetValue(); v != 7 {
		t.Errorf("gauge value = %v, want 7", v)
	}
	if n := gather(t, reg, "test_seconds").GetMetric()[0].GetHistogram().GetSampleCount(); n != 2 {
		t.Errorf("histogram sample count = %d, want 2", n)
	}
}

func TestPrometheus_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := NewPrometheus(reg)
	b := NewPrometheus(reg)

	a.IncCounter("shared_total", 1)
	b.IncCounter("shared_total", 2)

	if v := gather(t, reg, "shared_total").GetMetric()[0].GetCounter().GetValue(); v != 3 {
		t.Errorf("shared counter = %v, want 3", v)
	}
}

func TestLog(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	c := NewLog(zap.New(core))

	c.IncCounter("a", 1)
	c.SetGauge("b", 2)
	c.ObserveHistogram("c", 3)

	if logs.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", logs.Len())
	}
	if got := logs.All()[1].ContextMap()["metric"]; got != "b" {
		t.Errorf("metric field = %v, want b", got)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		backend string
		wantErr bool
	}{
		{"prometheus", false},
		{"log", false},
		{"noop", false},
		{"statsd", true},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			c, err := New(&Config{Backend: tt.backend}, prometheus.NewRegistry(), logger.NewNop())
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			c.IncCounter("x_total", 1)
		})
	}
}
