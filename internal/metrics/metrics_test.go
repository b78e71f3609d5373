package metrics

import (
	"strings"
	"testing"
	"time"
)

func TestCounterAccumulates(t *testing.T) {
	r := NewRegistry()
	c := r.Counter("requests_total", "Total requests.")
	c.Inc()
	c.Add(2)
	c.Add(-5)

	if got := c.Value(); got != 3 {
		t.Errorf("value = %v, want 3", got)
	}
	if again := r.Counter("requests_total", "ignored"); again != c {
		t.Error("same name should return the same counter")
	}
}

func TestGaugeSetAndAdd(t *testing.T) {
	r := NewRegistry()
	g := r.Gauge("active_jobs", "Jobs in flight.")
	g.Set(5)
	g.Add(-2)
	if got := g.Value(); got != 3 {
		t.Errorf("value = %v, want 3", got)
	}
}

func TestTimingObserve(t *testing.T) {
	r := NewRegistry()
	tm := r.Timing("request_duration_seconds", "Request latency.")
	tm.Observe(100 * time.Millisecond)
	tm.Observe(400 * time.Millisecond)
	if got := tm.Count(); got != 2 {
		t.Errorf("count = %d, want 2", got)
	}
}

func TestRenderPrometheusText(t *testing.T) {
	r := NewRegistry()
	r.Counter("zeta_total", "Last alphabetically.").Inc()
	r.Gauge("alpha_value", "First alphabetically.").Set(2.5)
	tm := r.Timing("mid_duration_seconds", "")
	tm.Observe(time.Second)

	out := r.Render()

	for _, want := range []string{
		"# HELP zeta_total Last alphabetically.",
		"# TYPE zeta_total counter",
		"zeta_total 1",
		"# TYPE alpha_value gauge",
		"alpha_value 2.5",
		"# TYPE mid_duration_seconds summary",
		"mid_duration_seconds_sum 1",
		"mid_duration_seconds_count 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q in:\n%s", want, out)
		}
	}

	// Sorted by name: alpha before mid before zeta.
	if strings.Index(out, "alpha_value") > strings.Index(out, "zeta_total") {
		t.Error("metrics not sorted by name")
	}
}
