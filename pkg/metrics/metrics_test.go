package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/parrika/httpcore/pkg/metrics"
)

func TestNewCollectorRegistersMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.ConnectionsAccepted.Inc()
	c.ConnectionsClosed.WithLabelValues("keepalive_timeout").Inc()
	c.RequestsTotal.WithLabelValues(metrics.StatusClass(204)).Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("unexpected error gathering metrics: %v", err)
	}
	if len(families) == 0 {
		t.Fatalf("expected at least one metric family registered")
	}
}

func TestStatusClassBuckets(t *testing.T) {
	cases := map[int]string{
		200: "2xx",
		204: "2xx",
		301: "3xx",
		404: "4xx",
		500: "5xx",
		0:   "other",
	}
	for status, want := range cases {
		if got := metrics.StatusClass(status); got != want {
			t.Fatalf("StatusClass(%d) = %q, want %q", status, got, want)
		}
	}
}
