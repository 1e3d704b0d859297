package timing_test

import (
	"strings"
	"testing"
	"time"

	"github.com/parrika/httpcore/pkg/timing"
)

func TestTimerAccumulatesPhases(t *testing.T) {
	timer := timing.NewTimer()

	timer.StartWait()
	time.Sleep(5 * time.Millisecond)
	timer.EndWait()

	timer.StartParse()
	time.Sleep(5 * time.Millisecond)
	timer.EndParse()

	timer.StartPhases()
	time.Sleep(5 * time.Millisecond)
	timer.EndPhases()

	timer.StartWrite()
	timer.MarkDelayed()
	time.Sleep(5 * time.Millisecond)
	timer.MarkResumed()
	timer.EndWrite()

	m := timer.Metrics()

	if m.AcceptToFirstByte < time.Millisecond {
		t.Errorf("unexpected wait timing: %v", m.AcceptToFirstByte)
	}
	if m.HeaderParse < time.Millisecond {
		t.Errorf("unexpected parse timing: %v", m.HeaderParse)
	}
	if m.PhasePipeline < time.Millisecond {
		t.Errorf("unexpected phase timing: %v", m.PhasePipeline)
	}
	if m.Write < time.Millisecond {
		t.Errorf("unexpected write timing: %v", m.Write)
	}
	if m.WriteDelayed < time.Millisecond {
		t.Errorf("unexpected delayed timing: %v", m.WriteDelayed)
	}
	if m.TotalTime <= 0 {
		t.Error("total timing should be positive")
	}
}

func TestMetricsString(t *testing.T) {
	m := timing.Metrics{
		AcceptToFirstByte: 10 * time.Millisecond,
		HeaderParse:       5 * time.Millisecond,
		TotalTime:         50 * time.Millisecond,
	}

	s := m.String()
	for _, want := range []string{"wait=", "parse=", "phases=", "write=", "total="} {
		if !strings.Contains(s, want) {
			t.Errorf("expected metrics string to contain %q, got %q", want, s)
		}
	}
}

func TestDelayedWindowOnlyCountedOnce(t *testing.T) {
	timer := timing.NewTimer()
	timer.MarkDelayed()
	timer.MarkDelayed() // second call before resume must be a no-op
	time.Sleep(2 * time.Millisecond)
	timer.MarkResumed()
	timer.MarkResumed() // idempotent

	m := timer.Metrics()
	if m.WriteDelayed <= 0 {
		t.Error("expected a nonzero delayed duration")
	}
}
