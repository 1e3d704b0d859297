package writer_test

import (
	"errors"
	"testing"
	"time"

	"github.com/parrika/httpcore/pkg/timing"
	"github.com/parrika/httpcore/pkg/writer"
)

type fakeFilter struct {
	stillBuffered bool
	err           error
	calls         int
}

func (f *fakeFilter) Flush(chain []byte) (bool, error) {
	f.calls++
	return f.stillBuffered, f.err
}

func TestWakeCompletesWhenFilterDrains(t *testing.T) {
	f := &fakeFilter{stillBuffered: false}
	d := writer.NewDriver(f, 5*time.Second, timing.NewTimer())
	now := time.Now()
	d.Arm(now)

	res, err := d.Wake(now, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != writer.WakeComplete {
		t.Fatalf("expected WakeComplete, got %v", res)
	}
}

func TestWakeRearmsWhenStillBuffered(t *testing.T) {
	f := &fakeFilter{stillBuffered: true}
	d := writer.NewDriver(f, 5*time.Second, timing.NewTimer())
	now := time.Now()
	d.Arm(now)

	res, err := d.Wake(now, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != writer.WakeStillBuffered {
		t.Fatalf("expected WakeStillBuffered, got %v", res)
	}
}

func TestWakeTimesOutWhenNotDelayed(t *testing.T) {
	f := &fakeFilter{stillBuffered: true}
	d := writer.NewDriver(f, 10*time.Millisecond, timing.NewTimer())
	start := time.Now()
	d.Arm(start)

	later := start.Add(50 * time.Millisecond)
	res, err := d.Wake(later, nil)
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if res != writer.WakeTimedOut {
		t.Fatalf("expected WakeTimedOut, got %v", res)
	}
}

func TestWakeDoesNotTimeOutWhileDelayed(t *testing.T) {
	f := &fakeFilter{stillBuffered: true}
	d := writer.NewDriver(f, 10*time.Millisecond, timing.NewTimer())
	start := time.Now()
	d.Arm(start)
	d.MarkDelayed()

	later := start.Add(50 * time.Millisecond)
	res, err := d.Wake(later, nil)
	if err != nil {
		t.Fatalf("unexpected error while delayed: %v", err)
	}
	if res != writer.WakeStillBuffered {
		t.Fatalf("expected WakeStillBuffered, got %v", res)
	}
}

func TestWakePropagatesFilterError(t *testing.T) {
	f := &fakeFilter{err: errors.New("boom")}
	d := writer.NewDriver(f, 5*time.Second, timing.NewTimer())
	now := time.Now()
	d.Arm(now)

	res, err := d.Wake(now, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if res != writer.WakeTimedOut {
		t.Fatalf("expected WakeTimedOut sentinel on filter error, got %v", res)
	}
}
