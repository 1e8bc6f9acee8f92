package job

import (
	"testing"

	"rtedf/internal/sched"
)

func TestLoadConsumesCountsPerPeriod(t *testing.T) {
	k := sched.New(sched.Config{CountsPerTick: 10})
	t.Cleanup(k.Stop)

	id, err := k.Create(sched.TaskSpec{Name: "load", Priority: 1, Period: 10, Entry: Load(10, 25)})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	// releases at 10, 20, ..., 100; the one at 100 has not run yet
	if err := k.RunTicks(100); err != nil {
		t.Fatalf("RunTicks error: %v", err)
	}

	info, err := k.Task(id)
	if err != nil {
		t.Fatalf("Task error: %v", err)
	}
	if info.Total != 9*25 {
		t.Fatalf("Total = %d, want %d", info.Total, 9*25)
	}
	if info.Releases != 10 || info.Overruns != 0 {
		t.Fatalf("Releases = %d Overruns = %d, want 10 and 0", info.Releases, info.Overruns)
	}
}

func TestPeriodicRetiresOnPeriodMismatch(t *testing.T) {
	k := sched.New(sched.Config{CountsPerTick: 10})
	t.Cleanup(k.Stop)

	// the body waits with 7 while the task was created with 5
	id, err := k.Create(sched.TaskSpec{Name: "bad", Priority: 1, Period: 5, Entry: Load(7, 1)})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := k.RunTicks(20); err != nil {
		t.Fatalf("RunTicks error: %v", err)
	}
	info, _ := k.Task(id)
	if info.State != sched.Suspended {
		t.Fatalf("State = %v, want Suspended", info.State)
	}
	if info.Total != 1 {
		t.Fatalf("Total = %d, want 1", info.Total)
	}
}

func TestLoopCounts(t *testing.T) {
	t.Parallel()
	if got := LoopCounts(37200, 124); got != 300 {
		t.Fatalf("LoopCounts(37200, 124) = %d, want 300", got)
	}
	if got := LoopCounts(10, 3); got != 4 {
		t.Fatalf("LoopCounts(10, 3) = %d, want 4", got)
	}
	if got := LoopCounts(5, 0); got != 5 {
		t.Fatalf("LoopCounts(5, 0) = %d, want 5", got)
	}
}
