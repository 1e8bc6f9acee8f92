package sched

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestStepBeforeStart(t *testing.T) {
	k := newTestKernel(t)
	if err := k.Step(); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("Step error = %v, want ErrNotStarted", err)
	}
}

func TestSuspendedTaskKeepsPeriod(t *testing.T) {
	k := newTestKernel(t)
	id := mustCreate(t, k, TaskSpec{Name: "a", Priority: 1, Period: 10, Entry: periodic(10, 1)})
	mustRun(t, k, 5)
	if err := k.Suspend(id); err != nil {
		t.Fatalf("Suspend error: %v", err)
	}
	mustRun(t, k, 30)
	info := mustInfo(t, k, id)
	if info.State != Suspended || info.Releases != 0 || info.Deadline != 40 {
		t.Fatalf("state=%s releases=%d deadline=%d, want Suspended 0 40", info.State, info.Releases, info.Deadline)
	}

	if err := k.Resume(id); err != nil {
		t.Fatalf("Resume error: %v", err)
	}
	if s := mustInfo(t, k, id).State; s != BlockedPeriod {
		t.Fatalf("resumed state = %s, want Blocked(period)", s)
	}
	mustRun(t, k, 10)
	if r := mustInfo(t, k, id).Releases; r != 1 {
		t.Fatalf("releases after resume = %d, want 1", r)
	}
	if err := k.Suspend(99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Suspend(99) error = %v, want ErrNotFound", err)
	}
}

func TestSuspendRunningTask(t *testing.T) {
	k := newTestKernel(t)
	id := mustCreate(t, k, TaskSpec{Name: "long", Priority: 1, Period: 5, Entry: func(tc *TaskContext) {
		lastWake := tc.TickCount()
		for {
			tc.WorkTicks(100)
			if err := tc.DelayUntil(&lastWake, 5); err != nil {
				return
			}
		}
	}})
	mustRun(t, k, 10)
	if s := mustInfo(t, k, id).State; s != Running {
		t.Fatalf("state = %s, want Running", s)
	}
	if err := k.Suspend(id); err != nil {
		t.Fatalf("Suspend error: %v", err)
	}
	if st := k.Stats(); st.Running != IdleID {
		t.Fatalf("running = %d after suspend, want idle", st.Running)
	}
	mustRun(t, k, 10)
	if total := mustInfo(t, k, id).Total; total != 50 {
		t.Fatalf("total = %d, want 50", total)
	}
	if err := k.Resume(id); err != nil {
		t.Fatalf("Resume error: %v", err)
	}
	mustRun(t, k, 5)
	if total := mustInfo(t, k, id).Total; total != 100 {
		t.Fatalf("total = %d, want 100", total)
	}
}

func TestTaskSuspendsAndResumesPeer(t *testing.T) {
	k := newTestKernel(t)
	worker := mustCreate(t, k, TaskSpec{Name: "worker", Priority: 2, Period: 5, Entry: periodic(5, 1)})
	mustCreate(t, k, TaskSpec{Name: "ctl", Priority: 1, Period: 20, Entry: func(tc *TaskContext) {
		lastWake := tc.TickCount()
		for i := 0; ; i++ {
			var err error
			if i%2 == 0 {
				err = tc.Suspend(worker)
			} else {
				err = tc.Resume(worker)
			}
			if err != nil {
				t.Errorf("ctl error: %v", err)
				return
			}
			tc.Work(1)
			if err := tc.DelayUntil(&lastWake, 20); err != nil {
				return
			}
		}
	}})
	mustRun(t, k, 39)
	// suspended at 20 after releases at 5, 10, 15 and 20
	if info := mustInfo(t, k, worker); info.State != Suspended || info.Releases != 4 {
		t.Fatalf("worker state=%s releases=%d, want Suspended 4", info.State, info.Releases)
	}
	mustRun(t, k, 11)
	if info := mustInfo(t, k, worker); info.State == Suspended || info.Releases != 6 {
		t.Fatalf("worker state=%s releases=%d, want resumed with 6", info.State, info.Releases)
	}
}

func TestYieldRunsEqualsFirst(t *testing.T) {
	k := newTestKernel(t)
	var order []string
	mustCreate(t, k, TaskSpec{Name: "A", Priority: 1, Period: 10, Entry: func(tc *TaskContext) {
		lastWake := tc.TickCount()
		for {
			order = append(order, "A1")
			tc.Yield()
			order = append(order, "A2")
			tc.Work(1)
			if err := tc.DelayUntil(&lastWake, 10); err != nil {
				return
			}
		}
	}})
	mustCreate(t, k, TaskSpec{Name: "B", Priority: 1, Period: 10, Entry: func(tc *TaskContext) {
		lastWake := tc.TickCount()
		for {
			order = append(order, "B")
			tc.Work(1)
			if err := tc.DelayUntil(&lastWake, 10); err != nil {
				return
			}
		}
	}})
	mustRun(t, k, 15)
	if want := []string{"A1", "B", "A2"}; !reflect.DeepEqual(order, want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
}

func TestBlockTimesOut(t *testing.T) {
	k := newTestKernel(t)
	wl := NewWaitList()
	var woken []bool
	var at []Tick
	mustCreate(t, k, TaskSpec{Name: "waiter", Priority: 1, Period: 50, Entry: func(tc *TaskContext) {
		lastWake := tc.TickCount()
		for {
			woken = append(woken, tc.Block(wl, 0))
			woken = append(woken, tc.Block(wl, 5))
			at = append(at, tc.TickCount())
			if err := tc.DelayUntil(&lastWake, 50); err != nil {
				return
			}
		}
	}})
	mustRun(t, k, 52)
	if wl.Len() != 1 {
		t.Fatalf("waiters at tick 52 = %d, want 1", wl.Len())
	}
	mustRun(t, k, 10)
	if !reflect.DeepEqual(woken, []bool{false, false}) || !reflect.DeepEqual(at, []Tick{55}) {
		t.Fatalf("woken=%v at=%v, want [false false] at [55]", woken, at)
	}
	if wl.Len() != 0 {
		t.Fatalf("waiters = %d, want 0", wl.Len())
	}
}

func TestTickHookWakesWaiter(t *testing.T) {
	k := newTestKernel(t)
	wl := NewWaitList()
	var got []Tick
	k.OnTick(func(isr ISR) {
		if isr.TickCount()%7 == 0 {
			isr.WakeFromISR(wl)
		}
	})
	mustCreate(t, k, TaskSpec{Name: "event", Priority: 1, Period: 100, Entry: func(tc *TaskContext) {
		for tc.Block(wl, WaitForever) {
			got = append(got, tc.TickCount())
			tc.Work(1)
		}
	}})
	mustRun(t, k, 120)
	if want := []Tick{105, 112, 119}; !reflect.DeepEqual(got, want) {
		t.Fatalf("woken at %v, want %v", got, want)
	}
}

func TestWakeFromTask(t *testing.T) {
	k := newTestKernel(t)
	wl := NewWaitList()
	var woke Tick
	mustCreate(t, k, TaskSpec{Name: "sleeper", Priority: 1, Period: 100, Entry: func(tc *TaskContext) {
		if tc.Block(wl, WaitForever) {
			woke = tc.TickCount()
		}
		tc.Work(1)
	}})
	mustCreate(t, k, TaskSpec{Name: "waker", Priority: 2, Period: 30, Entry: func(tc *TaskContext) {
		lastWake := tc.TickCount()
		for {
			tc.Work(1)
			tc.Wake(wl)
			if err := tc.DelayUntil(&lastWake, 30); err != nil {
				return
			}
		}
	}})
	mustRun(t, k, 130)
	if woke != 120 {
		t.Fatalf("sleeper woke at %d, want 120", woke)
	}
}

func TestStatsWriteTo(t *testing.T) {
	k := newTestKernel(t)
	mustCreate(t, k, TaskSpec{Name: "Load_1_Simulation", Priority: 5, Period: 10, Tag: 5, Entry: periodic(10, 50)})
	mustRun(t, k, 100)

	var buf bytes.Buffer
	n, err := k.Stats().WriteTo(&buf)
	if err != nil || n != int64(buf.Len()) {
		t.Fatalf("WriteTo = %d, %v", n, err)
	}
	out := buf.String()
	for _, want := range []string{"Load_1_Simulation", "IDLE", "CPU load: 45.00%", "sampled at tick 100"} {
		if !strings.Contains(out, want) {
			t.Fatalf("stats output lacks %q:\n%s", want, out)
		}
	}
}

func TestMetrics(t *testing.T) {
	k := newTestKernel(t)
	mustCreate(t, k, TaskSpec{Name: "slow", Priority: 1, Period: 10, Entry: func(tc *TaskContext) {
		lastWake := tc.TickCount()
		for {
			tc.WorkTicks(15)
			if err := tc.DelayUntil(&lastWake, 10); err != nil {
				return
			}
		}
	}})
	mustRun(t, k, 50)
	if got := testutil.ToFloat64(k.metrics.ticks); got != 50 {
		t.Fatalf("ticks = %v, want 50", got)
	}
	if got := testutil.ToFloat64(k.metrics.overruns.WithLabelValues("slow")); got != 4 {
		t.Fatalf("overruns = %v, want 4", got)
	}
	if got := testutil.ToFloat64(k.metrics.taskRuntime.WithLabelValues("slow")); got != 400 {
		t.Fatalf("runtime = %v, want 400", got)
	}
	if n, err := testutil.GatherAndCount(k.Registry()); err != nil || n == 0 {
		t.Fatalf("GatherAndCount = %d, %v", n, err)
	}
}

func TestStatusChannel(t *testing.T) {
	k := newTestKernel(t, WithStatusBuffer(256))
	id := mustCreate(t, k, TaskSpec{Name: "a", Priority: 1, Period: 10, Entry: periodic(10, 5)})
	ch := k.StatusChannel()
	mustRun(t, k, 20)
	k.Stop()

	kinds := map[StatusKind]int{}
	for ev := range ch {
		kinds[ev.Kind]++
		if ev.Kind == StatusRelease && ev.TaskID != id {
			t.Fatalf("release of unexpected task %d", ev.TaskID)
		}
	}
	if kinds[StatusTick] != 20 || kinds[StatusRelease] != 2 || kinds[StatusBlock] != 1 || kinds[StatusLoad] != 2 {
		t.Fatalf("event counts = %v", kinds)
	}
	if kinds[StatusIdle] == 0 || kinds[StatusDispatch] != 2 {
		t.Fatalf("event counts = %v", kinds)
	}
}

func TestCSVTrace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.csv")
	k := newTestKernel(t)
	if err := k.EnableCSVLogging(path); err != nil {
		t.Fatalf("EnableCSVLogging error: %v", err)
	}
	mustCreate(t, k, TaskSpec{Name: "a", Priority: 1, Period: 10, Tag: 3, Entry: periodic(10, 5)})
	mustRun(t, k, 10)
	k.Stop()

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read trace: %v", err)
	}
	if len(rows) < 3 || rows[0][2] != "event" {
		t.Fatalf("trace rows = %v", rows)
	}
	var release bool
	for _, r := range rows[1:] {
		if r[2] == "Tick" {
			t.Fatalf("tick rows must be skipped")
		}
		if r[2] == "Release" && r[0] == "10" && r[4] == "3" && r[5] == "20" {
			release = true
		}
	}
	if !release {
		t.Fatalf("release at tick 10 missing: %v", rows)
	}
}

func TestRunPacedByWallClock(t *testing.T) {
	k := New(Config{CountsPerTick: 10, TickMS: 1})
	t.Cleanup(k.Stop)
	mustCreate(t, k, TaskSpec{Name: "a", Priority: 1, Period: 2, Entry: periodic(2, 1)})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := k.Run(ctx); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if k.TickCount() == 0 {
		t.Fatalf("no tick was simulated")
	}
}
