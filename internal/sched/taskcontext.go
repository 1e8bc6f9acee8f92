package sched

import (
	"fmt"
	"math"
	"runtime"
)

// TaskContext is the kernel API available to a running task body.
//
// A task body executes in zero simulated time except inside Work. A body
// that loops without calling Work or blocking never gives the CPU back.
type TaskContext struct {
	k *Kernel
	t *Task
}

// ID returns the handle of the calling task.
func (tc *TaskContext) ID() TaskID { return tc.t.ID }

// Name returns the task name.
func (tc *TaskContext) Name() string { return tc.t.Name }

// Tag returns the task's current tag.
func (tc *TaskContext) Tag() Tag {
	tc.k.mu.Lock()
	defer tc.k.mu.Unlock()
	return tc.t.Tag
}

// SetTag attaches a tag to the calling task.
func (tc *TaskContext) SetTag(tag Tag) error {
	tc.k.mu.Lock()
	defer tc.k.mu.Unlock()
	return tc.k.reg.setTag(tc.t, tag)
}

// TickCount returns the current tick.
func (tc *TaskContext) TickCount() Tick {
	tc.k.mu.Lock()
	defer tc.k.mu.Unlock()
	return tc.k.tick
}

// Counter returns the accounting timer value.
func (tc *TaskContext) Counter() uint32 {
	tc.k.mu.Lock()
	defer tc.k.mu.Unlock()
	return tc.k.timer.Now()
}

// Work consumes counts of CPU time. The task may be preempted any number of
// times before the work completes.
func (tc *TaskContext) Work(counts uint32) {
	if counts == 0 {
		return
	}
	tc.k.mu.Lock()
	tc.t.work = counts
	tc.k.mu.Unlock()
	tc.handoff()
}

// WorkTicks consumes n whole ticks of CPU time.
func (tc *TaskContext) WorkTicks(n int) {
	if n <= 0 {
		return
	}
	total := uint64(n) * uint64(tc.k.timer.PerTick())
	for total > 0 {
		chunk := total
		if chunk > math.MaxUint32 {
			chunk = math.MaxUint32
		}
		tc.Work(uint32(chunk))
		total -= chunk
	}
}

// DelayUntil ends the current instance and waits for the task's next
// release. period must be the task's own period.
//
// *lastWake is overwritten with the nominal release tick of the instance
// that starts when DelayUntil returns, so a body that keeps passing it back
// never drifts, however late it was dispatched. If a release was missed while
// the instance ran, DelayUntil returns at once.
func (tc *TaskContext) DelayUntil(lastWake *Tick, period Tick) error {
	k, t := tc.k, tc.t
	k.mu.Lock()
	if period != t.Period {
		k.mu.Unlock()
		return fmt.Errorf("%w: task %q waits with period %d, created with %d", ErrConfiguration, t.Name, period, t.Period)
	}
	wake, blocked := k.delayUntilLocked(t)
	if lastWake != nil {
		*lastWake = wake
	}
	k.mu.Unlock()
	if blocked {
		tc.handoff()
	}
	return nil
}

// Yield lets ready tasks with the same deadline and priority run first.
func (tc *TaskContext) Yield() {
	tc.k.mu.Lock()
	switched := tc.k.yieldLocked()
	tc.k.mu.Unlock()
	if switched {
		tc.handoff()
	}
}

// Block waits on wl for at most timeout ticks. It returns false on timeout.
// A zero timeout returns false without blocking.
func (tc *TaskContext) Block(wl *WaitList, timeout Tick) bool {
	if timeout == 0 {
		return false
	}
	k, t := tc.k, tc.t
	k.mu.Lock()
	k.blockLocked(t, wl, timeout)
	k.mu.Unlock()
	tc.handoff()

	k.mu.Lock()
	defer k.mu.Unlock()
	return !t.timeout
}

// Wake readies the most urgent waiter of wl, which may preempt the caller.
func (tc *TaskContext) Wake(wl *WaitList) bool {
	k := tc.k
	k.mu.Lock()
	woken := k.wakeLocked(wl)
	if woken {
		k.preemptLocked()
	}
	preempted := k.current != tc.t
	k.mu.Unlock()
	if preempted {
		tc.handoff()
	}
	return woken
}

// SetPriority changes the priority of any task, the caller included. The
// caller may be preempted.
func (tc *TaskContext) SetPriority(id TaskID, prio int) error {
	if err := tc.k.SetPriority(id, prio); err != nil {
		return err
	}
	tc.yieldIfSwitched()
	return nil
}

// Suspend suspends any task, the caller included.
func (tc *TaskContext) Suspend(id TaskID) error {
	if err := tc.k.Suspend(id); err != nil {
		return err
	}
	tc.yieldIfSwitched()
	return nil
}

// Resume resumes a suspended task, which may preempt the caller.
func (tc *TaskContext) Resume(id TaskID) error {
	if err := tc.k.Resume(id); err != nil {
		return err
	}
	tc.yieldIfSwitched()
	return nil
}

func (tc *TaskContext) yieldIfSwitched() {
	tc.k.mu.Lock()
	switched := tc.k.current != tc.t
	tc.k.mu.Unlock()
	if switched {
		tc.handoff()
	}
}

// handoff gives the CPU back to the kernel loop and parks until the task is
// dispatched again. A stopped kernel unwinds the task goroutine.
func (tc *TaskContext) handoff() {
	k := tc.k
	select {
	case k.reqCh <- tc.t:
	case <-k.done:
		runtime.Goexit()
	}
	select {
	case <-tc.t.resume:
	case <-k.done:
		runtime.Goexit()
	}
}
