// internal/sched/scheduler.go

package sched

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

// EnableCSVLogging opens the given file path for CSV logging of events.
// Must be called before Start().
func (k *Kernel) EnableCSVLogging(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)

	// write header
	if err := w.Write([]string{"tick", "counter", "event", "task_id", "tag", "deadline", "total", "load"}); err != nil {
		f.Close()
		return err
	}
	w.Flush()

	k.mu.Lock()
	defer k.mu.Unlock()
	k.csvFile = f
	k.csvWriter = w
	return nil
}

// StatusChannel exposes read‑only stream (optional consumers).
// It is nil unless the kernel was built WithStatusBuffer.
func (k *Kernel) StatusChannel() <-chan StatusEvent { return k.statusCh }

// Step simulates the CPU up to and including the next tick interrupt.
// A task dispatched by the interrupt at tick n only starts executing its
// body in the following Step.
func (k *Kernel) Step() error {
	k.mu.Lock()
	if !k.started {
		k.mu.Unlock()
		return ErrNotStarted
	}
	k.mu.Unlock()

	for {
		select {
		case <-k.done:
			return ErrStopped
		default:
		}

		k.mu.Lock()
		cur := k.current

		// 1) the running task has no CPU work queued: let its code run until
		//    it asks for CPU time, blocks, or gives up the CPU
		if cur != k.idle && cur.work == 0 {
			k.mu.Unlock()
			if err := k.resume(cur); err != nil {
				return err
			}
			continue
		}

		// 2) burn CPU time for the running task (or idle) up to the next tick
		budget := k.timer.UntilTick()
		n := budget
		if cur != k.idle && cur.work < n {
			n = cur.work
		}
		k.timer.Advance(n)
		if cur != k.idle {
			cur.work -= n
		}

		// 3) tick interrupt: releases and re-selection complete before any
		//    task runs again
		if n == budget {
			k.tickLocked()
			k.mu.Unlock()
			return nil
		}
		k.mu.Unlock()
	}
}

// RunTicks starts the kernel if needed and simulates n ticks as fast as possible.
// Tasks released at the last tick have not run yet when it returns.
func (k *Kernel) RunTicks(n int64) error {
	if err := k.Start(); err != nil {
		return err
	}
	for i := int64(0); i < n; i++ {
		if err := k.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Run simulates one tick per TickMS of wall-clock time until ctx is done.
func (k *Kernel) Run(ctx context.Context) error {
	if err := k.Start(); err != nil {
		return err
	}
	clock := NewTickClock(1)
	clock.Start(time.Duration(k.cfg.TickMS) * time.Millisecond)
	defer func() {
		clock.Stop()
		if missed := clock.Missed(); missed > 0 {
			k.log.Warn().
				Int64("missed", missed).
				Uint64("wall_ticks", uint64(clock.Count())).
				Msg("kernel lagged behind the wall clock")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-clock.Ch:
			if !ok {
				return nil
			}
			if err := k.Step(); err != nil {
				return err
			}
		}
	}
}

// resume runs t's goroutine until it hands the CPU back.
func (k *Kernel) resume(t *Task) error {
	select {
	case t.resume <- struct{}{}:
	case <-k.done:
		return ErrStopped
	}
	select {
	case <-k.reqCh:
		return nil
	case <-k.done:
		return ErrStopped
	}
}

// spawn starts the goroutine behind t. It waits for its first dispatch.
func (k *Kernel) spawn(t *Task) {
	tc := &TaskContext{k: k, t: t}
	go func() {
		select {
		case <-t.resume:
		case <-k.done:
			return
		}
		t.entry(tc)

		// the entry returned: retire the task
		k.mu.Lock()
		t.exited = true
		if k.current == t {
			k.switchOutLocked(t)
			t.State = Suspended
			k.dispatchLocked()
		}
		k.mu.Unlock()
		k.log.Debug().Str("task", t.Name).Msg("task entry returned")
		select {
		case k.reqCh <- t:
		case <-k.done:
		}
	}()
}

func (k *Kernel) writeCSV(ev StatusEvent) {
	// ticks are periodic, skip them for the brevity of the trace
	if k.csvWriter == nil || ev.Kind == StatusTick {
		return
	}
	rec := []string{
		strconv.FormatUint(uint64(ev.Tick), 10),
		strconv.FormatUint(uint64(ev.Counter), 10),
		ev.Kind.String(),
		strconv.FormatInt(int64(ev.TaskID), 10),
		strconv.FormatUint(uint64(ev.Tag), 10),
		strconv.FormatUint(uint64(ev.Deadline), 10),
		strconv.FormatUint(ev.Total, 10),
		fmt.Sprintf("%.2f", ev.Load),
	}
	k.csvWriter.Write(rec)
	k.csvWriter.Flush()
}
