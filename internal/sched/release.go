// internal/sched/release.go

package sched

// tickLocked is the tick interrupt: it runs in interrupt mode, completes the
// release pass and re-runs the selector before any task resumes.
func (k *Kernel) tickLocked() {
	k.tick++
	k.acc.Ticks = k.tick
	k.sampleLocked()
	k.checkpointLocked()

	k.releaseLocked()
	k.expireWaitsLocked()

	if k.tracer != nil {
		k.tracer.Tick()
	}
	isr := ISR{k: k}
	for _, hook := range k.tickHooks {
		hook(isr)
	}

	k.preemptLocked()
	k.metrics.ticks.Inc()
	k.metrics.ready.Set(float64(k.ready.len()))
	k.emit(StatusTick, nil)
}

// releaseLocked moves every task whose deadline is now from BlockedPeriod to
// Ready. Deadlines advance by exactly one period from their previous value,
// whatever state the task is in, so the periodic clock never drifts or stalls.
func (k *Kernel) releaseLocked() {
	now := k.tick
	k.reg.each(func(t *Task) {
		if t.exited || t.Deadline != now {
			return
		}
		switch t.State {
		case BlockedPeriod:
			t.Deadline += t.Period
			t.Releases++
			k.makeReadyLocked(t)
			k.emit(StatusRelease, t)
		case Suspended:
			t.Deadline += t.Period
		default:
			k.overrunLocked(t)
		}
		if t == k.rep.sampler {
			k.refreshLoadLocked()
		}
	})
}

// overrunLocked records a release that found the previous instance still
// Ready, Running or blocked on an event. The release is kept as pending so
// the task starts its next instance without waiting.
func (k *Kernel) overrunLocked(t *Task) {
	t.Deadline += t.Period
	t.Releases++
	t.Overruns++
	t.pending++
	switch t.State {
	case Ready:
		k.ready.rekey(t)
	case BlockedEvent:
		t.wait.q.rekey(t)
	}
	k.metrics.overruns.WithLabelValues(t.Name).Inc()
	k.emit(StatusOverrun, t)
	if k.overrunLog.Allow() {
		k.log.Warn().
			Str("task", t.Name).
			Uint64("tick", uint64(k.tick)).
			Uint64("overruns", t.Overruns).
			Uint64("next_deadline", uint64(t.Deadline)).
			Msg("deadline overrun")
	}
}

// makeReadyLocked puts t at the back of its equals in the ready set.
func (k *Kernel) makeReadyLocked(t *Task) {
	t.State = Ready
	k.ready.push(t)
}

// delayUntilLocked is the periodic wait of the running task. It returns the
// nominal release tick of the task's next instance and whether the task
// blocked.
func (k *Kernel) delayUntilLocked(t *Task) (Tick, bool) {
	if t.pending > 0 {
		// a release already happened while this instance ran: start the next
		// instance at once, nominally at the oldest pending release
		wake := t.Deadline - Tick(t.pending)*t.Period
		t.pending--
		return wake, false
	}
	wake := t.Deadline
	k.switchOutLocked(t)
	t.State = BlockedPeriod
	k.emit(StatusBlock, t)
	k.dispatchLocked()
	return wake, true
}
