// internal/sched/accounting.go

package sched

// Accumulator holds the process-wide totals. It is reset at boot and only
// grows afterwards.
type Accumulator struct {
	Elapsed  uint64 // counter counts since boot
	Busy     uint64 // sum of every task total, idle excluded
	Idle     uint64
	Ticks    Tick
	Switches uint64
	Wraps    uint64

	last uint32 // counter value at the previous elapsed sample
}

// sampleLocked folds the counter progress into Elapsed. It runs on every
// tick and every switch, which is far more often than the counter wraps.
func (k *Kernel) sampleLocked() uint32 {
	now := k.timer.Now()
	d, _ := elapsed(k.timer.Mask(), k.acc.last, now)
	k.acc.Elapsed += uint64(d)
	k.acc.last = now
	return now
}

// chargeLocked attributes the counts since t.TimeIn to t and restarts its interval.
func (k *Kernel) chargeLocked(t *Task, now uint32) {
	d, wrapped := elapsed(k.timer.Mask(), t.TimeIn, now)
	if wrapped {
		k.acc.Wraps++
		k.metrics.wraps.Inc()
	}
	t.Total += uint64(d)
	if t == k.idle {
		k.acc.Idle += uint64(d)
	} else {
		k.acc.Busy += uint64(d)
	}
	k.metrics.taskRuntime.WithLabelValues(t.Name).Add(float64(d))
	t.TimeIn = now
}

// switchOutLocked is the switched-out hook. It runs after the switch has been
// committed and before the outgoing task leaves the Running state.
func (k *Kernel) switchOutLocked(t *Task) {
	now := k.sampleLocked()
	t.TimeOut = now
	k.chargeLocked(t, now)
	if k.tracer != nil && t != k.idle {
		k.tracer.TaskSwitchedOut(t.Tag)
	}
}

// switchInLocked is the switched-in hook: t becomes the running task.
func (k *Kernel) switchInLocked(t *Task) {
	now := k.sampleLocked()
	t.TimeIn = now
	t.State = Running
	t.Switches++
	k.current = t
	k.acc.Switches++
	k.metrics.switches.Inc()
	k.emit(StatusDispatch, t)
	if k.tracer == nil {
		return
	}
	if t == k.idle {
		k.tracer.Idle()
	} else {
		k.tracer.TaskSwitchedIn(t.Tag)
	}
}

// checkpointLocked closes the running task's interval at a tick interrupt,
// so no single interval ever spans more than one tick of counter time.
func (k *Kernel) checkpointLocked() {
	if k.current == nil {
		return
	}
	k.chargeLocked(k.current, k.timer.Now())
}
