package job

import (
	"rtedf/internal/sched"
)

// Busy returns an instance body that burns the given counts of CPU time,
// like an empty counting loop on the target.
func Busy(counts uint32) func(*sched.TaskContext) {
	return func(tc *sched.TaskContext) {
		tc.Work(counts)
	}
}

// Periodic returns a task entry that runs step once per period and then
// waits for the next release. It is the canonical task body shape.
func Periodic(period sched.Tick, step func(*sched.TaskContext)) sched.Entry {
	return func(tc *sched.TaskContext) {
		lastWake := tc.TickCount()
		for {
			step(tc)
			if err := tc.DelayUntil(&lastWake, period); err != nil {
				// a period mismatch can never succeed, retire the task
				return
			}
		}
	}
}

// Load returns a periodic synthetic load generator burning counts per period.
func Load(period sched.Tick, counts uint32) sched.Entry {
	return Periodic(period, Busy(counts))
}

// LoopCounts converts an empty-loop iteration count into timer counts, given
// how many iterations the target executes per timer count.
func LoopCounts(iterations, perCount uint32) uint32 {
	if perCount == 0 {
		return iterations
	}
	return (iterations + perCount - 1) / perCount
}
