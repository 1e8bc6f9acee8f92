package sched

import (
	"fmt"
	"io"
	"strings"
)

// Stats is the human-readable statistics surface: per-task run time and the
// overall utilization.
type Stats struct {
	Tick     Tick
	Elapsed  uint64 // counts since boot
	Busy     uint64
	Idle     uint64
	InFlight uint64 // counts of the running interval not yet attributed
	Switches uint64
	Wraps    uint64

	Load        float64 // sampled at the last release of the sampling task
	LoadAt      Tick
	LoadSamples uint64
	LoadNow     float64 // recomputed on demand
	Sampler     string

	Running TaskID
	Tasks   []TaskInfo
}

// Stats samples the counter and returns a snapshot of every record.
func (k *Kernel) Stats() Stats {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.loadLocked()
	st := Stats{
		LoadNow:     now,
		Tick:        k.tick,
		Elapsed:     k.acc.Elapsed,
		Busy:        k.acc.Busy,
		Idle:        k.acc.Idle,
		Switches:    k.acc.Switches,
		Wraps:       k.acc.Wraps,
		Load:        k.rep.load,
		LoadAt:      k.rep.at,
		LoadSamples: k.rep.samples,
	}
	if k.rep.sampler != nil {
		st.Sampler = k.rep.sampler.Name
	}
	if k.current != nil {
		st.Running = k.current.ID
		d, _ := elapsed(k.timer.Mask(), k.current.TimeIn, k.timer.Now())
		st.InFlight = uint64(d)
	}
	k.reg.each(func(t *Task) {
		st.Tasks = append(st.Tasks, k.infoLocked(t))
	})
	st.Tasks = append(st.Tasks, k.infoLocked(k.idle))
	return st
}

// WriteTo renders the per-task run-time table followed by the load summary.
func (s Stats) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %5s %4s %6s %8s %-16s %12s %7s %8s\n",
		"Task", "Tag", "Prio", "Period", "Deadline", "State", "Counts", "CPU%", "Overruns")
	for _, t := range s.Tasks {
		prio := fmt.Sprintf("%d", t.Priority)
		period := fmt.Sprintf("%d", t.Period)
		if t.ID == IdleID {
			prio, period = "-", "-"
		}
		fmt.Fprintf(&b, "%-20s %5d %4s %6s %8d %-16s %12d %6.2f%% %8d\n",
			t.Name, t.Tag, prio, period, t.Deadline, t.State, t.Total, t.Percent, t.Overruns)
	}
	fmt.Fprintf(&b, "tick=%d elapsed=%d busy=%d idle=%d switches=%d wraps=%d\n",
		s.Tick, s.Elapsed, s.Busy, s.Idle, s.Switches, s.Wraps)
	fmt.Fprintf(&b, "CPU load: %.2f%% (sampled at tick %d by %s), %.2f%% now\n",
		s.Load, s.LoadAt, s.Sampler, s.LoadNow)
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}
