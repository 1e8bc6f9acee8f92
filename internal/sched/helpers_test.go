package sched

import "testing"

func newTestKernel(t *testing.T, opts ...Option) *Kernel {
	t.Helper()
	k := New(Config{CountsPerTick: 10}, opts...)
	t.Cleanup(k.Stop)
	return k
}

func mustCreate(t *testing.T, k *Kernel, spec TaskSpec) TaskID {
	t.Helper()
	id, err := k.Create(spec)
	if err != nil {
		t.Fatalf("Create(%s) error: %v", spec.Name, err)
	}
	return id
}

func mustInfo(t *testing.T, k *Kernel, id TaskID) TaskInfo {
	t.Helper()
	info, err := k.Task(id)
	if err != nil {
		t.Fatalf("Task(%d) error: %v", id, err)
	}
	return info
}

func mustRun(t *testing.T, k *Kernel, ticks int64) {
	t.Helper()
	if err := k.RunTicks(ticks); err != nil {
		t.Fatalf("RunTicks(%d) error: %v", ticks, err)
	}
}

// periodic burns counts once per period.
func periodic(period Tick, counts uint32) Entry {
	return func(tc *TaskContext) {
		lastWake := tc.TickCount()
		for {
			tc.Work(counts)
			if err := tc.DelayUntil(&lastWake, period); err != nil {
				return
			}
		}
	}
}

type switchRec struct {
	tick Tick
	tag  Tag
}

// recorder is a Tracer that logs switch-ins against its own tick count.
type recorder struct {
	ticks Tick
	ins   []switchRec
	outs  int
	idles int
}

func (r *recorder) TaskSwitchedIn(tag Tag) { r.ins = append(r.ins, switchRec{r.ticks, tag}) }
func (r *recorder) TaskSwitchedOut(Tag)    { r.outs++ }
func (r *recorder) Tick()                  { r.ticks++ }
func (r *recorder) Idle()                  { r.idles++ }

func (r *recorder) since(tick Tick) []Tag {
	var tags []Tag
	for _, s := range r.ins {
		if s.tick >= tick {
			tags = append(tags, s.tag)
		}
	}
	return tags
}
