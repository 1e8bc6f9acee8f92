// internal/sched/registry.go

package sched

import (
	"fmt"

	"github.com/emirpasic/gods/maps/treemap"
)

// registry is the fixed-capacity task arena. Records never move, so a
// *Task stays valid for the life of the kernel.
type registry struct {
	slots   []Task
	n       int
	byTag   *treemap.Map // Tag -> *Task
	maxPrio int
	maxName int
}

func compareTags(a, b any) int {
	ta, tb := a.(Tag), b.(Tag)
	switch {
	case ta < tb:
		return -1
	case ta > tb:
		return 1
	default:
		return 0
	}
}

func newRegistry(capacity, maxPrio, maxName int) *registry {
	return &registry{
		slots:   make([]Task, capacity),
		byTag:   treemap.NewWith(compareTags),
		maxPrio: maxPrio,
		maxName: maxName,
	}
}

// admit validates spec and stores a new record in BlockedPeriod with its
// first deadline one period from now. Nothing is stored on failure.
func (r *registry) admit(spec TaskSpec, now Tick) (*Task, error) {
	switch {
	case spec.Period == 0:
		return nil, fmt.Errorf("%w: task %q: period must be > 0", ErrConfiguration, spec.Name)
	case spec.Priority < 0 || spec.Priority >= r.maxPrio:
		return nil, fmt.Errorf("%w: task %q: priority %d outside [0, %d]", ErrConfiguration, spec.Name, spec.Priority, r.maxPrio-1)
	case spec.Name == "" || len(spec.Name) > r.maxName:
		return nil, fmt.Errorf("%w: task name %q must be 1..%d bytes", ErrConfiguration, spec.Name, r.maxName)
	case spec.Entry == nil:
		return nil, fmt.Errorf("%w: task %q has no entry", ErrConfiguration, spec.Name)
	}
	if spec.Tag != 0 {
		if _, dup := r.byTag.Get(spec.Tag); dup {
			return nil, fmt.Errorf("%w: tag %d already in use", ErrConfiguration, spec.Tag)
		}
	}
	if r.n == len(r.slots) {
		return nil, fmt.Errorf("%w: task table full (%d)", ErrResourceExhausted, len(r.slots))
	}

	t := &r.slots[r.n]
	r.n++
	*t = Task{
		ID:       TaskID(r.n), // 0 is reserved for idle
		Name:     spec.Name,
		Tag:      spec.Tag,
		Priority: spec.Priority,
		Period:   spec.Period,
		Deadline: now + spec.Period,
		State:    BlockedPeriod,
		entry:    spec.Entry,
		wakeAt:   WaitForever,
		resume:   make(chan struct{}),
	}
	if t.Tag != 0 {
		r.byTag.Put(t.Tag, t)
	}
	return t, nil
}

func (r *registry) get(id TaskID) (*Task, bool) {
	if id <= 0 || int(id) > r.n {
		return nil, false
	}
	return &r.slots[id-1], true
}

func (r *registry) lookup(tag Tag) (*Task, bool) {
	if tag == 0 {
		return nil, false
	}
	v, ok := r.byTag.Get(tag)
	if !ok {
		return nil, false
	}
	return v.(*Task), true
}

func (r *registry) setTag(t *Task, tag Tag) error {
	if tag == t.Tag {
		return nil
	}
	if tag != 0 {
		if _, dup := r.byTag.Get(tag); dup {
			return fmt.Errorf("%w: tag %d already in use", ErrConfiguration, tag)
		}
	}
	if t.Tag != 0 {
		r.byTag.Remove(t.Tag)
	}
	t.Tag = tag
	if tag != 0 {
		r.byTag.Put(tag, t)
	}
	return nil
}

// each visits records in creation order.
func (r *registry) each(fn func(*Task)) {
	for i := 0; i < r.n; i++ {
		fn(&r.slots[i])
	}
}

func (r *registry) len() int { return r.n }
