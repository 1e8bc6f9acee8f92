package sched

// TaskID is the stable handle of a task record in the kernel arena.
type TaskID int

// IdleID identifies the idle task, which lives outside the task table.
const IdleID TaskID = 0

// Tag is an opaque attribution label attached by the application.
// The kernel preserves and reports it but never schedules on it. Zero means untagged.
type Tag uint16

// Tick counts scheduler ticks since boot.
type Tick uint64

// WaitForever blocks on a wait list without a timeout.
const WaitForever Tick = ^Tick(0)

// State is the scheduling state of a task.
type State int

const (
	Ready State = iota
	Running
	BlockedPeriod // waiting for its next periodic release
	BlockedEvent  // waiting on a wait list, e.g. a message queue
	Suspended
)

func (s State) String() string {
	switch s {
	case Ready:
		return "Ready"
	case Running:
		return "Running"
	case BlockedPeriod:
		return "Blocked(period)"
	case BlockedEvent:
		return "Blocked(event)"
	case Suspended:
		return "Suspended"
	default:
		return "Unknown"
	}
}

// Entry is a task body. It is expected to loop forever, calling
// TaskContext.DelayUntil once per instance.
type Entry func(tc *TaskContext)

// TaskSpec describes a task at creation time.
type TaskSpec struct {
	Name     string
	Priority int  // 0 is the most urgent class; only breaks deadline ties
	Period   Tick // > 0, immutable
	Tag      Tag
	Entry    Entry
}

// Task is one record of the kernel arena.
type Task struct {
	ID       TaskID
	Name     string
	Tag      Tag
	Priority int
	Period   Tick
	Deadline Tick // absolute tick of the next release
	State    State

	// accounting, written only by the switch hooks
	TimeIn  uint32 // counter value when the current interval started
	TimeOut uint32 // counter value at the last switch-out
	Total   uint64 // accumulated counts

	Releases uint64
	Overruns uint64
	Switches uint64

	entry   Entry
	pending int // releases that arrived while the task was not waiting for its period
	key     schedKey
	wait    *WaitList
	wakeAt  Tick // event timeout, WaitForever when none
	timeout bool
	work    uint32 // counts left of the current Work request
	exited  bool
	from    State // state held before Suspend
	resume  chan struct{}
}

// TaskInfo is a read-only snapshot of a task record.
type TaskInfo struct {
	ID       TaskID
	Name     string
	Tag      Tag
	Priority int
	Period   Tick
	Deadline Tick
	State    State
	Total    uint64
	Percent  float64
	Releases uint64
	Overruns uint64
	Switches uint64
}

func (t *Task) info() TaskInfo {
	return TaskInfo{
		ID:       t.ID,
		Name:     t.Name,
		Tag:      t.Tag,
		Priority: t.Priority,
		Period:   t.Period,
		Deadline: t.Deadline,
		State:    t.State,
		Total:    t.Total,
		Releases: t.Releases,
		Overruns: t.Overruns,
		Switches: t.Switches,
	}
}
