// internal/sched/schedulerEvent.go

package sched

// StatusKind represents the type of scheduler event
type StatusKind int

const (
	StatusIdle StatusKind = iota
	StatusRelease
	StatusDispatch
	StatusPreempt
	StatusBlock
	StatusOverrun
	StatusLoad
	StatusTick
)

// StatusEvent is emitted every tick or on key actions
type StatusEvent struct {
	Tick     Tick
	Counter  uint32
	Kind     StatusKind
	TaskID   TaskID
	Tag      Tag
	Deadline Tick
	Total    uint64
	Load     float64
}

func (sk StatusKind) String() string {
	switch sk {
	case StatusIdle:
		return "Idle"
	case StatusRelease:
		return "Release"
	case StatusDispatch:
		return "Dispatch"
	case StatusPreempt:
		return "Preempt"
	case StatusBlock:
		return "Block"
	case StatusOverrun:
		return "Overrun"
	case StatusLoad:
		return "Load"
	case StatusTick:
		return "Tick"
	default:
		return "Unknown"
	}
}

// emit publishes an event without ever blocking the kernel: a full status
// channel drops the event.
func (k *Kernel) emit(kind StatusKind, t *Task) {
	if k.statusCh == nil && k.csvWriter == nil {
		return
	}
	ev := StatusEvent{Tick: k.tick, Counter: k.timer.Now(), Kind: kind}
	if t != nil {
		ev.TaskID, ev.Tag, ev.Deadline, ev.Total = t.ID, t.Tag, t.Deadline, t.Total
		if t == k.idle && kind == StatusDispatch {
			ev.Kind = StatusIdle
		}
	}
	k.publish(ev)
}

func (k *Kernel) emitLoad(load float64) {
	if k.statusCh == nil && k.csvWriter == nil {
		return
	}
	k.publish(StatusEvent{Tick: k.tick, Counter: k.timer.Now(), Kind: StatusLoad, Load: load})
}

func (k *Kernel) publish(ev StatusEvent) {
	if k.statusCh != nil {
		select {
		case k.statusCh <- ev:
		default:
		}
	}
	k.writeCSV(ev)
}
