// Package app holds the application task set: two button monitors, a
// periodic transmitter, a UART consumer and two synthetic loads, wired to the
// kernel, the message queue and the pins.
package app

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"rtedf/internal/job"
	"rtedf/internal/queue"
	"rtedf/internal/sched"
)

// Role identifies what a task does, independently of its attribution tag.
type Role int

const (
	RoleButton1 Role = iota + 1
	RoleButton2
	RolePeriodicTransmitter
	RoleUartReceiver
	RoleLoad1
	RoleLoad2
)

func (r Role) String() string {
	switch r {
	case RoleButton1:
		return "button-1"
	case RoleButton2:
		return "button-2"
	case RolePeriodicTransmitter:
		return "periodic-transmitter"
	case RoleUartReceiver:
		return "uart-receiver"
	case RoleLoad1:
		return "load-1"
	case RoleLoad2:
		return "load-2"
	default:
		return "unknown"
	}
}

const (
	QueueCapacity = 3
	QueueMsgSize  = 20

	periodicString = "PERIODIC_TASK"
	uartPerByte    = 1 // counts per byte written to the UART
)

// TaskDef is one row of the task table.
type TaskDef struct {
	Role     Role
	Name     string
	Tag      sched.Tag
	Priority int
	Period   sched.Tick
	Work     uint32 // counts burnt per instance
}

// DefaultTable is the task set of the target board at 60 counts per tick.
// The load tasks spin 37200 and 88500 loop iterations, about 5 and 12 ms.
func DefaultTable() []TaskDef {
	return []TaskDef{
		{Role: RoleButton1, Name: "Button_1", Tag: 1, Priority: 1, Period: 50, Work: 6},
		{Role: RoleButton2, Name: "Button_2", Tag: 2, Priority: 2, Period: 50, Work: 6},
		{Role: RolePeriodicTransmitter, Name: "Periodic_Transmitter", Tag: 3, Priority: 3, Period: 100, Work: 6},
		{Role: RoleUartReceiver, Name: "Uart_Receiver", Tag: 4, Priority: 4, Period: 20, Work: 12},
		{Role: RoleLoad1, Name: "Load_1_Simulation", Tag: 5, Priority: 5, Period: 10, Work: job.LoopCounts(37200, 124)},
		{Role: RoleLoad2, Name: "Load_2_Simulation", Tag: 6, Priority: 6, Period: 100, Work: job.LoopCounts(88500, 123)},
	}
}

// ApplyOverrides patches table rows matched by name with the non-zero
// fields of the config entries.
func ApplyOverrides(table []TaskDef, overrides []sched.TaskConfig) ([]TaskDef, error) {
	out := append([]TaskDef(nil), table...)
	for _, o := range overrides {
		i := indexOf(out, o.Name)
		if i < 0 {
			return nil, fmt.Errorf("%w: no task named %q", sched.ErrNotFound, o.Name)
		}
		if o.Priority != nil {
			out[i].Priority = *o.Priority
		}
		if o.Period != 0 {
			out[i].Period = o.Period
		}
		if o.Tag != 0 {
			out[i].Tag = o.Tag
		}
		if o.Work != 0 {
			out[i].Work = o.Work
		}
	}
	return out, nil
}

func indexOf(table []TaskDef, name string) int {
	for i, d := range table {
		if d.Name == name {
			return i
		}
	}
	return -1
}

// Deps are the collaborators the task bodies use.
type Deps struct {
	Kernel *sched.Kernel
	Queue  *queue.Queue
	GPIO   GPIO
	UART   io.Writer
	Log    zerolog.Logger
}

// Install creates one kernel task per table row.
func Install(d Deps, table []TaskDef) (map[Role]sched.TaskID, error) {
	ids := make(map[Role]sched.TaskID, len(table))
	for _, def := range table {
		entry, err := body(d, def)
		if err != nil {
			return nil, err
		}
		id, err := d.Kernel.Create(sched.TaskSpec{
			Name:     def.Name,
			Priority: def.Priority,
			Period:   def.Period,
			Tag:      def.Tag,
			Entry:    entry,
		})
		if err != nil {
			return nil, fmt.Errorf("install %s: %w", def.Role, err)
		}
		ids[def.Role] = id
	}
	return ids, nil
}

func body(d Deps, def TaskDef) (sched.Entry, error) {
	switch def.Role {
	case RoleButton1:
		return buttonMonitor(d, def, PinButton1, "BUTTON_1_RISING", "BUTTON_1_FALLING"), nil
	case RoleButton2:
		return buttonMonitor(d, def, PinButton2, "BUTTON_2_RISING", "BUTTON_2_FALLING"), nil
	case RolePeriodicTransmitter:
		return job.Periodic(def.Period, func(tc *sched.TaskContext) {
			tc.Work(def.Work)
			send(d, tc, periodicString)
		}), nil
	case RoleUartReceiver:
		return uartReceiver(d, def), nil
	case RoleLoad1, RoleLoad2:
		return job.Load(def.Period, def.Work), nil
	default:
		return nil, fmt.Errorf("%w: unknown role %d", sched.ErrConfiguration, def.Role)
	}
}

// buttonMonitor reports the button level once per period.
func buttonMonitor(d Deps, def TaskDef, pin Pin, rising, falling string) sched.Entry {
	return job.Periodic(def.Period, func(tc *sched.TaskContext) {
		tc.Work(def.Work)
		if d.GPIO.Read(pin) {
			send(d, tc, rising)
		} else {
			send(d, tc, falling)
		}
	})
}

// uartReceiver writes at most one queued string per period to the UART.
func uartReceiver(d Deps, def TaskDef) sched.Entry {
	buf := make([]byte, d.Queue.MsgSize())
	return job.Periodic(def.Period, func(tc *sched.TaskContext) {
		tc.Work(def.Work)
		n, err := d.Queue.Receive(tc, buf, 0)
		if err != nil {
			return
		}
		tc.Work(uint32(n+1) * uartPerByte)
		if _, err := fmt.Fprintf(d.UART, "%s\n", buf[:n]); err != nil {
			d.Log.Error().Err(err).Msg("uart write failed")
		}
	})
}

func send(d Deps, tc *sched.TaskContext, s string) {
	if err := d.Queue.Send(tc, []byte(s), 0); err != nil {
		d.Log.Debug().Err(err).Str("task", tc.Name()).Str("msg", s).Msg("message dropped")
	}
}
