// internal/sched/kernel.go

package sched

import (
	"encoding/csv"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Kernel is a single-core EDF scheduler with run-time accounting.
//
// The kernel mutex is the "interrupts disabled" section: every mutation of
// task records, the ready set, wait lists and the accumulator happens under
// it. Exactly one goroutine executes at a time: either the kernel loop
// (tick interrupt, CPU time accounting) or the task it has resumed.
type Kernel struct {
	mu  sync.Mutex
	cfg Config
	log zerolog.Logger

	timer   *SimTimer
	reg     *registry
	ready   *readySet
	idle    *Task
	current *Task
	tick    Tick
	acc     Accumulator
	rep     reporter

	tracer    Tracer
	tickHooks []func(ISR)
	metrics   *Metrics

	overrunLog *rate.Limiter
	anomalyLog *rate.Limiter

	started bool
	reqCh   chan *Task    // a task hands the CPU back to the kernel loop
	done    chan struct{} // closed by Stop
	stop    sync.Once

	// logging-related
	statusCh  chan StatusEvent
	csvFile   *os.File
	csvWriter *csv.Writer
}

// Option customizes a Kernel.
type Option func(*Kernel)

// WithLogger sets the kernel logger.
func WithLogger(l zerolog.Logger) Option {
	return func(k *Kernel) { k.log = l.With().Str("component", "kernel").Logger() }
}

// WithTracer registers the switch and tick instrumentation.
func WithTracer(t Tracer) Option {
	return func(k *Kernel) { k.tracer = t }
}

// WithStatusBuffer enables the status channel with the given buffer size.
func WithStatusBuffer(n int) Option {
	return func(k *Kernel) { k.statusCh = make(chan StatusEvent, n) }
}

// New creates a kernel. Zero config fields fall back to defaults.
func New(cfg Config, opts ...Option) *Kernel {
	cfg = cfg.sanitize()
	k := &Kernel{
		cfg:        cfg,
		log:        zerolog.Nop(),
		timer:      NewSimTimer(cfg.CounterBits, cfg.CountsPerTick, cfg.CounterStart),
		reg:        newRegistry(cfg.MaxTasks, cfg.MaxPriorities, cfg.MaxNameLen),
		ready:      newReadySet(),
		metrics:    newMetrics(),
		overrunLog: rate.NewLimiter(rate.Every(time.Second), 5),
		anomalyLog: rate.NewLimiter(rate.Every(time.Second), 1),
		reqCh:      make(chan *Task),
		done:       make(chan struct{}),
	}
	k.acc.last = k.timer.Now()
	k.idle = &Task{ID: IdleID, Name: "IDLE", Priority: cfg.MaxPriorities, State: Ready, wakeAt: WaitForever}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Config returns the sanitized configuration in use.
func (k *Kernel) Config() Config { return k.cfg }

// Timer exposes the accounting counter.
func (k *Kernel) Timer() Timer { return k.timer }

// Create admits a periodic task. The task is blocked until its first release
// one period from now.
func (k *Kernel) Create(spec TaskSpec) (TaskID, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	select {
	case <-k.done:
		return 0, ErrStopped
	default:
	}

	t, err := k.reg.admit(spec, k.tick)
	if err != nil {
		return 0, err
	}
	if k.started {
		k.spawn(t)
	}
	k.log.Debug().
		Str("task", t.Name).
		Int("id", int(t.ID)).
		Uint16("tag", uint16(t.Tag)).
		Int("priority", t.Priority).
		Uint64("period", uint64(t.Period)).
		Uint64("deadline", uint64(t.Deadline)).
		Msg("task created")
	return t.ID, nil
}

// Lookup finds a task by its tag.
func (k *Kernel) Lookup(tag Tag) (TaskInfo, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	t, ok := k.reg.lookup(tag)
	if !ok {
		return TaskInfo{}, fmt.Errorf("%w: tag %d", ErrNotFound, tag)
	}
	return k.infoLocked(t), nil
}

// Task returns the record behind a handle.
func (k *Kernel) Task(id TaskID) (TaskInfo, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	t, ok := k.reg.get(id)
	if !ok {
		return TaskInfo{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return k.infoLocked(t), nil
}

// SetTag attaches or replaces the attribution tag of a task.
func (k *Kernel) SetTag(id TaskID, tag Tag) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	t, ok := k.reg.get(id)
	if !ok {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return k.reg.setTag(t, tag)
}

// SetPriority changes the static priority of a task. The task is re-sorted
// wherever it waits, and the running task is re-evaluated at once.
func (k *Kernel) SetPriority(id TaskID, prio int) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	t, ok := k.reg.get(id)
	if !ok {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if prio < 0 || prio >= k.reg.maxPrio {
		return fmt.Errorf("%w: task %q: priority %d outside [0, %d]", ErrConfiguration, t.Name, prio, k.reg.maxPrio-1)
	}
	if prio == t.Priority {
		return nil
	}
	old := t.Priority
	t.Priority = prio
	switch t.State {
	case Ready:
		k.ready.rekey(t)
	case BlockedEvent:
		t.wait.q.rekey(t)
	}
	if k.started {
		k.preemptLocked()
	}
	k.log.Debug().Str("task", t.Name).Int("from", old).Int("to", prio).Msg("priority changed")
	return nil
}

// Suspend takes a task out of scheduling. Its deadline keeps advancing
// while suspended.
func (k *Kernel) Suspend(id TaskID) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	t, ok := k.reg.get(id)
	if !ok {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	switch t.State {
	case Suspended:
		return nil
	case Running:
		k.switchOutLocked(t)
		t.from, t.State = Ready, Suspended
		k.dispatchLocked()
	case Ready:
		k.ready.remove(t)
		t.from, t.State = Ready, Suspended
	case BlockedEvent:
		t.wait.drop(t)
		t.timeout = true
		t.from, t.State = Ready, Suspended
	case BlockedPeriod:
		t.from, t.State = BlockedPeriod, Suspended
	}
	return nil
}

// Resume returns a suspended task to the state it was suspended from;
// a task interrupted mid-instance or mid-wait becomes Ready.
func (k *Kernel) Resume(id TaskID) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	t, ok := k.reg.get(id)
	if !ok {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if t.State != Suspended || t.exited {
		return nil
	}
	if t.from == BlockedPeriod {
		t.State = BlockedPeriod
		return nil
	}
	k.makeReadyLocked(t)
	if k.started {
		k.preemptLocked()
	}
	return nil
}

// TickCount returns the number of ticks since Start.
func (k *Kernel) TickCount() Tick {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.tick
}

// Start spawns the task goroutines and hands the CPU to the idle task.
// Until the first release nothing else is ready.
func (k *Kernel) Start() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	select {
	case <-k.done:
		return ErrStopped
	default:
	}
	if k.started {
		return nil
	}
	k.started = true
	k.reg.each(k.spawn)
	k.rep.sampler = k.pickSampler()
	k.acc.last = k.timer.Now()
	k.dispatchLocked()

	ev := k.log.Info().Int("tasks", k.reg.len()).Uint32("counts_per_tick", k.timer.PerTick())
	if k.rep.sampler != nil {
		ev = ev.Str("load_sampler", k.rep.sampler.Name)
	}
	ev.Msg("kernel started")
	return nil
}

// Stop unwinds every task goroutine and closes the trace outputs.
// It must not run concurrently with Step.
func (k *Kernel) Stop() {
	k.stop.Do(func() {
		close(k.done)
		k.mu.Lock()
		defer k.mu.Unlock()
		if k.csvFile != nil {
			k.csvWriter.Flush()
			k.csvFile.Close()
			k.csvFile, k.csvWriter = nil, nil
		}
		if k.statusCh != nil {
			close(k.statusCh)
			k.statusCh = nil
		}
		k.log.Info().Uint64("tick", uint64(k.tick)).Msg("kernel stopped")
	})
}

func (k *Kernel) infoLocked(t *Task) TaskInfo {
	info := t.info()
	if k.acc.Elapsed > 0 {
		info.Percent = float64(t.Total) / float64(k.acc.Elapsed) * 100
	}
	return info
}
