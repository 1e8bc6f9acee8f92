package sched

// Tracer receives instrumentation callbacks from the switch hooks and the
// tick interrupt. Callbacks run inside the kernel critical section and must
// not call back into the kernel.
type Tracer interface {
	TaskSwitchedIn(tag Tag)
	TaskSwitchedOut(tag Tag)
	Tick()
	Idle()
}

// ISR is the restricted kernel API available in interrupt mode, i.e. to tick
// hooks. Nothing on it blocks.
type ISR struct {
	k *Kernel
}

// TickCount returns the tick being processed.
func (i ISR) TickCount() Tick { return i.k.tick }

// WakeFromISR readies the most urgent waiter of wl. The selector runs once
// the tick interrupt has finished.
func (i ISR) WakeFromISR(wl *WaitList) bool { return i.k.wakeLocked(wl) }

// OnTick registers a hook run from the tick interrupt after the release pass.
func (k *Kernel) OnTick(hook func(ISR)) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.tickHooks = append(k.tickHooks, hook)
}
