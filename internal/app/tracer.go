package app

import "rtedf/internal/sched"

// PinTracer mirrors the scheduler on GPIO pins for a logic analyzer: one pin
// per tag is high while that task runs, the idle pin is high while idling,
// and the tick pin pulses once per tick.
type PinTracer struct {
	gpio GPIO
}

// NewPinTracer returns a tracer driving g.
func NewPinTracer(g GPIO) *PinTracer { return &PinTracer{gpio: g} }

func taskPin(tag sched.Tag) (Pin, bool) {
	if tag == 0 || tag > 6 {
		return 0, false
	}
	return PinTaskBase + Pin(tag) - 1, true
}

func (p *PinTracer) TaskSwitchedIn(tag sched.Tag) {
	p.gpio.Write(PinIdle, false)
	if pin, ok := taskPin(tag); ok {
		p.gpio.Write(pin, true)
	}
}

func (p *PinTracer) TaskSwitchedOut(tag sched.Tag) {
	if pin, ok := taskPin(tag); ok {
		p.gpio.Write(pin, false)
	}
}

func (p *PinTracer) Tick() {
	p.gpio.Write(PinTick, true)
	p.gpio.Write(PinTick, false)
}

func (p *PinTracer) Idle() { p.gpio.Write(PinIdle, true) }
