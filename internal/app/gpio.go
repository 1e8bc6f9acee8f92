package app

import "sync"

// Pin is a port-0 pin number.
type Pin int

const (
	PinButton1 Pin = 0
	PinButton2 Pin = 1
	// PinTaskBase is the trace pin of tag 1; tag n drives PinTaskBase+n-1.
	PinTaskBase Pin = 2
	PinTick     Pin = 8
	PinIdle     Pin = 9
)

// GPIO is the pin driver the application needs.
type GPIO interface {
	Read(pin Pin) bool
	Write(pin Pin, high bool)
}

// SimGPIO is an in-memory port that counts rising edges per pin.
type SimGPIO struct {
	mu     sync.Mutex
	levels map[Pin]bool
	rises  map[Pin]int
}

func NewSimGPIO() *SimGPIO {
	return &SimGPIO{levels: make(map[Pin]bool), rises: make(map[Pin]int)}
}

func (g *SimGPIO) Read(pin Pin) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.levels[pin]
}

func (g *SimGPIO) Write(pin Pin, high bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if high && !g.levels[pin] {
		g.rises[pin]++
	}
	g.levels[pin] = high
}

// Rises returns how many times pin went from low to high.
func (g *SimGPIO) Rises(pin Pin) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rises[pin]
}
