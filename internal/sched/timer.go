// internal/sched/timer.go

package sched

// Timer is the free-running hardware counter used for run-time accounting.
// Now must be O(1); the counter wraps to zero after Mask.
type Timer interface {
	Now() uint32
	Mask() uint32
}

// SimTimer is a simulated counter advanced by the kernel loop.
// It is owned by the kernel and only touched under the kernel lock.
type SimTimer struct {
	counts  uint64 // counts since boot, never wraps
	start   uint32
	perTick uint32
	mask    uint32
}

// NewSimTimer creates a counter of the given bit width that produces one
// scheduler tick every perTick counts, starting at start.
func NewSimTimer(bits int, perTick, start uint32) *SimTimer {
	mask := counterMask(bits)
	if perTick == 0 || perTick > mask {
		perTick = mask
	}
	return &SimTimer{perTick: perTick, start: start & mask, mask: mask}
}

func counterMask(bits int) uint32 {
	if bits <= 0 || bits >= 32 {
		return ^uint32(0)
	}
	return uint32(1)<<uint(bits) - 1
}

// Now returns the current counter value.
func (t *SimTimer) Now() uint32 { return (uint32(t.counts) + t.start) & t.mask }

// Mask returns the largest counter value before wrap.
func (t *SimTimer) Mask() uint32 { return t.mask }

// PerTick returns the number of counts per scheduler tick.
func (t *SimTimer) PerTick() uint32 { return t.perTick }

// UntilTick returns the counts left before the next tick interrupt.
func (t *SimTimer) UntilTick() uint32 {
	return t.perTick - uint32(t.counts%uint64(t.perTick))
}

// Advance moves the counter forward by n counts.
func (t *SimTimer) Advance(n uint32) { t.counts += uint64(n) }

// elapsed returns to-from modulo the counter period. Unsigned subtraction
// followed by masking gives the right interval across a single wrap.
func elapsed(mask, from, to uint32) (delta uint32, wrapped bool) {
	return (to - from) & mask, to&mask < from&mask
}
