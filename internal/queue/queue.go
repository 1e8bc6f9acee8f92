// Package queue is the bounded message queue tasks use to pass fixed-size
// strings to each other. Blocking and waking go through kernel wait lists, so
// a waiting task keeps its deadline bookkeeping.
package queue

import (
	"errors"
	"fmt"
	"sync"

	"github.com/emirpasic/gods/queues/circularbuffer"
	"github.com/rs/zerolog"

	"rtedf/internal/sched"
)

var (
	ErrFull        = errors.New("queue full")
	ErrEmpty       = errors.New("queue empty")
	ErrMessageSize = errors.New("message size")
)

// message is one fixed-size slot; len is the payload length within data.
type message struct {
	data []byte
	len  int
}

// Queue holds at most Capacity messages of MsgSize bytes each.
type Queue struct {
	mu      sync.Mutex
	buf     *circularbuffer.Queue
	cap     int
	msgSize int

	senders   *sched.WaitList // tasks waiting for a free slot
	receivers *sched.WaitList // tasks waiting for a message

	log zerolog.Logger
}

// New creates a queue with capacity slots of msgSize bytes.
func New(capacity, msgSize int, log zerolog.Logger) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	if msgSize <= 0 {
		msgSize = 1
	}
	return &Queue{
		buf:       circularbuffer.New(capacity),
		cap:       capacity,
		msgSize:   msgSize,
		senders:   sched.NewWaitList(),
		receivers: sched.NewWaitList(),
		log:       log.With().Str("component", "queue").Logger(),
	}
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.buf.Size()
}

// Cap returns the number of slots.
func (q *Queue) Cap() int { return q.cap }

// MsgSize returns the slot size in bytes.
func (q *Queue) MsgSize() int { return q.msgSize }

// Waiting returns how many tasks are blocked sending and receiving.
func (q *Queue) Waiting() (senders, receivers int) {
	return q.senders.Len(), q.receivers.Len()
}

// Send copies msg into a free slot, waiting up to timeout ticks for one.
// A zero timeout never blocks.
func (q *Queue) Send(tc *sched.TaskContext, msg []byte, timeout sched.Tick) error {
	if len(msg) > q.msgSize {
		return fmt.Errorf("%w: %d bytes exceeds slot of %d", ErrMessageSize, len(msg), q.msgSize)
	}
	expires := deadline(tc, timeout)
	for {
		if q.tryPut(msg) {
			tc.Wake(q.receivers)
			return nil
		}
		left := remaining(tc, expires)
		if left == 0 || !tc.Block(q.senders, left) {
			q.log.Debug().Str("task", tc.Name()).Msg("send timed out, queue full")
			return ErrFull
		}
	}
}

// SendFromISR queues msg from a tick hook. It never blocks.
func (q *Queue) SendFromISR(isr sched.ISR, msg []byte) error {
	if len(msg) > q.msgSize {
		return fmt.Errorf("%w: %d bytes exceeds slot of %d", ErrMessageSize, len(msg), q.msgSize)
	}
	if !q.tryPut(msg) {
		return ErrFull
	}
	isr.WakeFromISR(q.receivers)
	return nil
}

// Receive copies the oldest message into buf and returns its payload
// length, waiting up to timeout ticks for one. buf must hold a whole slot.
func (q *Queue) Receive(tc *sched.TaskContext, buf []byte, timeout sched.Tick) (int, error) {
	if len(buf) < q.msgSize {
		return 0, fmt.Errorf("%w: buffer of %d bytes for %d byte slots", ErrMessageSize, len(buf), q.msgSize)
	}
	expires := deadline(tc, timeout)
	for {
		m, ok := q.tryGet()
		if ok {
			copy(buf, m.data)
			tc.Wake(q.senders)
			return m.len, nil
		}
		left := remaining(tc, expires)
		if left == 0 || !tc.Block(q.receivers, left) {
			return 0, ErrEmpty
		}
	}
}

func (q *Queue) tryPut(msg []byte) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.buf.Full() {
		return false
	}
	slot := make([]byte, q.msgSize)
	n := copy(slot, msg)
	q.buf.Enqueue(message{data: slot, len: n})
	return true
}

func (q *Queue) tryGet() (message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	v, ok := q.buf.Dequeue()
	if !ok {
		return message{}, false
	}
	return v.(message), true
}

// deadline turns a relative timeout into an absolute tick.
func deadline(tc *sched.TaskContext, timeout sched.Tick) sched.Tick {
	if timeout == 0 || timeout == sched.WaitForever {
		return timeout
	}
	return tc.TickCount() + timeout
}

func remaining(tc *sched.TaskContext, expires sched.Tick) sched.Tick {
	if expires == 0 || expires == sched.WaitForever {
		return expires
	}
	now := tc.TickCount()
	if now >= expires {
		return 0
	}
	return expires - now
}
