// internal/sched/waitlist.go

package sched

import "sync/atomic"

// WaitList holds tasks blocked on an event, such as space or data in a
// message queue. Waiters are woken in EDF order.
type WaitList struct {
	q   taskTree
	seq uint64
	n   atomic.Int32
}

// NewWaitList creates an empty wait list.
func NewWaitList() *WaitList {
	return &WaitList{q: newTaskTree()}
}

// Len returns the number of blocked waiters.
func (wl *WaitList) Len() int { return int(wl.n.Load()) }

func (wl *WaitList) add(t *Task) {
	wl.seq++
	wl.q.put(t, wl.seq)
	t.wait = wl
	wl.n.Add(1)
}

func (wl *WaitList) drop(t *Task) {
	wl.q.remove(t)
	t.wait = nil
	wl.n.Add(-1)
}

// blockLocked parks the running task on wl for at most timeout ticks.
func (k *Kernel) blockLocked(t *Task, wl *WaitList, timeout Tick) {
	t.timeout = false
	t.wakeAt = WaitForever
	if timeout != WaitForever {
		t.wakeAt = k.tick + timeout
	}
	k.switchOutLocked(t)
	t.State = BlockedEvent
	wl.add(t)
	k.emit(StatusBlock, t)
	k.dispatchLocked()
}

// wakeLocked readies the most urgent waiter of wl.
func (k *Kernel) wakeLocked(wl *WaitList) bool {
	t := wl.q.first()
	if t == nil {
		return false
	}
	wl.drop(t)
	t.wakeAt = WaitForever
	k.makeReadyLocked(t)
	return true
}

// expireWaitsLocked readies every event waiter whose timeout ran out.
func (k *Kernel) expireWaitsLocked() {
	k.reg.each(func(t *Task) {
		if t.State != BlockedEvent || t.wakeAt == WaitForever || t.wakeAt > k.tick {
			return
		}
		t.wait.drop(t)
		t.wakeAt = WaitForever
		t.timeout = true
		k.makeReadyLocked(t)
	})
}
