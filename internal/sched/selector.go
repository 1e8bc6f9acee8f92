// internal/sched/selector.go

package sched

import (
	"github.com/emirpasic/gods/trees/redblacktree"
)

// schedKey orders tasks by absolute deadline, then static priority,
// then insertion order.
type schedKey struct {
	deadline Tick
	priority int
	seq      uint64
}

// compareKeys implements the Comparator for the red-black tree.
func compareKeys(a, b any) int {
	ka, kb := a.(schedKey), b.(schedKey)
	switch {
	case ka.deadline < kb.deadline:
		return -1
	case ka.deadline > kb.deadline:
		return 1
	case ka.priority < kb.priority:
		return -1
	case ka.priority > kb.priority:
		return 1
	case ka.seq < kb.seq:
		return -1
	case ka.seq > kb.seq:
		return 1
	default:
		return 0
	}
}

// outranks reports whether a should run instead of b. Insertion order is
// deliberately ignored: a running task is never displaced by an equal.
func outranks(a, b *Task) bool {
	if a.Deadline != b.Deadline {
		return a.Deadline < b.Deadline
	}
	return a.Priority < b.Priority
}

// taskTree is an EDF-ordered set of tasks. A task is a member of at most one
// tree at a time, so its key is kept on the record.
type taskTree struct {
	rbt *redblacktree.Tree
}

func newTaskTree() taskTree {
	return taskTree{rbt: redblacktree.NewWith(compareKeys)}
}

func (q taskTree) put(t *Task, seq uint64) {
	t.key = schedKey{deadline: t.Deadline, priority: t.Priority, seq: seq}
	q.rbt.Put(t.key, t)
}

// rekey re-sorts t after its deadline moved, keeping its FIFO position.
func (q taskTree) rekey(t *Task) {
	q.rbt.Remove(t.key)
	q.put(t, t.key.seq)
}

func (q taskTree) remove(t *Task) { q.rbt.Remove(t.key) }

func (q taskTree) first() *Task {
	node := q.rbt.Left()
	if node == nil {
		return nil
	}
	return node.Value.(*Task)
}

func (q taskTree) pop() *Task {
	t := q.first()
	if t != nil {
		q.rbt.Remove(t.key)
	}
	return t
}

func (q taskTree) len() int { return q.rbt.Size() }

// readySet is the selector's view of the Ready tasks.
type readySet struct {
	taskTree
	seq uint64
}

func newReadySet() *readySet {
	return &readySet{taskTree: newTaskTree()}
}

// push inserts t behind every task already ready with the same key.
func (rs *readySet) push(t *Task) {
	rs.seq++
	rs.put(t, rs.seq)
}

// requeue reinserts a preempted task at its original FIFO position.
func (rs *readySet) requeue(t *Task) {
	rs.put(t, t.key.seq)
}

// selectLocked returns the task that should hold the CPU, or the idle task.
func (k *Kernel) selectLocked() *Task {
	if t := k.ready.first(); t != nil {
		return t
	}
	return k.idle
}

// preemptLocked re-evaluates the running task against the ready set after
// any change to it. Equal keys keep the running task.
func (k *Kernel) preemptLocked() {
	best := k.ready.first()
	if best == nil {
		return
	}
	cur := k.current
	if cur != k.idle && !outranks(best, cur) {
		return
	}
	k.ready.remove(best)
	k.switchOutLocked(cur)
	cur.State = Ready
	if cur != k.idle {
		k.ready.requeue(cur)
		k.emit(StatusPreempt, cur)
	}
	k.switchInLocked(best)
}

// dispatchLocked hands the CPU to the best ready task after the current one
// stopped running. The outgoing task has already been switched out.
func (k *Kernel) dispatchLocked() {
	next := k.selectLocked()
	if next != k.idle {
		k.ready.remove(next)
	}
	k.switchInLocked(next)
}

// yieldLocked moves the running task behind its equals.
// It returns true if another task took the CPU.
func (k *Kernel) yieldLocked() bool {
	cur := k.current
	best := k.ready.first()
	if best == nil || outranks(cur, best) {
		return false
	}
	k.switchOutLocked(cur)
	cur.State = Ready
	k.ready.push(cur)
	k.dispatchLocked()
	return k.current != cur
}
