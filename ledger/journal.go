// Package ledger provides the transactional state primitives shared by the
// content core and its collaborators: an undo journal with nested snapshots,
// an event log that reverts with it, a clock and a journaled ERC-20 token.
package ledger

import (
	"fmt"
)

// Event is anything emitted to the journal's log.
type Event interface {
	EventName() string
}

// Journal records an undo entry for every state mutation so that a failed
// transaction can be rolled back to a snapshot. A Journal is not safe for
// concurrent use; Executor serializes access.
type Journal struct {
	undo []func()
	logs []Event
}

// NewJournal returns an empty journal.
func NewJournal() *Journal {
	return &Journal{}
}

// Snapshot returns an id that RevertToSnapshot can roll back to.
func (j *Journal) Snapshot() int {
	return len(j.undo)
}

// RevertToSnapshot undoes every mutation recorded after snapshot id, newest first.
func (j *Journal) RevertToSnapshot(id int) {
	if id < 0 || id > len(j.undo) {
		panic(fmt.Sprintf("ledger: invalid snapshot id %d (journal length %d)", id, len(j.undo)))
	}
	for i := len(j.undo) - 1; i >= id; i-- {
		j.undo[i]()
	}
	j.undo = j.undo[:id]
}

// Reset drops all undo entries and events, making every recorded mutation
// permanent. Outstanding snapshot ids and log cursors become invalid.
func (j *Journal) Reset() {
	// Released slots must not pin the closures and events of past transactions.
	clear(j.undo)
	clear(j.logs)
	j.undo = j.undo[:0]
	j.logs = j.logs[:0]
}

// Append records an undo function.
func (j *Journal) Append(undo func()) {
	j.undo = append(j.undo, undo)
}

// Emit appends e to the event log. The event is removed again if the
// enclosing snapshot is reverted.
func (j *Journal) Emit(e Event) {
	n := len(j.logs)
	j.logs = append(j.logs, e)
	j.Append(func() { j.logs = j.logs[:n] })
}

// LogCursor returns the current length of the event log.
func (j *Journal) LogCursor() int {
	return len(j.logs)
}

// Logs returns a copy of the events emitted since cursor.
func (j *Journal) Logs(cursor int) []Event {
	if cursor >= len(j.logs) {
		return []Event{}
	}
	out := make([]Event, len(j.logs)-cursor)
	copy(out, j.logs[cursor:])
	return out
}

// Set stores m[k] = v and records how to restore the previous entry.
func Set[K comparable, V any](j *Journal, m map[K]V, k K, v V) {
	prev, existed := m[k]
	j.Append(func() {
		if existed {
			m[k] = prev
		} else {
			delete(m, k)
		}
	})
	m[k] = v
}

// Assign stores *p = v and records how to restore the previous value.
func Assign[T any](j *Journal, p *T, v T) {
	prev := *p
	j.Append(func() { *p = prev })
	*p = v
}
