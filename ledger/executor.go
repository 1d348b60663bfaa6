package ledger

import (
	"sync"
)

// Executor serializes transactions over a journal. Each transaction runs
// inside a snapshot: if it returns an error every mutation it made, including
// emitted events, is rolled back.
type Executor struct {
	mu      sync.RWMutex
	journal *Journal
}

// NewExecutor returns an executor over journal.
func NewExecutor(journal *Journal) *Executor {
	return &Executor{journal: journal}
}

// Journal returns the underlying journal.
func (e *Executor) Journal() *Journal {
	return e.journal
}

// Execute runs fn as one atomic transaction and returns the events it emitted.
// fn must not call Execute or View on the same executor.
func (e *Executor) Execute(fn func() error) ([]Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cursor := e.journal.LogCursor()
	snap := e.journal.Snapshot()
	if err := fn(); err != nil {
		e.journal.RevertToSnapshot(snap)
		return nil, err
	}

	events := e.journal.Logs(cursor)
	// Committed transactions are never undone and their events were handed out.
	e.journal.Reset()
	return events, nil
}

// View runs a read-only fn. Views may run concurrently with each other but
// never with a transaction.
func (e *Executor) View(fn func() error) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return fn()
}
