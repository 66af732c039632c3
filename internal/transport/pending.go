package transport

import (
	"encoding/json"
	"sync"

	mcperrors "github.com/jamesprial/mcp-client/internal/errors"
)

// Result is what a pending request resolves to: either a raw JSON result
// or a terminal error.
type Result struct {
	Data json.RawMessage
	Err  error
}

// PendingTable is the one-shot result arena every transport's reader
// goroutine delivers into and every caller goroutine waits on, keyed by
// JSON-RPC request id. A single mutex guards the map; each registered
// waiter gets its own buffered channel.
type PendingTable struct {
	mu      sync.Mutex
	waiters map[int64]chan Result
	closed  bool
	closeErr error
}

// NewPendingTable constructs an empty arena.
func NewPendingTable() *PendingTable {
	return &PendingTable{waiters: make(map[int64]chan Result)}
}

// Register allocates a one-shot slot for id and returns the channel the
// caller should receive from exactly once. Registering an id twice
// overwrites the earlier slot; callers must not reuse ids for concurrent
// in-flight requests.
func (t *PendingTable) Register(id int64) (<-chan Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, t.closeErr
	}
	ch := make(chan Result, 1)
	t.waiters[id] = ch
	return ch, nil
}

// Deliver resolves the waiter registered for id, if any, and removes it
// from the table. It reports whether a waiter was found. Delivering to an
// id with no registered waiter (a late or duplicate response) is a no-op.
func (t *PendingTable) Deliver(id int64, data json.RawMessage, err error) bool {
	t.mu.Lock()
	ch, ok := t.waiters[id]
	if ok {
		delete(t.waiters, id)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	ch <- Result{Data: data, Err: err}
	return true
}

// Reap removes the slot for id without delivering a result, used when a
// caller's context is cancelled or a per-call timeout fires while waiting.
func (t *PendingTable) Reap(id int64) {
	t.mu.Lock()
	delete(t.waiters, id)
	t.mu.Unlock()
}

// CloseAll delivers a terminal error to every outstanding waiter and marks
// the table closed so subsequent Register calls fail immediately. Safe to
// call more than once; only the first call's err is recorded and
// delivered.
func (t *PendingTable) CloseAll(err error) {
	if err == nil {
		err = mcperrors.Connection("transport", "CloseAll", "transport closed")
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.closeErr = err
	waiters := t.waiters
	t.waiters = make(map[int64]chan Result)
	t.mu.Unlock()

	for _, ch := range waiters {
		ch <- Result{Err: err}
	}
}

// Len reports the number of outstanding waiters, for tests and
// diagnostics.
func (t *PendingTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.waiters)
}
