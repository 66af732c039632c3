package transport

import "sync/atomic"

// IDGenerator hands out strictly increasing JSON-RPC request ids, safe for
// concurrent use by multiple caller goroutines sharing one transport.
type IDGenerator struct {
	next int64
}

// Next returns the next id, starting at 1.
func (g *IDGenerator) Next() int64 {
	return atomic.AddInt64(&g.next, 1)
}
