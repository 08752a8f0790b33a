package localindex

import (
	"fmt"
	"time"
)

// ResultWriter receives the nodes found by a filter
type ResultWriter interface {
	Add(nodeKey string, score float32)
}

// WriterFunc adapts a function to ResultWriter
type WriterFunc func(nodeKey string, score float32)

// Add implements ResultWriter
func (f WriterFunc) Add(nodeKey string, score float32) {
	f(nodeKey, score)
}

// Results is a cursor over the nodes found by a filter. Matching is boolean,
// every node is written with score 1.
//
// Do not use concurrently.
type Results struct {
	index   string
	cur     cursor
	started time.Time

	pending bool
	done    bool
	closed  bool
	e       error
}

func newResults(index string, cur cursor) *Results {
	return &Results{index: index, cur: cur, started: time.Now()}
}

func (r *Results) advance() bool {
	switch {
	case r.pending:
		return true
	case r.done || r.closed:
		return false
	case r.cur.next():
		r.pending = true
		return true
	default:
		r.done = true
		r.e = r.cur.err()
		return false
	}
}

// GetNextBatch writes up to batchSize nodes and reports whether more remain
func (r *Results) GetNextBatch(w ResultWriter, batchSize int) (bool, error) {
	if batchSize <= 0 {
		return false, fmt.Errorf("invalid batch size %d", batchSize)
	}
	n := 0
	for n < batchSize && r.advance() {
		w.Add(r.cur.nodeKey(), 1)
		r.pending = false
		n++
	}
	filterResults.WithLabelValues(r.index).Add(float64(n))
	more := r.advance()
	if r.e != nil {
		return false, r.e
	}
	if !more {
		return false, r.Close()
	}
	return true, nil
}

// count drains the cursor without writing the nodes out
func (r *Results) count() (int64, error) {
	var n int64
	for r.advance() {
		r.pending = false
		n++
	}
	if r.e != nil {
		return n, r.e
	}
	return n, r.Close()
}

// Close releases the cursor. Safe to call more than once.
func (r *Results) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	filterDuration.WithLabelValues(r.index).Observe(time.Since(r.started).Seconds())
	return r.cur.close()
}
