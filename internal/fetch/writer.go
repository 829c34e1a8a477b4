package fetch

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/roach88/tablekit/internal/row"
)

// ErrClosed is returned by mutations submitted after Close.
var ErrClosed = errors.New("adapter closed")

// mutation is one queued UpdateRow or DeleteRow.
type mutation struct {
	ctx   context.Context
	op    string
	id    string
	apply func(ctx context.Context) (row.Row, error)
	done  chan mutationResult // buffered, size 1
}

type mutationResult struct {
	row row.Row
	err error
}

// mutationQueue is a thread-safe FIFO queue for mutations.
//
// Any goroutine may enqueue; exactly one writer goroutine dequeues. The
// signal channel (buffered, size 1) lets the writer wait without polling
// and is closed by Close to wake it for shutdown.
type mutationQueue struct {
	mu        sync.Mutex
	mutations []*mutation
	closed    bool
	signal    chan struct{}
}

func newMutationQueue() *mutationQueue {
	return &mutationQueue{
		mutations: make([]*mutation, 0, 16),
		signal:    make(chan struct{}, 1),
	}
}

// Enqueue adds a mutation to the back of the queue.
// Returns false if the queue is closed.
func (q *mutationQueue) Enqueue(m *mutation) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.mutations = append(q.mutations, m)

	// buffer of 1 coalesces signals
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front mutation without blocking.
func (q *mutationQueue) TryDequeue() (*mutation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.mutations) == 0 {
		return nil, false
	}
	m := q.mutations[0]
	q.mutations[0] = nil // release for GC
	if len(q.mutations) == 1 {
		q.mutations = q.mutations[:0]
	} else {
		q.mutations = q.mutations[1:]
	}
	return m, true
}

// Wait returns the signal channel. It is closed by Close.
func (q *mutationQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued mutations.
func (q *mutationQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.mutations)
}

// Drained reports whether the queue is closed and empty.
func (q *mutationQueue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.mutations) == 0
}

// Close stops accepting mutations and wakes the writer.
func (q *mutationQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// writer applies mutations one at a time in arrival order.
type writer struct {
	queue  *mutationQueue
	logger *slog.Logger
	done   chan struct{}
}

func startWriter(logger *slog.Logger) *writer {
	w := &writer{
		queue:  newMutationQueue(),
		logger: logger,
		done:   make(chan struct{}),
	}
	go w.run()
	return w
}

// run is the single writer loop. Mutations still queued at Close are
// applied before it returns.
func (w *writer) run() {
	defer close(w.done)
	for {
		if m, ok := w.queue.TryDequeue(); ok {
			w.apply(m)
			continue
		}
		if w.queue.Drained() {
			return
		}
		<-w.queue.Wait()
	}
}

func (w *writer) apply(m *mutation) {
	if err := m.ctx.Err(); err != nil {
		m.done <- mutationResult{err: err}
		return
	}
	r, err := m.apply(m.ctx)
	if err != nil {
		w.logger.Debug("mutation failed", "op", m.op, "id", m.id, "error", err)
	}
	m.done <- mutationResult{row: r, err: err}
}

// submit enqueues a mutation and waits for its result.
func (w *writer) submit(ctx context.Context, op, id string, apply func(ctx context.Context) (row.Row, error)) (row.Row, error) {
	m := &mutation{
		ctx:   ctx,
		op:    op,
		id:    id,
		apply: apply,
		done:  make(chan mutationResult, 1),
	}
	if !w.queue.Enqueue(m) {
		return row.Row{}, ErrClosed
	}
	select {
	case <-ctx.Done():
		return row.Row{}, ctx.Err()
	case res := <-m.done:
		return res.row, res.err
	}
}

// close stops the writer after draining the queue.
func (w *writer) close() {
	w.queue.Close()
	<-w.done
}
