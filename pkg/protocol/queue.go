package protocol

import (
	"context"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/codeflow/pkg/errors"
)

// Queue is a Port that delivers to another Port on its own goroutine, in
// order. Post never blocks on the receiver, so a sender may post while
// holding its own locks.
type Queue struct {
	dst    Port
	logger *log.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	items  []Message
	closed bool
	done   chan struct{}
}

// NewQueue starts a queue delivering to dst. A nil logger discards
// delivery errors.
func NewQueue(dst Port, logger *log.Logger) *Queue {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	q := &Queue{dst: dst, logger: logger, done: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

// Post implements Port. Messages posted after Close are dropped.
func (q *Queue) Post(_ context.Context, m Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.items = append(q.items, m)
	q.cond.Signal()
	return nil
}

// Close stops the queue after the messages already posted are delivered.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Signal()
	q.mu.Unlock()
	<-q.done
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.items) == 0 {
			q.mu.Unlock()
			return
		}
		m := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()

		if err := q.dst.Post(context.Background(), m); err != nil {
			q.logger.Debug("queued delivery failed", "type", m.Type, "err", err)
		}
	}
}

// Relay is a Port whose destination is attached after construction. It
// lets two peers that each need the other's port be built in order.
type Relay struct {
	mu  sync.RWMutex
	dst Port
}

// Attach sets the destination for subsequent posts.
func (r *Relay) Attach(dst Port) {
	r.mu.Lock()
	r.dst = dst
	r.mu.Unlock()
}

// Post implements Port. It fails until a destination is attached.
func (r *Relay) Post(ctx context.Context, m Message) error {
	r.mu.RLock()
	dst := r.dst
	r.mu.RUnlock()
	if dst == nil {
		return errors.New(errors.ErrCodeInternal, "%s: relay not attached", m.Type)
	}
	return dst.Post(ctx, m)
}
