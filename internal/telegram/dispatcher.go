package telegram

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultIdleTimeout is how long an account's worker waits for more updates before exiting.
const DefaultIdleTimeout = time.Minute

// Dispatcher hands updates to a handler in arrival order per account. Different accounts are
// handled in parallel; each account has at most one worker, started on demand and stopped
// after it has been idle for IdleTimeout.
type Dispatcher struct {
	ctx     context.Context
	handler UpdateHandler
	idle    time.Duration
	logger  *zap.Logger

	mu       sync.Mutex
	workers  map[int64]*worker
	inflight sync.WaitGroup
	running  sync.WaitGroup
}

type worker struct {
	pending []Update
	wake    chan struct{}
}

// NewDispatcher runs handlers under ctx. Cancelling ctx drops queued updates and stops the
// workers once their current update returns.
func NewDispatcher(ctx context.Context, handler UpdateHandler, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		ctx:     ctx,
		handler: handler,
		idle:    DefaultIdleTimeout,
		logger:  logger.Named("dispatcher"),
		workers: make(map[int64]*worker),
	}
}

// SetIdleTimeout changes how long idle workers live. Call it before the first Dispatch.
func (d *Dispatcher) SetIdleTimeout(idle time.Duration) {
	d.idle = idle
}

// Dispatch queues u behind every earlier update of the same account. It never blocks on the
// handler.
func (d *Dispatcher) Dispatch(u Update) {
	key := u.AccountID()

	d.inflight.Add(1)
	d.mu.Lock()
	w, ok := d.workers[key]
	if !ok {
		w = &worker{wake: make(chan struct{}, 1)}
		d.workers[key] = w
		d.running.Add(1)
		go d.run(key, w)
	}
	w.pending = append(w.pending, u)
	d.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// next pops the oldest queued update of w.
func (d *Dispatcher) next(w *worker) (Update, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(w.pending) == 0 {
		return Update{}, false
	}
	u := w.pending[0]
	w.pending[0] = Update{}
	w.pending = w.pending[1:]
	return u, true
}

// retire removes w when nothing is queued. With drop set it discards the queue first.
func (d *Dispatcher) retire(key int64, w *worker, drop bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if drop {
		for range w.pending {
			d.inflight.Done()
		}
		w.pending = nil
	}
	if len(w.pending) > 0 {
		return false
	}
	delete(d.workers, key)
	return true
}

func (d *Dispatcher) run(key int64, w *worker) {
	defer d.running.Done()

	timer := time.NewTimer(d.idle)
	defer timer.Stop()

	for {
		if d.ctx.Err() != nil {
			if n := d.drop(key, w); n > 0 {
				d.logger.Warn("Dropped queued updates on shutdown", zap.Int64("account_id", key), zap.Int("count", n))
			}
			return
		}

		if u, ok := d.next(w); ok {
			d.handle(u)
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(d.idle)

		select {
		case <-w.wake:
		case <-d.ctx.Done():
		case <-timer.C:
			if d.retire(key, w, false) {
				return
			}
		}
	}
}

func (d *Dispatcher) drop(key int64, w *worker) int {
	d.mu.Lock()
	n := len(w.pending)
	d.mu.Unlock()
	d.retire(key, w, true)
	return n
}

func (d *Dispatcher) handle(u Update) {
	defer d.inflight.Done()
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error("Update handler panicked", zap.Int64("update_id", u.UpdateID), zap.Any("panic", rec))
		}
	}()
	d.handler.HandleUpdate(d.ctx, u)
}

// Workers reports how many accounts currently have a live worker.
func (d *Dispatcher) Workers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.workers)
}

// Wait blocks until every dispatched update has been handled or dropped.
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

// Close waits for queued updates, then for the workers to exit. Workers exit when ctx is
// cancelled or after the idle timeout.
func (d *Dispatcher) Close() {
	d.inflight.Wait()
	d.running.Wait()
}
