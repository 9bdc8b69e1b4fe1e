package application

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-wallet/pkg/wallet"
)

// poolMaintainer runs the address pool maintenance of the accounts of an
// unlocked wallet in background. Accounts are processed one at a time by a
// single worker bound to the session context, and an account already waiting
// in queue is not enqueued twice.
type poolMaintainer struct {
	ctx  context.Context
	work func(ctx context.Context, accountIndex uint32) error

	lock    *sync.Mutex
	queue   []uint32
	queued  map[uint32]struct{}
	running bool
	notify  chan struct{}
	idle    *sync.Cond
	done    chan struct{}
}

func newPoolMaintainer(
	ctx context.Context, work func(context.Context, uint32) error,
) *poolMaintainer {
	lock := &sync.Mutex{}
	p := &poolMaintainer{
		ctx:    ctx,
		work:   work,
		lock:   lock,
		queue:  make([]uint32, 0),
		queued: make(map[uint32]struct{}),
		notify: make(chan struct{}, 1),
		idle:   sync.NewCond(lock),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// enqueue schedules the maintenance of the given accounts. It never blocks.
func (p *poolMaintainer) enqueue(accountIndexes ...uint32) {
	if p.ctx.Err() != nil {
		return
	}

	p.lock.Lock()
	for _, i := range accountIndexes {
		if _, ok := p.queued[i]; ok {
			continue
		}
		p.queued[i] = struct{}{}
		p.queue = append(p.queue, i)
	}
	p.lock.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// wait blocks until the queue is empty and the worker is idle, or the
// maintainer is stopped.
func (p *poolMaintainer) wait() {
	p.lock.Lock()
	defer p.lock.Unlock()

	for (len(p.queue) > 0 || p.running) && p.ctx.Err() == nil {
		p.idle.Wait()
	}
}

// stopped is closed once the worker has returned.
func (p *poolMaintainer) stopped() <-chan struct{} {
	return p.done
}

func (p *poolMaintainer) run() {
	defer func() {
		p.lock.Lock()
		p.queue = nil
		p.running = false
		p.idle.Broadcast()
		p.lock.Unlock()
		close(p.done)
	}()

	for {
		accountIndex, ok := p.next()
		if !ok {
			select {
			case <-p.ctx.Done():
				return
			case <-p.notify:
				continue
			}
		}

		if err := p.work(p.ctx, accountIndex); err != nil {
			logPoolError(accountIndex, err)
		}

		p.lock.Lock()
		p.running = false
		p.idle.Broadcast()
		p.lock.Unlock()

		if p.ctx.Err() != nil {
			return
		}
	}
}

func (p *poolMaintainer) next() (uint32, bool) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if len(p.queue) <= 0 || p.ctx.Err() != nil {
		return 0, false
	}
	i := p.queue[0]
	p.queue = p.queue[1:]
	delete(p.queued, i)
	p.running = true
	return i, true
}

func logPoolError(accountIndex uint32, err error) {
	entry := log.WithError(err).WithField("account", accountIndex)
	switch {
	case errors.Is(err, context.Canceled):
		entry.Debug("address pool maintenance interrupted")
	case wallet.IsFatal(err):
		entry.Error("address pool maintenance failed")
	default:
		entry.Warn("address pool maintenance failed, will retry on next trigger")
	}
}
