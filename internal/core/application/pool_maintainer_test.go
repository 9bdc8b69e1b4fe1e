package application

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoolMaintainer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lock := &sync.Mutex{}
	processed := make([]uint32, 0)
	release := make(chan struct{})

	p := newPoolMaintainer(ctx, func(_ context.Context, i uint32) error {
		<-release
		lock.Lock()
		processed = append(processed, i)
		lock.Unlock()
		if i == 2 {
			return fmt.Errorf("explorer unreachable")
		}
		return nil
	})

	p.enqueue(0)
	// Account 0 is being processed, the others wait in queue and are not
	// duplicated.
	time.Sleep(50 * time.Millisecond)
	p.enqueue(1, 2, 1, 2)
	close(release)
	p.wait()

	lock.Lock()
	require.Equal(t, []uint32{0, 1, 2}, processed)
	lock.Unlock()

	// Failures don't stop the worker.
	p.enqueue(3)
	p.wait()

	lock.Lock()
	require.Equal(t, []uint32{0, 1, 2, 3}, processed)
	lock.Unlock()
}

func TestPoolMaintainerStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	p := newPoolMaintainer(ctx, func(ctx context.Context, _ uint32) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	p.enqueue(0, 1)
	<-started
	cancel()

	select {
	case <-p.stopped():
	case <-time.After(5 * time.Second):
		t.Fatal("maintainer didn't stop")
	}
	p.wait()

	// No-op once stopped.
	p.enqueue(2)
}
