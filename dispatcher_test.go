package identity_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	identity "github.com/craftyourstyle/go-identity"
	"github.com/stretchr/testify/assert"
)

func TestDispatcherRunsEnqueuedTasks(t *testing.T) {
	d := identity.NewDispatcher(8, 2, nil)

	var ran int64
	for i := 0; i < 5; i++ {
		d.Enqueue("count", func(ctx context.Context) error {
			atomic.AddInt64(&ran, 1)
			return nil
		})
	}

	d.Close()
	assert.Equal(t, int64(5), atomic.LoadInt64(&ran))
}

func TestDispatcherCloseDrains(t *testing.T) {
	d := identity.NewDispatcher(16, 1, nil)

	done := make(chan struct{})
	d.Enqueue("signal", func(ctx context.Context) error {
		close(done)
		return nil
	})

	d.Close()

	select {
	case <-done:
	default:
		t.Fatal("Close returned before the queued task ran")
	}
}

func TestDispatcherDropsAfterClose(t *testing.T) {
	d := identity.NewDispatcher(8, 1, nil)
	d.Close()

	var ran int64
	// must not panic on the closed channel, and must not run
	d.Enqueue("late", func(ctx context.Context) error {
		atomic.AddInt64(&ran, 1)
		return nil
	})

	assert.Equal(t, int64(0), atomic.LoadInt64(&ran))
}

func TestDispatcherCloseIsIdempotent(t *testing.T) {
	d := identity.NewDispatcher(8, 1, nil)
	d.Close()
	d.Close()
}

func TestDispatcherSurvivesPanicsAndErrors(t *testing.T) {
	d := identity.NewDispatcher(8, 1, nil)

	d.Enqueue("panics", func(ctx context.Context) error {
		panic("boom")
	})
	d.Enqueue("fails", func(ctx context.Context) error {
		return errors.New("delivery failed")
	})

	var ran int64
	d.Enqueue("after", func(ctx context.Context) error {
		atomic.AddInt64(&ran, 1)
		return nil
	})

	d.Close()
	assert.Equal(t, int64(1), atomic.LoadInt64(&ran))
}

func TestDispatcherIgnoresNilTask(t *testing.T) {
	d := identity.NewDispatcher(8, 1, nil)
	defer d.Close()

	d.Enqueue("nil-task", nil)
}
