package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakePurger struct {
	calls atomic.Int32
	err   error
}

func (f *fakePurger) PurgeStates(ctx context.Context) (int64, error) {
	f.calls.Add(1)
	return 3, f.err
}

func TestRun_RepeatsUntilCancelled(t *testing.T) {
	p := &fakePurger{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		Run(ctx, PurgeOAuthStates(p, 5*time.Millisecond))
		close(done)
	}()

	assert.Eventually(t, func() bool { return p.calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestRun_KeepsGoingAfterErrors(t *testing.T) {
	p := &fakePurger{err: errors.New("database is locked")}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Run(ctx, PurgeOAuthStates(p, 5*time.Millisecond))

	assert.Eventually(t, func() bool { return p.calls.Load() >= 2 }, time.Second, time.Millisecond)
}
