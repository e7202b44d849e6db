package realtime

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestKeepRelaying_RestartsAfterFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	running := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		KeepRelaying(ctx, quietLogger(), RelayBackoff{Initial: time.Millisecond, Max: 4 * time.Millisecond}, func(ctx context.Context) error {
			if calls.Add(1) <= 3 {
				return errors.New("redis down")
			}
			close(running)
			<-ctx.Done()
			return nil
		})
	}()

	select {
	case <-running:
	case <-time.After(2 * time.Second):
		t.Fatalf("relay not restarted, calls=%d", calls.Load())
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("KeepRelaying did not return after cancel")
	}
	if n := calls.Load(); n != 4 {
		t.Fatalf("calls = %d", n)
	}
}

func TestKeepRelaying_StopsDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	failed := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		KeepRelaying(ctx, quietLogger(), RelayBackoff{Initial: time.Hour, Max: time.Hour}, func(context.Context) error {
			failed <- struct{}{}
			return errors.New("redis down")
		})
	}()

	<-failed
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("backoff wait ignored cancellation")
	}
}

func TestRelay_RetriesAgainstUnreachableRedis(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	rdb := NewRedis("127.0.0.1:1", "")
	defer rdb.Close()
	hub := NewHub(quietLogger())

	var attempts atomic.Int32
	KeepRelaying(ctx, quietLogger(), RelayBackoff{Initial: 10 * time.Millisecond, Max: 20 * time.Millisecond}, func(ctx context.Context) error {
		attempts.Add(1)
		return Relay(ctx, rdb, hub, quietLogger())
	})
	if attempts.Load() < 2 {
		t.Fatalf("expected repeated attempts, got %d", attempts.Load())
	}
}
