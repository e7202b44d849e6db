package notifications

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestInlineTasks_IsolatesFailures(t *testing.T) {
	tasks := &InlineTasks{Logger: logrus.New()}
	var ran int32

	tasks.Go("ok", func(ctx context.Context) error {
		atomic.AddInt32(&ran, 1)
		return nil
	})
	tasks.Go("fails", func(ctx context.Context) error {
		atomic.AddInt32(&ran, 1)
		return errors.New("down")
	})
	tasks.Go("panics", func(ctx context.Context) error {
		atomic.AddInt32(&ran, 1)
		panic("boom")
	})
	tasks.Go("after", func(ctx context.Context) error {
		atomic.AddInt32(&ran, 1)
		return nil
	})

	if ran != 4 {
		t.Fatalf("every task must run, ran %d", ran)
	}
	failed := tasks.Failed()
	if len(failed) != 2 || failed[0] != "fails" || failed[1] != "panics" {
		t.Fatalf("failed: %v", failed)
	}
}

func TestAsyncTasks_WaitAndTimeout(t *testing.T) {
	tasks := NewAsyncTasks(logrus.New(), 50*time.Millisecond)
	var done int32

	for i := 0; i < 5; i++ {
		tasks.Go("worker", func(ctx context.Context) error {
			atomic.AddInt32(&done, 1)
			return nil
		})
	}
	tasks.Go("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	tasks.Go("panics", func(ctx context.Context) error {
		panic("boom")
	})

	tasks.Wait()
	if atomic.LoadInt32(&done) != 5 {
		t.Fatalf("done: %d", done)
	}
}
