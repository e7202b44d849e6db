package notifications

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Tasks runs post-commit side effects. A task's failure is logged and never
// reaches the caller that scheduled it.
type Tasks interface {
	Go(name string, fn func(ctx context.Context) error)
}

type AsyncTasks struct {
	Logger  logrus.FieldLogger
	Timeout time.Duration
	wg      sync.WaitGroup
}

func NewAsyncTasks(logger logrus.FieldLogger, timeout time.Duration) *AsyncTasks {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &AsyncTasks{Logger: logger, Timeout: timeout}
}

func (t *AsyncTasks) Go(name string, fn func(ctx context.Context) error) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), t.Timeout)
		defer cancel()
		if err := run(ctx, fn); err != nil {
			t.Logger.WithError(err).WithField("task", name).Warn("notification task failed")
		}
	}()
}

// Wait blocks until every scheduled task has returned.
func (t *AsyncTasks) Wait() {
	t.wg.Wait()
}

// InlineTasks runs each task before Go returns. Failed task names are kept
// for inspection.
type InlineTasks struct {
	Logger logrus.FieldLogger

	mu     sync.Mutex
	failed []string
}

func (t *InlineTasks) Go(name string, fn func(ctx context.Context) error) {
	if err := run(context.Background(), fn); err != nil {
		t.mu.Lock()
		t.failed = append(t.failed, name)
		t.mu.Unlock()
		if t.Logger != nil {
			t.Logger.WithError(err).WithField("task", name).Warn("notification task failed")
		}
	}
}

func (t *InlineTasks) Failed() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.failed...)
}

func run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}
