// Package supervisor reports failures that happen outside a request, and
// keeps background goroutines from taking the process down with them.
package supervisor

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Reporter receives errors that have no caller left to return to.
type Reporter interface {
	Report(ctx context.Context, err error, fields ...zap.Field)
}

// AlertHook is invoked for every reported error after it has been logged.
type AlertHook func(ctx context.Context, err error)

// LogReporter logs reported errors with a stack trace and forwards them to
// any registered alert hooks.
type LogReporter struct {
	log *zap.Logger

	mu    sync.RWMutex
	hooks []AlertHook
}

// NewLogReporter creates a reporter that writes to log.
func NewLogReporter(log *zap.Logger) *LogReporter {
	return &LogReporter{log: log}
}

// AddHook registers an alert hook.
func (r *LogReporter) AddHook(h AlertHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, h)
}

// Report implements Reporter.
func (r *LogReporter) Report(ctx context.Context, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err), zap.Stack("stack"))
	r.log.Error("unhandled error", fields...)

	r.mu.RLock()
	hooks := append([]AlertHook(nil), r.hooks...)
	r.mu.RUnlock()

	for _, h := range hooks {
		h(ctx, err)
	}
}

// Go runs fn on a new goroutine. A panic in fn is reported instead of
// crashing the process.
func Go(ctx context.Context, r Reporter, name string, fn func(ctx context.Context)) {
	go func() {
		defer Recover(ctx, r, name)
		fn(ctx)
	}()
}

// Recover reports a recovered panic. It must be called directly by defer.
func Recover(ctx context.Context, r Reporter, name string) {
	if v := recover(); v != nil {
		err, ok := v.(error)
		if !ok {
			err = fmt.Errorf("%v", v)
		}
		r.Report(ctx, fmt.Errorf("panic in %s: %w", name, err), zap.String("goroutine", name))
	}
}
