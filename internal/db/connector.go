package db

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"storefront-backend/config"
	"storefront-backend/internal/apperr"
	"storefront-backend/internal/model"
	"storefront-backend/internal/store"
	"storefront-backend/internal/supervisor"
)

// State is the lifecycle of the process-wide database connection.
type State int

const (
	StatePending State = iota
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// ErrNotReady is returned by store calls made before a connection exists.
var ErrNotReady = apperr.New(http.StatusServiceUnavailable, "database is not connected")

// OpenFunc establishes a store.
type OpenFunc func(ctx context.Context) (store.Store, error)

// Connector owns the database connection attempt and its outcome. It
// implements store.Store so handlers can hold it before the connection
// exists; calls fail with ErrNotReady until the state is StateConnected.
type Connector struct {
	open    OpenFunc
	timeout time.Duration
	log     *zap.Logger

	mu     sync.RWMutex
	state  State
	reason error
	store  store.Store
	done   chan struct{}
	once   sync.Once
}

// NewConnector creates a connector for the configured database.
func NewConnector(cfg *config.DatabaseConfig, log *zap.Logger) *Connector {
	return NewConnectorWithOpener(func(ctx context.Context) (store.Store, error) {
		return Open(ctx, cfg)
	}, time.Duration(cfg.ConnectTimeoutSeconds)*time.Second, log)
}

// NewConnectorWithOpener creates a connector around an arbitrary opener.
func NewConnectorWithOpener(open OpenFunc, timeout time.Duration, log *zap.Logger) *Connector {
	return &Connector{
		open:    open,
		timeout: timeout,
		log:     log,
		done:    make(chan struct{}),
	}
}

// Connect runs the connection attempt once and records the outcome.
// Failures are logged and returned; they never stop the caller.
func (c *Connector) Connect(ctx context.Context) error {
	var result error
	c.once.Do(func() {
		defer close(c.done)

		if c.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		s, err := c.open(ctx)

		c.mu.Lock()
		if err != nil {
			c.state, c.reason = StateFailed, err
		} else {
			c.state, c.store = StateConnected, s
		}
		c.mu.Unlock()

		if err != nil {
			c.log.Error("database connection failed", zap.Error(err))
			result = err
			return
		}
		c.log.Info("database connected")
	})
	return result
}

// ConnectAsync starts Connect on its own goroutine and returns immediately.
func (c *Connector) ConnectAsync(ctx context.Context, r supervisor.Reporter) {
	supervisor.Go(ctx, r, "db-connect", func(ctx context.Context) {
		_ = c.Connect(ctx)
	})
}

// Status returns the current state and, for StateFailed, the reason.
func (c *Connector) Status() (State, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state, c.reason
}

// Done is closed once the connection attempt has finished either way.
func (c *Connector) Done() <-chan struct{} {
	return c.done
}

func (c *Connector) ready() (store.Store, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch c.state {
	case StateConnected:
		return c.store, nil
	case StateFailed:
		return nil, apperr.Wrap(c.reason, http.StatusServiceUnavailable, ErrNotReady.Message)
	}
	return nil, ErrNotReady
}

func (c *Connector) UpsertPushSubscription(ctx context.Context, userID string, subscription json.RawMessage) error {
	s, err := c.ready()
	if err != nil {
		return err
	}
	return s.UpsertPushSubscription(ctx, userID, subscription)
}

func (c *Connector) GetPushSubscription(ctx context.Context, userID string) (*model.PushSubscription, error) {
	s, err := c.ready()
	if err != nil {
		return nil, err
	}
	return s.GetPushSubscription(ctx, userID)
}

func (c *Connector) DeletePushSubscription(ctx context.Context, userID string) error {
	s, err := c.ready()
	if err != nil {
		return err
	}
	return s.DeletePushSubscription(ctx, userID)
}

// Close releases the underlying store, if any.
func (c *Connector) Close() error {
	c.mu.RLock()
	s := c.store
	c.mu.RUnlock()
	if s == nil {
		return nil
	}
	return s.Close()
}
