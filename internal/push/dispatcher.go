package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"storefront-backend/internal/store"
	"storefront-backend/internal/supervisor"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(ctx context.Context, payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct {
	Client *http.Client
}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(ctx context.Context, payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	opts := *options
	if s.Client != nil {
		opts.HTTPClient = s.Client
	}
	return webpush.SendNotificationWithContext(ctx, payload, sub, &opts)
}

// Job is one notification addressed to a user.
type Job struct {
	UserID  string
	Payload []byte
}

// Dispatcher manages a pool of workers for sending notifications.
type Dispatcher struct {
	size     int
	jobs     chan Job
	store    store.Store
	webpush  *webpush.Options
	sender   NotificationSender
	log      *zap.Logger
	reporter supervisor.Reporter
}

// NewDispatcher creates a new worker pool.
func NewDispatcher(size int, s store.Store, webpushOptions *webpush.Options, log *zap.Logger, r supervisor.Reporter) *Dispatcher {
	if size <= 0 {
		size = 1
	}
	return &Dispatcher{
		size:     size,
		jobs:     make(chan Job, size*4),
		store:    s,
		webpush:  webpushOptions,
		sender:   &WebPushSender{Client: &http.Client{Timeout: 15 * time.Second}},
		log:      log,
		reporter: r,
	}
}

// Start launches the worker goroutines. They exit when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.size; i++ {
		id := i
		supervisor.Go(ctx, d.reporter, fmt.Sprintf("push-worker-%d", id), func(ctx context.Context) {
			d.worker(ctx, id)
		})
	}
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	d.log.Debug("push worker started", zap.Int("worker", id))
	for {
		select {
		case job := <-d.jobs:
			d.deliver(ctx, job)
		case <-ctx.Done():
			d.log.Debug("push worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

// Dispatch queues a job, blocking while the queue is full.
func (d *Dispatcher) Dispatch(ctx context.Context, job Job) error {
	select {
	case d.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// deliver looks up the user's subscription and sends the payload to it.
// Subscriptions the push service reports as gone are removed.
func (d *Dispatcher) deliver(ctx context.Context, job Job) {
	record, err := d.store.GetPushSubscription(ctx, job.UserID)
	if errors.Is(err, store.ErrNotFound) {
		d.log.Debug("no push subscription", zap.String("user_id", job.UserID))
		return
	}
	if err != nil {
		d.log.Warn("failed to load push subscription", zap.String("user_id", job.UserID), zap.Error(err))
		return
	}

	var sub webpush.Subscription
	if err := json.Unmarshal(record.Subscription, &sub); err != nil || sub.Endpoint == "" {
		d.log.Warn("stored push subscription is not usable", zap.String("user_id", job.UserID), zap.Error(err))
		return
	}

	resp, err := d.sender.Send(ctx, job.Payload, &sub, d.webpush)
	if err != nil {
		d.log.Warn("failed to send push notification", zap.String("user_id", job.UserID), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		d.log.Info("push subscription expired, deleting", zap.String("user_id", job.UserID), zap.Int("status", resp.StatusCode))
		if err := d.store.DeletePushSubscription(ctx, job.UserID); err != nil {
			d.log.Warn("failed to delete expired push subscription", zap.String("user_id", job.UserID), zap.Error(err))
		}
	case resp.StatusCode >= 400:
		d.log.Warn("push service rejected notification", zap.String("user_id", job.UserID), zap.Int("status", resp.StatusCode))
	}
}
