package api

import (
	"context"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"storefront-backend/config"
	"storefront-backend/internal/push"
	"storefront-backend/internal/store"
)

// Dispatcher queues push notifications for delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, job push.Job) error
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store      store.Store
	webpush    *webpush.Options
	dispatcher Dispatcher
	mode       config.RuntimeMode
	log        *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, webpushOptions *webpush.Options, d Dispatcher, mode config.RuntimeMode, log *zap.Logger) *Handler {
	return &Handler{
		store:      s,
		webpush:    webpushOptions,
		dispatcher: d,
		mode:       mode,
		log:        log,
	}
}
