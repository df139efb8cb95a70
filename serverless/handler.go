// Package serverless exposes the storefront as a single request handler for
// hosts that invoke it per request instead of running the binary.
package serverless

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"storefront-backend/config"
	"storefront-backend/internal/app"
	"storefront-backend/internal/logging"
	"storefront-backend/internal/mw"
	"storefront-backend/internal/supervisor"
)

// BuildFunc builds the exported handler.
type BuildFunc func(ctx context.Context) (http.Handler, error)

var (
	once    sync.Once
	builder BuildFunc = build
	handler http.Handler
	initErr error
)

// Handler serves one request with the lazily built production handler. A
// failed build is answered with 503 on every request.
func Handler(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		handler, initErr = builder(context.Background())
	})
	if initErr != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(mw.ErrorBody{
			Message:   "Service unavailable",
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		})
		return
	}
	handler.ServeHTTP(w, r)
}

func build(ctx context.Context) (http.Handler, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return nil, err
	}
	// Whatever NODE_ENV says, this entry point is the exported handler.
	cfg.Mode = config.ModeProduction

	log, err := logging.New(cfg.Mode, cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	for _, w := range cfg.Warnings {
		log.Warn(w)
	}

	seq := app.New(cfg, log, supervisor.NewLogReporter(log))
	if err := seq.Start(ctx); err != nil {
		log.Error("failed to start", zap.Error(err))
		return nil, err
	}
	return seq.Handler(), nil
}
