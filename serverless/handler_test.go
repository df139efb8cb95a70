package serverless

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func reset(b BuildFunc) {
	once = sync.Once{}
	builder = b
	handler, initErr = nil, nil
}

func TestHandler_BuildsOnce(t *testing.T) {
	builds := 0
	reset(func(ctx context.Context) (http.Handler, error) {
		builds++
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}), nil
	})
	t.Cleanup(func() { reset(build) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		Handler(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusTeapot, w.Code)
	}
	assert.Equal(t, 1, builds)
}

func TestHandler_BuildFailure(t *testing.T) {
	reset(func(ctx context.Context) (http.Handler, error) {
		return nil, errors.New("push messaging is not configured")
	})
	t.Cleanup(func() { reset(build) })

	w := httptest.NewRecorder()
	Handler(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"message":"Service unavailable"`)
	assert.NotContains(t, w.Body.String(), "push messaging")
}

func TestBuild_ForcesProduction(t *testing.T) {
	t.Setenv("NODE_ENV", "development")
	t.Setenv("VAPID_SUBJECT", "mailto:ops@shop.example")
	t.Setenv("VAPID_PUBLIC_KEY", "BDummyPublicKey")
	t.Setenv("VAPID_PRIVATE_KEY", "dummy-private-key")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("MONGODB_URI", "")
	t.Setenv("CONFIG_PATH", "")

	h, err := build(context.Background())
	if !assert.NoError(t, err) {
		return
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"environment":"production"`)
}
