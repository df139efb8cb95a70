package mw

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"

	"storefront-backend/config"
	"storefront-backend/internal/apperr"
)

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func serve(r http.Handler, method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, body)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) ErrorBody {
	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	_, err := time.Parse(time.RFC3339Nano, body.Timestamp)
	assert.NoError(t, err, "timestamp must be RFC3339")
	return body
}

func TestErrorHandler(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	router := setupTestRouter()
	router.Use(ErrorHandler(zap.New(core)))
	router.GET("/missing", func(c *gin.Context) {
		_ = c.Error(apperr.NotFound("product not found"))
		c.Abort()
	})
	router.GET("/plain", func(c *gin.Context) {
		_ = c.Error(errors.New("something broke"))
	})
	router.GET("/panic", func(c *gin.Context) {
		panic("nil map write")
	})
	router.GET("/ok", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	t.Run("status carried by the error", func(t *testing.T) {
		w := serve(router, http.MethodGet, "/missing", nil, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "product not found", decodeErrorBody(t, w).Message)
	})

	t.Run("no status defaults to 500", func(t *testing.T) {
		w := serve(router, http.MethodGet, "/plain", nil, nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "something broke", decodeErrorBody(t, w).Message)
	})

	t.Run("panic becomes 500 without a stack in the body", func(t *testing.T) {
		w := serve(router, http.MethodGet, "/panic", nil, nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		body := decodeErrorBody(t, w)
		assert.Contains(t, body.Message, "nil map write")
		assert.NotContains(t, w.Body.String(), "goroutine")
	})

	t.Run("success passes through", func(t *testing.T) {
		w := serve(router, http.MethodGet, "/ok", nil, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"ok":true}`, w.Body.String())
	})

	failures := logs.FilterMessage("request failed").All()
	require.NotEmpty(t, failures)
	for _, entry := range failures {
		assert.Contains(t, entry.ContextMap(), "stack")
	}
	assert.Equal(t, 1, logs.FilterMessage("request rejected").Len())
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	router := setupTestRouter()
	router.Use(RequestLogger(zap.New(core)))

	var loggedBeforeHandler int
	router.POST("/api/cart", func(c *gin.Context) {
		loggedBeforeHandler = logs.Len()
		c.Status(http.StatusNoContent)
	})

	w := serve(router, http.MethodPost, "/api/cart?x=1", nil, map[string]string{RequestIDHeader: "req-42"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
	assert.Equal(t, 1, loggedBeforeHandler)

	entry := logs.All()[0]
	assert.Equal(t, "POST", entry.ContextMap()["method"])
	assert.Equal(t, "/api/cart", entry.ContextMap()["path"])
	assert.False(t, entry.Time.IsZero())

	w = serve(router, http.MethodPost, "/api/cart", nil, nil)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestCORS(t *testing.T) {
	build := func(mode config.RuntimeMode, origins []string) *gin.Engine {
		handler, err := CORS(mode, origins)
		require.NoError(t, err)
		router := setupTestRouter()
		router.Use(handler)
		router.GET("/api/products", func(c *gin.Context) { c.Status(http.StatusOK) })
		return router
	}

	t.Run("development reflects any origin with credentials", func(t *testing.T) {
		w := serve(build(config.ModeDevelopment, nil), http.MethodGet, "/api/products", nil,
			map[string]string{"Origin": "http://localhost:3000"})
		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("production admits configured origins only", func(t *testing.T) {
		router := build(config.ModeProduction, []string{"https://shop.example"})

		w := serve(router, http.MethodGet, "/api/products", nil, map[string]string{"Origin": "https://shop.example"})
		assert.Equal(t, "https://shop.example", w.Header().Get("Access-Control-Allow-Origin"))

		w = serve(router, http.MethodGet, "/api/products", nil, map[string]string{"Origin": "https://evil.example"})
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("invalid origin is a configuration error", func(t *testing.T) {
		_, err := CORS(config.ModeProduction, []string{"shop.example"})
		assert.Error(t, err)
	})
}

func TestRateLimiter(t *testing.T) {
	router := setupTestRouter()
	router.Use(ErrorHandler(zap.NewNop()))
	router.Use(RateLimiter(rate.Limit(0.001), 2))
	router.GET("/api/products", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/products", nil, nil).Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/products", nil, nil).Code)

	w := serve(router, http.MethodGet, "/api/products", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Too many requests", decodeErrorBody(t, w).Message)
}

func TestIPRateLimiter_ReusesLimiter(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Limit(1), 1, time.Minute)
	assert.Same(t, limiter.GetLimiter("10.0.0.1"), limiter.GetLimiter("10.0.0.1"))
	assert.NotSame(t, limiter.GetLimiter("10.0.0.1"), limiter.GetLimiter("10.0.0.2"))
}

func TestCache(t *testing.T) {
	router := setupTestRouter()
	calls := 0
	router.GET("/api/banners", Cache(cache.New(time.Minute, time.Minute), time.Minute), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"calls": calls})
	})

	first := serve(router, http.MethodGet, "/api/banners", nil, nil)
	second := serve(router, http.MethodGet, "/api/banners", nil, nil)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, 1, calls)

	authed := serve(router, http.MethodGet, "/api/banners", nil, map[string]string{"Authorization": "Bearer x"})
	assert.JSONEq(t, `{"calls":2}`, authed.Body.String())
}

func TestCache_KeepsRequestScopedHeaders(t *testing.T) {
	router := setupTestRouter()
	router.Use(RequestLogger(zap.NewNop()))
	router.GET("/api/push-subscription/vapid-public-key", Cache(cache.New(time.Minute, time.Minute), time.Minute), func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", c.GetHeader("Origin"))
		c.JSON(http.StatusOK, gin.H{"publicKey": "k"})
	})

	serve(router, http.MethodGet, "/api/push-subscription/vapid-public-key", nil,
		map[string]string{RequestIDHeader: "first", "Origin": "https://a.example"})
	w := serve(router, http.MethodGet, "/api/push-subscription/vapid-public-key", nil,
		map[string]string{RequestIDHeader: "second"})

	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Equal(t, "second", w.Header().Get(RequestIDHeader))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
}

func TestBodyLimit(t *testing.T) {
	router := setupTestRouter()
	router.Use(BodyLimit(8))
	router.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, serve(router, http.MethodPost, "/echo", strings.NewReader("small"), nil).Code)
	assert.Equal(t, http.StatusRequestEntityTooLarge,
		serve(router, http.MethodPost, "/echo", strings.NewReader("this body is too large"), nil).Code)
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	router := setupTestRouter()
	router.Use(m.Middleware())
	router.GET("/api/products/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	serve(router, http.MethodGet, "/api/products/42", nil, nil)

	w := serve(router, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `storefront_http_requests_total{method="GET",path="/api/products/:id",status="200"} 1`)
}
