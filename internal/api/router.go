package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"storefront-backend/config"
	"storefront-backend/internal/apperr"
	"storefront-backend/internal/auth"
	"storefront-backend/internal/mw"
)

// Modules lists the route families in mount order.
func Modules(h *Handler, authService *auth.Service, cfg *config.ServerConfig) []Module {
	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(ttl, 2*ttl)
	caching := mw.Cache(cacheStore, ttl)
	requireAuth := auth.Middleware(authService)

	return []Module{
		{Name: "auth", Prefix: "/api/auth", Register: notImplemented("auth")},
		{Name: "buyers", Prefix: "/api/buyers", Register: notImplemented("buyers")},
		{Name: "categories", Prefix: "/api/categories", Register: notImplemented("categories")},
		{Name: "products", Prefix: "/api/products", Register: notImplemented("products")},
		{Name: "cart", Prefix: "/api/cart", Register: notImplemented("cart")},
		{Name: "wishlist", Prefix: "/api/wishlist", Register: notImplemented("wishlist")},
		{Name: "orders", Prefix: "/api/orders", Register: notImplemented("orders")},
		{Name: "payment", Prefix: "/api/payment", Register: notImplemented("payment")},
		{Name: "notifications", Prefix: "/api/notifications", Register: notImplemented("notifications")},
		{Name: "chat", Prefix: "/api/chat", Register: notImplemented("chat")},
		{Name: "admin", Prefix: "/api/admin", Register: notImplemented("admin")},
		{Name: "push-subscription", Prefix: "/api/push-subscription", Register: func(rg *gin.RouterGroup) {
			rg.GET("/vapid-public-key", caching, h.GetVAPIDPublicKey)
			rg.POST("", requireAuth, h.SavePushSubscription)
			rg.POST("/test", requireAuth, h.SendTestNotification)
		}},
		{Name: "recent", Prefix: "/api/recent", Register: notImplemented("recent")},
		{Name: "banners", Prefix: "/api/banners", Register: notImplemented("banners")},
		{Name: "health", Prefix: "/", Register: func(rg *gin.RouterGroup) {
			rg.GET("", h.Health)
		}},
	}
}

// Mount registers the modules on r in order and returns their names. The
// /api families share one rate limiter. Unknown paths become 404 errors.
func Mount(r *gin.Engine, modules []Module, cfg *config.ServerConfig) []string {
	limiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	names := make([]string, 0, len(modules))
	for _, m := range modules {
		var rg *gin.RouterGroup
		if m.Prefix == "/" {
			rg = r.Group("/")
		} else {
			rg = r.Group(m.Prefix, limiter)
		}
		m.Register(rg)
		names = append(names, m.Name)
	}

	r.NoRoute(func(c *gin.Context) {
		fail(c, apperr.NotFound("Route not found: "+c.Request.Method+" "+c.Request.URL.Path))
	})
	return names
}
