package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront-backend/internal/apperr"
	"storefront-backend/internal/auth"
	"storefront-backend/internal/push"
)

type pushSubscriptionRequest struct {
	Subscription json.RawMessage `json:"subscription"`
}

// SavePushSubscription handles POST /api/push-subscription. The subscription
// is stored as sent, replacing any earlier one of the same user.
func (h *Handler) SavePushSubscription(c *gin.Context) {
	var req pushSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, apperr.Wrap(err, http.StatusRequestEntityTooLarge, "Request body too large"))
			return
		}
		fail(c, apperr.Wrap(err, http.StatusBadRequest, "Invalid request body"))
		return
	}
	if len(req.Subscription) == 0 || string(req.Subscription) == "null" {
		fail(c, apperr.BadRequest("subscription is required"))
		return
	}

	userID := auth.UserID(c)
	if err := h.store.UpsertPushSubscription(c.Request.Context(), userID, req.Subscription); err != nil {
		h.log.Error("failed to save push subscription", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Error saving subscription"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true})
}

// GetVAPIDPublicKey returns the VAPID public key browsers subscribe with.
func (h *Handler) GetVAPIDPublicKey(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"publicKey": h.webpush.VAPIDPublicKey})
}

var testNotification = []byte(`{"title":"Test notification","body":"Push notifications are working."}`)

// SendTestNotification queues a test push to the caller's own subscription.
func (h *Handler) SendTestNotification(c *gin.Context) {
	job := push.Job{UserID: auth.UserID(c), Payload: testNotification}
	if err := h.dispatcher.Dispatch(c.Request.Context(), job); err != nil {
		fail(c, apperr.Wrap(err, http.StatusServiceUnavailable, "Notification queue unavailable"))
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": true})
}

func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
