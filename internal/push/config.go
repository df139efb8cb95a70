package push

import (
	"errors"
	"fmt"
	"strings"

	"github.com/SherClockHolmes/webpush-go"

	"storefront-backend/config"
)

// ErrNotConfigured is returned when any VAPID parameter is missing.
var ErrNotConfigured = errors.New("push messaging is not configured")

// Configure validates the VAPID parameters and returns the options shared by
// every push sent from this process. The result is built once at startup and
// never modified afterwards.
func Configure(cfg config.PushConfig) (*webpush.Options, error) {
	var missing []string
	if strings.TrimSpace(cfg.Subject) == "" {
		missing = append(missing, "VAPID_SUBJECT")
	}
	if strings.TrimSpace(cfg.PublicKey) == "" {
		missing = append(missing, "VAPID_PUBLIC_KEY")
	}
	if strings.TrimSpace(cfg.PrivateKey) == "" {
		missing = append(missing, "VAPID_PRIVATE_KEY")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrNotConfigured, strings.Join(missing, ", "))
	}

	return &webpush.Options{
		Subscriber:      cfg.Subject,
		VAPIDPublicKey:  cfg.PublicKey,
		VAPIDPrivateKey: cfg.PrivateKey,
		TTL:             cfg.TTL,
	}, nil
}
