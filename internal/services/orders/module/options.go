package module

import (
	"time"

	"poshub/internal/platform/config"
)

// Options controls the publisher
type Options struct {
	Source         string
	PublishTimeout time.Duration
}

// FromConfig reads ORDERS_* values from process config/env
func FromConfig(cfg config.Conf) Options {
	oc := cfg.Prefix("ORDERS_")
	return Options{
		Source:         oc.MayString("SOURCE", "poshub-api"),
		PublishTimeout: oc.MayDuration("PUBLISH_TIMEOUT", 3*time.Second),
	}
}
