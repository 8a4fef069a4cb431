package config

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"

	pkgerrors "github.com/sudhir1041/nursery-orders/pkg/errors"
)

// validate reports every cross-field problem at once so a bad deploy shows
// the whole list in one log line.
func (c *Config) validate() error {
	var errs error
	add := func(format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf(format, args...))
	}

	if c.Reconcile.SLAThreshold <= 0 {
		add("NURSERY_RECONCILE_SLA_THRESHOLD must be positive")
	}
	if c.Reconcile.DefaultWindow <= 0 || c.Reconcile.DashboardWindow <= 0 {
		add("reconcile windows must be positive")
	}
	for name, tmpl := range map[string]string{
		"NURSERY_RECONCILE_SHOPIFY_TRACKING_URL": c.Reconcile.ShopifyTrackingURL,
		"NURSERY_RECONCILE_WOO_TRACKING_URL":     c.Reconcile.WooTrackingURL,
		"NURSERY_RECONCILE_MANUAL_TRACKING_URL":  c.Reconcile.ManualTrackingURL,
	} {
		if tmpl != "" && strings.Count(tmpl, "%s") != 1 {
			add("%s must contain exactly one %%s placeholder", name)
		}
	}
	if c.Outbox.MaxAttempts < 1 {
		add("NURSERY_OUTBOX_MAX_ATTEMPTS must be at least 1")
	}
	if c.Outbox.BatchSize < 1 {
		add("NURSERY_OUTBOX_PUBLISH_BATCH_SIZE must be at least 1")
	}
	if c.Outbox.Retention <= 0 {
		add("NURSERY_OUTBOX_RETENTION must be positive")
	}
	if c.Sync.MaxAttempts < 1 {
		add("NURSERY_SYNC_MAX_ATTEMPTS must be at least 1")
	}
	if c.Sync.Randomization < 0 || c.Sync.Randomization >= 1 {
		add("NURSERY_SYNC_RANDOMIZATION must be in [0, 1)")
	}
	if c.Sync.MaxDelay < c.Sync.BaseDelay {
		add("NURSERY_SYNC_MAX_DELAY must not be below NURSERY_SYNC_BASE_DELAY")
	}

	if errs == nil {
		return nil
	}
	msgs := make([]string, 0, len(multierr.Errors(errs)))
	for _, err := range multierr.Errors(errs) {
		msgs = append(msgs, err.Error())
	}
	return pkgerrors.New(pkgerrors.CodeConfiguration, "invalid configuration: "+strings.Join(msgs, "; "))
}
