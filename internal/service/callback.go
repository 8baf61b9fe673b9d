package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"reseller-hub/internal/model"
	"reseller-hub/pkg/logger"
)

// SettingsSource provides the current provider configuration
type SettingsSource interface {
	Get() model.ProviderConfig
}

// CallbackOption configures a CallbackDispatcher
type CallbackOption func(*CallbackDispatcher)

// WithCallbackHTTPClient replaces the HTTP client used for callbacks
func WithCallbackHTTPClient(c *http.Client) CallbackOption {
	return func(d *CallbackDispatcher) { d.httpClient = c }
}

// WithCallbackClock sets the time source for retry waits
func WithCallbackClock(c Clock) CallbackOption {
	return func(d *CallbackDispatcher) { d.clock = c }
}

// WithCallbackBackoff sets the base retry delay
func WithCallbackBackoff(base time.Duration) CallbackOption {
	return func(d *CallbackDispatcher) { d.backoff = base }
}

// CallbackDispatcher posts shipment events to the configured global
// callback URL. Delivery runs in the background with retries.
type CallbackDispatcher struct {
	httpClient *http.Client
	settings   SettingsSource
	clock      Clock
	backoff    time.Duration
	logger     *logger.Logger

	wg sync.WaitGroup
}

// NewCallbackDispatcher creates a callback dispatcher
func NewCallbackDispatcher(settings SettingsSource, log *logger.Logger, opts ...CallbackOption) *CallbackDispatcher {
	d := &CallbackDispatcher{
		httpClient: &http.Client{},
		settings:   settings,
		backoff:    time.Second,
		logger:     log.WithComponent("callback"),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.clock = orDefaultClock(d.clock)
	return d
}

// OnShipmentEvent implements ShipmentObserver. It returns once delivery is
// scheduled; nothing is sent when no callback URL is configured.
func (d *CallbackDispatcher) OnShipmentEvent(ctx context.Context, event model.ShipmentEvent) error {
	cfg := d.settings.Get()
	if cfg.GlobalCallbackURL == "" {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.Send(context.WithoutCancel(ctx), cfg, payload, event.Shipment.ID); err != nil {
			d.logger.WithShipmentID(event.Shipment.ID).WithError(err).Error("Callback delivery failed", "event", event.Event)
		}
	}()
	return nil
}

// Wait blocks until every scheduled delivery has finished
func (d *CallbackDispatcher) Wait() {
	d.wg.Wait()
}

// Send posts payload to the callback URL with retry
func (d *CallbackDispatcher) Send(ctx context.Context, cfg model.ProviderConfig, payload []byte, shipmentID string) error {
	retries := 0
	if cfg.EnableAutoRetry {
		retries = cfg.InterMaxRetries
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * d.backoff
			if cfg.MaxRetryDelay > 0 {
				backoff = min(backoff, time.Duration(cfg.MaxRetryDelay)*time.Second)
			}
			d.logger.WithShipmentID(shipmentID).Warn("Retrying callback delivery",
				"attempt", attempt+1,
				"backoff_seconds", backoff.Seconds(),
			)
			if err := sleep(ctx, d.clock, backoff); err != nil {
				return err
			}
		}

		err := d.send(ctx, cfg, payload)
		if err == nil {
			if attempt > 0 {
				d.logger.WithShipmentID(shipmentID).Info("Callback delivered", "attempt", attempt+1)
			}
			return nil
		}

		lastErr = err
		d.logger.WithShipmentID(shipmentID).Warn("Callback delivery failed",
			"attempt", attempt+1,
			"error", err,
		)
	}

	return fmt.Errorf("callback delivery failed after %d attempts: %w", retries+1, lastErr)
}

// send performs one POST bounded by the global timeout
func (d *CallbackDispatcher) send(ctx context.Context, cfg model.ProviderConfig, payload []byte) error {
	timeout := defaultRequestTimeout
	if cfg.GlobalTimeout > 0 {
		timeout = time.Duration(cfg.GlobalTimeout) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.GlobalCallbackURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "reseller-hub/1.0")
	if cfg.WebhookValidationSecret != "" {
		req.Header.Set(SignatureHeader, signPayload(cfg.WebhookValidationSecret, payload))
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}
