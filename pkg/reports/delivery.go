package reports

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// DeliveryConfig configures where and how generated reports are pushed.
type DeliveryConfig struct {
	Endpoint     string        `json:"endpoint"`
	MaxAttempts  int           `json:"max_attempts"`
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
	Timeout      time.Duration `json:"timeout"`
}

// DefaultDeliveryConfig returns the default delivery configuration.
func DefaultDeliveryConfig(endpoint string) DeliveryConfig {
	return DeliveryConfig{
		Endpoint:     endpoint,
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Timeout:      10 * time.Second,
	}
}

// Deliverer pushes generated report envelopes to an HTTP endpoint with
// exponential backoff on failure.
type Deliverer struct {
	config DeliveryConfig
	client *http.Client
	log    *logrus.Logger
}

// NewDeliverer creates a deliverer. A nil logger falls back to the logrus
// standard logger.
func NewDeliverer(config DeliveryConfig, log *logrus.Logger) *Deliverer {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 1 * time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Deliverer{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		log:    log,
	}
}

// backoffDelay is the wait before the given retry attempt.
func (d *Deliverer) backoffDelay(attempt int) time.Duration {
	delay := float64(d.config.InitialDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(d.config.MaxDelay) {
		return d.config.MaxDelay
	}
	return time.Duration(delay)
}

// Deliver posts the serialized envelope to the configured endpoint,
// retrying transient failures. A 2xx response is success; anything else
// counts as a failed attempt.
func (d *Deliverer) Deliver(ctx context.Context, r *Report, payload []byte) error {
	var lastErr error
	for attempt := 1; attempt <= d.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.backoffDelay(attempt - 1)):
			}
		}

		start := time.Now()
		err := d.send(ctx, r, payload)
		fields := logrus.Fields{
			"report_id":   r.ID,
			"report_type": string(r.Type),
			"attempt":     attempt,
			"duration_ms": time.Since(start).Milliseconds(),
		}
		if err == nil {
			d.log.WithFields(fields).Info("report delivered")
			return nil
		}
		lastErr = err
		d.log.WithFields(fields).WithError(err).Warn("report delivery attempt failed")
	}
	return fmt.Errorf("delivery failed after %d attempts: %w", d.config.MaxAttempts, lastErr)
}

func (d *Deliverer) send(ctx context.Context, r *Report, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Report-ID", r.ID)
	req.Header.Set("X-Report-Type", string(r.Type))

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
	return nil
}
