package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// HealthChecker polls the application's readiness endpoint.
type HealthChecker struct {
	URL      string
	Attempts int
	Interval time.Duration
	Client   *http.Client
}

// NewHealthChecker creates a checker for the given endpoint with a fixed
// attempt budget and spacing.
func NewHealthChecker(url string, attempts int, interval time.Duration) *HealthChecker {
	return &HealthChecker{
		URL:      url,
		Attempts: attempts,
		Interval: interval,
		Client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Wait polls until the endpoint answers with a 2xx status, the attempt
// budget runs out, or ctx is cancelled. There is no backoff; the interval
// is fixed. Exhaustion returns an error wrapping ErrHealthTimeout.
func (h *HealthChecker) Wait(ctx context.Context) error {
	for attempt := 1; attempt <= h.Attempts; attempt++ {
		if ok := h.probe(ctx); ok {
			log.Info().Int("attempt", attempt).Str("url", h.URL).Msg("Application is healthy")
			return nil
		}
		log.Debug().Int("attempt", attempt).Int("max", h.Attempts).Msg("Health check not ready, retrying")

		if attempt == h.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(h.Interval):
		}
	}
	return fmt.Errorf("%w: no success after %d attempts against %s", ErrHealthTimeout, h.Attempts, h.URL)
}

// probe reports whether a single GET returned a 2xx-equivalent status.
func (h *HealthChecker) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return false
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
