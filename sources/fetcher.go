package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

var (
	fetchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devfeed_fetch_requests_total",
		Help: "Outbound fetches by outcome (ok, status, timeout, error, decode)",
	}, []string{"outcome"})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "devfeed_fetch_duration_seconds",
		Help:    "Duration of outbound fetches",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // Start at 10ms, double each bucket
	})
)

const DefaultTimeout = 5 * time.Second

// Fetcher performs single GET requests against provider endpoints. Failures
// are never returned as errors: the caller gets nil and tries the next
// candidate.
type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

func NewFetcher(timeout time.Duration, userAgent string) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{
		client:    &http.Client{},
		timeout:   timeout,
		userAgent: userAgent,
	}
}

// Timeout is the per request budget
func (f *Fetcher) Timeout() time.Duration {
	return f.timeout
}

// Client is the underlying HTTP client, shared with providers that bring
// their own request plumbing
func (f *Fetcher) Client() *http.Client {
	return f.client
}

// Get fetches and decodes one endpoint. It returns nil on non-2xx statuses,
// timeouts, transport and decode errors. Numbers are decoded as json.Number.
func (f *Fetcher) Get(ctx context.Context, endpoint string, headers http.Header) any {
	start := time.Now()
	payload, outcome, err := f.get(ctx, endpoint, headers)
	fetchRequests.WithLabelValues(outcome).Inc()
	fetchDuration.Observe(time.Since(start).Seconds())

	fields := log.Fields{
		"endpoint": endpoint,
		"outcome":  outcome,
		"latency":  time.Since(start),
	}
	if err != nil {
		log.WithFields(fields).WithError(err).Warn("Fetch failed")
		return nil
	}
	log.WithFields(fields).Debug("Fetched")
	return payload
}

func (f *Fetcher) get(ctx context.Context, endpoint string, headers http.Header) (any, string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "error", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, "timeout", fmt.Errorf("request timed out after %s: %w", f.timeout, err)
		}
		return nil, "error", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "status", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, "timeout", fmt.Errorf("reading body timed out after %s: %w", f.timeout, err)
		}
		return nil, "decode", fmt.Errorf("failed to decode body: %w", err)
	}

	return payload, "ok", nil
}

// BearerAuth returns the authorization header for an API key, or nil when
// there is no key
func BearerAuth(apiKey string) http.Header {
	if apiKey == "" {
		return nil
	}
	return http.Header{"Authorization": []string{"Bearer " + apiKey}}
}
