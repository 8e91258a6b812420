package aggregator

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

// RetryBackOff is the policy used between failed cycles: it starts at a few
// seconds and never waits longer than the regular interval
func RetryBackOff(interval time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Second
	if b.InitialInterval > interval {
		b.InitialInterval = interval
	}
	b.MaxInterval = interval
	b.MaxElapsedTime = 0
	return b
}

// Run refreshes right away and then every interval until ctx is done.
// After an exhausted cycle the next attempt follows retry instead, which is
// reset by the next successful cycle.
func (a *Aggregator) Run(ctx context.Context, interval time.Duration, retry backoff.BackOff) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Stopping refresh loop")
			return
		case <-timer.C:
		}

		wait := interval
		err := a.Refresh(ctx)
		if ctx.Err() != nil {
			log.Info("Stopping refresh loop")
			return
		}

		switch {
		case err == nil:
			retry.Reset()
		case errors.Is(err, ErrSuperseded):
		default:
			if next := retry.NextBackOff(); next != backoff.Stop {
				wait = next
			}
			log.WithFields(log.Fields{
				"retry_in": wait,
			}).WithError(err).Warn("Fetch cycle failed")
		}

		timer.Reset(wait)
	}
}
