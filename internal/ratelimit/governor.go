// Copyright 2025 SirSeer, LLC
//
// Licensed under the Business Source License 1.1 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://mariadb.com/bsl11
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	rateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sirseer_rate_limit_remaining",
		Help: "Requests remaining in the current GitHub rate-limit window",
	})

	backoffWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sirseer_rate_limit_wait_seconds",
		Help:    "Time spent backing off before retrying a page",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 300, 900, 3600},
	}, []string{"reason"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sirseer_retries_total",
		Help: "Retry decisions by signal and verdict",
	}, []string{"signal", "verdict"})
)

// Signal is the kind of failure the governor is asked about.
type Signal int

const (
	// SignalRateLimited means the server refused the request for budget reasons.
	SignalRateLimited Signal = iota
	// SignalTransient means a network failure or retryable server error.
	SignalTransient
)

func (s Signal) String() string {
	switch s {
	case SignalRateLimited:
		return "rate_limited"
	case SignalTransient:
		return "transient"
	default:
		return fmt.Sprintf("signal(%d)", int(s))
	}
}

// RetryPolicy bounds the governor's waits.
type RetryPolicy struct {
	// MaxAttempts is the number of consecutive transient failures tolerated
	// on one page before the partition is abandoned. Rate limits ignore it.
	MaxAttempts int
	// BaseDelay is the first exponential backoff step.
	BaseDelay time.Duration
	// MaxDelay caps exponential backoff.
	MaxDelay time.Duration
	// MinimumWait is the floor applied to reset-derived waits so a skewed
	// clock never produces a zero or negative sleep.
	MinimumWait time.Duration
}

// DefaultRetryPolicy returns the policy used when nothing is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   2 * time.Second,
		MaxDelay:    2 * time.Minute,
		MinimumWait: 5 * time.Second,
	}
}

// Decision is the governor's verdict for one failure.
type Decision struct {
	Retry  bool
	Wait   time.Duration
	Reason string
}

// Governor decides whether and how long to wait before retrying a page.
// It holds no per-partition state: the caller passes the attempt count.
type Governor struct {
	policy RetryPolicy
	clock  Clock
	logger zerolog.Logger
}

// NewGovernor creates a governor. A nil clock means the system clock.
func NewGovernor(policy RetryPolicy, clock Clock, logger zerolog.Logger) *Governor {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Governor{policy: policy, clock: clock, logger: logger}
}

// Policy returns the configured retry policy.
func (g *Governor) Policy() RetryPolicy { return g.policy }

// Clock returns the clock used for waits.
func (g *Governor) Clock() Clock { return g.clock }

// Decide returns the verdict for a failure. attempt is the number of
// consecutive failures of the same signal already seen on this page, so the
// first failure is attempt 0. resetAt is the server's reset hint and may be
// zero.
//
// Rate limits are always retried. With a reset hint the wait is
// max(resetAt-now, MinimumWait); otherwise it is min(BaseDelay*2^attempt,
// MaxDelay). Transient failures use the exponential form and are abandoned
// once attempt+1 reaches MaxAttempts.
func (g *Governor) Decide(sig Signal, resetAt time.Time, attempt int) Decision {
	var d Decision

	switch sig {
	case SignalRateLimited:
		d.Retry = true
		if !resetAt.IsZero() {
			d.Wait = max(resetAt.Sub(g.clock.Now()), g.policy.MinimumWait)
			d.Reason = "rate limit reset"
		} else {
			d.Wait = g.exponential(attempt)
			d.Reason = "rate limit backoff"
		}
	case SignalTransient:
		if attempt+1 >= g.policy.MaxAttempts {
			d.Reason = fmt.Sprintf("gave up after %d attempts", attempt+1)
			retriesTotal.WithLabelValues(sig.String(), "abandon").Inc()
			return d
		}
		d.Retry = true
		d.Wait = g.exponential(attempt)
		d.Reason = "transient backoff"
	default:
		d.Reason = "not retryable"
		return d
	}

	retriesTotal.WithLabelValues(sig.String(), "retry").Inc()
	return d
}

// exponential returns min(BaseDelay*2^attempt, MaxDelay) without overflowing.
func (g *Governor) exponential(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	wait := g.policy.BaseDelay
	for i := 0; i < attempt; i++ {
		if wait >= g.policy.MaxDelay/2 {
			return g.policy.MaxDelay
		}
		wait *= 2
	}
	return min(wait, g.policy.MaxDelay)
}

// Wait sleeps for the decided duration. It returns the context's error if
// the run is cancelled mid-wait.
func (g *Governor) Wait(ctx context.Context, d Decision) error {
	g.logger.Warn().
		Dur("wait", d.Wait).
		Str("reason", d.Reason).
		Time("resume_at", g.clock.Now().Add(d.Wait)).
		Msg("Backing off before retrying page")

	start := g.clock.Now()
	err := g.clock.Sleep(ctx, d.Wait)
	backoffWaitSeconds.WithLabelValues(d.Reason).Observe(g.clock.Now().Sub(start).Seconds())
	if err != nil {
		return fmt.Errorf("backoff interrupted: %w", err)
	}
	return nil
}

// Observe records the budget reported by a response.
func (g *Governor) Observe(s State) {
	if !s.Known {
		return
	}
	rateLimitRemaining.Set(float64(s.Remaining))

	event := g.logger.Debug()
	if s.Limit > 0 && s.Remaining*10 < s.Limit {
		event = g.logger.Warn()
	}
	event.
		Int("remaining", s.Remaining).
		Int("limit", s.Limit).
		Time("reset_at", s.ResetAt).
		Msg("Rate limit state updated")
}
