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

// Package ratelimit tracks GitHub's rate-limit headers and decides how long
// the collector must back off after a rate-limited or transient response.
package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// GitHub rate-limit response headers.
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderUsed       = "X-RateLimit-Used"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderResource   = "X-RateLimit-Resource"
	HeaderRetryAfter = "Retry-After"
)

// State is the rate-limit budget reported by the most recent response.
// It is transient and never persisted.
type State struct {
	// Known is false when the response carried no rate-limit headers.
	Known bool `json:"known"`

	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	Used      int    `json:"used"`
	Resource  string `json:"resource,omitempty"`

	// ResetAt is when the budget window resets (X-RateLimit-Reset).
	ResetAt time.Time `json:"reset_at"`

	// RetryAfter is the server-requested pause, set for secondary limits.
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// ParseHeaders extracts the rate-limit state from response headers. Headers
// that are missing or malformed are left at their zero value.
func ParseHeaders(h http.Header) State {
	var s State

	if v, ok := headerInt(h, HeaderRemaining); ok {
		s.Known = true
		s.Remaining = v
	}
	if v, ok := headerInt(h, HeaderLimit); ok {
		s.Known = true
		s.Limit = v
	}
	if v, ok := headerInt(h, HeaderUsed); ok {
		s.Used = v
	}
	if v, ok := headerInt(h, HeaderReset); ok && v > 0 {
		s.ResetAt = time.Unix(int64(v), 0)
	}
	if v, ok := headerInt(h, HeaderRetryAfter); ok && v >= 0 {
		s.RetryAfter = time.Duration(v) * time.Second
	}
	s.Resource = h.Get(HeaderResource)

	return s
}

// Exhausted reports whether the headers announced an empty budget.
func (s State) Exhausted() bool {
	return s.Known && s.Remaining == 0
}

// HasRetryAfter reports whether the server sent an explicit Retry-After.
func (s State) HasRetryAfter() bool {
	return s.RetryAfter > 0
}

// ResumeAt returns the earliest moment a retry may succeed, or the zero time
// when the headers give no hint. Retry-After takes precedence; the window
// reset only applies once the budget is exhausted, since secondary limits
// are not tied to the window.
func (s State) ResumeAt(now time.Time) time.Time {
	if s.RetryAfter > 0 {
		return now.Add(s.RetryAfter)
	}
	if s.Exhausted() {
		return s.ResetAt
	}
	return time.Time{}
}

// TimeUntilReset returns the duration until the window resets.
// Returns 0 if the reset time is unknown or already passed.
func (s State) TimeUntilReset(now time.Time) time.Duration {
	if s.ResetAt.IsZero() {
		return 0
	}
	d := s.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

func headerInt(h http.Header, key string) (int, bool) {
	raw := strings.TrimSpace(h.Get(key))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
