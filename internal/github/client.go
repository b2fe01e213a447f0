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

package github

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirseerhq/sirseer-collect/internal/ratelimit"
)

// PageFetcher requests a single page of a partition. Implementations make
// exactly one attempt and never retry.
type PageFetcher interface {
	FetchPage(ctx context.Context, req PageRequest) Outcome
}

// RepositoryInspector reports expected per-state totals. It is only used
// for progress output, never for completion decisions.
type RepositoryInspector interface {
	GetRepositoryInfo(ctx context.Context, owner, repo string) (*RepositoryInfo, error)
}

// PageRequest identifies one page of one partition.
type PageRequest struct {
	Owner     string
	Repo      string
	Partition Partition
	// Page is 1-based.
	Page int
	// PerPage is fixed for a run, between 1 and 100.
	PerPage int
	// Query is the search expression for the search resource.
	Query string
}

// Validate rejects requests that GitHub would never serve.
func (r PageRequest) Validate() error {
	if r.Owner == "" || r.Repo == "" {
		return fmt.Errorf("owner and repo are required")
	}
	if r.Page < 1 {
		return fmt.Errorf("page must be >= 1, got %d", r.Page)
	}
	if r.PerPage < 1 || r.PerPage > MaxPerPage {
		return fmt.Errorf("per_page must be between 1 and %d, got %d", MaxPerPage, r.PerPage)
	}
	if _, err := ParseResource(string(r.Partition.Resource)); err != nil {
		return err
	}
	if r.Partition.Resource == ResourceSearch && r.Query == "" {
		return fmt.Errorf("search requests need a query")
	}
	return nil
}

// OutcomeKind classifies the result of one fetch attempt.
type OutcomeKind int

const (
	// OutcomePage is a successful response; Items may be empty.
	OutcomePage OutcomeKind = iota
	// OutcomeRateLimited means the request was refused for budget reasons.
	OutcomeRateLimited
	// OutcomeUnprocessable means GitHub rejected the request parameters.
	OutcomeUnprocessable
	// OutcomeTransient is a network failure or retryable server error.
	OutcomeTransient
	// OutcomeFatal is a failure that retrying cannot fix.
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomePage:
		return "page"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeUnprocessable:
		return "unprocessable"
	case OutcomeTransient:
		return "transient"
	case OutcomeFatal:
		return "fatal"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is the classified result of one FetchPage call.
type Outcome struct {
	Kind OutcomeKind

	// Items holds the raw elements of the page, undecoded.
	Items []json.RawMessage

	// Total is the API-reported total for count-aware endpoints, -1 otherwise.
	Total int

	// ResetAt is when a rate-limited request may be retried. Zero when unknown.
	ResetAt time.Time

	// RateLimit is the budget reported by the response headers.
	RateLimit ratelimit.State

	// StatusCode is the HTTP status, 0 for transport failures.
	StatusCode int

	// Err describes every non-page outcome and wraps a sentinel from
	// internal/errors.
	Err error
}

// PageOutcome builds a successful outcome. Used by fetchers and tests.
func PageOutcome(items []json.RawMessage, total int) Outcome {
	return Outcome{Kind: OutcomePage, Items: items, Total: total, StatusCode: 200}
}
