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
	"sync"
	"time"

	relaierrors "github.com/sirseerhq/sirseer-collect/internal/errors"
)

// MockFetcher is a scripted PageFetcher for tests. Each partition serves a
// fixed list of pages; queued outcomes are returned first, one per call.
type MockFetcher struct {
	mu     sync.Mutex
	pages  map[string][][]json.RawMessage
	totals map[string]int
	queued map[string][]Outcome
	calls  []PageRequest

	// ShouldFailAuth makes every call return an authorization failure.
	ShouldFailAuth bool
}

// MockFetcherOption configures a MockFetcher.
type MockFetcherOption func(*MockFetcher)

// WithPages sets the pages served for a partition. Pages past the end are empty.
func WithPages(p Partition, pages ...[]json.RawMessage) MockFetcherOption {
	return func(m *MockFetcher) {
		m.pages[p.Key()] = pages
	}
}

// WithTotal sets the total reported for a partition.
func WithTotal(p Partition, total int) MockFetcherOption {
	return func(m *MockFetcher) {
		m.totals[p.Key()] = total
	}
}

// WithOutcomes queues outcomes for a partition, consumed one per call
// before any page is served.
func WithOutcomes(p Partition, outcomes ...Outcome) MockFetcherOption {
	return func(m *MockFetcher) {
		m.queued[p.Key()] = append(m.queued[p.Key()], outcomes...)
	}
}

// WithAuthFailure makes the fetcher simulate a rejected token.
func WithAuthFailure() MockFetcherOption {
	return func(m *MockFetcher) {
		m.ShouldFailAuth = true
	}
}

// NewMockFetcher creates a mock fetcher with options.
func NewMockFetcher(opts ...MockFetcherOption) *MockFetcher {
	m := &MockFetcher{
		pages:  make(map[string][][]json.RawMessage),
		totals: make(map[string]int),
		queued: make(map[string][]Outcome),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FetchPage implements PageFetcher.
func (m *MockFetcher) FetchPage(ctx context.Context, req PageRequest) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, req)

	if err := ctx.Err(); err != nil {
		return Outcome{Kind: OutcomeFatal, Total: -1, Err: err}
	}
	if err := req.Validate(); err != nil {
		return Outcome{Kind: OutcomeFatal, Total: -1, Err: err}
	}
	if m.ShouldFailAuth {
		return Outcome{Kind: OutcomeFatal, Total: -1, StatusCode: 401,
			Err: fmt.Errorf("authentication failed: %w", relaierrors.ErrInvalidToken)}
	}

	key := req.Partition.Key()
	if q := m.queued[key]; len(q) > 0 {
		m.queued[key] = q[1:]
		return q[0]
	}

	total := -1
	if t, ok := m.totals[key]; ok {
		total = t
	}
	pages := m.pages[key]
	if req.Page-1 < len(pages) {
		return PageOutcome(pages[req.Page-1], total)
	}
	return PageOutcome(nil, total)
}

// SetPages replaces the pages of a partition, simulating upstream changes
// between runs.
func (m *MockFetcher) SetPages(p Partition, pages ...[]json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[p.Key()] = pages
}

// Calls returns every request received, in order.
func (m *MockFetcher) Calls() []PageRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PageRequest(nil), m.calls...)
}

// CallsFor returns the page indexes requested for a partition, in order.
func (m *MockFetcher) CallsFor(p Partition) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pages []int
	for _, c := range m.calls {
		if c.Partition == p {
			pages = append(pages, c.Page)
		}
	}
	return pages
}

// MockInspector is a RepositoryInspector returning fixed totals.
type MockInspector struct {
	Info *RepositoryInfo
	Err  error
}

// GetRepositoryInfo implements RepositoryInspector.
func (m *MockInspector) GetRepositoryInfo(ctx context.Context, owner, repo string) (*RepositoryInfo, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Info, nil
}

// RateLimitedOutcome returns a rate-limited outcome resuming at resetAt.
func RateLimitedOutcome(resetAt time.Time) Outcome {
	return Outcome{Kind: OutcomeRateLimited, Total: -1, StatusCode: 403, ResetAt: resetAt,
		Err: fmt.Errorf("API rate limit exceeded: %w", relaierrors.ErrRateLimit)}
}

// TransientOutcome returns a retryable server failure.
func TransientOutcome() Outcome {
	return Outcome{Kind: OutcomeTransient, Total: -1, StatusCode: 502,
		Err: fmt.Errorf("github returned 502: Bad Gateway: %w", relaierrors.ErrNetworkFailure)}
}

// UnprocessableOutcome returns a validation failure.
func UnprocessableOutcome() Outcome {
	return Outcome{Kind: OutcomeUnprocessable, Total: -1, StatusCode: 422,
		Err: fmt.Errorf("github returned 422: Validation Failed: %w", relaierrors.ErrUnprocessable)}
}

var mockEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// IssueItems generates count issue payloads numbered from start, in the
// REST wire format.
func IssueItems(start, count int, state string) []json.RawMessage {
	items := make([]json.RawMessage, 0, count)
	for n := start; n < start+count; n++ {
		items = append(items, mustJSON(map[string]any{
			"number":     n,
			"title":      fmt.Sprintf("Issue %d", n),
			"state":      state,
			"user":       map[string]any{"login": fmt.Sprintf("user%d", n%7), "type": "User"},
			"labels":     []map[string]any{{"name": "bug"}},
			"comments":   n % 5,
			"created_at": mockEpoch.Add(time.Duration(n) * time.Hour),
			"updated_at": mockEpoch.Add(time.Duration(n+1) * time.Hour),
		}))
	}
	return items
}

// PullItems generates count pull request payloads numbered from start.
// Closed pull requests with even numbers are merged.
func PullItems(start, count int, state string) []json.RawMessage {
	items := make([]json.RawMessage, 0, count)
	for n := start; n < start+count; n++ {
		pr := map[string]any{
			"number":     n,
			"title":      fmt.Sprintf("PR %d", n),
			"state":      state,
			"user":       map[string]any{"login": fmt.Sprintf("dev%d", n%5), "type": "User"},
			"labels":     []map[string]any{},
			"draft":      false,
			"base":       map[string]any{"ref": "main"},
			"head":       map[string]any{"ref": fmt.Sprintf("feature-%d", n)},
			"created_at": mockEpoch.Add(time.Duration(n) * time.Hour),
			"updated_at": mockEpoch.Add(time.Duration(n+1) * time.Hour),
		}
		if state == StateClosed {
			closed := mockEpoch.Add(time.Duration(n+2) * time.Hour)
			pr["closed_at"] = closed
			if n%2 == 0 {
				pr["merged_at"] = closed
			}
		}
		items = append(items, mustJSON(pr))
	}
	return items
}

// ContributorItems generates count contributor payloads, logins contrib<start>...
func ContributorItems(start, count int) []json.RawMessage {
	items := make([]json.RawMessage, 0, count)
	for n := start; n < start+count; n++ {
		items = append(items, mustJSON(map[string]any{
			"login":         fmt.Sprintf("contrib%d", n),
			"contributions": 1000 - n,
			"type":          "User",
			"avatar_url":    fmt.Sprintf("https://avatars.example.com/u/%d", n),
		}))
	}
	return items
}

// PullRequestAsIssue returns an issues-endpoint payload that is really a
// pull request.
func PullRequestAsIssue(number int) json.RawMessage {
	return mustJSON(map[string]any{
		"number":       number,
		"title":        fmt.Sprintf("PR %d", number),
		"state":        StateOpen,
		"user":         map[string]any{"login": "dev"},
		"created_at":   mockEpoch,
		"updated_at":   mockEpoch,
		"pull_request": map[string]any{"url": fmt.Sprintf("https://api.github.com/repos/o/r/pulls/%d", number)},
	})
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
