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

package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	relaierrors "github.com/sirseerhq/sirseer-collect/internal/errors"
	"github.com/sirseerhq/sirseer-collect/internal/github"
	"github.com/sirseerhq/sirseer-collect/internal/metadata"
	"github.com/sirseerhq/sirseer-collect/internal/ratelimit"
	"github.com/sirseerhq/sirseer-collect/internal/records"
	"github.com/sirseerhq/sirseer-collect/internal/state"
)

var (
	issuesOpen   = github.Partition{Resource: github.ResourceIssues, State: github.StateOpen}
	issuesClosed = github.Partition{Resource: github.ResourceIssues, State: github.StateClosed}
	pullsOpen    = github.Partition{Resource: github.ResourcePulls, State: github.StateOpen}
	pullsClosed  = github.Partition{Resource: github.ResourcePulls, State: github.StateClosed}
	contributors = github.Partition{Resource: github.ResourceContributors, State: github.StateAll}
	searchOpen   = github.Partition{Resource: github.ResourceSearch, State: github.StateOpen}
)

var epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	dir         string
	clock       *ratelimit.FakeClock
	checkpoints state.CheckpointStore
	store       *records.Store
	policy      ratelimit.RetryPolicy
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()

	checkpoints, err := state.NewFileStore(filepath.Join(dir, "state", "octocat-hello.checkpoint"), "octocat/hello")
	require.NoError(t, err)
	store, err := records.NewStore(filepath.Join(dir, "data"), "octocat", "hello", "json")
	require.NoError(t, err)

	return &harness{
		dir:         dir,
		clock:       ratelimit.NewFakeClock(epoch),
		checkpoints: checkpoints,
		store:       store,
		policy:      ratelimit.DefaultRetryPolicy(),
	}
}

func baseConfig(resources ...github.Resource) Config {
	return Config{
		Owner:     "octocat",
		Repo:      "hello",
		Resources: resources,
		PerPage:   100,
		AutoWait:  true,
	}
}

func (h *harness) run(t *testing.T, cfg Config, fetcher github.PageFetcher, opts ...Option) (*Summary, error) {
	t.Helper()
	return h.runWith(t, cfg, fetcher, h.checkpoints, h.store, opts...)
}

func (h *harness) runWith(t *testing.T, cfg Config, fetcher github.PageFetcher, cp state.CheckpointStore, store RecordStore, opts ...Option) (*Summary, error) {
	t.Helper()
	governor := ratelimit.NewGovernor(h.policy, h.clock, zerolog.Nop())
	c, err := New(cfg, fetcher, cp, store, governor, opts...)
	require.NoError(t, err)
	return c.Run(context.Background())
}

func (h *harness) checkpoint(t *testing.T, p github.Partition) int {
	t.Helper()
	page, err := h.checkpoints.Get(context.Background(), p.Key())
	require.NoError(t, err)
	return page
}

func (h *harness) stored(t *testing.T, r github.Resource) *records.Set {
	t.Helper()
	set, err := h.store.Load(r)
	require.NoError(t, err)
	return set
}

// failingStore loads normally and fails every persist.
type failingStore struct {
	*records.Store
}

func (s *failingStore) Persist(github.Resource, *records.Set) error {
	return fmt.Errorf("write records: no space left on device: %w", relaierrors.ErrPersistence)
}

// flakyCheckpoints accepts allowedSets checkpoint advances, then fails.
type flakyCheckpoints struct {
	state.CheckpointStore
	allowedSets int
}

func (f *flakyCheckpoints) Set(ctx context.Context, key string, page int) error {
	if f.allowedSets == 0 {
		return fmt.Errorf("write checkpoint: %w", relaierrors.ErrPersistence)
	}
	f.allowedSets--
	return f.CheckpointStore.Set(ctx, key, page)
}

// flakyFetcher answers the listed call numbers (1-based) with a transient
// failure and forwards the others.
type flakyFetcher struct {
	github.PageFetcher
	failOn map[int]bool
	calls  int
}

func (f *flakyFetcher) FetchPage(ctx context.Context, req github.PageRequest) github.Outcome {
	f.calls++
	if f.failOn[f.calls] {
		return github.TransientOutcome()
	}
	return f.PageFetcher.FetchPage(ctx, req)
}

func metadataParams() metadata.RunParams {
	return metadata.RunParams{Owner: "octocat", Repository: "hello", Resources: []string{"issues"}, PageSize: 100}
}

func partitionResult(t *testing.T, s *Summary, p github.Partition) PartitionResult {
	t.Helper()
	for _, r := range s.Partitions {
		if r.Partition == p {
			return r
		}
	}
	t.Fatalf("no result for partition %s", p)
	return PartitionResult{}
}

func TestCollector_CompletesOnShortPage(t *testing.T) {
	h := newHarness(t)
	fetcher := github.NewMockFetcher(github.WithPages(issuesOpen,
		github.IssueItems(1, 100, github.StateOpen),
		github.IssueItems(101, 100, github.StateOpen),
		github.IssueItems(201, 45, github.StateOpen),
	))
	pagesBefore := promtest.ToFloat64(requestsTotal.WithLabelValues("issues", "page"))
	insertedBefore := promtest.ToFloat64(recordsInserted.WithLabelValues("issues"))
	completeBefore := promtest.ToFloat64(partitionsTotal.WithLabelValues("complete"))

	summary, err := h.run(t, baseConfig(github.ResourceIssues), fetcher)
	require.NoError(t, err)

	assert.Equal(t, 4.0, promtest.ToFloat64(requestsTotal.WithLabelValues("issues", "page"))-pagesBefore)
	assert.Equal(t, 245.0, promtest.ToFloat64(recordsInserted.WithLabelValues("issues"))-insertedBefore)
	assert.Equal(t, 2.0, promtest.ToFloat64(partitionsTotal.WithLabelValues("complete"))-completeBefore)

	assert.Equal(t, []int{1, 2, 3}, fetcher.CallsFor(issuesOpen))
	assert.Equal(t, []int{1}, fetcher.CallsFor(issuesClosed))
	assert.Equal(t, 245, h.stored(t, github.ResourceIssues).Len())
	assert.Equal(t, state.FirstPage, h.checkpoint(t, issuesOpen))

	open := partitionResult(t, summary, issuesOpen)
	assert.Equal(t, StateComplete, open.State)
	assert.Equal(t, ReasonShortPage, open.Reason)
	assert.Equal(t, 3, open.Pages)
	assert.Equal(t, 245, open.Inserted)

	require.Len(t, summary.Resources, 1)
	assert.Equal(t, 245, summary.Resources[0].Records)
	assert.Equal(t, map[string]int{"open": 245}, summary.Resources[0].States)
	assert.Equal(t, 245, summary.Inserted())
	assert.Equal(t, 4, summary.APICalls)
	assert.Empty(t, summary.Abandoned())
}

func TestCollector_SecondRunInsertsNothing(t *testing.T) {
	h := newHarness(t)
	newFetcher := func() *github.MockFetcher {
		return github.NewMockFetcher(github.WithPages(issuesOpen,
			github.IssueItems(1, 100, github.StateOpen),
			github.IssueItems(101, 45, github.StateOpen),
		))
	}

	_, err := h.run(t, baseConfig(github.ResourceIssues), newFetcher())
	require.NoError(t, err)

	fetcher := newFetcher()
	summary, err := h.run(t, baseConfig(github.ResourceIssues), fetcher)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Inserted())
	assert.Equal(t, 0, summary.Resources[0].Updated)
	assert.Equal(t, 145, summary.Resources[0].Records)
	assert.Equal(t, []int{1, 2}, fetcher.CallsFor(issuesOpen), "completed partitions restart at page 1")
	assert.Equal(t, state.FirstPage, h.checkpoint(t, issuesOpen))
}

func TestCollector_UpdatesChangedRecords(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, baseConfig(github.ResourceIssues), github.NewMockFetcher(
		github.WithPages(issuesOpen, github.IssueItems(1, 3, github.StateOpen)),
	))
	require.NoError(t, err)

	// Issue 2 closed between runs.
	fetcher := github.NewMockFetcher(
		github.WithPages(issuesOpen, append(github.IssueItems(1, 1, github.StateOpen), github.IssueItems(3, 1, github.StateOpen)...)),
		github.WithPages(issuesClosed, github.IssueItems(2, 1, github.StateClosed)),
	)
	summary, err := h.run(t, baseConfig(github.ResourceIssues), fetcher)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Inserted())
	assert.Equal(t, 1, summary.Resources[0].Updated)

	set := h.stored(t, github.ResourceIssues)
	assert.Equal(t, 3, set.Len(), "an item moving between partitions stays one record")
	rec, ok := set.Get("2")
	require.True(t, ok)
	assert.Equal(t, github.StateClosed, rec.(github.Issue).State)
}

func TestCollector_RateLimitWaitsForResetAndRetriesSamePage(t *testing.T) {
	h := newHarness(t)
	fetcher := github.NewMockFetcher(
		github.WithOutcomes(issuesOpen, github.RateLimitedOutcome(epoch.Add(30*time.Second))),
		github.WithPages(issuesOpen, github.IssueItems(1, 100, github.StateOpen), github.IssueItems(101, 10, github.StateOpen)),
	)

	summary, err := h.run(t, baseConfig(github.ResourceIssues), fetcher)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 1, 2}, fetcher.CallsFor(issuesOpen))
	assert.Equal(t, []time.Duration{30 * time.Second}, h.clock.Sleeps())
	assert.Equal(t, 1, summary.Waits)
	assert.Equal(t, 110, h.stored(t, github.ResourceIssues).Len())
}

func TestCollector_RateLimitWithoutResetUsesBackoffAndNeverGivesUp(t *testing.T) {
	h := newHarness(t)
	h.policy.MaxAttempts = 2

	limited := github.RateLimitedOutcome(time.Time{})
	fetcher := github.NewMockFetcher(
		github.WithOutcomes(pullsOpen, limited, limited, limited, limited),
		github.WithPages(pullsOpen, github.PullItems(1, 5, github.StateOpen)),
	)

	summary, err := h.run(t, baseConfig(github.ResourcePulls), fetcher)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 1, 1, 1, 1}, fetcher.CallsFor(pullsOpen))
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}, h.clock.Sleeps())
	assert.Equal(t, StateComplete, partitionResult(t, summary, pullsOpen).State)
}

func TestCollector_RateLimitWithoutAutoWaitAborts(t *testing.T) {
	h := newHarness(t)
	fetcher := github.NewMockFetcher(
		github.WithOutcomes(issuesOpen, github.RateLimitedOutcome(epoch.Add(time.Hour))),
	)

	cfg := baseConfig(github.ResourceIssues, github.ResourcePulls)
	cfg.AutoWait = false
	summary, err := h.run(t, cfg, fetcher)

	assert.ErrorIs(t, err, relaierrors.ErrRateLimit)
	assert.Empty(t, h.clock.Sleeps())
	assert.Empty(t, fetcher.CallsFor(pullsOpen), "abort stops later resources")
	assert.Len(t, summary.Partitions, 1)
}

func TestCollector_TransientFailuresAbandonPartitionOnly(t *testing.T) {
	h := newHarness(t)
	h.policy.MaxAttempts = 3

	fetcher := github.NewMockFetcher(
		github.WithOutcomes(issuesOpen, github.TransientOutcome(), github.TransientOutcome(), github.TransientOutcome()),
		github.WithPages(issuesOpen, github.IssueItems(1, 5, github.StateOpen)),
		github.WithPages(issuesClosed, github.IssueItems(10, 5, github.StateClosed)),
	)

	summary, err := h.run(t, baseConfig(github.ResourceIssues), fetcher)

	assert.ErrorIs(t, err, relaierrors.ErrPartialCollection)
	assert.Equal(t, []int{1, 1, 1}, fetcher.CallsFor(issuesOpen))
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, h.clock.Sleeps())

	open := partitionResult(t, summary, issuesOpen)
	assert.Equal(t, StateAbandoned, open.State)
	assert.Equal(t, ReasonRetriesExhausted, open.Reason)
	assert.ErrorIs(t, open.Err, relaierrors.ErrRetryExhausted)

	closed := partitionResult(t, summary, issuesClosed)
	assert.Equal(t, StateComplete, closed.State)
	assert.Equal(t, 5, h.stored(t, github.ResourceIssues).Len())
}

func TestCollector_TransientCounterResetsAfterSuccess(t *testing.T) {
	h := newHarness(t)
	h.policy.MaxAttempts = 2

	fetcher := github.NewMockFetcher(
		github.WithPages(issuesOpen, github.IssueItems(1, 100, github.StateOpen), github.IssueItems(101, 1, github.StateOpen)),
	)
	flaky := &flakyFetcher{PageFetcher: fetcher, failOn: map[int]bool{1: true, 3: true}}

	_, err := h.run(t, baseConfig(github.ResourceIssues), flaky)
	require.NoError(t, err)
	assert.Equal(t, 101, h.stored(t, github.ResourceIssues).Len())
}

func TestCollector_UnprocessableAbandonsPartition(t *testing.T) {
	h := newHarness(t)
	fetcher := github.NewMockFetcher(
		github.WithOutcomes(issuesOpen, github.UnprocessableOutcome()),
		github.WithPages(issuesClosed, github.IssueItems(1, 2, github.StateClosed)),
	)

	summary, err := h.run(t, baseConfig(github.ResourceIssues), fetcher)

	assert.ErrorIs(t, err, relaierrors.ErrPartialCollection)
	assert.Equal(t, []int{1}, fetcher.CallsFor(issuesOpen), "unprocessable is never retried")
	assert.Empty(t, h.clock.Sleeps())

	open := partitionResult(t, summary, issuesOpen)
	assert.Equal(t, ReasonUnprocessable, open.Reason)
	assert.ErrorIs(t, open.Err, relaierrors.ErrUnprocessable)
	assert.Equal(t, StateComplete, partitionResult(t, summary, issuesClosed).State)
}

func TestCollector_NotFoundAbandonsPartition(t *testing.T) {
	h := newHarness(t)
	notFound := github.Outcome{Kind: github.OutcomeFatal, Total: -1, StatusCode: 404,
		Err: fmt.Errorf("endpoint missing: %w", relaierrors.ErrRepoNotFound)}
	fetcher := github.NewMockFetcher(github.WithOutcomes(contributors, notFound))

	summary, err := h.run(t, baseConfig(github.ResourceContributors, github.ResourcePulls), fetcher)

	assert.ErrorIs(t, err, relaierrors.ErrPartialCollection)
	assert.Equal(t, ReasonFatal, partitionResult(t, summary, contributors).Reason)
	assert.Equal(t, []int{1}, fetcher.CallsFor(pullsClosed), "other resources still run")
}

func TestCollector_AuthFailureAbortsRun(t *testing.T) {
	h := newHarness(t)
	fetcher := github.NewMockFetcher(github.WithAuthFailure())

	summary, err := h.run(t, baseConfig(github.ResourceIssues, github.ResourcePulls), fetcher)

	assert.ErrorIs(t, err, relaierrors.ErrInvalidToken)
	assert.Equal(t, relaierrors.ExitAuth, relaierrors.ExitCode(err))
	assert.Len(t, fetcher.Calls(), 1)
	assert.Len(t, summary.Partitions, 1)
	assert.Equal(t, ReasonAborted, summary.Partitions[0].Reason)
}

func TestCollector_PersistFailureAbortsWithoutAdvancingCheckpoint(t *testing.T) {
	h := newHarness(t)
	fetcher := github.NewMockFetcher(github.WithPages(issuesOpen, github.IssueItems(1, 100, github.StateOpen)))
	store := &failingStore{Store: h.store}

	_, err := h.runWith(t, baseConfig(github.ResourceIssues), fetcher, h.checkpoints, store)

	assert.ErrorIs(t, err, relaierrors.ErrPersistence)
	assert.Equal(t, relaierrors.ExitPersistence, relaierrors.ExitCode(err))
	assert.Equal(t, state.FirstPage, h.checkpoint(t, issuesOpen))
	assert.Equal(t, []int{1}, fetcher.CallsFor(issuesOpen))
}

func TestCollector_ResumesAfterCrashBetweenPersistAndCheckpoint(t *testing.T) {
	h := newHarness(t)
	newFetcher := func() *github.MockFetcher {
		return github.NewMockFetcher(github.WithPages(issuesOpen,
			github.IssueItems(1, 100, github.StateOpen),
			github.IssueItems(101, 100, github.StateOpen),
			github.IssueItems(201, 45, github.StateOpen),
		))
	}

	// The checkpoint write after page 2 fails, as if the process died
	// right after persisting the records.
	crashing := &flakyCheckpoints{CheckpointStore: h.checkpoints, allowedSets: 1}
	_, err := h.runWith(t, baseConfig(github.ResourceIssues), newFetcher(), crashing, h.store)
	require.ErrorIs(t, err, relaierrors.ErrPersistence)
	assert.Equal(t, 200, h.stored(t, github.ResourceIssues).Len())
	assert.Equal(t, 2, h.checkpoint(t, issuesOpen))

	fetcher := newFetcher()
	summary, err := h.run(t, baseConfig(github.ResourceIssues), fetcher)
	require.NoError(t, err)

	assert.Equal(t, []int{2, 3}, fetcher.CallsFor(issuesOpen))
	assert.Equal(t, 45, summary.Inserted(), "refetched page adds no records")
	assert.Equal(t, 245, h.stored(t, github.ResourceIssues).Len())
	assert.Equal(t, 2, partitionResult(t, summary, issuesOpen).StartPage)
}

func TestCollector_ResumesFromCheckpoint(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.checkpoints.Set(context.Background(), pullsClosed.Key(), 4))

	fetcher := github.NewMockFetcher(github.WithPages(pullsClosed,
		nil, nil, nil,
		github.PullItems(301, 20, github.StateClosed),
	))
	_, err := h.run(t, baseConfig(github.ResourcePulls), fetcher)
	require.NoError(t, err)

	assert.Equal(t, []int{4}, fetcher.CallsFor(pullsClosed))
	assert.Equal(t, 20, h.stored(t, github.ResourcePulls).Len())
}

func TestCollector_MaxPagesCeiling(t *testing.T) {
	h := newHarness(t)
	fetcher := github.NewMockFetcher(github.WithPages(issuesOpen,
		github.IssueItems(1, 100, github.StateOpen),
		github.IssueItems(101, 100, github.StateOpen),
		github.IssueItems(201, 100, github.StateOpen),
	))

	cfg := baseConfig(github.ResourceIssues)
	cfg.MaxPages = 2
	summary, err := h.run(t, cfg, fetcher)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, fetcher.CallsFor(issuesOpen))
	assert.Equal(t, ReasonPageCeiling, partitionResult(t, summary, issuesOpen).Reason)
	assert.Equal(t, state.FirstPage, h.checkpoint(t, issuesOpen))
}

func TestCollector_CheckpointBeyondCeiling(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.checkpoints.Set(context.Background(), issuesOpen.Key(), 5))

	cfg := baseConfig(github.ResourceIssues)
	cfg.MaxPages = 3
	fetcher := github.NewMockFetcher()
	summary, err := h.run(t, cfg, fetcher)
	require.NoError(t, err)

	assert.Empty(t, fetcher.CallsFor(issuesOpen))
	assert.Equal(t, ReasonPageCeiling, partitionResult(t, summary, issuesOpen).Reason)
	assert.Equal(t, state.FirstPage, h.checkpoint(t, issuesOpen))
}

func TestCollector_SearchStopsAtReportedTotal(t *testing.T) {
	h := newHarness(t)
	fetcher := github.NewMockFetcher(
		github.WithTotal(searchOpen, 200),
		github.WithPages(searchOpen,
			github.IssueItems(1, 100, github.StateOpen),
			github.IssueItems(101, 100, github.StateOpen),
			github.IssueItems(201, 100, github.StateOpen),
		),
	)

	cfg := baseConfig(github.ResourceSearch)
	cfg.Query = "is:issue label:bug"
	summary, err := h.run(t, cfg, fetcher)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, fetcher.CallsFor(searchOpen))
	assert.Equal(t, ReasonTotalReached, partitionResult(t, summary, searchOpen).Reason)
	for _, call := range fetcher.Calls() {
		assert.Equal(t, "is:issue label:bug", call.Query)
	}
}

func TestCollector_SearchResultWindow(t *testing.T) {
	h := newHarness(t)
	pages := make([][]json.RawMessage, 12)
	for i := range pages {
		pages[i] = github.IssueItems(i*100+1, 100, github.StateOpen)
	}
	fetcher := github.NewMockFetcher(github.WithTotal(searchOpen, 5000), github.WithPages(searchOpen, pages...))

	cfg := baseConfig(github.ResourceSearch)
	cfg.Query = "is:issue"
	summary, err := h.run(t, cfg, fetcher)
	require.NoError(t, err)

	assert.Len(t, fetcher.CallsFor(searchOpen), 10)
	assert.Equal(t, ReasonSearchWindow, partitionResult(t, summary, searchOpen).Reason)
}

func TestCollector_SearchResultWindowWithUnevenPageSize(t *testing.T) {
	h := newHarness(t)
	// 1000 results at 30 per page: 33 full pages, then 10 on page 34.
	pages := make([][]json.RawMessage, 0, 35)
	for i := 0; i < 33; i++ {
		pages = append(pages, github.IssueItems(i*30+1, 30, github.StateOpen))
	}
	pages = append(pages, github.IssueItems(991, 10, github.StateOpen), github.IssueItems(1001, 30, github.StateOpen))
	fetcher := github.NewMockFetcher(github.WithTotal(searchOpen, 5000), github.WithPages(searchOpen, pages...))

	cfg := baseConfig(github.ResourceSearch)
	cfg.Query = "is:issue"
	cfg.PerPage = 30
	summary, err := h.run(t, cfg, fetcher)
	require.NoError(t, err)

	assert.Len(t, fetcher.CallsFor(searchOpen), 34)
	assert.Equal(t, 1000, h.stored(t, github.ResourceSearch).Len())
	assert.Equal(t, ReasonShortPage, partitionResult(t, summary, searchOpen).Reason)
}

func TestCollector_FiltersPullRequestsAndRejectsInvalidItems(t *testing.T) {
	h := newHarness(t)
	page := github.IssueItems(1, 3, github.StateOpen)
	page = append(page, github.PullRequestAsIssue(4), json.RawMessage(`{"number": -1, "state": "open"}`))
	fetcher := github.NewMockFetcher(github.WithPages(issuesOpen, page))

	summary, err := h.run(t, baseConfig(github.ResourceIssues), fetcher)
	require.NoError(t, err)

	open := partitionResult(t, summary, issuesOpen)
	assert.Equal(t, 5, open.Fetched)
	assert.Equal(t, 3, open.Inserted)
	assert.Equal(t, 1, open.Skipped)
	assert.Equal(t, 1, open.Rejected)

	set := h.stored(t, github.ResourceIssues)
	assert.Equal(t, 3, set.Len())
	_, ok := set.Get("4")
	assert.False(t, ok, "pull requests are not stored as issues")
}

func TestCollector_ContributorStats(t *testing.T) {
	h := newHarness(t)
	anon := json.RawMessage(`{"email": "x@example.com", "name": "X", "contributions": 1, "type": "Anonymous"}`)
	fetcher := github.NewMockFetcher(github.WithPages(contributors, append(github.ContributorItems(1, 12), anon)))

	summary, err := h.run(t, baseConfig(github.ResourceContributors), fetcher)
	require.NoError(t, err)

	require.Len(t, summary.Resources, 1)
	stats := summary.Resources[0].Contributors
	require.NotNil(t, stats)
	assert.Equal(t, 13, stats.Contributors)
	assert.Equal(t, 1, stats.Anonymous)
	assert.Len(t, stats.Top, topContributors)
	assert.Equal(t, "contrib1", stats.Top[0].Login)
}

func TestCollector_RequestIntervalBetweenPages(t *testing.T) {
	h := newHarness(t)
	fetcher := github.NewMockFetcher(github.WithPages(pullsOpen,
		github.PullItems(1, 100, github.StateOpen),
		github.PullItems(101, 100, github.StateOpen),
		github.PullItems(201, 1, github.StateOpen),
	))

	cfg := baseConfig(github.ResourcePulls)
	cfg.RequestInterval = time.Second
	_, err := h.run(t, cfg, fetcher)
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{time.Second, time.Second}, h.clock.Sleeps())
}

func TestCollector_CancelledContext(t *testing.T) {
	h := newHarness(t)
	governor := ratelimit.NewGovernor(h.policy, h.clock, zerolog.Nop())
	c, err := New(baseConfig(github.ResourceIssues), github.NewMockFetcher(), h.checkpoints, h.store, governor)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCollector_ProgressAndInspector(t *testing.T) {
	h := newHarness(t)
	fetcher := github.NewMockFetcher(github.WithPages(issuesOpen, github.IssueItems(1, 100, github.StateOpen), github.IssueItems(101, 20, github.StateOpen)))
	inspector := &github.MockInspector{Info: &github.RepositoryInfo{OpenIssues: 120, ClosedIssues: 0}}

	var buf bytes.Buffer
	_, err := h.run(t, baseConfig(github.ResourceIssues), fetcher, WithInspector(inspector), WithProgress(&buf))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Collecting issues/open (120 expected) from page 1")
	assert.Contains(t, out, "100 / 120")
	assert.Contains(t, out, "Completed issues/open: 2 pages, 120 new, 0 updated (short page)")
}

func TestCollector_InspectorErrorIsNotFatal(t *testing.T) {
	h := newHarness(t)
	inspector := &github.MockInspector{Err: relaierrors.ErrNetworkFailure}

	_, err := h.run(t, baseConfig(github.ResourcePulls), github.NewMockFetcher(), WithInspector(inspector))
	assert.NoError(t, err)
}

func TestCollector_TrackerRecordsRun(t *testing.T) {
	h := newHarness(t)
	fetcher := github.NewMockFetcher(
		github.WithOutcomes(issuesOpen, github.RateLimitedOutcome(epoch.Add(10*time.Second))),
		github.WithPages(issuesOpen, github.IssueItems(5, 3, github.StateOpen)),
	)
	governor := ratelimit.NewGovernor(h.policy, h.clock, zerolog.Nop())
	c, err := New(baseConfig(github.ResourceIssues), fetcher, h.checkpoints, h.store, governor)
	require.NoError(t, err)

	_, err = c.Run(context.Background())
	require.NoError(t, err)

	m := c.Tracker().GenerateMetadata("dev", metadataParams(), nil)
	assert.Equal(t, 3, m.Results.APICallCount)
	assert.Equal(t, 1, m.Results.RateLimitWaits)
	assert.Equal(t, "10s", m.Results.BackoffTime)
	assert.Equal(t, 5, m.Resources["issues"].FirstNumber)
	assert.Equal(t, 7, m.Resources["issues"].LastNumber)
	assert.Equal(t, 3, m.Resources["issues"].Records)
	assert.Len(t, m.Partitions, 2)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing owner", func(c *Config) { c.Owner = "" }, true},
		{"page size too large", func(c *Config) { c.PerPage = 101 }, true},
		{"negative max pages", func(c *Config) { c.MaxPages = -1 }, true},
		{"no resources", func(c *Config) { c.Resources = nil }, true},
		{"search without query", func(c *Config) { c.Resources = []github.Resource{github.ResourceSearch} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig(github.ResourceIssues)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPartitionState(t *testing.T) {
	assert.Equal(t, "backoff", StateBackoff.String())
	assert.True(t, StateComplete.Terminal())
	assert.True(t, StateAbandoned.Terminal())
	assert.False(t, StateMerging.Terminal())

	r := PartitionResult{State: StateFetching}
	r.finish(StateComplete, ReasonShortPage, nil)
	r.transition(StateFetching)
	assert.Equal(t, StateComplete, r.State, "terminal states are final")
}
