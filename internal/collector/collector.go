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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	relaierrors "github.com/sirseerhq/sirseer-collect/internal/errors"
	"github.com/sirseerhq/sirseer-collect/internal/github"
	"github.com/sirseerhq/sirseer-collect/internal/metadata"
	"github.com/sirseerhq/sirseer-collect/internal/ratelimit"
	"github.com/sirseerhq/sirseer-collect/internal/records"
	"github.com/sirseerhq/sirseer-collect/internal/state"
)

// topContributors is the size of the contributor ranking in the summary.
const topContributors = 10

// RecordStore loads and persists the record set of a resource.
type RecordStore interface {
	Load(resource github.Resource) (*records.Set, error)
	Persist(resource github.Resource, set *records.Set) error
}

// Config is the fixed plan of one run.
type Config struct {
	Owner string
	Repo  string

	// Resources are collected in this order.
	Resources []github.Resource

	// PerPage is the page size, between 1 and 100.
	PerPage int

	// MaxPages is the last page index fetched per partition; 0 is unlimited.
	MaxPages int

	// Query is the search expression for the search resource.
	Query string

	// RequestInterval is slept after every merged page.
	RequestInterval time.Duration

	// AutoWait makes the collector sleep through rate limits. When false a
	// rate limit aborts the run.
	AutoWait bool
}

// Validate checks the plan before any request is sent.
func (c Config) Validate() error {
	var errs []error
	if c.Owner == "" || c.Repo == "" {
		errs = append(errs, fmt.Errorf("owner and repo are required"))
	}
	if c.PerPage < 1 || c.PerPage > github.MaxPerPage {
		errs = append(errs, fmt.Errorf("page size must be between 1 and %d, got %d", github.MaxPerPage, c.PerPage))
	}
	if c.MaxPages < 0 {
		errs = append(errs, fmt.Errorf("max pages must not be negative, got %d", c.MaxPages))
	}
	if len(c.Resources) == 0 {
		errs = append(errs, fmt.Errorf("at least one resource is required"))
	}
	for _, r := range c.Resources {
		if r == github.ResourceSearch && c.Query == "" {
			errs = append(errs, fmt.Errorf("search resource requires a search query"))
		}
	}
	return errors.Join(errs...)
}

// Collector runs partition walks. It is not safe for concurrent use.
type Collector struct {
	cfg         Config
	fetcher     github.PageFetcher
	checkpoints state.CheckpointStore
	store       RecordStore
	governor    *ratelimit.Governor

	inspector github.RepositoryInspector
	tracker   *metadata.Tracker
	logger    zerolog.Logger
	progress  *progress
}

// Option configures a Collector.
type Option func(*Collector)

// WithInspector supplies expected totals for progress output.
func WithInspector(i github.RepositoryInspector) Option {
	return func(c *Collector) {
		c.inspector = i
	}
}

// WithTracker records run statistics into t.
func WithTracker(t *metadata.Tracker) Option {
	return func(c *Collector) {
		c.tracker = t
	}
}

// WithLogger sets the structured logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Collector) {
		c.logger = l
	}
}

// WithProgress prints human-readable progress to w.
func WithProgress(w io.Writer) Option {
	return func(c *Collector) {
		c.progress = newProgress(w, c.governor.Clock().Now)
	}
}

// New creates a collector.
func New(cfg Config, fetcher github.PageFetcher, checkpoints state.CheckpointStore, store RecordStore, governor *ratelimit.Governor, opts ...Option) (*Collector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid collection plan: %w", err)
	}
	if fetcher == nil || checkpoints == nil || store == nil || governor == nil {
		return nil, fmt.Errorf("fetcher, checkpoint store, record store and governor are required")
	}

	c := &Collector{
		cfg:         cfg,
		fetcher:     fetcher,
		checkpoints: checkpoints,
		store:       store,
		governor:    governor,
		logger:      zerolog.Nop(),
	}
	c.progress = newProgress(nil, governor.Clock().Now)
	for _, opt := range opts {
		opt(c)
	}
	if c.tracker == nil {
		c.tracker = metadata.New(governor.Clock().Now)
	}
	return c, nil
}

// Tracker returns the run statistics tracker.
func (c *Collector) Tracker() *metadata.Tracker {
	return c.tracker
}

// Run collects every configured resource. The summary is returned even
// when the run is aborted. A run that finished with abandoned partitions
// returns an error wrapping ErrPartialCollection.
func (c *Collector) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{}
	info := c.expectedTotals(ctx)

	defer func() {
		summary.APICalls = c.tracker.APICalls()
		summary.Waits = c.tracker.Waits()
	}()

	for _, resource := range c.cfg.Resources {
		rs, err := c.collectResource(ctx, resource, info, summary)
		if rs != nil {
			summary.Resources = append(summary.Resources, *rs)
		}
		if err != nil {
			return summary, err
		}
	}

	return summary, summary.Err()
}

func (c *Collector) expectedTotals(ctx context.Context) *github.RepositoryInfo {
	if c.inspector == nil {
		return nil
	}
	info, err := c.inspector.GetRepositoryInfo(ctx, c.cfg.Owner, c.cfg.Repo)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Could not read repository totals, progress will not show percentages")
		return nil
	}
	return info
}

func (c *Collector) collectResource(ctx context.Context, resource github.Resource, info *github.RepositoryInfo, summary *Summary) (*ResourceSummary, error) {
	set, err := c.store.Load(resource)
	if err != nil {
		return nil, fmt.Errorf("load %s records: %v: %w", resource, err, relaierrors.ErrPersistence)
	}

	rs := &ResourceSummary{Resource: resource}
	c.logger.Info().
		Str("resource", string(resource)).
		Int("stored", set.Len()).
		Msg("Collecting resource")

	var runErr error
	for _, part := range resource.Partitions() {
		res, err := c.collectPartition(ctx, part, set, info.Expected(part))

		summary.Partitions = append(summary.Partitions, res)
		rs.Inserted += res.Inserted
		rs.Updated += res.Updated
		rs.Rejected += res.Rejected
		rs.Skipped += res.Skipped
		partitionsTotal.WithLabelValues(res.State.String()).Inc()
		c.tracker.RecordPartition(partitionRecord(res))

		if err != nil {
			runErr = err
			break
		}
	}

	rs.Records = set.Len()
	c.tracker.SetRecords(string(resource), rs.Records)
	switch resource {
	case github.ResourceContributors:
		stats := records.Contributors(set, topContributors)
		rs.Contributors = &stats
	case github.ResourceIssues, github.ResourcePulls, github.ResourceSearch:
		rs.States = records.StateCounts(set)
	}

	return rs, runErr
}

// collectPartition walks one partition from its checkpoint until it is
// complete or abandoned. A non-nil error aborts the whole run.
func (c *Collector) collectPartition(ctx context.Context, part github.Partition, set *records.Set, expected int) (PartitionResult, error) {
	key := part.Key()
	log := c.logger.With().Str("partition", key).Logger()

	page, err := c.checkpoints.Get(ctx, key)
	if err != nil {
		res := PartitionResult{Partition: part, StartPage: state.FirstPage}
		res.finish(StateAbandoned, ReasonAborted, err)
		return res, fmt.Errorf("read checkpoint %s: %v: %w", key, err, relaierrors.ErrPersistence)
	}

	res := PartitionResult{Partition: part, State: StateFetching, StartPage: page}
	c.progress.begin(part, page, expected)
	defer func() { c.progress.end(res) }()

	if page > 1 {
		log.Info().Int("page", page).Msg("Resuming partition from checkpoint")
	}

	// Items already stored for this partition are unknown on resume, so
	// progress counts from the pages skipped.
	seen := (page - 1) * c.cfg.PerPage
	rateAttempts, transientAttempts := 0, 0

	for {
		if reason, done := c.beyondLimits(part, page); done {
			if err := c.checkpoints.Reset(ctx, key); err != nil {
				res.finish(StateAbandoned, ReasonAborted, err)
				return res, fmt.Errorf("reset checkpoint %s: %w", key, err)
			}
			res.finish(StateComplete, reason, nil)
			return res, nil
		}

		res.transition(StateFetching)
		out := c.fetcher.FetchPage(ctx, github.PageRequest{
			Owner:     c.cfg.Owner,
			Repo:      c.cfg.Repo,
			Partition: part,
			Page:      page,
			PerPage:   c.cfg.PerPage,
			Query:     c.cfg.Query,
		})
		c.tracker.IncrementAPICall()
		requestsTotal.WithLabelValues(string(part.Resource), out.Kind.String()).Inc()
		c.governor.Observe(out.RateLimit)

		switch out.Kind {
		case github.OutcomePage:
			rateAttempts, transientAttempts = 0, 0
			res.transition(StateMerging)

			recs, rejected, skipped := c.decode(part.Resource, out.Items, log)
			merged := set.Merge(recs)
			if err := c.store.Persist(part.Resource, set); err != nil {
				res.finish(StateAbandoned, ReasonAborted, err)
				return res, err
			}

			res.Pages++
			res.Fetched += len(out.Items)
			res.Inserted += merged.Inserted
			res.Updated += merged.Updated
			res.Rejected += rejected
			res.Skipped += skipped
			recordsInserted.WithLabelValues(string(part.Resource)).Add(float64(merged.Inserted))
			c.tracker.RecordPage(string(part.Resource), len(out.Items), merged.Inserted, merged.Updated, rejected, skipped)
			c.trackItems(part.Resource, recs)

			seen += len(out.Items) - skipped
			c.progress.update(part, page, seen, expected)
			log.Info().
				Int("page", page).
				Int("items", len(out.Items)).
				Int("inserted", merged.Inserted).
				Int("updated", merged.Updated).
				Int("rejected", rejected).
				Msg("Merged page")

			if reason, done := c.lastPage(part, page, len(out.Items), out.Total); done {
				if err := c.checkpoints.Reset(ctx, key); err != nil {
					res.finish(StateAbandoned, ReasonAborted, err)
					return res, fmt.Errorf("reset checkpoint %s: %w", key, err)
				}
				res.finish(StateComplete, reason, nil)
				log.Info().Int("pages", res.Pages).Str("reason", reason).Msg("Partition complete")
				return res, nil
			}

			page++
			if err := c.checkpoints.Set(ctx, key, page); err != nil {
				res.finish(StateAbandoned, ReasonAborted, err)
				return res, fmt.Errorf("advance checkpoint %s: %w", key, err)
			}

			if c.cfg.RequestInterval > 0 {
				if err := c.governor.Clock().Sleep(ctx, c.cfg.RequestInterval); err != nil {
					res.finish(StateAbandoned, ReasonAborted, err)
					return res, err
				}
			}

		case github.OutcomeRateLimited:
			if !c.cfg.AutoWait {
				res.finish(StateAbandoned, ReasonAborted, out.Err)
				return res, fmt.Errorf("%s page %d: %w", key, page, out.Err)
			}
			d := c.governor.Decide(ratelimit.SignalRateLimited, out.ResetAt, rateAttempts)
			rateAttempts++
			if err := c.backoff(ctx, &res, page, d); err != nil {
				return res, err
			}

		case github.OutcomeTransient:
			d := c.governor.Decide(ratelimit.SignalTransient, time.Time{}, transientAttempts)
			transientAttempts++
			if !d.Retry {
				err := fmt.Errorf("%s page %d: %s: %w (last error: %v)", key, page, d.Reason, relaierrors.ErrRetryExhausted, out.Err)
				res.finish(StateAbandoned, ReasonRetriesExhausted, err)
				log.Error().Err(out.Err).Int("page", page).Msg("Abandoning partition after repeated failures")
				return res, nil
			}
			if err := c.backoff(ctx, &res, page, d); err != nil {
				return res, err
			}

		case github.OutcomeUnprocessable:
			res.finish(StateAbandoned, ReasonUnprocessable, out.Err)
			log.Error().Err(out.Err).Int("page", page).Msg("Abandoning partition, request unprocessable")
			return res, nil

		default:
			if ctxErr := ctx.Err(); ctxErr != nil {
				res.finish(StateAbandoned, ReasonAborted, ctxErr)
				return res, ctxErr
			}
			if github.IsAuthFailure(out) {
				res.finish(StateAbandoned, ReasonAborted, out.Err)
				return res, out.Err
			}
			res.finish(StateAbandoned, ReasonFatal, out.Err)
			log.Error().Err(out.Err).Int("page", page).Int("status", out.StatusCode).Msg("Abandoning partition")
			return res, nil
		}
	}
}

// backoff waits out a retry decision, leaving the page unchanged.
func (c *Collector) backoff(ctx context.Context, res *PartitionResult, page int, d ratelimit.Decision) error {
	res.transition(StateBackoff)
	c.progress.waiting(res.Partition, page, d.Wait, d.Reason)
	if err := c.governor.Wait(ctx, d); err != nil {
		res.finish(StateAbandoned, ReasonAborted, err)
		return err
	}
	c.tracker.RecordWait(d.Wait)
	return nil
}

// lastPage applies the completion heuristic to a merged page.
func (c *Collector) lastPage(part github.Partition, page, items, total int) (string, bool) {
	switch {
	case items < c.cfg.PerPage:
		return ReasonShortPage, true
	case part.Resource.CountAware() && total >= 0 && (page-1)*c.cfg.PerPage+items >= total:
		return ReasonTotalReached, true
	case c.cfg.MaxPages > 0 && page >= c.cfg.MaxPages:
		return ReasonPageCeiling, true
	}
	if limit := part.Resource.PageLimit(c.cfg.PerPage); limit > 0 && page >= limit {
		return ReasonSearchWindow, true
	}
	return "", false
}

// beyondLimits reports whether a resumed checkpoint already lies past the
// page ceiling, which happens when the ceiling was lowered between runs.
func (c *Collector) beyondLimits(part github.Partition, page int) (string, bool) {
	if c.cfg.MaxPages > 0 && page > c.cfg.MaxPages {
		return ReasonPageCeiling, true
	}
	if limit := part.Resource.PageLimit(c.cfg.PerPage); limit > 0 && page > limit {
		return ReasonSearchWindow, true
	}
	return "", false
}

// decode validates the items of a page. Invalid items are rejected one by
// one; the rest of the page is kept.
func (c *Collector) decode(resource github.Resource, items []json.RawMessage, log zerolog.Logger) (recs []github.Record, rejected, skipped int) {
	recs = make([]github.Record, 0, len(items))
	for i, raw := range items {
		rec, err := resource.DecodeItem(raw)
		switch {
		case errors.Is(err, github.ErrSkipItem):
			skipped++
		case err != nil:
			rejected++
			log.Warn().Err(err).Int("index", i).Msg("Rejected invalid item")
		default:
			recs = append(recs, rec)
		}
	}
	return recs, rejected, skipped
}

func (c *Collector) trackItems(resource github.Resource, recs []github.Record) {
	for _, rec := range recs {
		switch r := rec.(type) {
		case github.Issue:
			c.tracker.UpdateItemStats(string(resource), r.Number, r.CreatedAt, r.UpdatedAt)
		case github.PullRequest:
			c.tracker.UpdateItemStats(string(resource), r.Number, r.CreatedAt, r.UpdatedAt)
		}
	}
}

func partitionRecord(r PartitionResult) metadata.PartitionRecord {
	rec := metadata.PartitionRecord{
		Partition: r.Partition.Key(),
		Status:    r.State.String(),
		StartPage: r.StartPage,
		Pages:     r.Pages,
		Reason:    r.Reason,
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	return rec
}
