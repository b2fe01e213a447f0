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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sirseerhq/sirseer-collect/internal/collector"
	"github.com/sirseerhq/sirseer-collect/internal/config"
	"github.com/sirseerhq/sirseer-collect/internal/credentials"
	"github.com/sirseerhq/sirseer-collect/internal/github"
	"github.com/sirseerhq/sirseer-collect/internal/logging"
	"github.com/sirseerhq/sirseer-collect/internal/metadata"
	"github.com/sirseerhq/sirseer-collect/internal/ratelimit"
	"github.com/sirseerhq/sirseer-collect/internal/records"
	"github.com/sirseerhq/sirseer-collect/pkg/version"
)

type collectOptions struct {
	token       string
	pageSize    int
	maxPages    int
	resources   []string
	query       string
	format      string
	dataDir     string
	stateDir    string
	noWait      bool
	quiet       bool
	metricsAddr string
}

func newCollectCommand(g *globalOptions) *cobra.Command {
	opts := &collectOptions{}

	cmd := &cobra.Command{
		Use:   "collect <owner>/<repo>",
		Short: "Collect repository records, resuming from the last checkpoint",
		Long: `Collect issues, pull requests, contributors or search results of a GitHub
repository into <data-dir>/<owner>-<repo>/<resource>.json.

Each resource is split into partitions (open and closed for issues, pulls and
search; one for contributors). A partition is walked page by page in creation
order and checkpointed after every page, so an interrupted run resumes at the
page it stopped on. Records are merged by identity: re-running only adds new
items and refreshes changed ones.

Authentication is required via GitHub token:
  - Use --token flag to provide token directly
  - Or set GITHUB_TOKEN (or the configured token_env) environment variable
  - Or store one in the system keychain with 'sirseer-collect token set'`,
		Example: `  sirseer-collect collect golang/go
  sirseer-collect collect golang/go --resources issues --max-pages 10
  sirseer-collect collect golang/go --resources search --query "label:bug"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runCollect(ctx, cmd, g, opts, args[0])
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.token, "token", "", "GitHub personal access token (overrides environment and keychain)")
	f.IntVar(&opts.pageSize, "page-size", 0, "Items per page, 1-100")
	f.IntVar(&opts.maxPages, "max-pages", 0, "Last page index fetched per partition (0 = unlimited)")
	f.StringSliceVar(&opts.resources, "resources", nil, "Resources to collect: issues, pulls, contributors, search")
	f.StringVar(&opts.query, "query", "", "Search expression for the search resource")
	f.StringVar(&opts.format, "format", "", "Record file format: json or ndjson")
	f.StringVar(&opts.dataDir, "data-dir", "", "Directory for record files")
	f.StringVar(&opts.stateDir, "state-dir", "", "Directory for checkpoints and run metadata")
	f.BoolVar(&opts.noWait, "no-wait", false, "Fail instead of waiting when the rate limit is hit")
	f.BoolVar(&opts.quiet, "quiet", false, "Do not print progress")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run, e.g. :9090")

	return cmd
}

// apply folds the flags that were set into cfg.
func (o *collectOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("page-size") {
		cfg.Defaults.PageSize = o.pageSize
	}
	if f.Changed("max-pages") {
		cfg.Defaults.MaxPages = o.maxPages
	}
	if f.Changed("resources") {
		cfg.Defaults.Resources = o.resources
	}
	if f.Changed("query") {
		cfg.Defaults.SearchQuery = o.query
	}
	if f.Changed("format") {
		cfg.Defaults.OutputFormat = o.format
	}
	if f.Changed("data-dir") {
		cfg.Defaults.DataDir = o.dataDir
	}
	if f.Changed("state-dir") {
		cfg.Defaults.StateDir = o.stateDir
	}
	if o.noWait {
		cfg.RateLimit.AutoWait = false
	}
	if o.quiet {
		cfg.RateLimit.ShowProgress = false
	}
}

func runCollect(ctx context.Context, cmd *cobra.Command, g *globalOptions, opts *collectOptions, repoArg string) error {
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	owner, repo, err := parseRepository(repoArg)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(g, owner, repo)
	if err != nil {
		return err
	}
	opts.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logging.Setup(logging.Config{Level: cfg.Logging.Level, Pretty: cfg.Logging.Pretty, Output: stderr})
	logger := logging.NewLogger("cli").With().Str("repo", owner+"/"+repo).Logger()

	resources, err := parseResources(cfg.Defaults.Resources)
	if err != nil {
		return err
	}

	token, source, err := credentials.NewResolver(cfg.GitHub.TokenEnv, cfg.GitHub.APIEndpoint).Resolve(opts.token)
	if err != nil {
		return err
	}
	logger.Debug().Str("source", string(source)).Msg("Resolved GitHub token")

	checkpoints, closeCheckpoints, err := openCheckpoints(ctx, cfg, owner, repo)
	if err != nil {
		return err
	}
	defer func() { _ = closeCheckpoints() }()

	store, err := records.NewStore(cfg.Defaults.DataDir, owner, repo, cfg.Defaults.OutputFormat)
	if err != nil {
		return err
	}

	governor := ratelimit.NewGovernor(ratelimit.RetryPolicy{
		MaxAttempts: cfg.RateLimit.MaxAttempts,
		BaseDelay:   cfg.RateLimit.BaseDelay,
		MaxDelay:    cfg.RateLimit.MaxDelay,
		MinimumWait: cfg.RateLimit.MinimumWait,
	}, ratelimit.SystemClock{}, logging.NewLogger("ratelimit"))

	tracker := metadata.New(time.Now)
	collectorOpts := []collector.Option{
		collector.WithInspector(github.NewGraphQLClient(token, cfg.GitHub.GraphQLEndpoint)),
		collector.WithTracker(tracker),
		collector.WithLogger(logging.NewLogger("collector").With().Str("repo", owner+"/"+repo).Logger()),
	}
	if cfg.RateLimit.ShowProgress {
		collectorOpts = append(collectorOpts, collector.WithProgress(stderr))
	}

	c, err := collector.New(collector.Config{
		Owner:           owner,
		Repo:            repo,
		Resources:       resources,
		PerPage:         cfg.Defaults.PageSize,
		MaxPages:        cfg.Defaults.MaxPages,
		Query:           cfg.Defaults.SearchQuery,
		RequestInterval: cfg.Defaults.RequestInterval,
		AutoWait:        cfg.RateLimit.AutoWait,
	}, github.NewRESTClient(token, cfg.GitHub.APIEndpoint), checkpoints, store, governor, collectorOpts...)
	if err != nil {
		return err
	}

	if opts.metricsAddr != "" {
		shutdown := serveMetrics(opts.metricsAddr, logger)
		defer shutdown()
	}

	previous, err := metadata.LoadLatestMetadata(cfg.Defaults.StateDir, owner, repo)
	if err != nil {
		logger.Warn().Err(err).Msg("Could not read previous run metadata")
	}

	summary, runErr := c.Run(ctx)

	m := tracker.GenerateMetadata(version.Version, metadata.RunParams{
		Owner:        owner,
		Repository:   repo,
		Resources:    cfg.Defaults.Resources,
		PageSize:     cfg.Defaults.PageSize,
		MaxPages:     cfg.Defaults.MaxPages,
		SearchQuery:  cfg.Defaults.SearchQuery,
		OutputFormat: cfg.Defaults.OutputFormat,
		Checkpoint:   cfg.Checkpoint.Backend,
	}, previous.Ref())
	metadataPath, err := metadata.SaveMetadata(m, cfg.Defaults.StateDir)
	if err != nil {
		logger.Warn().Err(err).Msg("Could not save run metadata")
	}

	printSummary(stdout, owner, repo, store, summary)
	if metadataPath != "" {
		fmt.Fprintf(stdout, "Metadata: %s\n", metadataPath)
	}

	if runErr != nil {
		logger.Error().Err(runErr).Msg("Collection finished with errors")
	}
	return runErr
}

func parseResources(names []string) ([]github.Resource, error) {
	resources := make([]github.Resource, 0, len(names))
	for _, name := range names {
		r, err := github.ParseResource(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		resources = append(resources, r)
	}
	return resources, nil
}

// serveMetrics exposes the Prometheus registry until the returned function
// is called.
func serveMetrics(addr string, logger zerolog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("Metrics server failed")
		}
	}()
	logger.Info().Str("addr", addr).Msg("Serving metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func printSummary(w io.Writer, owner, repo string, store *records.Store, s *collector.Summary) {
	if s == nil {
		return
	}

	fmt.Fprintf(w, "Collected %s/%s (%d API calls, %d rate limit waits)\n", owner, repo, s.APICalls, s.Waits)
	for _, r := range s.Resources {
		fmt.Fprintf(w, "  %-13s %6d records  %5d new  %5d updated  %4d rejected  -> %s\n",
			r.Resource, r.Records, r.Inserted, r.Updated, r.Rejected, store.Path(r.Resource))
		if len(r.States) > 0 {
			fmt.Fprintf(w, "  %-13s %s\n", "", formatCounts(r.States))
		}
		if c := r.Contributors; c != nil && c.Contributors > 0 {
			fmt.Fprintf(w, "  %-13s %d contributors (%d anonymous), %d contributions, %.1f average\n",
				"", c.Contributors, c.Anonymous, c.TotalContributions, c.Average)
		}
	}

	for _, p := range s.Abandoned() {
		fmt.Fprintf(w, "  abandoned %s at page %d: %s\n", p.Partition, p.StartPage+p.Pages, p.Reason)
	}
}

func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}
