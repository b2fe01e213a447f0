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
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sirseerhq/sirseer-collect/internal/github"
	"github.com/sirseerhq/sirseer-collect/internal/metadata"
	"github.com/sirseerhq/sirseer-collect/internal/records"
)

func newStatusCommand(g *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status <owner>/<repo>",
		Short: "Show checkpoints, stored records and the last run of a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), g, args[0], asJSON, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the metadata of the last run as JSON")

	return cmd
}

func runStatus(ctx context.Context, g *globalOptions, repoArg string, asJSON bool, w io.Writer) error {
	owner, repo, err := parseRepository(repoArg)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(g, owner, repo)
	if err != nil {
		return err
	}

	last, err := metadata.LoadLatestMetadata(cfg.Defaults.StateDir, owner, repo)
	if err != nil {
		return err
	}
	if asJSON {
		if last == nil {
			return fmt.Errorf("no recorded run for %s/%s in %s", owner, repo, cfg.Defaults.StateDir)
		}
		return metadata.WriteMetadataToWriter(last, w)
	}

	checkpoints, closeCheckpoints, err := openCheckpoints(ctx, cfg, owner, repo)
	if err != nil {
		return err
	}
	defer func() { _ = closeCheckpoints() }()

	pages, err := checkpoints.All(ctx)
	if err != nil {
		return err
	}

	store, err := records.NewStore(cfg.Defaults.DataDir, owner, repo, cfg.Defaults.OutputFormat)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Repository: %s/%s\n", owner, repo)

	fmt.Fprintln(w, "Checkpoints:")
	if len(pages) == 0 {
		fmt.Fprintln(w, "  none, every partition starts at page 1")
	}
	keys := make([]string, 0, len(pages))
	for k := range pages {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-20s resumes at page %d\n", k, pages[k])
	}

	fmt.Fprintln(w, "Records:")
	for _, r := range []github.Resource{github.ResourceIssues, github.ResourcePulls, github.ResourceContributors, github.ResourceSearch} {
		set, err := store.Load(r)
		if err != nil {
			return err
		}
		if set.Len() == 0 {
			continue
		}
		fmt.Fprintf(w, "  %-13s %6d", r, set.Len())
		if r == github.ResourceContributors {
			stats := records.Contributors(set, 3)
			fmt.Fprintf(w, "  %d contributions", stats.TotalContributions)
			for i, c := range stats.Top {
				name := c.Login
				if c.Anonymous() {
					name = c.Name
				}
				fmt.Fprintf(w, "  #%d %s (%d)", i+1, name, c.Contributions)
			}
		} else {
			fmt.Fprintf(w, "  %s", formatCounts(records.StateCounts(set)))
		}
		fmt.Fprintln(w)
	}

	if last != nil {
		fmt.Fprintf(w, "Last run: %s completed %s, %d API calls, %d abandoned partitions\n",
			last.RunID, last.Results.CompletedAt.Format("2006-01-02 15:04:05 MST"),
			last.Results.APICallCount, last.Results.Abandoned)
	}
	return nil
}
