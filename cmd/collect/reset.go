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
	"strings"

	"github.com/spf13/cobra"

	"github.com/sirseerhq/sirseer-collect/internal/github"
)

func newResetCommand(g *globalOptions) *cobra.Command {
	var partition string

	cmd := &cobra.Command{
		Use:   "reset <owner>/<repo>",
		Short: "Forget checkpoints so the next run starts from page 1",
		Long: `Forget the checkpoints of a repository. Stored records are kept; the next
run walks the reset partitions from page 1 and merges what it finds.`,
		Example: `  sirseer-collect reset golang/go
  sirseer-collect reset golang/go --partition issues/closed`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(cmd.Context(), g, args[0], partition, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&partition, "partition", "", "Only reset this partition, e.g. pulls/open")

	return cmd
}

func runReset(ctx context.Context, g *globalOptions, repoArg, partition string, w io.Writer) error {
	owner, repo, err := parseRepository(repoArg)
	if err != nil {
		return err
	}

	var key string
	if partition != "" {
		p, err := parsePartition(partition)
		if err != nil {
			return err
		}
		key = p.Key()
	}

	cfg, err := loadConfig(g, owner, repo)
	if err != nil {
		return err
	}
	checkpoints, closeCheckpoints, err := openCheckpoints(ctx, cfg, owner, repo)
	if err != nil {
		return err
	}
	defer func() { _ = closeCheckpoints() }()

	if key != "" {
		if err := checkpoints.Reset(ctx, key); err != nil {
			return err
		}
		fmt.Fprintf(w, "Reset %s of %s/%s\n", key, owner, repo)
		return nil
	}

	if err := checkpoints.Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintf(w, "Reset all checkpoints of %s/%s\n", owner, repo)
	return nil
}

// parsePartition parses a "resource/state" partition key.
func parsePartition(s string) (github.Partition, error) {
	name, st, _ := strings.Cut(s, "/")
	resource, err := github.ParseResource(name)
	if err != nil {
		return github.Partition{}, err
	}
	for _, p := range resource.Partitions() {
		if p.State == st {
			return p, nil
		}
	}
	return github.Partition{}, fmt.Errorf("unknown partition %q, %s has states %s",
		s, resource, strings.Join(resource.States(), ", "))
}
