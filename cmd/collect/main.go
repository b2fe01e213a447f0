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
	"fmt"
	"os"

	"github.com/spf13/cobra"

	relaierrors "github.com/sirseerhq/sirseer-collect/internal/errors"
	"github.com/sirseerhq/sirseer-collect/pkg/version"
)

// globalOptions are the flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(relaierrors.ExitCode(err))
	}
}

func newRootCommand() *cobra.Command {
	g := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "sirseer-collect",
		Short: "Collect issues, pull requests and contributors from GitHub repositories",
		Long: `SirSeer Collect mirrors the issues, pull requests and contributors of a
GitHub repository into local record files. Collection is resumable: every
partition is checkpointed after each page, rate limits are waited out and
re-running the command only adds what changed upstream.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&g.configPath, "config", "", "Configuration file (default: .sirseer-collect.yaml or ~/.sirseer/collect.yaml)")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(
		newCollectCommand(g),
		newStatusCommand(g),
		newResetCommand(g),
		newTokenCommand(g),
	)

	return rootCmd
}
