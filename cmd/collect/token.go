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
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sirseerhq/sirseer-collect/internal/config"
	"github.com/sirseerhq/sirseer-collect/internal/credentials"
)

func newTokenCommand(g *globalOptions) *cobra.Command {
	var endpoint string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the GitHub token stored in the system keychain",
		Long: `Manage the GitHub token stored in the system keychain.

Tokens are stored per API host, so github.com and GitHub Enterprise tokens
can live side by side. A token given with --token or the token environment
variable always takes precedence over the keychain.`,
	}
	cmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "API endpoint the token belongs to (default: configured api_endpoint)")

	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Store a token, read from the terminal or stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ep, err := tokenEndpoint(g, endpoint)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "GitHub token for %s: ", credentials.Account(ep))
			token, err := readToken(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := credentials.Store(ep, token); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored token for %s\n", credentials.Account(ep))
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ep, err := tokenEndpoint(g, endpoint)
			if err != nil {
				return err
			}
			if err := credentials.Delete(ep); err != nil {
				if errors.Is(err, credentials.ErrNotFound) {
					fmt.Fprintf(cmd.OutOrStdout(), "No token stored for %s\n", credentials.Account(ep))
					return nil
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted token for %s\n", credentials.Account(ep))
			return nil
		},
	}

	cmd.AddCommand(setCmd, deleteCmd)
	return cmd
}

func tokenEndpoint(g *globalOptions, flagEndpoint string) (string, error) {
	if flagEndpoint != "" {
		return flagEndpoint, nil
	}
	cfg, err := config.LoadConfig(g.configPath)
	if err != nil {
		return "", err
	}
	return cfg.GitHub.APIEndpoint, nil
}

// readToken reads a token without echo when in is a terminal, otherwise
// the first line of in.
func readToken(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}
