//go:build integration

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

package integration

import (
	"path/filepath"
	"strings"
	"testing"

	relaierrors "github.com/sirseerhq/sirseer-collect/internal/errors"
	"github.com/sirseerhq/sirseer-collect/internal/github"
	"github.com/sirseerhq/sirseer-collect/internal/testutil"
)

var (
	issuesOpen   = github.Partition{Resource: github.ResourceIssues, State: github.StateOpen}
	issuesClosed = github.Partition{Resource: github.ResourceIssues, State: github.StateClosed}
)

// newServer returns a scripted API with three open and one closed issue
// plus the environment pointing the binary at it.
func newServer(t *testing.T, dir string) (*testutil.GitHubServer, map[string]string) {
	t.Helper()

	server := testutil.NewGitHubServer(t, "octocat", "hello")
	server.SetPages(issuesOpen, github.IssueItems(1, 2, github.StateOpen), github.IssueItems(3, 1, github.StateOpen))
	server.SetPages(issuesClosed, github.IssueItems(10, 1, github.StateClosed))

	env := map[string]string{
		"GITHUB_API_ENDPOINT":      server.URL,
		"GITHUB_GRAPHQL_ENDPOINT":  server.GraphQLURL(),
		"GITHUB_TOKEN":             "test-token",
		"SIRSEER_PAGE_SIZE":        "2",
		"SIRSEER_REQUEST_INTERVAL": "0s",
		"SIRSEER_DATA_DIR":         filepath.Join(dir, "data"),
		"SIRSEER_STATE_DIR":        filepath.Join(dir, "state"),
		"SIRSEER_LOG_LEVEL":        "error",
	}
	return server, env
}

func collectArgs(extra ...string) []string {
	return append([]string{"collect", "octocat/hello", "--resources", "issues", "--quiet"}, extra...)
}

func TestCLI_Version(t *testing.T) {
	result := testutil.RunCLI(t, t.TempDir(), nil, "--version")

	testutil.AssertExitCode(t, result, relaierrors.ExitSuccess)
	if !strings.Contains(result.Stdout, "sirseer-collect version") {
		t.Errorf("Expected version output, got: %s", result.Stdout)
	}
}

func TestCLI_InvalidRepository(t *testing.T) {
	tests := []string{"invalid", "too/many/parts", "/repo", "org/"}

	for _, repo := range tests {
		t.Run(repo, func(t *testing.T) {
			result := testutil.RunCLI(t, t.TempDir(), nil, "collect", repo)

			testutil.AssertExitCode(t, result, relaierrors.ExitGeneral)
			if !strings.Contains(result.Stderr, "invalid repository format") {
				t.Errorf("Expected repository error, got: %s", result.Stderr)
			}
		})
	}
}

func TestCLI_MissingToken(t *testing.T) {
	dir := t.TempDir()
	_, env := newServer(t, dir)
	delete(env, "GITHUB_TOKEN")

	result := testutil.RunCLI(t, dir, env, collectArgs()...)

	testutil.AssertExitCode(t, result, relaierrors.ExitAuth)
	if !strings.Contains(result.Stderr, "GitHub token not found") {
		t.Errorf("Expected missing token error, got: %s", result.Stderr)
	}
}

func TestCLI_Collect(t *testing.T) {
	dir := t.TempDir()
	_, env := newServer(t, dir)

	result := testutil.RunCLI(t, dir, env, collectArgs()...)
	testutil.AssertExitCode(t, result, relaierrors.ExitSuccess)

	path := filepath.Join(dir, "data", "octocat-hello", "issues.json")
	testutil.AssertFileExists(t, path)
	if n := len(testutil.ReadRecords(t, path)); n != 4 {
		t.Errorf("Expected 4 issues, got %d", n)
	}

	// A second run finds nothing new.
	result = testutil.RunCLI(t, dir, env, collectArgs()...)
	testutil.AssertExitCode(t, result, relaierrors.ExitSuccess)
	if !strings.Contains(result.Stdout, "4 records      0 new") {
		t.Errorf("Expected no new records, got:\n%s", result.Stdout)
	}
}

func TestCLI_ExitCodes(t *testing.T) {
	tests := []struct {
		name   string
		script func(s *testutil.GitHubServer)
		args   []string
		want   int
	}{
		{
			name:   "rejected token",
			script: func(s *testutil.GitHubServer) { s.RequireToken("other") },
			want:   relaierrors.ExitAuth,
		},
		{
			name:   "rate limited without waiting",
			script: func(s *testutil.GitHubServer) { s.RateLimitAt(issuesOpen, 2, 0) },
			args:   []string{"--no-wait"},
			want:   relaierrors.ExitAuth,
		},
		{
			name:   "abandoned partition",
			script: func(s *testutil.GitHubServer) { s.FailNext(issuesClosed, 422) },
			want:   relaierrors.ExitPartial,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			server, env := newServer(t, dir)
			tt.script(server)

			result := testutil.RunCLI(t, dir, env, collectArgs(tt.args...)...)
			testutil.AssertExitCode(t, result, tt.want)
		})
	}
}

func TestCLI_StatusAndReset(t *testing.T) {
	dir := t.TempDir()
	server, env := newServer(t, dir)
	server.RateLimitAt(issuesOpen, 2, 0)

	result := testutil.RunCLI(t, dir, env, collectArgs("--no-wait")...)
	testutil.AssertExitCode(t, result, relaierrors.ExitAuth)

	result = testutil.RunCLI(t, dir, env, "status", "octocat/hello")
	testutil.AssertExitCode(t, result, relaierrors.ExitSuccess)
	if !strings.Contains(result.Stdout, "resumes at page 2") {
		t.Errorf("Expected checkpoint in status, got:\n%s", result.Stdout)
	}

	result = testutil.RunCLI(t, dir, env, "reset", "octocat/hello")
	testutil.AssertExitCode(t, result, relaierrors.ExitSuccess)

	result = testutil.RunCLI(t, dir, env, "status", "octocat/hello")
	if !strings.Contains(result.Stdout, "every partition starts at page 1") {
		t.Errorf("Expected no checkpoints after reset, got:\n%s", result.Stdout)
	}
}
