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
	"fmt"
	"time"

	"github.com/shurcooL/graphql"
	relaierrors "github.com/sirseerhq/sirseer-collect/internal/errors"
	"github.com/sirseerhq/sirseer-collect/internal/giterror"
)

// GraphQLClient reads repository totals through GitHub's GraphQL API. One
// query returns the counts for every issue and pull request partition, which
// the REST API cannot do without listing.
type GraphQLClient struct {
	client    *graphql.Client
	inspector giterror.Inspector
}

// NewGraphQLClient creates a GraphQL client for endpoint, e.g.
// https://api.github.com/graphql.
func NewGraphQLClient(token string, endpoint string) *GraphQLClient {
	return &GraphQLClient{
		client:    graphql.NewClient(endpoint, newHTTPClient(token, 30*time.Second)),
		inspector: giterror.NewInspector(),
	}
}

// GetRepositoryInfo returns open and closed totals for issues and pull
// requests. Closed pull requests include merged ones, matching the REST
// state=closed filter.
func (c *GraphQLClient) GetRepositoryInfo(ctx context.Context, owner, repo string) (*RepositoryInfo, error) {
	var query struct {
		Repository struct {
			OpenIssues struct {
				TotalCount graphql.Int
			} `graphql:"openIssues: issues(states: OPEN)"`
			ClosedIssues struct {
				TotalCount graphql.Int
			} `graphql:"closedIssues: issues(states: CLOSED)"`
			OpenPullRequests struct {
				TotalCount graphql.Int
			} `graphql:"openPullRequests: pullRequests(states: OPEN)"`
			ClosedPullRequests struct {
				TotalCount graphql.Int
			} `graphql:"closedPullRequests: pullRequests(states: [CLOSED, MERGED])"`
		} `graphql:"repository(owner: $owner, name: $repo)"`
	}

	variables := map[string]interface{}{
		"owner": graphql.String(owner),
		"repo":  graphql.String(repo),
	}

	if err := c.client.Query(ctx, &query, variables); err != nil {
		return nil, c.mapError(err, owner, repo)
	}

	return &RepositoryInfo{
		OpenIssues:         int(query.Repository.OpenIssues.TotalCount),
		ClosedIssues:       int(query.Repository.ClosedIssues.TotalCount),
		OpenPullRequests:   int(query.Repository.OpenPullRequests.TotalCount),
		ClosedPullRequests: int(query.Repository.ClosedPullRequests.TotalCount),
	}, nil
}

// mapError maps GraphQL errors to our domain errors with actionable messages
func (c *GraphQLClient) mapError(err error, owner, repo string) error {
	if err == nil {
		return nil
	}

	// Check rate limit first, as 403 can be both auth and rate limit
	if c.inspector.IsRateLimitError(err) {
		return fmt.Errorf("GitHub API rate limit exceeded. Please wait before retrying: %w", relaierrors.ErrRateLimit)
	}

	if c.inspector.IsAuthError(err) {
		return fmt.Errorf("GitHub API authentication failed. Please provide a valid token via --token flag or GITHUB_TOKEN environment variable: %w", relaierrors.ErrInvalidToken)
	}

	if c.inspector.IsNotFoundError(err) {
		return fmt.Errorf("repository '%s/%s' not found. Please check the repository name and your access permissions: %w", owner, repo, relaierrors.ErrRepoNotFound)
	}

	if c.inspector.IsNetworkError(err) {
		return fmt.Errorf("network error connecting to GitHub API. Please check your internet connection and try again: %w", relaierrors.ErrNetworkFailure)
	}

	return fmt.Errorf("failed to fetch repository totals: %w", err)
}
