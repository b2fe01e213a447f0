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

// Package github talks to GitHub's REST and GraphQL APIs on behalf of the
// collector.
//
// The package includes:
//   - PageFetcher, implemented by RESTClient, which requests exactly one page
//     of a partition and classifies the response into an Outcome
//   - Resource and Partition, which describe what is collected and how a
//     resource is split by state
//   - Record types (Issue, PullRequest, Contributor) decoded and validated
//     from the wire format
//   - GraphQLClient, which reads per-state totals for progress reporting
//   - MockFetcher for tests
//
// A fetcher never retries: rate limits and transient failures are reported
// to the caller, which owns the retry policy.
//
// Basic usage:
//
//	client := github.NewRESTClient(token, "https://api.github.com")
//	out := client.FetchPage(ctx, github.PageRequest{
//	    Owner:     "golang",
//	    Repo:      "go",
//	    Partition: github.Partition{Resource: github.ResourceIssues, State: github.StateOpen},
//	    Page:      1,
//	    PerPage:   100,
//	})
//	if out.Kind == github.OutcomePage {
//	    for _, raw := range out.Items {
//	        rec, err := github.ResourceIssues.DecodeItem(raw)
//	        ...
//	    }
//	}
package github
