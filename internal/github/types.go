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
	"strconv"
	"time"
)

// Record is one collected item. Key is its identity within a record store
// and never changes once assigned.
type Record interface {
	Key() string
}

// Issue is the stored form of an issue. Search results are stored as issues
// too, with IsPullRequest set when the hit is a pull request.
type Issue struct {
	Number        int        `json:"number"`
	Title         string     `json:"title"`
	State         string     `json:"state"`
	Author        string     `json:"author"`
	Labels        []string   `json:"labels"`
	Comments      int        `json:"comments"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
	IsPullRequest bool       `json:"is_pull_request,omitempty"`
}

// Key returns the issue number.
func (i Issue) Key() string { return strconv.Itoa(i.Number) }

// PullRequest is the stored form of a pull request.
type PullRequest struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	State     string     `json:"state"`
	Author    string     `json:"author"`
	Labels    []string   `json:"labels"`
	Draft     bool       `json:"draft"`
	BaseRef   string     `json:"base_ref,omitempty"`
	HeadRef   string     `json:"head_ref,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	MergedAt  *time.Time `json:"merged_at,omitempty"`
}

// Key returns the pull request number.
func (p PullRequest) Key() string { return strconv.Itoa(p.Number) }

// Merged reports whether the pull request was merged.
func (p PullRequest) Merged() bool { return p.MergedAt != nil }

// AnonymousType is the contributor type GitHub reports for commit authors
// without a linked account.
const AnonymousType = "Anonymous"

// Contributor is the stored form of a repository contributor.
type Contributor struct {
	Login         string `json:"login"`
	Contributions int    `json:"contributions"`
	Type          string `json:"type"`
	AvatarURL     string `json:"avatar_url,omitempty"`
	// Email and Name are only reported for anonymous contributors.
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Key returns the login, or "anonymous:<email>" for anonymous contributors,
// which have no login.
func (c Contributor) Key() string {
	if c.Type == AnonymousType {
		return "anonymous:" + c.Email
	}
	return c.Login
}

// Anonymous reports whether the contributor has no GitHub account.
func (c Contributor) Anonymous() bool { return c.Type == AnonymousType }

// RepositoryInfo holds per-state totals used for progress and ETA output.
type RepositoryInfo struct {
	OpenIssues         int
	ClosedIssues       int
	OpenPullRequests   int
	ClosedPullRequests int
}

// Expected returns the number of items a partition should yield, or -1 when
// the total is unknown. GraphQL issue counts exclude pull requests, matching
// what the issues partitions keep after filtering.
func (i *RepositoryInfo) Expected(p Partition) int {
	if i == nil {
		return -1
	}
	switch {
	case p.Resource == ResourceIssues && p.State == StateOpen:
		return i.OpenIssues
	case p.Resource == ResourceIssues && p.State == StateClosed:
		return i.ClosedIssues
	case p.Resource == ResourcePulls && p.State == StateOpen:
		return i.OpenPullRequests
	case p.Resource == ResourcePulls && p.State == StateClosed:
		return i.ClosedPullRequests
	default:
		return -1
	}
}
