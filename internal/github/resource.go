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
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// MaxPerPage is the largest page size GitHub's REST API honors.
const MaxPerPage = 100

// searchResultWindow is the number of hits the search API will page through.
const searchResultWindow = 1000

// Partition states.
const (
	StateOpen   = "open"
	StateClosed = "closed"
	StateAll    = "all"
)

// Resource is a paginated resource type. Each resource has its own record
// store and identity key.
type Resource string

// Supported resources.
const (
	ResourceIssues       Resource = "issues"
	ResourcePulls        Resource = "pulls"
	ResourceContributors Resource = "contributors"
	ResourceSearch       Resource = "search"
)

// ParseResource validates a resource name.
func ParseResource(name string) (Resource, error) {
	switch r := Resource(name); r {
	case ResourceIssues, ResourcePulls, ResourceContributors, ResourceSearch:
		return r, nil
	default:
		return "", fmt.Errorf("unknown resource %q", name)
	}
}

// States returns the partition states of the resource in collection order.
// Contributors have no state filter and use a single "all" partition.
func (r Resource) States() []string {
	if r == ResourceContributors {
		return []string{StateAll}
	}
	return []string{StateOpen, StateClosed}
}

// Partitions returns the partitions of the resource in collection order.
func (r Resource) Partitions() []Partition {
	states := r.States()
	parts := make([]Partition, len(states))
	for i, s := range states {
		parts[i] = Partition{Resource: r, State: s}
	}
	return parts
}

// CountAware reports whether responses carry a total item count.
func (r Resource) CountAware() bool {
	return r == ResourceSearch
}

// PageLimit returns the last page index the API will serve for perPage, or
// 0 when the resource has no such limit. A window that perPage does not
// divide evenly ends on a partial page, which still counts.
func (r Resource) PageLimit(perPage int) int {
	if r != ResourceSearch || perPage <= 0 {
		return 0
	}
	return (searchResultWindow + perPage - 1) / perPage
}

// endpoint returns the request path and query parameters for one page.
func (r Resource) endpoint(req PageRequest) (string, url.Values) {
	owner, repo := url.PathEscape(req.Owner), url.PathEscape(req.Repo)
	q := url.Values{}
	q.Set("page", strconv.Itoa(req.Page))
	q.Set("per_page", strconv.Itoa(req.PerPage))

	switch r {
	case ResourceContributors:
		q.Set("anon", "true")
		return fmt.Sprintf("/repos/%s/%s/contributors", owner, repo), q
	case ResourceSearch:
		q.Set("q", buildSearchQuery(req.Owner, req.Repo, req.Partition.State, req.Query))
		q.Set("sort", "created")
		q.Set("order", "asc")
		return "/search/issues", q
	default:
		q.Set("state", req.Partition.State)
		q.Set("sort", "created")
		q.Set("direction", "asc")
		return fmt.Sprintf("/repos/%s/%s/%s", owner, repo, r), q
	}
}

// DecodeItem decodes and validates one element of an API page. It returns
// ErrSkipItem for elements that belong to another resource and an error
// wrapping ErrInvalidItem for elements that fail validation.
func (r Resource) DecodeItem(raw json.RawMessage) (Record, error) {
	switch r {
	case ResourceIssues:
		return decodeIssue(raw, false)
	case ResourceSearch:
		return decodeIssue(raw, true)
	case ResourcePulls:
		return decodePull(raw)
	case ResourceContributors:
		return decodeContributor(raw)
	default:
		return nil, fmt.Errorf("unknown resource %q", r)
	}
}

// DecodeStored decodes one record previously written by the record store.
func (r Resource) DecodeStored(raw json.RawMessage) (Record, error) {
	var (
		rec Record
		err error
	)
	switch r {
	case ResourceIssues, ResourceSearch:
		var v Issue
		err = json.Unmarshal(raw, &v)
		rec = v
	case ResourcePulls:
		var v PullRequest
		err = json.Unmarshal(raw, &v)
		rec = v
	case ResourceContributors:
		var v Contributor
		err = json.Unmarshal(raw, &v)
		rec = v
	default:
		return nil, fmt.Errorf("unknown resource %q", r)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}
	if rec.Key() == "" || rec.Key() == "0" || rec.Key() == "anonymous:" {
		return nil, fmt.Errorf("%w: stored %s record without identity", ErrInvalidItem, r)
	}
	return rec, nil
}

// Partition is one (resource, state) pair, checkpointed independently.
type Partition struct {
	Resource Resource
	State    string
}

// Key returns the checkpoint key, e.g. "issues/open".
func (p Partition) Key() string {
	return string(p.Resource) + "/" + p.State
}

func (p Partition) String() string { return p.Key() }
