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

// Package testutil provides a fake GitHub API and file helpers for tests
// that drive the collector end to end.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirseerhq/sirseer-collect/internal/github"
)

// Request is one page request received by the fake API.
type Request struct {
	Partition string
	Page      int
	PerPage   int
	Query     string
	Auth      string
}

type failure struct {
	// page restricts the failure to one page index; 0 matches any page.
	page       int
	status     int
	retryAfter time.Duration
	message    string
}

// GitHubServer behaves like the GitHub REST API for one repository: it
// serves scripted pages per partition with rate-limit headers, and answers
// the GraphQL totals query. Scripted failures are consumed one per request.
type GitHubServer struct {
	*httptest.Server

	owner, repo string

	mu        sync.Mutex
	token     string
	pages     map[string][][]json.RawMessage
	totals    map[string]int
	failures  map[string][]failure
	counts    map[string]int
	remaining int
	requests  []Request
}

// NewGitHubServer starts a fake API for owner/repo. It is closed when the
// test ends.
func NewGitHubServer(t *testing.T, owner, repo string) *GitHubServer {
	t.Helper()

	s := &GitHubServer{
		owner:     owner,
		repo:      repo,
		pages:     make(map[string][][]json.RawMessage),
		totals:    make(map[string]int),
		failures:  make(map[string][]failure),
		counts:    make(map[string]int),
		remaining: 5000,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// GraphQLURL returns the GraphQL endpoint of the server.
func (s *GitHubServer) GraphQLURL() string {
	return s.URL + "/graphql"
}

// RequireToken makes the server reject requests without this bearer token.
func (s *GitHubServer) RequireToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// SetPages sets the pages served for p. Pages past the end are empty.
func (s *GitHubServer) SetPages(p github.Partition, pages ...[]json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[p.Key()] = pages
}

// SetTotal sets the search total_count reported for p. By default it is
// the number of items across all pages.
func (s *GitHubServer) SetTotal(p github.Partition, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totals[p.Key()] = total
}

// FailNext queues error responses with the given status codes for p.
func (s *GitHubServer) FailNext(p github.Partition, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, status := range statuses {
		s.failures[p.Key()] = append(s.failures[p.Key()], failure{status: status, message: http.StatusText(status)})
	}
}

// RateLimitNext queues a secondary rate limit response for p that asks
// the client to retry after wait.
func (s *GitHubServer) RateLimitNext(p github.Partition, wait time.Duration) {
	s.RateLimitAt(p, 0, wait)
}

// RateLimitAt queues a secondary rate limit response for the next request
// of page in p. A page of 0 matches any page.
func (s *GitHubServer) RateLimitAt(p github.Partition, page int, wait time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[p.Key()] = append(s.failures[p.Key()], failure{
		page:       page,
		status:     http.StatusForbidden,
		retryAfter: wait,
		message:    "You have exceeded a secondary rate limit. Please wait a few minutes before you try again.",
	})
}

// Requests returns every page request received, in order.
func (s *GitHubServer) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// RequestsFor returns the pages requested for p, in order.
func (s *GitHubServer) RequestsFor(p github.Partition) []int {
	var pages []int
	for _, r := range s.Requests() {
		if r.Partition == p.Key() {
			pages = append(pages, r.Page)
		}
	}
	return pages
}

func (s *GitHubServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Method == http.MethodPost && r.URL.Path == "/graphql" {
		if !s.authorized(r) {
			writeUnauthorized(w)
			return
		}
		s.handleGraphQL(w)
		return
	}

	key, ok := s.partitionKey(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	s.requests = append(s.requests, Request{
		Partition: key,
		Page:      page,
		PerPage:   perPage,
		Query:     q.Get("q"),
		Auth:      r.Header.Get("Authorization"),
	})

	// Rejected requests are still recorded so callers can count them.
	if !s.authorized(r) {
		writeUnauthorized(w)
		return
	}

	s.remaining--
	w.Header().Set("X-RateLimit-Limit", "5000")
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(s.remaining, 0)))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))
	w.Header().Set("X-RateLimit-Resource", "core")

	if f, ok := s.takeFailure(key, page); ok {
		if f.retryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(f.retryAfter/time.Second)))
		}
		writeJSON(w, f.status, map[string]string{"message": f.message})
		return
	}

	var items []json.RawMessage
	pages := s.pages[key]
	if page >= 1 && page <= len(pages) {
		items = pages[page-1]
	}
	if items == nil {
		items = []json.RawMessage{}
	}

	if strings.HasPrefix(key, string(github.ResourceSearch)+"/") {
		total, ok := s.totals[key]
		if !ok {
			for _, p := range pages {
				total += len(p)
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"total_count":        total,
			"incomplete_results": false,
			"items":              items,
		})
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *GitHubServer) authorized(r *http.Request) bool {
	return s.token == "" || r.Header.Get("Authorization") == "Bearer "+s.token
}

func writeUnauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{
		"message":           "Bad credentials",
		"documentation_url": "https://docs.github.com/rest",
	})
}

// takeFailure removes and returns the first queued failure matching page.
func (s *GitHubServer) takeFailure(key string, page int) (failure, bool) {
	queued := s.failures[key]
	for i, f := range queued {
		if f.page == 0 || f.page == page {
			s.failures[key] = append(queued[:i:i], queued[i+1:]...)
			return f, true
		}
	}
	return failure{}, false
}

// partitionKey maps a REST request to the partition it lists.
func (s *GitHubServer) partitionKey(r *http.Request) (string, bool) {
	if r.Method != http.MethodGet {
		return "", false
	}

	if r.URL.Path == "/search/issues" {
		query := r.URL.Query().Get("q")
		if !strings.Contains(query, fmt.Sprintf("repo:%s/%s", s.owner, s.repo)) {
			return "", false
		}
		for _, state := range []string{github.StateOpen, github.StateClosed} {
			if strings.Contains(query, "state:"+state) {
				return github.Partition{Resource: github.ResourceSearch, State: state}.Key(), true
			}
		}
		return "", false
	}

	prefix := fmt.Sprintf("/repos/%s/%s/", s.owner, s.repo)
	name, found := strings.CutPrefix(r.URL.Path, prefix)
	if !found {
		return "", false
	}
	resource, err := github.ParseResource(name)
	if err != nil || resource == github.ResourceSearch {
		return "", false
	}
	state := github.StateAll
	if resource != github.ResourceContributors {
		state = r.URL.Query().Get("state")
	}
	return github.Partition{Resource: resource, State: state}.Key(), true
}

// handleGraphQL answers the repository totals query from the scripted pages.
func (s *GitHubServer) handleGraphQL(w http.ResponseWriter) {
	count := func(r github.Resource, state string) int {
		n := 0
		for _, page := range s.pages[github.Partition{Resource: r, State: state}.Key()] {
			n += len(page)
		}
		return n
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"repository": map[string]any{
				"openIssues":         map[string]int{"totalCount": count(github.ResourceIssues, github.StateOpen)},
				"closedIssues":       map[string]int{"totalCount": count(github.ResourceIssues, github.StateClosed)},
				"openPullRequests":   map[string]int{"totalCount": count(github.ResourcePulls, github.StateOpen)},
				"closedPullRequests": map[string]int{"totalCount": count(github.ResourcePulls, github.StateClosed)},
			},
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
