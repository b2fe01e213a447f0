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
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSkipItem marks an element that belongs to another resource, such as
	// a pull request returned by the issues endpoint.
	ErrSkipItem = errors.New("item belongs to another resource")

	// ErrInvalidItem marks an element that failed schema validation.
	ErrInvalidItem = errors.New("invalid item")
)

// ghostLogin stands in for deleted accounts, as on github.com.
const ghostLogin = "ghost"

type apiUser struct {
	Login string `json:"login"`
	Type  string `json:"type"`
}

type apiLabel struct {
	Name string `json:"name"`
}

type apiIssue struct {
	Number      int             `json:"number"`
	Title       string          `json:"title"`
	State       string          `json:"state"`
	User        *apiUser        `json:"user"`
	Labels      []apiLabel      `json:"labels"`
	Comments    int             `json:"comments"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	ClosedAt    *time.Time      `json:"closed_at"`
	PullRequest json.RawMessage `json:"pull_request"`
}

type apiRef struct {
	Ref string `json:"ref"`
}

type apiPull struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	State     string     `json:"state"`
	User      *apiUser   `json:"user"`
	Labels    []apiLabel `json:"labels"`
	Draft     bool       `json:"draft"`
	Base      apiRef     `json:"base"`
	Head      apiRef     `json:"head"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at"`
	MergedAt  *time.Time `json:"merged_at"`
}

type apiContributor struct {
	Login         string `json:"login"`
	Contributions int    `json:"contributions"`
	Type          string `json:"type"`
	AvatarURL     string `json:"avatar_url"`
	Email         string `json:"email"`
	Name          string `json:"name"`
}

type apiSearchResult struct {
	TotalCount        int               `json:"total_count"`
	IncompleteResults bool              `json:"incomplete_results"`
	Items             []json.RawMessage `json:"items"`
}

type apiErrorBody struct {
	Message          string `json:"message"`
	DocumentationURL string `json:"documentation_url"`
}

func decodeIssue(raw json.RawMessage, fromSearch bool) (Record, error) {
	var v apiIssue
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}
	isPull := len(v.PullRequest) > 0 && string(v.PullRequest) != "null"
	if isPull && !fromSearch {
		return nil, ErrSkipItem
	}
	if err := validateNumbered(v.Number, v.State); err != nil {
		return nil, err
	}

	return Issue{
		Number:        v.Number,
		Title:         v.Title,
		State:         v.State,
		Author:        login(v.User),
		Labels:        labelNames(v.Labels),
		Comments:      v.Comments,
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
		ClosedAt:      v.ClosedAt,
		IsPullRequest: isPull,
	}, nil
}

func decodePull(raw json.RawMessage) (Record, error) {
	var v apiPull
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}
	if err := validateNumbered(v.Number, v.State); err != nil {
		return nil, err
	}

	return PullRequest{
		Number:    v.Number,
		Title:     v.Title,
		State:     v.State,
		Author:    login(v.User),
		Labels:    labelNames(v.Labels),
		Draft:     v.Draft,
		BaseRef:   v.Base.Ref,
		HeadRef:   v.Head.Ref,
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.UpdatedAt,
		ClosedAt:  v.ClosedAt,
		MergedAt:  v.MergedAt,
	}, nil
}

func decodeContributor(raw json.RawMessage) (Record, error) {
	var v apiContributor
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}
	if v.Contributions < 0 {
		return nil, fmt.Errorf("%w: negative contributions for %q", ErrInvalidItem, v.Login)
	}

	c := Contributor{
		Login:         v.Login,
		Contributions: v.Contributions,
		Type:          v.Type,
		AvatarURL:     v.AvatarURL,
	}
	if v.Type == AnonymousType {
		if v.Email == "" {
			return nil, fmt.Errorf("%w: anonymous contributor without email", ErrInvalidItem)
		}
		c.Email = v.Email
		c.Name = v.Name
		return c, nil
	}
	if v.Login == "" {
		return nil, fmt.Errorf("%w: contributor without login", ErrInvalidItem)
	}
	return c, nil
}

func validateNumbered(number int, state string) error {
	if number <= 0 {
		return fmt.Errorf("%w: number must be positive, got %d", ErrInvalidItem, number)
	}
	switch state {
	case StateOpen, StateClosed:
		return nil
	default:
		return fmt.Errorf("%w: #%d has unknown state %q", ErrInvalidItem, number, state)
	}
}

func login(u *apiUser) string {
	if u == nil || u.Login == "" {
		return ghostLogin
	}
	return u.Login
}

func labelNames(labels []apiLabel) []string {
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		names = append(names, l.Name)
	}
	return names
}
