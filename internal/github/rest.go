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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	relaierrors "github.com/sirseerhq/sirseer-collect/internal/errors"
	"github.com/sirseerhq/sirseer-collect/internal/giterror"
	"github.com/sirseerhq/sirseer-collect/internal/ratelimit"
)

// apiVersion pins the REST API version sent with every request.
const apiVersion = "2022-11-28"

// RESTClient implements PageFetcher against GitHub's REST API.
type RESTClient struct {
	httpClient *http.Client
	baseURL    string
	inspector  giterror.Inspector
	now        func() time.Time
}

// RESTOption configures a RESTClient.
type RESTOption func(*RESTClient)

// WithHTTPClient replaces the default authenticated HTTP client.
func WithHTTPClient(c *http.Client) RESTOption {
	return func(r *RESTClient) {
		r.httpClient = c
	}
}

// WithNow overrides the time source used to resolve Retry-After.
func WithNow(now func() time.Time) RESTOption {
	return func(r *RESTClient) {
		r.now = now
	}
}

// NewRESTClient creates a client for the REST API rooted at endpoint,
// e.g. https://api.github.com or https://github.example.com/api/v3.
func NewRESTClient(token, endpoint string, opts ...RESTOption) *RESTClient {
	c := &RESTClient{
		httpClient: newHTTPClient(token, 60*time.Second),
		baseURL:    strings.TrimRight(endpoint, "/"),
		inspector:  giterror.NewErrorChainInspector(giterror.NewInspector()),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiError is a non-2xx response.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("github returned %d: %s", e.Status, msg)
}

// FetchPage requests one page and classifies the response.
func (c *RESTClient) FetchPage(ctx context.Context, req PageRequest) Outcome {
	if err := req.Validate(); err != nil {
		return Outcome{Kind: OutcomeFatal, Total: -1, Err: fmt.Errorf("invalid page request: %w", err)}
	}

	path, query := req.Partition.Resource.endpoint(req)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return Outcome{Kind: OutcomeFatal, Total: -1, Err: fmt.Errorf("build request: %w", err)}
	}
	httpReq.Header.Set("Accept", "application/vnd.github+json")
	httpReq.Header.Set("X-GitHub-Api-Version", apiVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return c.transportFailure(ctx, err)
	}
	defer resp.Body.Close()

	out := Outcome{
		Total:      -1,
		StatusCode: resp.StatusCode,
		RateLimit:  ratelimit.ParseHeaders(resp.Header),
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		out.Kind = OutcomeTransient
		out.Err = fmt.Errorf("read %s page %d: %v: %w", req.Partition, req.Page, err, relaierrors.ErrNetworkFailure)
		return out
	}

	return c.classify(req, body, out)
}

// classify maps a status code and body to an outcome kind.
func (c *RESTClient) classify(req PageRequest, body []byte, out Outcome) Outcome {
	status := out.StatusCode

	switch {
	case status == http.StatusNoContent:
		out.Kind = OutcomePage
		return out
	case status >= 200 && status < 300:
		return decodePage(req, body, out)
	}

	apiErr := &apiError{Status: status, Message: errorMessage(body)}

	switch {
	case status == http.StatusTooManyRequests,
		status == http.StatusForbidden && c.isRateLimited(out.RateLimit, apiErr):
		out.Kind = OutcomeRateLimited
		out.ResetAt = out.RateLimit.ResumeAt(c.now())
		out.Err = fmt.Errorf("%v: %w", apiErr, relaierrors.ErrRateLimit)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		out.Kind = OutcomeFatal
		out.Err = fmt.Errorf("GitHub API authentication failed (%v). Please provide a valid token via --token flag or GITHUB_TOKEN environment variable: %w", apiErr, relaierrors.ErrInvalidToken)
	case status == http.StatusNotFound:
		out.Kind = OutcomeFatal
		out.Err = fmt.Errorf("repository '%s/%s' or its %s endpoint not found: %w", req.Owner, req.Repo, req.Partition.Resource, relaierrors.ErrRepoNotFound)
	case status < http.StatusInternalServerError && c.inspector.IsUnprocessableError(apiErr):
		out.Kind = OutcomeUnprocessable
		out.Err = fmt.Errorf("%v: %w", apiErr, relaierrors.ErrUnprocessable)
	default:
		out.Kind = OutcomeTransient
		out.Err = fmt.Errorf("%v: %w", apiErr, relaierrors.ErrNetworkFailure)
	}
	return out
}

// isRateLimited distinguishes a rate-limit 403 from a permission 403.
func (c *RESTClient) isRateLimited(s ratelimit.State, apiErr error) bool {
	return s.Exhausted() || s.HasRetryAfter() || c.inspector.IsRateLimitError(apiErr)
}

func (c *RESTClient) transportFailure(ctx context.Context, err error) Outcome {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Outcome{Kind: OutcomeFatal, Total: -1, Err: ctxErr}
	}
	if c.inspector.IsNetworkError(err) {
		return Outcome{Kind: OutcomeTransient, Total: -1,
			Err: fmt.Errorf("network error connecting to GitHub API: %v: %w", err, relaierrors.ErrNetworkFailure)}
	}
	// A bad scheme or an untrusted certificate fails the same way every time.
	return Outcome{Kind: OutcomeFatal, Total: -1,
		Err: fmt.Errorf("request to GitHub API failed: %v: %w", err, relaierrors.ErrNetworkFailure)}
}

// decodePage splits a 2xx body into raw items. A body that does not parse
// is treated as a truncated transfer and retried.
func decodePage(req PageRequest, body []byte, out Outcome) Outcome {
	if len(strings.TrimSpace(string(body))) == 0 {
		out.Kind = OutcomePage
		return out
	}

	if req.Partition.Resource == ResourceSearch {
		var result apiSearchResult
		if err := json.Unmarshal(body, &result); err != nil {
			return malformed(out, err)
		}
		out.Kind = OutcomePage
		out.Items = result.Items
		out.Total = result.TotalCount
		return out
	}

	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return malformed(out, err)
	}
	out.Kind = OutcomePage
	out.Items = items
	return out
}

func malformed(out Outcome, err error) Outcome {
	out.Kind = OutcomeTransient
	out.Err = fmt.Errorf("malformed response body: %v: %w", err, relaierrors.ErrNetworkFailure)
	return out
}

func errorMessage(body []byte) string {
	var b apiErrorBody
	if err := json.Unmarshal(body, &b); err == nil && b.Message != "" {
		return b.Message
	}
	return strings.TrimSpace(string(body))
}

// IsAuthFailure reports whether an outcome must abort the whole run.
func IsAuthFailure(o Outcome) bool {
	return o.Kind == OutcomeFatal && errors.Is(o.Err, relaierrors.ErrInvalidToken)
}
