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

// Package errors defines sentinel errors for consistent error handling across the application.
// These errors map to specific exit codes in the CLI for proper scripting support.
package errors

import "errors"

// Sentinel errors for consistent error handling and exit code mapping
var (
	// ErrInvalidToken indicates GitHub rejected the credentials (401, or 403
	// without rate-limit evidence). Aborts the whole run.
	// Maps to exit code 2.
	ErrInvalidToken = errors.New("invalid github token")

	// ErrRepoNotFound indicates the specified repository or endpoint does not exist or is not accessible.
	// Maps to exit code 2.
	ErrRepoNotFound = errors.New("repository not found")

	// ErrNetworkFailure indicates a network connection problem or a transient server error.
	// Maps to exit code 3.
	ErrNetworkFailure = errors.New("network connection failed")

	// ErrRateLimit indicates GitHub API rate limit has been exceeded.
	// Maps to exit code 2.
	ErrRateLimit = errors.New("github rate limit exceeded")

	// ErrUnprocessable indicates GitHub refused the request parameters (422).
	// The partition is abandoned; the run continues.
	ErrUnprocessable = errors.New("request unprocessable")

	// ErrRetryExhausted indicates a partition ran out of transient retries.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrPersistence indicates a record or checkpoint store could not be written.
	// Maps to exit code 4.
	ErrPersistence = errors.New("persistence failure")

	// ErrPartialCollection indicates the run finished but one or more
	// partitions were abandoned.
	// Maps to exit code 5.
	ErrPartialCollection = errors.New("collection incomplete")
)

// Exit codes returned by the CLI.
const (
	ExitSuccess     = 0
	ExitGeneral     = 1
	ExitAuth        = 2
	ExitNetwork     = 3
	ExitPersistence = 4
	ExitPartial     = 5
)

// ExitCode maps an error to the process exit code documented for the CLI.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, ErrPersistence):
		return ExitPersistence
	case errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrRepoNotFound),
		errors.Is(err, ErrRateLimit):
		return ExitAuth
	case errors.Is(err, ErrNetworkFailure):
		return ExitNetwork
	case errors.Is(err, ErrPartialCollection):
		return ExitPartial
	default:
		return ExitGeneral
	}
}
