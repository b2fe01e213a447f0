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

// Package main implements the sirseer-collect command-line interface.
// It collects issues, pull requests, contributors and search results of a
// GitHub repository through the REST API, merges them into local record
// files and checkpoints every partition so an interrupted run resumes
// where it stopped.
//
// Usage:
//
//	sirseer-collect collect <owner>/<repo> [flags]
//	sirseer-collect status <owner>/<repo>
//	sirseer-collect reset <owner>/<repo> [--partition issues/open]
//	sirseer-collect token set|delete
//
// Example:
//
//	export GITHUB_TOKEN=your_token
//	sirseer-collect collect golang/go --resources issues,pulls
//
// Exit codes:
//   - 0: Success
//   - 1: General error
//   - 2: Authentication, authorization or rate limit error
//   - 3: Network error
//   - 4: Persistence error
//   - 5: Partial collection (one or more partitions abandoned)
package main
