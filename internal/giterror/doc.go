// Package giterror provides error inspection capabilities for GitHub REST API
// failures. It centralizes the logic for identifying rate-limit, authorization,
// validation and transport errors so the fetcher can classify an outcome
// without string checks scattered through the codebase.
package giterror
