package giterror

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
)

// Inspector identifies the category of an error returned while talking to GitHub.
// Implementations must treat a nil error as matching no category.
type Inspector interface {
	// IsAuthError returns true if the error represents an authentication or authorization failure.
	IsAuthError(err error) bool

	// IsNotFoundError returns true if the error represents a resource not found error.
	IsNotFoundError(err error) bool

	// IsRateLimitError returns true if the error represents a primary or secondary rate limit.
	IsRateLimitError(err error) bool

	// IsUnprocessableError returns true if GitHub rejected the request parameters.
	IsUnprocessableError(err error) bool

	// IsNetworkError returns true if the error represents a network connectivity error.
	IsNetworkError(err error) bool
}

// GitHubErrorInspector matches errors against the messages GitHub and the Go
// networking stack are known to produce.
type GitHubErrorInspector struct{}

// NewInspector returns the message-based inspector.
func NewInspector() Inspector {
	return &GitHubErrorInspector{}
}

func (i *GitHubErrorInspector) IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "401") ||
		strings.Contains(errStr, "unauthorized") ||
		strings.Contains(errStr, "bad credentials") ||
		strings.Contains(errStr, "requires authentication") ||
		strings.Contains(errStr, "resource not accessible by")
}

func (i *GitHubErrorInspector) IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "404") ||
		strings.Contains(errStr, "not found") ||
		strings.Contains(errStr, "could not resolve to a repository")
}

// IsRateLimitError also recognizes the secondary (abuse) limit, which GitHub
// reports as a 403 with a message instead of exhausted quota headers.
func (i *GitHubErrorInspector) IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "abuse detection")
}

func (i *GitHubErrorInspector) IsUnprocessableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "422") ||
		strings.Contains(errStr, "unprocessable") ||
		strings.Contains(errStr, "validation failed")
}

func (i *GitHubErrorInspector) IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	// Every http.Client failure is a *url.Error, which is itself a
	// net.Error; only its cause says whether the network was at fault.
	cause := err
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		cause = urlErr.Err
	}
	var netErr net.Error
	if errors.As(cause, &netErr) || errors.Is(cause, context.DeadlineExceeded) {
		return true
	}
	errStr := strings.ToLower(cause.Error())
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "temporary failure") ||
		strings.Contains(errStr, "dial tcp") ||
		strings.Contains(errStr, "tls handshake") ||
		strings.Contains(errStr, "unexpected eof") ||
		strings.Contains(errStr, "network is unreachable")
}

// ErrorChainInspector first asks typed errors in the chain about themselves
// and falls back to the base inspector.
type ErrorChainInspector struct {
	base Inspector
}

func NewErrorChainInspector(base Inspector) Inspector {
	return &ErrorChainInspector{base: base}
}

func (e *ErrorChainInspector) IsAuthError(err error) bool {
	var authErr interface{ IsAuthError() bool }
	if errors.As(err, &authErr) && authErr.IsAuthError() {
		return true
	}
	return e.base.IsAuthError(err)
}

func (e *ErrorChainInspector) IsNotFoundError(err error) bool {
	var notFoundErr interface{ IsNotFoundError() bool }
	if errors.As(err, &notFoundErr) && notFoundErr.IsNotFoundError() {
		return true
	}
	return e.base.IsNotFoundError(err)
}

func (e *ErrorChainInspector) IsRateLimitError(err error) bool {
	var rateLimitErr interface{ IsRateLimitError() bool }
	if errors.As(err, &rateLimitErr) && rateLimitErr.IsRateLimitError() {
		return true
	}
	return e.base.IsRateLimitError(err)
}

func (e *ErrorChainInspector) IsUnprocessableError(err error) bool {
	var unprocessableErr interface{ IsUnprocessableError() bool }
	if errors.As(err, &unprocessableErr) && unprocessableErr.IsUnprocessableError() {
		return true
	}
	return e.base.IsUnprocessableError(err)
}

func (e *ErrorChainInspector) IsNetworkError(err error) bool {
	var networkErr interface{ IsNetworkError() bool }
	if errors.As(err, &networkErr) && networkErr.IsNetworkError() {
		return true
	}
	return e.base.IsNetworkError(err)
}
