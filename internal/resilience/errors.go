// Package resilience provides the engine's error taxonomy plus retry and
// circuit-breaker support for external authority lookups.
package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ConfigurationError marks an invalid rule set or run configuration.
// Fatal: reported to the caller before any scoring begins.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// NewConfigurationError builds a ConfigurationError with a formatted reason.
func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// RuleEvaluationError records one rule predicate that panicked or failed.
// Isolated: excluded from scoring, the run continues.
type RuleEvaluationError struct {
	RuleID     string
	DocumentID string
	Cause      error
}

func (e *RuleEvaluationError) Error() string {
	return fmt.Sprintf("rule %s failed on document %s: %v", e.RuleID, e.DocumentID, e.Cause)
}

func (e *RuleEvaluationError) Unwrap() error { return e.Cause }

// ExternalAPIError marks a failed external authority lookup. Degrades
// record confidence, never fails the run.
type ExternalAPIError struct {
	Source     string
	StatusCode int
	Cause      error
}

func (e *ExternalAPIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("external source %s returned %d: %v", e.Source, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("external source %s failed: %v", e.Source, e.Cause)
}

func (e *ExternalAPIError) Unwrap() error { return e.Cause }

// RateLimitError is returned when a source's request queue is full and the
// call fails fast instead of blocking indefinitely.
type RateLimitError struct {
	Source string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit queue full for source %s", e.Source)
}

// CorpusBudgetExceededError signals that corpus analysis degraded to a
// deterministic sample. Logged as a warning, never surfaced as a failure.
type CorpusBudgetExceededError struct {
	Documents int
	Budget    int
}

func (e *CorpusBudgetExceededError) Error() string {
	return fmt.Sprintf("corpus size %d exceeds budget %d, sampling", e.Documents, e.Budget)
}

// FetchError marks a malformed document at the ingestion boundary. The
// document is skipped, the run continues.
type FetchError struct {
	Path  string
	Cause error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("malformed document %s: %v", e.Path, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// TransientError wraps an error that is safe to retry (429, 5xx, network
// timeout).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps an error as transient with an optional HTTP
// status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, or matches common transient network failure patterns.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true if the status code indicates a
// server-side issue that is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
