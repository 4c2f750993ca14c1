package provider

import (
	"context"
	stderrors "errors"
	"net"
	"strings"

	"github.com/sweetpotato0/raggate/errors"
)

// ClassifyStatus maps an HTTP status from a provider API onto the gateway
// error taxonomy. The message disambiguates 400s and quota-flavored 403s.
func ClassifyStatus(name string, status int, message string, err error) error {
	lower := strings.ToLower(message)
	var code errors.Code
	switch {
	case status == 401:
		code = errors.CodeAuthentication
	case status == 403:
		code = errors.CodeInsufficientQuota
	case status == 404:
		code = errors.CodeInvalidModel
	case status == 429:
		if strings.Contains(lower, "quota") || strings.Contains(lower, "billing") {
			code = errors.CodeInsufficientQuota
		} else {
			code = errors.CodeRateLimit
		}
	case status == 400:
		if strings.Contains(lower, "context length") || strings.Contains(lower, "maximum context") ||
			strings.Contains(lower, "too many tokens") || strings.Contains(lower, "token limit") {
			code = errors.CodeContextTooLarge
		} else if strings.Contains(lower, "model") {
			code = errors.CodeInvalidModel
		} else {
			code = errors.CodeInvalidRequest
		}
	case status == 408:
		code = errors.CodeTimeout
	case status >= 500:
		code = errors.CodeAPIError
	default:
		code = errors.CodeAPIError
	}
	return errors.Wrap(code, name+" API request failed", err).
		WithDetail("provider", name).
		WithDetail("status", status)
}

// ClassifyError maps a provider failure without a usable status code. Context
// and network timeouts become TIMEOUT; the rest are classified by message.
func ClassifyError(name string, err error) error {
	if err == nil {
		return nil
	}
	var typed *errors.Error
	if stderrors.As(err, &typed) {
		return typed
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(errors.CodeTimeout, name+" request timed out", err).WithDetail("provider", name)
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.Wrap(errors.CodeTimeout, name+" request timed out", err).WithDetail("provider", name)
	}

	lower := strings.ToLower(err.Error())
	var code errors.Code
	switch {
	case strings.Contains(lower, "api key") || strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "authentication") || strings.Contains(lower, "401"):
		code = errors.CodeAuthentication
	case strings.Contains(lower, "quota") || strings.Contains(lower, "billing"):
		code = errors.CodeInsufficientQuota
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "429"):
		code = errors.CodeRateLimit
	case strings.Contains(lower, "context length") || strings.Contains(lower, "maximum context") ||
		strings.Contains(lower, "too many tokens"):
		code = errors.CodeContextTooLarge
	case strings.Contains(lower, "model not found") || strings.Contains(lower, "does not exist") ||
		strings.Contains(lower, "unknown model"):
		code = errors.CodeInvalidModel
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline"):
		code = errors.CodeTimeout
	default:
		code = errors.CodeAPIError
	}
	return errors.Wrap(code, name+" API request failed", err).WithDetail("provider", name)
}
