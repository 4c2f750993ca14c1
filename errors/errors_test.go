package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestErrorWrappingAndCode(t *testing.T) {
	cause := stderrors.New("socket closed")
	err := Wrap(CodeEmbedding, "embed batch failed", cause)

	if !stderrors.Is(err, cause) {
		t.Error("Expected wrapped cause to be found with errors.Is")
	}
	if CodeOf(err) != CodeEmbedding {
		t.Errorf("Expected code %s, got %s", CodeEmbedding, CodeOf(err))
	}

	// A code survives another layer of fmt wrapping.
	outer := fmt.Errorf("query: %w", err)
	if CodeOf(outer) != CodeEmbedding {
		t.Errorf("Expected code %s through fmt wrap, got %s", CodeEmbedding, CodeOf(outer))
	}
}

func TestCodeOfUntyped(t *testing.T) {
	if got := CodeOf(stderrors.New("plain")); got != CodeUnknown {
		t.Errorf("Expected %s for untyped error, got %s", CodeUnknown, got)
	}
}

func TestAsErrorWrapsUntyped(t *testing.T) {
	e := AsError(stderrors.New("boom"))
	if e.Code != CodeInternal {
		t.Errorf("Expected %s, got %s", CodeInternal, e.Code)
	}
}

func TestRetryable(t *testing.T) {
	nonRetryable := []Code{CodeInvalidRequest, CodeAuthentication, CodeInvalidModel, CodeContextTooLarge, CodeValidation, CodeInsufficientQuota}
	for _, code := range nonRetryable {
		if Retryable(code) {
			t.Errorf("Expected %s to be non-retryable", code)
		}
	}
	retryable := []Code{CodeRateLimit, CodeTimeout, CodeAPIError, CodeUnknown}
	for _, code := range retryable {
		if !Retryable(code) {
			t.Errorf("Expected %s to be retryable", code)
		}
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		code Code
		want int
	}{
		{CodeValidation, 400},
		{CodeAuthentication, 401},
		{CodeInsufficientQuota, 403},
		{CodeTimeout, 408},
		{CodePayloadTooLarge, 413},
		{CodeUnsupportedFileType, 415},
		{CodeRateLimitExceeded, 429},
		{CodeAPIError, 502},
		{CodeInternal, 500},
		{CodeVectorStore, 500},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.code); got != tc.want {
			t.Errorf("Expected status %d for %s, got %d", tc.want, tc.code, got)
		}
	}
}

func TestWithDetail(t *testing.T) {
	err := New(CodeUnsupportedFileType, "unsupported extension").WithDetail("extension", ".xyz")
	if err.Details["extension"] != ".xyz" {
		t.Errorf("Expected detail to be set, got %#v", err.Details)
	}
}
