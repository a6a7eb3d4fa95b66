package sources

import (
	"net/http"

	"github.com/scigraph/engine/internal/apperrors"
)

// ClassifyHTTPStatus turns an HTTP status code into the apperrors taxonomy
// so the retry engine can decide retryability without re-deriving HTTP
// semantics: 404 is a distinct not-found outcome (never "empty list"),
// 429 and 5xx are retryable, any other 4xx is not.
func ClassifyHTTPStatus(status int, body string) error {
	switch {
	case status == http.StatusNotFound:
		return apperrors.New(apperrors.NotFound, "resource not found")
	case status == http.StatusTooManyRequests:
		return apperrors.New(apperrors.RateLimit, "rate limited: "+body)
	case status >= 500:
		return apperrors.New(apperrors.Transient, "server error: "+body)
	case status >= 400:
		return apperrors.New(apperrors.Validation, "request rejected: "+body)
	default:
		return nil
	}
}
