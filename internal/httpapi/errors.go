package httpapi

import (
	"net/http"

	segerrors "github.com/segmenta-io/segmenta/internal/errors"
)

// errorBody is the JSON error envelope.
type errorBody struct {
	Error    string   `json:"error"`
	Code     string   `json:"code"`
	Warnings []string `json:"warnings,omitempty"`
}

// httpStatus maps a structured error code onto an HTTP status.
func httpStatus(code string) int {
	switch code {
	case segerrors.ErrCodeQueryEmpty,
		segerrors.ErrCodeInvalidQuery,
		segerrors.ErrCodeInvalidTopK:
		return http.StatusBadRequest
	case segerrors.ErrCodeNotFound,
		segerrors.ErrCodeSessionNotFound:
		return http.StatusNotFound
	case segerrors.ErrCodeInvalidSessionState:
		return http.StatusConflict
	case segerrors.ErrCodeSessionLimit:
		return http.StatusTooManyRequests
	case segerrors.ErrCodeSnapshotUnavailable,
		segerrors.ErrCodeUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case segerrors.ErrCodeUpstreamTimeout,
		segerrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
