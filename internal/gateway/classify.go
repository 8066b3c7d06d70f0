package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

var (
	quotaMarkers     = []string{"429", "resource_exhausted", "quota"}
	transientMarkers = []string{"timeout", "500", "502", "503", "504"}
)

// isQuotaError reports failures that must trip the breaker and never be retried
func isQuotaError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || strings.EqualFold(apiErr.Status, "RESOURCE_EXHAUSTED") {
			return true
		}
	}
	return containsAny(strings.ToLower(err.Error()), quotaMarkers)
}

// isTransientError reports failures worth one retry
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
	}
	return containsAny(strings.ToLower(err.Error()), transientMarkers)
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
