package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pierrevano/whatson-api-sub001/internal/globaltime"
)

// rateLimitHeaders in priority order. Retry-After wins over the reset
// variants when several are present.
var rateLimitHeaders = []string{
	"Retry-After",
	"RateLimit-Reset",
	"X-RateLimit-Reset",
}

const (
	// Values below this are treated as a delta in seconds rather than an
	// absolute epoch timestamp (~116 days).
	maxDeltaSeconds = int64(10_000_000)
	// Values at or above this are epoch milliseconds.
	minEpochMillis = int64(1_000_000_000_000)
)

// RateLimitWait computes a wait duration from standard rate-limit response
// headers. Supports a plain delta in seconds, an absolute epoch timestamp in
// seconds or milliseconds, and an HTTP date. Returns false when no usable
// header is present.
func RateLimitWait(header http.Header) (time.Duration, bool) {
	return rateLimitWaitAt(header, globaltime.UTC())
}

func rateLimitWaitAt(header http.Header, now time.Time) (time.Duration, bool) {
	for _, name := range rateLimitHeaders {
		raw := strings.TrimSpace(header.Get(name))
		if raw == "" {
			continue
		}
		if wait, ok := parseRateLimitValue(raw, now); ok {
			return wait, true
		}
	}
	return 0, false
}

func parseRateLimitValue(raw string, now time.Time) (time.Duration, bool) {
	if value, err := strconv.ParseInt(raw, 10, 64); err == nil {
		switch {
		case value < 0:
			return 0, false
		case value < maxDeltaSeconds:
			return time.Duration(value) * time.Second, true
		case value >= minEpochMillis:
			return clampWait(time.UnixMilli(value).Sub(now)), true
		default:
			return clampWait(time.Unix(value, 0).Sub(now)), true
		}
	}

	if at, err := http.ParseTime(raw); err == nil {
		return clampWait(at.Sub(now)), true
	}

	return 0, false
}

func clampWait(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
