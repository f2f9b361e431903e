package social

import (
	"errors"
	"fmt"
	"time"
)

// QuotaExceededError indicates a call was blocked, either locally before
// spending a request against an exhausted window or by a platform 429. It
// carries how long to wait before the endpoint is usable again.
type QuotaExceededError struct {
	Endpoint   string
	RetryAfter time.Duration
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s endpoint, retry in %s", e.Endpoint, e.RetryAfter.Round(time.Second))
}

// IsQuotaExceeded reports whether err is a quota exhaustion failure and
// returns the typed error when it is.
func IsQuotaExceeded(err error) (*QuotaExceededError, bool) {
	var qe *QuotaExceededError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}
