package httpclient

import (
	"fmt"
	"time"
)

// RetryableError reports a request the client gave up on after exhausting its
// retry allowance. It carries the last observed status and the number of
// attempts actually issued so callers can log a useful failure record;
// llm-call wrappers surface it via errors.As.
type RetryableError struct {
	StatusCode int           // last status observed, 0 when no response arrived
	URL        string        // request target
	Attempts   int           // requests issued before giving up
	RetryAfter time.Duration // server-suggested wait, when one was given
	Err        error
}

func (e *RetryableError) Error() string {
	msg := fmt.Sprintf("%s: retries exhausted after %d attempts", e.URL, e.Attempts)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: HTTP %d, retries exhausted after %d attempts", e.URL, e.StatusCode, e.Attempts)
	}
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (server asked to wait %v)", e.RetryAfter)
	}
	return msg
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}
