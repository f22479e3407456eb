package api

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryPolicy bounds how the client repeats requests that failed for
// transient reasons.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultRetryPolicy = RetryPolicy{
	MaxRetries: 3,
	BaseDelay:  500 * time.Millisecond,
	MaxDelay:   10 * time.Second,
}

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// backoff is the delay before retry number attempt+1: BaseDelay doubled per
// attempt, capped at MaxDelay.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 0; i < attempt && delay < p.MaxDelay; i++ {
		delay *= 2
	}
	return min(delay, p.MaxDelay)
}

// wait picks the delay after a retryable response. A Retry-After header,
// in seconds or as an HTTP date, wins over the computed backoff but never
// exceeds MaxDelay.
func (p RetryPolicy) wait(resp *http.Response, attempt int, now time.Time) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return min(time.Duration(secs)*time.Second, p.MaxDelay)
		}
		if at, err := http.ParseTime(v); err == nil {
			return min(max(at.Sub(now), 0), p.MaxDelay)
		}
	}
	return p.backoff(attempt)
}

// transient reports whether a transport error is worth another attempt.
// Cancellation by the caller never is.
func transient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// send issues req until it gets an answer worth returning. Once retries
// are spent, the last response is returned as is, body included, so the
// caller can read the server's error payload.
func (c *Client) send(ctx context.Context, req *http.Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := c.httpClient.Do(req.Clone(ctx))
		last := attempt >= c.retry.MaxRetries

		var delay time.Duration
		switch {
		case err != nil:
			if last || !transient(err) {
				return nil, err
			}
			delay = c.retry.backoff(attempt)
		case isRetryableStatus(resp.StatusCode) && !last:
			delay = c.retry.wait(resp, attempt, time.Now())
			io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
			resp.Body.Close()
		default:
			return resp, nil
		}

		fields := logrus.Fields{"url": req.URL.String(), "attempt": attempt + 1, "delay": delay}
		if err != nil {
			c.log.WithError(err).WithFields(fields).Debug("retrying request")
		} else {
			c.log.WithField("status", resp.StatusCode).WithFields(fields).Debug("retrying request")
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}
