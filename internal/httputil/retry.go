// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the OpenAlex client.
package httputil

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

// RetryBaseDelay controls the base duration for exponential backoff.
// Tests override this to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

// MaxRetryAfter caps a server-supplied Retry-After so a misbehaving
// upstream cannot stall a run indefinitely.
var MaxRetryAfter = 2 * time.Minute

const defaultMaxRetries = 5

// Retryable reports whether a status code signals a transient condition:
// rate limiting or an unavailable gateway.
func Retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// DoWithRetry executes an HTTP request and retries transient responses
// (see Retryable) with exponential backoff starting at RetryBaseDelay and
// doubling each attempt. A Retry-After header given in seconds replaces the
// computed delay, capped at MaxRetryAfter.
//
// When timeout is positive it bounds each attempt separately, including the
// read of the returned body; backoff waits are bounded only by ctx. When
// maxRetries is 0 the default (5) is used. Transport errors are not retried.
// If ctx is cancelled during a backoff wait the function returns ctx.Err().
// After exhausting retries the last response is returned so the caller can
// inspect it.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int, timeout time.Duration) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		actx, cancel := ctx, context.CancelFunc(func() {})
		if timeout > 0 {
			actx, cancel = context.WithTimeout(ctx, timeout)
		}

		resp, err := client.Do(req.Clone(actx))
		if err != nil {
			cancel()
			return nil, err
		}

		if !Retryable(resp.StatusCode) || attempt >= maxRetries {
			resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		cancel()

		backoff := backoffFor(attempt, resp.Header.Get("Retry-After"))
		log.WithField("url", req.URL.Redacted()).
			WithField("status", resp.StatusCode).
			WithField("attempt", attempt+1).
			Debugf("Transient response, retrying in %v", backoff)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// cancelOnClose releases the attempt context once the body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func backoffFor(attempt int, retryAfter string) time.Duration {
	if secs, err := strconv.Atoi(retryAfter); err == nil && secs >= 0 {
		d := time.Duration(secs) * time.Second
		if d > MaxRetryAfter {
			d = MaxRetryAfter
		}
		return d
	}
	return RetryBaseDelay << uint(attempt)
}
