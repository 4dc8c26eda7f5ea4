package ocrclient

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/jus-team/legal-ocr-service/pkg/log"
)

// doWithRetry executes a provider request up to c.maxRetries times.
// Each attempt rebuilds the request through build, since bodies are
// single-use. Rate limits honor the Retry-After header when present,
// otherwise exponential backoff starting at c.retryDelay, doubling.
// Non-retryable errors return immediately.
func (c *Client) doWithRetry(ctx context.Context, build func() (*http.Request, error)) ([]byte, error) {
	var lastErr *APIError

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		req, err := build()
		if err != nil {
			return nil, newValidationError(err.Error())
		}

		body, apiErr := c.doOnce(req)
		if apiErr == nil {
			return body, nil
		}
		lastErr = apiErr

		if !apiErr.Retryable() || attempt == c.maxRetries-1 {
			break
		}

		wait := c.retryDelay << attempt
		if apiErr.Kind == KindRateLimit && apiErr.RetryAfter > 0 {
			wait = apiErr.RetryAfter
		}
		log.Warn("Provider call failed (%s), retrying in %s: %s", apiErr.Kind, wait, apiErr.Message)

		select {
		case <-ctx.Done():
			return nil, newTransportError(ctx.Err())
		case <-time.After(wait):
		}
	}

	return nil, lastErr
}

// doOnce performs a single request and classifies the outcome.
func (c *Client) doOnce(req *http.Request) ([]byte, *APIError) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, newTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newTransportError(err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	apiErr := classifyResponse(resp.StatusCode, body)
	if apiErr.Kind == KindRateLimit {
		apiErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	}
	return nil, apiErr
}

func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	return 0
}
