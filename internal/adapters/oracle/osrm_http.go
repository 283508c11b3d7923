package oracle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	var r osrmResponse
	if err := json.Unmarshal([]byte(e.Body), &r); err == nil && r.Code != "" {
		return fmt.Sprintf("status %d: %s: %s", e.Code, r.Code, r.Message)
	}
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

// Common envelope of every OSRM response.
type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (o *OSRMClient) newRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (o *OSRMClient) do(op string, req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := o.session.Do(req)
	if err != nil {
		o.metrics.OracleRequest(op, 0, time.Since(start).Seconds())
		return nil, err
	}
	o.metrics.OracleRequest(op, resp.StatusCode, time.Since(start).Seconds())

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &httpStatusError{
			Code: resp.StatusCode,
			Body: strings.TrimSpace(string(b)),
		}
	}
	return resp, nil
}

// doWithRetry retries transient failures (network errors, 429 and 5xx
// responses) with exponential backoff while respecting context cancellation.
func (o *OSRMClient) doWithRetry(ctx context.Context, op, url string) (*http.Response, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = o.retryInitial
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, o.maxRetries), ctx)

	return backoff.RetryWithData(func() (*http.Response, error) {
		if o.limiter != nil {
			if err := o.limiter.Wait(ctx); err != nil {
				return nil, backoff.Permanent(err)
			}
		}

		req, err := o.newRequest(ctx, url)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("make request: %w", err))
		}

		resp, err := o.do(op, req)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil || !retryable(err) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}, b)
}

func retryable(err error) bool {
	var he *httpStatusError
	if errors.As(err, &he) {
		switch he.Code {
		case 429, 500, 502, 503, 504:
			return true
		}
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
