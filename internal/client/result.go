package client

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

// Responses larger than this are truncated rather than buffered whole.
const maxResponseBody = 10 << 20 // 10 MB

// Result is the normalized outcome of a network attempt.
// Every response maps onto this shape regardless of transport details:
// Success mirrors the status class, Data holds the raw body, Err carries a
// short description when Success is false.
type Result struct {
	Success bool
	Status  int
	Data    []byte
	Err     string
}

// APIClient performs the actual network call. Implementations must honor
// the request's context for cancellation. Transport-level failures are
// returned as errors; application-level failures come back as a Result
// with Success false.
type APIClient interface {
	Do(req *http.Request) (*Result, error)
}

// HTTPClient is the default APIClient on net/http.
type HTTPClient struct {
	hc *http.Client
}

// NewHTTPClient creates an HTTPClient with the given per-request timeout.
// Zero means no timeout beyond the request context.
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		hc: &http.Client{Timeout: timeout},
	}
}

// Do executes the request and normalizes the response.
func (c *HTTPClient) Do(req *http.Request) (*Result, error) {
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	res := &Result{
		Status: resp.StatusCode,
		Data:   data,
	}
	if resp.StatusCode < 400 {
		res.Success = true
	} else {
		res.Err = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return res, nil
}

// Ensure HTTPClient implements APIClient.
var _ APIClient = (*HTTPClient)(nil)
