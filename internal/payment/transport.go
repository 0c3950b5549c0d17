package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

const (
	DefaultTimeout = 15 * time.Second

	breakerTrips   = 5
	breakerTimeout = 30 * time.Second
	maxBodyBytes   = 1 << 20
)

var errServerStatus = errors.New("provider returned a server error")

// BreakerTransport trips after consecutive network errors or 5xx responses.
// 4xx responses are the caller's problem and do not count as failures.
type BreakerTransport struct {
	Base    http.RoundTripper
	breaker *gobreaker.CircuitBreaker
}

func NewBreakerTransport(name string, base http.RoundTripper) *BreakerTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &BreakerTransport{
		Base: base,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: breakerTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= breakerTrips
			},
		}),
	}
}

func (t *BreakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out, err := t.breaker.Execute(func() (interface{}, error) {
		resp, err := t.Base.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, errServerStatus
		}
		return resp, nil
	})
	resp, _ := out.(*http.Response)
	if errors.Is(err, errServerStatus) {
		return resp, nil
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// NewHTTPClient returns a client for one provider with its own breaker.
func NewHTTPClient(provider string, timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: NewBreakerTransport(provider, nil),
	}
}

// Response is the status and body of a provider call.
type Response struct {
	StatusCode int
	Body       []byte
}

func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}

// DoJSON sends in as a JSON body (nil for none) and returns the raw reply.
// Only transport failures are returned as errors; non-2xx is the caller's to
// inspect.
func DoJSON(ctx context.Context, client *http.Client, method, url string, header http.Header, in any) (*Response, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: b}, nil
}

// Snippet shortens a response body for inclusion in an error message.
func Snippet(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
