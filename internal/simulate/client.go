package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const maxThrottleRetries = 5

// apiError is the error body every non-2xx response carries.
type apiError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

// response is a fully read reply.
type response struct {
	Status int
	Body   []byte
	Header http.Header
}

func (r response) decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return eris.Wrapf(err, "decode %d response", r.Status)
	}
	return nil
}

func (r response) apiError() apiError {
	var e apiError
	_ = json.Unmarshal(r.Body, &e)
	return e
}

// HTTPClient paces requests and retries those the server throttled per client.
type HTTPClient struct {
	baseURL   string
	client    *http.Client
	limiter   *rate.Limiter
	throttled func()
}

func newHTTPClient(cfg Config, throttled func()) *HTTPClient {
	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	return &HTTPClient{
		baseURL:   cfg.BaseURL,
		client:    &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(limit, 1),
		throttled: throttled,
	}
}

// Get performs a GET request against path.
func (c *HTTPClient) Get(ctx context.Context, path string) (response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with a JSON body.
func (c *HTTPClient) Post(ctx context.Context, path string, body any) (response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

// Put performs a PUT request with a JSON body.
func (c *HTTPClient) Put(ctx context.Context, path string, body any) (response, error) {
	return c.do(ctx, http.MethodPut, path, body)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any) (response, error) {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return response{}, eris.Wrap(err, "marshal request body")
		}
		payload = b
	}

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return response{}, eris.Wrap(err, "wait for request slot")
		}
		res, err := c.once(ctx, method, path, payload)
		if err != nil {
			return response{}, err
		}
		// Only the per-client throttle is retried; a daily-limit refusal is an answer.
		if res.Status != http.StatusTooManyRequests || res.apiError().Code != "TOO_MANY_REQUESTS" || attempt >= maxThrottleRetries {
			return res, nil
		}
		if c.throttled != nil {
			c.throttled()
		}
		if err := sleep(ctx, retryDelay(res.Header)); err != nil {
			return response{}, err
		}
	}
}

func (c *HTTPClient) once(ctx context.Context, method, path string, payload []byte) (response, error) {
	var body io.Reader = http.NoBody
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return response{}, eris.Wrapf(err, "build %s %s", method, path)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return response{}, eris.Wrapf(err, "%s %s", method, path)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, eris.Wrapf(err, "read %s %s", method, path)
	}
	return response{Status: resp.StatusCode, Body: data, Header: resp.Header}, nil
}

func retryDelay(h http.Header) time.Duration {
	if secs, err := strconv.Atoi(h.Get("Retry-After")); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
