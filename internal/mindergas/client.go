package mindergas

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	DefaultBaseURL   = "https://www.mindergas.nl/api"
	APIVersion       = "1.0"
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "mindergas-bridge"

	EndpointMeterReadings = "/meter_readings"
	EndpointYearlyUsage   = "/yearly_usages/latest"
	EndpointForecast      = "/yearly_usages/forecast"
	EndpointDegreeDay     = "/usage_per_degree_day"

	maxBodySize = 1 << 20
)

// RequestObserver is called once per request with the response status
// (0 when the request never got a response)
type RequestObserver func(endpoint, method string, status int, elapsed time.Duration)

// Client talks to the MinderGas REST API on behalf of a single API key.
// Every operation makes exactly one attempt.
type Client struct {
	apiKey    string
	baseURL   string
	userAgent string
	timeout   time.Duration
	hc        *http.Client
	session   *Session
	observer  RequestObserver
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL overrides the API base URL
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient makes the client use hc. The caller keeps ownership of hc.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithTimeout sets the timeout of the client-created HTTP client
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithObserver registers a per-request hook, used for metrics
func WithObserver(o RequestObserver) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient creates a client for apiKey
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:    apiKey,
		baseURL:   DefaultBaseURL,
		userAgent: DefaultUserAgent,
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.session = NewSession(c.hc, c.timeout)
	return c
}

// Close releases the HTTP session if the client created it
func (c *Client) Close() {
	c.session.Release()
}

// FetchYearlyUsage returns the latest yearly usage, or nil if MinderGas has
// no data yet
func (c *Client) FetchYearlyUsage(ctx context.Context) (*UsageRecord, error) {
	var rec UsageRecord
	found, err := c.getJSON(ctx, EndpointYearlyUsage, &rec)
	if err != nil || !found {
		return nil, err
	}
	return &rec, nil
}

// FetchYearlyForecast returns the yearly forecast, or nil if there is not
// enough history to forecast
func (c *Client) FetchYearlyForecast(ctx context.Context) (*ForecastRecord, error) {
	var rec ForecastRecord
	found, err := c.getJSON(ctx, EndpointForecast, &rec)
	if err != nil || !found {
		return nil, err
	}
	return &rec, nil
}

// FetchDegreeDayUsage returns the usage per degree day, or nil if unavailable
func (c *Client) FetchDegreeDayUsage(ctx context.Context) (*DegreeDayRecord, error) {
	var rec DegreeDayRecord
	found, err := c.getJSON(ctx, EndpointDegreeDay, &rec)
	if err != nil || !found {
		return nil, err
	}
	return &rec, nil
}

// PostMeterReading submits reading for the calendar date of date. Only
// 201 Created counts as success; a 422 carries the server's explanation
// in the returned *APIError.
func (c *Client) PostMeterReading(ctx context.Context, date time.Time, reading float64) error {
	payload := MeterReading{
		Date:    NewDate(date).String(),
		Reading: reading,
	}

	status, body, err := c.do(ctx, http.MethodPost, EndpointMeterReadings, payload)
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return &APIError{StatusCode: status, Endpoint: EndpointMeterReadings, Body: string(body)}
	}
	return nil
}

// Validate checks the API key with a yearly usage request. Authentication
// problems are returned as ErrInvalidCredential, ErrPaymentRequired or
// ErrRateLimited; everything else wraps ErrCannotConnect.
func (c *Client) Validate(ctx context.Context) error {
	_, err := c.FetchYearlyUsage(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrInvalidCredential) || errors.Is(err, ErrPaymentRequired) || errors.Is(err, ErrRateLimited) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrCannotConnect, err)
}

// getJSON decodes a 200 response into dest. A 404 reports found=false.
func (c *Client) getJSON(ctx context.Context, endpoint string, dest interface{}) (bool, error) {
	status, body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}

	switch status {
	case http.StatusOK:
		if err := json.Unmarshal(body, dest); err != nil {
			return false, fmt.Errorf("decoding %s response: %w", endpoint, err)
		}
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, &APIError{StatusCode: status, Endpoint: endpoint, Body: string(body)}
	}
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload interface{}) (int, []byte, error) {
	u, err := url.JoinPath(c.baseURL, endpoint)
	if err != nil {
		return 0, nil, fmt.Errorf("building URL: %w", err)
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("API-VERSION", APIVersion)
	req.Header.Set("AUTH-TOKEN", c.apiKey)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.session.Acquire().Do(req)
	if err != nil {
		c.observe(endpoint, method, 0, time.Since(start))
		return 0, nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	c.observe(endpoint, method, resp.StatusCode, time.Since(start))
	if err != nil {
		return resp.StatusCode, nil, &TransportError{Endpoint: endpoint, Err: fmt.Errorf("reading response: %w", err)}
	}

	return resp.StatusCode, body, nil
}

func (c *Client) observe(endpoint, method string, status int, elapsed time.Duration) {
	if c.observer != nil {
		c.observer(endpoint, method, status, elapsed)
	}
}
