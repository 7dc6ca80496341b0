// Package apiclient performs authenticated requests against the TestRail v2 API
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

const (
	apiPath         = "index.php?/api/v2/"
	DefaultTimeout  = 30 * time.Second
	DefaultRetryMax = 3
)

// Options configures a Client
type Options struct {
	Host     string
	Username string
	Password string
	APIKey   string // used instead of Password when set

	Timeout      time.Duration // per request; DefaultTimeout when zero
	RetryMax     int           // DefaultRetryMax when zero, no retries when negative
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	Logger *logrus.Logger
}

// Client talks to a single TestRail instance
type Client struct {
	baseURL  string
	username string
	secret   string
	timeout  time.Duration
	http     *retryablehttp.Client
	log      *logrus.Entry
}

// Response is a successful API response
type Response struct {
	StatusCode int
	Body       []byte
}

// Decode unmarshals the response body into v
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// APIError is returned for non-2xx responses. Its message is the error text
// reported by TestRail so it can be shown to the user verbatim.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// New creates a Client from opts
func New(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	entry := logger.WithField("host", opts.Host)

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient.Timeout = timeout
	rc.Logger = leveledLogger{entry: entry}
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.CheckRetry = checkRetry
	switch {
	case opts.RetryMax < 0:
		rc.RetryMax = 0
	case opts.RetryMax == 0:
		rc.RetryMax = DefaultRetryMax
	default:
		rc.RetryMax = opts.RetryMax
	}
	if opts.RetryWaitMin > 0 {
		rc.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		rc.RetryWaitMax = opts.RetryWaitMax
	}

	secret := opts.Password
	if opts.APIKey != "" {
		secret = opts.APIKey
	}

	return &Client{
		baseURL:  strings.TrimRight(opts.Host, "/") + "/" + apiPath,
		username: opts.Username,
		secret:   secret,
		timeout:  timeout,
		http:     rc,
		log:      entry,
	}
}

// Timeout returns the per-request timeout in effect
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Get sends a GET request to endpoint, e.g. "get_suites/3"
func (c *Client) Get(ctx context.Context, endpoint string) (*Response, error) {
	return c.do(ctx, http.MethodGet, endpoint, nil)
}

// Post sends payload as JSON to endpoint. A nil payload sends an empty object.
func (c *Client) Post(ctx context.Context, endpoint string, payload any) (*Response, error) {
	if payload == nil {
		payload = struct{}{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	return c.do(ctx, http.MethodPost, endpoint, body)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) (*Response, error) {
	url := c.baseURL + strings.TrimPrefix(endpoint, "/")

	var raw any
	if body != nil {
		raw = body
	}
	req, err := retryablehttp.NewRequestWithContext(withMethod(ctx, method), method, url, raw)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.username, c.secret)

	c.log.WithFields(logrus.Fields{"method": method, "endpoint": endpoint}).Debug("sending request")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"method":   method,
		"endpoint": endpoint,
		"status":   resp.StatusCode,
	}).Debug("received response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp, data)}
	}

	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}

// errorMessage extracts the "error" field TestRail puts in failed responses
func errorMessage(resp *http.Response, data []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return fmt.Sprintf("TestRail returned %s", resp.Status)
}
