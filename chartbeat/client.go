// Package chartbeat fetches live top-pages data from the Chartbeat API.
package chartbeat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Defaults for the live top-pages endpoint.
const (
	DefaultBaseURL = "http://api.chartbeat.com/"
	DefaultPath    = "live/toppages/v3/"

	// maxBodySize caps how much of a response body is read.
	maxBodySize = 5 << 20
)

// ErrMalformedResponse is returned when the body is not JSON or has no pages array.
var ErrMalformedResponse = errors.New("chartbeat: malformed response")

// TransportError wraps a failure to complete the HTTP exchange.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "chartbeat: transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Referrer is one entry of a page's top referrers.
type Referrer struct {
	Domain   string `json:"domain"`
	Visitors int    `json:"visitors"`
}

// Stats holds the live statistics of a page.
type Stats struct {
	Visits  int        `json:"visits"`
	Toprefs []Referrer `json:"toprefs"`
}

// Page is a single entry of the top pages response.
type Page struct {
	Title string `json:"title"`
	Path  string `json:"path"`
	Stats Stats  `json:"stats"`
}

type topPagesResponse struct {
	Pages []Page `json:"pages"`
}

// Result is the outcome of one fetch. Exactly one of Pages or Err is meaningful:
// Err is nil on success, and Pages may then be empty.
type Result struct {
	Pages []Page
	Err   error
}

// OK reports whether the fetch produced a usable pages list.
func (r Result) OK() bool {
	return r.Err == nil
}

// Client requests the top pages of one host.
type Client struct {
	BaseURL string
	Path    string
	APIKey  string
	Host    string

	http *http.Client
}

// NewClient creates a Client for host using the default endpoint.
// A timeout of zero leaves requests unbounded except by the caller's context.
func NewClient(apiKey, host string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: DefaultBaseURL,
		Path:    DefaultPath,
		APIKey:  apiKey,
		Host:    host,
		http:    &http.Client{Timeout: timeout},
	}
}

// RequestURL builds the endpoint URL with the API key and host as encoded query values.
func (c *Client) RequestURL() (string, error) {
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("chartbeat: parse base url: %w", err)
	}
	ref, err := url.Parse(c.Path)
	if err != nil {
		return "", fmt.Errorf("chartbeat: parse path: %w", err)
	}
	u := base.ResolveReference(ref)
	q := url.Values{}
	q.Set("apikey", c.APIKey)
	q.Set("host", c.Host)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Fetch issues one GET against the endpoint. The status code is not checked:
// any response whose body decodes to an object with a pages array is a success.
func (c *Client) Fetch(ctx context.Context) Result {
	reqURL, err := c.RequestURL()
	if err != nil {
		return Result{Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Result{Err: &TransportError{Err: err}}
	}
	req.Header.Set("Accept", "application/json")

	client := c.http
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Err: &TransportError{Err: err}}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return Result{Err: &TransportError{Err: err}}
	}
	return Decode(body)
}

// Decode parses a top pages body. A body without a pages array is malformed.
func Decode(body []byte) Result {
	var parsed topPagesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Result{Err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
	}
	if parsed.Pages == nil {
		return Result{Err: fmt.Errorf("%w: missing pages", ErrMalformedResponse)}
	}
	return Result{Pages: parsed.Pages}
}
