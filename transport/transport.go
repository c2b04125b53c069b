package transport

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/parnurzeal/gorequest"
	"github.com/samber/lo"

	"github.com/soter-security/soter/utils"
)

const (
	DefaultBaseURL = "https://wpvulndb.com/api/v2/"

	clientName    = "Soter Security Checker"
	clientURL     = "https://github.com/ssnepenthe/soter"
	clientVersion = "0.4.0"
)

// Error is returned when the request could not be completed or the server
// answered with a status that says nothing about the queried component.
type Error struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP error. url: %s, err: %s", e.URL, e.Err)
	}
	return fmt.Sprintf("HTTP error. status code: %d, url: %s", e.StatusCode, e.URL)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type option func(*Client)

func WithBaseURL(u *url.URL) option {
	return func(c *Client) { c.baseURL = u }
}

func WithRetry(retry int) option {
	return func(c *Client) { c.retry = retry }
}

func WithTimeout(d time.Duration) option {
	return func(c *Client) { c.timeout = d }
}

// WithSite prefixes the User-Agent with the scanned site, e.g.
// "My Blog (https://example.com) | Soter Security Checker | v0.4.0 | ...".
func WithSite(name, homeURL string) option {
	return func(c *Client) {
		switch {
		case name != "" && homeURL != "":
			c.userAgent = fmt.Sprintf("%s (%s) | %s", name, homeURL, defaultUserAgent())
		case name != "":
			c.userAgent = fmt.Sprintf("%s | %s", name, defaultUserAgent())
		}
	}
}

func withWait(wait func(int) time.Duration) option {
	return func(c *Client) { c.wait = wait }
}

// Client issues unauthenticated GET requests against the vulnerability
// database API.
type Client struct {
	baseURL   *url.URL
	userAgent string
	retry     int
	timeout   time.Duration
	wait      func(int) time.Duration
}

func NewClient(opts ...option) *Client {
	c := &Client{
		baseURL:   lo.Must(url.Parse(DefaultBaseURL)),
		userAgent: defaultUserAgent(),
		timeout:   30 * time.Second,
		wait:      utils.Backoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) UserAgent() string {
	return c.userAgent
}

// Get requests endpoint relative to the base URL and returns the status code
// and body. Connection failures, 429 and 5xx responses are reported as *Error;
// any other status is returned to the caller.
func (c *Client) Get(endpoint string) (int, []byte, error) {
	endpoint = strings.TrimLeft(endpoint, `/\`)
	u := c.baseURL.JoinPath(endpoint).String()

	var err error
	for i := 0; i <= c.retry; i++ {
		if i > 0 {
			wait := c.wait(i)
			log.Printf("retry after %s", wait)
			time.Sleep(wait)
		}

		var status int
		var body []byte
		status, body, err = c.get(u)
		if err == nil {
			return status, body, nil
		}
	}
	return 0, nil, err
}

func (c *Client) get(u string) (int, []byte, error) {
	req := gorequest.New().Get(u).Set("User-Agent", c.userAgent)
	if c.timeout > 0 {
		req = req.Timeout(c.timeout)
	}

	resp, body, errs := req.EndBytes()
	if len(errs) > 0 {
		return 0, nil, &Error{URL: u, Err: errs[0]}
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return 0, nil, &Error{URL: u, StatusCode: resp.StatusCode}
	}
	return resp.StatusCode, body, nil
}

func defaultUserAgent() string {
	return fmt.Sprintf("%s | v%s | %s", clientName, clientVersion, clientURL)
}
