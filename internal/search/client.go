// Package search queries the libraries.io search API and renders results
// as chat-ready markdown.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/cenkalti/backoff.v1"

	"github.com/codegangsta/packagesbot/internal/types"
)

const (
	DefaultBaseURL           = "https://libraries.io/api"
	DefaultPerPage           = 10
	DefaultRequestsPerMinute = 60
	DefaultTimeout           = 30 * time.Second

	// maxBodySize bounds how much of a response is read
	maxBodySize = 4 << 20
)

var (
	// ErrTransport covers network failures and unexpected HTTP statuses
	ErrTransport = errors.New("search transport failure")
	// ErrFormat means the response body could not be decoded
	ErrFormat = errors.New("search response format failure")
)

// platformNames maps platforms to the libraries.io platform identifiers
var platformNames = map[types.Platform]string{
	types.PlatformNpm:    "npm",
	types.PlatformBower:  "bower",
	types.PlatformCrates: "cargo",
}

// Options configures a Client
type Options struct {
	BaseURL           string
	APIKey            string
	PerPage           int
	RequestsPerMinute int
	Timeout           time.Duration
	MaxRetryTime      time.Duration // 0 disables retries
	HTTPClient        *http.Client
	Logger            *slog.Logger
}

// Client searches libraries.io. It is safe for concurrent use.
type Client struct {
	baseURL      string
	apiKey       string
	perPage      int
	maxRetryTime time.Duration
	http         *http.Client
	limiter      *rate.Limiter
	logger       *slog.Logger
}

// New creates a Client, filling unset options with defaults
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.PerPage <= 0 {
		opts.PerPage = DefaultPerPage
	}
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Client{
		baseURL:      opts.BaseURL,
		apiKey:       opts.APIKey,
		perPage:      opts.PerPage,
		maxRetryTime: opts.MaxRetryTime,
		http:         opts.HTTPClient,
		limiter:      rate.NewLimiter(rate.Limit(opts.RequestsPerMinute)/60.0, 1),
		logger:       opts.Logger,
	}
}

// PerPage returns the page size used for every request
func (c *Client) PerPage() int {
	return c.perPage
}

// Search fetches one page of results. Remaining is derived from the
// "Total" response header.
func (c *Client) Search(ctx context.Context, platform types.Platform, query string, page int) (types.PagedResult, error) {
	name, ok := platformNames[platform]
	if !ok {
		return types.PagedResult{}, fmt.Errorf("unsupported platform %q", platform)
	}
	if page < 1 {
		page = 1
	}

	reqURL, err := c.searchURL(name, query, page)
	if err != nil {
		return types.PagedResult{}, err
	}

	var body []byte
	var total int
	err = c.retry(ctx, func() error {
		var err error
		body, total, err = c.get(ctx, reqURL)
		return err
	})
	if err != nil {
		return types.PagedResult{}, err
	}

	var packages []Package
	if err := json.Unmarshal(body, &packages); err != nil {
		return types.PagedResult{}, fmt.Errorf("%w: decoding results: %v", ErrFormat, err)
	}

	c.logger.Debug("libraries.io search",
		"platform", name,
		"page", page,
		"results", len(packages),
		"total", total,
	)

	return types.PagedResult{
		Text:      FormatPackages(packages),
		Remaining: remaining(total, page, c.perPage),
		PerPage:   c.perPage,
	}, nil
}

func (c *Client) searchURL(platform, query string, page int) (string, error) {
	u, err := url.Parse(c.baseURL + "/search")
	if err != nil {
		return "", fmt.Errorf("parsing base url: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("platforms", platform)
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(c.perPage))
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// get performs one rate limited request. Errors wrap ErrTransport; a
// permanentError marks failures that retrying cannot fix.
func (c *Client) get(ctx context.Context, reqURL string) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, permanent(fmt.Errorf("%w: waiting for rate limiter: %v", ErrTransport, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, permanent(fmt.Errorf("%w: building request: %v", ErrTransport, err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: reading body: %v", ErrTransport, err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("%w: unexpected status %d", ErrTransport, resp.StatusCode)
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, 0, permanent(err)
		}
		return nil, 0, err
	}

	total, err := strconv.Atoi(resp.Header.Get("Total"))
	if err != nil || total < 1 {
		total = 1
	}
	return body, total, nil
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error { return &permanentError{err: err} }

// retry runs op with exponential backoff until it succeeds, fails
// permanently, the context ends or maxRetryTime elapses.
func (c *Client) retry(ctx context.Context, op func() error) error {
	if c.maxRetryTime <= 0 {
		return unwrapPermanent(op())
	}

	var stop error
	attempt := 0
	operation := func() error {
		attempt++
		err := op()
		var p *permanentError
		if errors.As(err, &p) {
			stop = p.err
			return nil
		}
		if err != nil {
			c.logger.Warn("libraries.io request failed, retrying", "attempt", attempt, "error", err)
		}
		return err
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 200 * time.Millisecond
	expBackoff.MaxElapsedTime = c.maxRetryTime
	if err := backoff.Retry(operation, backoff.WithContext(expBackoff, ctx)); err != nil {
		return err
	}
	return stop
}

func unwrapPermanent(err error) error {
	var p *permanentError
	if errors.As(err, &p) {
		return p.err
	}
	return err
}

// remaining is how many results follow the given page
func remaining(total, page, perPage int) int {
	left := total - page*perPage
	if left < 0 {
		return 0
	}
	return left
}
