package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/matzehuels/starmark/pkg/buildinfo"
	"github.com/matzehuels/starmark/pkg/credential"
	"github.com/matzehuels/starmark/pkg/errors"
	"github.com/matzehuels/starmark/pkg/notify"
	"github.com/matzehuels/starmark/pkg/observability"
)

const (
	// DefaultBaseURL is the public GitHub REST API.
	DefaultBaseURL = "https://api.github.com"

	// DefaultTimeout bounds a single request.
	DefaultTimeout = 10 * time.Second

	// maxBodySize caps how much of a response body is read.
	maxBodySize = 1 << 20
)

// Repo is the subset of the repository resource starmark uses.
type Repo struct {
	FullName string `json:"full_name"`
	Stars    int    `json:"stargazers_count"`
}

// Options configures a Client. Zero values select defaults.
type Options struct {
	BaseURL     string
	HTTPClient  *http.Client
	Timeout     time.Duration
	Credentials credential.Source
	Notifier    notify.Notifier
	Logger      *log.Logger

	// RequestsPerSecond paces outgoing requests. Zero disables pacing.
	RequestsPerSecond float64
}

// Client fetches repositories from the GitHub API.
type Client struct {
	http    *http.Client
	baseURL string
	creds   credential.Source
	notify  notify.Notifier
	logger  *log.Logger
	limiter *rate.Limiter
}

// NewClient creates a Client from opts.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	creds := opts.Credentials
	if creds == nil {
		creds = credential.Static("")
	}
	n := opts.Notifier
	if n == nil {
		n = notify.Nop{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return &Client{
		http:    hc,
		baseURL: base,
		creds:   creds,
		notify:  n,
		logger:  logger,
		limiter: limiter,
	}
}

// BaseURL returns the API root requests are sent to.
func (c *Client) BaseURL() string { return c.baseURL }

// StarCount returns the stargazers count of owner/name.
func (c *Client) StarCount(ctx context.Context, owner, name string) (int, error) {
	repo, err := c.Fetch(ctx, owner, name)
	if err != nil {
		return 0, err
	}
	return repo.Stars, nil
}

// Fetch retrieves owner/name. Classified HTTP failures are reported to the
// configured Notifier before the error is returned.
func (c *Client) Fetch(ctx context.Context, owner, name string) (*Repo, error) {
	id := owner + "/" + name
	if err := errors.ValidateRepoID(id); err != nil {
		return nil, err
	}

	token, err := c.creds.Token(ctx)
	if err != nil {
		// An unreadable credential degrades to an unauthenticated request.
		c.logger.Warn("read api key", "err", err)
		token = ""
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(errors.ErrCodeNetwork, err, "fetch %s", id)
		}
	}

	body, err := c.doRequest(ctx, c.baseURL+"/repos/"+owner+"/"+name, token, id)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var raw struct {
		FullName string `json:"full_name"`
		Stars    *int   `json:"stargazers_count"`
	}
	if err := json.NewDecoder(io.LimitReader(body, maxBodySize)).Decode(&raw); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "decode %s", id)
	}
	if raw.Stars == nil || *raw.Stars < 0 {
		return nil, errors.New(errors.ErrCodeInternal, "response for %s has no valid stargazers_count", id)
	}
	if raw.FullName == "" {
		raw.FullName = id
	}
	return &Repo{FullName: raw.FullName, Stars: *raw.Stars}, nil
}

func (c *Client) doRequest(ctx context.Context, url, token, id string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "build request for %s", id)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", buildinfo.UserAgent())
	if token != "" {
		req.Header.Set("Authorization", "token "+token)
	}

	hooks := observability.HTTP()
	host, path := req.URL.Host, req.URL.Path
	hooks.OnRequest(ctx, req.Method, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		c.logger.Debug("github request failed", "repo", id, "err", err)
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "fetch %s", id)
	}
	elapsed := time.Since(start)
	hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, elapsed)
	c.logger.Debug("github response", "repo", id, "status", resp.StatusCode, "took", elapsed.Round(time.Millisecond))

	if err := c.checkStatus(ctx, resp, id); err != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) checkStatus(ctx context.Context, resp *http.Response, id string) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized:
		c.notify.Notify(ctx, notify.Event{
			Kind:    notify.KindCredentialInvalid,
			Message: "GitHub API key is invalid or expired. Update it with `starmark token set`.",
		})
		return errors.New(errors.ErrCodeCredentialInvalid, "github rejected the api key for %s", id).WithStatus(code)
	case code == http.StatusForbidden:
		rl := parseRateLimit(resp.Header, time.Now())
		c.notify.Notify(ctx, notify.Event{
			Kind:    notify.KindRateLimited,
			Message: rateLimitMessage(rl),
		})
		return errors.Wrap(errors.ErrCodeRateLimited, rl, "fetch %s", id).WithStatus(code)
	default:
		c.notify.Notify(ctx, notify.Event{
			Kind:    notify.KindGeneric,
			Message: fmt.Sprintf("GitHub API returned status %d for %s.", code, id),
		})
		return errors.New(errors.ErrCodeRemoteStatus, "github returned status %d for %s", code, id).WithStatus(code)
	}
}

// parseRateLimit reads Retry-After (seconds) and X-RateLimit-Reset (unix
// seconds) from h.
func parseRateLimit(h http.Header, now time.Time) *errors.RateLimitedError {
	rl := &errors.RateLimitedError{}
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
			rl.RetryAfter = secs
		}
	}
	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if unix, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && unix > 0 {
			rl.Reset = time.Unix(unix, 0)
			if rl.RetryAfter == 0 && rl.Reset.After(now) {
				rl.RetryAfter = int(rl.Reset.Sub(now).Round(time.Second) / time.Second)
			}
		}
	}
	rl.Message = rl.Error()
	return rl
}

func rateLimitMessage(rl *errors.RateLimitedError) string {
	msg := "GitHub API rate limit exceeded."
	if !rl.Reset.IsZero() {
		msg += " Quota resets at " + rl.Reset.Local().Format("15:04") + "."
	}
	return msg + " Add an API key with `starmark token set` for a higher limit."
}
