package update

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "relcheck/internal/errors"
)

// Default configuration values.
const (
	DefaultBaseURL   = "https://api.github.com"
	DefaultTimeout   = 10 * time.Second
	DefaultPerPage   = 30
	DefaultUserAgent = "relcheck-update-checker"
)

// Causes wrapped inside feed fetch errors.
var (
	ErrNetworkFailure = errors.New("network request failed")
	ErrRateLimited    = errors.New("rate limited by GitHub API")
	ErrEmptyBody      = errors.New("empty response body")
)

// Stage identifies the step a running check has reached.
type Stage int

const (
	StageFetching Stage = iota
	StageNormalizing
	StageSelecting
)

func (s Stage) String() string {
	switch s {
	case StageFetching:
		return "fetching"
	case StageNormalizing:
		return "normalizing"
	case StageSelecting:
		return "selecting"
	default:
		return "unknown"
	}
}

// StageFunc is called synchronously as a check enters each stage.
type StageFunc func(stage Stage, detail string)

// CheckRequest is the snapshot a single check runs against. The channel is
// captured here so configuration changes cannot affect a running check.
type CheckRequest struct {
	Channel        Channel
	CurrentVersion string
}

// Checker resolves update checks against a GitHub-style release feed.
// A Checker holds no per-check state and is safe for concurrent use.
type Checker struct {
	owner      string
	repo       string
	baseURL    string
	httpClient *http.Client
	transport  Transport
	token      string
	userAgent  string
	timeout    time.Duration
	perPage    int
	matcher    AssetMatcher
	onStage    StageFunc
	now        func() time.Time
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithTransport replaces the HTTP transport, mainly for tests.
func WithTransport(t Transport) CheckerOption {
	return func(c *Checker) {
		c.transport = t
	}
}

// WithHTTPClient sets the client used by the default transport.
func WithHTTPClient(client *http.Client) CheckerOption {
	return func(c *Checker) {
		c.httpClient = client
	}
}

// WithBaseURL points the checker at another API root (GitHub Enterprise,
// a mirror, or a test server).
func WithBaseURL(base string) CheckerOption {
	return func(c *Checker) {
		if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
			c.baseURL = base
		}
	}
}

// WithTimeout bounds each check. Non-positive values keep the default.
func WithTimeout(timeout time.Duration) CheckerOption {
	return func(c *Checker) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithToken authenticates API requests.
func WithToken(token string) CheckerOption {
	return func(c *Checker) {
		c.token = strings.TrimSpace(token)
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) CheckerOption {
	return func(c *Checker) {
		c.userAgent = ua
	}
}

// WithPerPage sets how many releases the list endpoint returns.
func WithPerPage(n int) CheckerOption {
	return func(c *Checker) {
		if n > 0 {
			c.perPage = n
		}
	}
}

// WithAssetMatcher sets which assets count as installable.
func WithAssetMatcher(m AssetMatcher) CheckerOption {
	return func(c *Checker) {
		c.matcher = m
	}
}

// WithStageReporter registers a progress callback.
func WithStageReporter(fn StageFunc) CheckerOption {
	return func(c *Checker) {
		c.onStage = fn
	}
}

// NewChecker creates a checker for the owner/repo release feed.
func NewChecker(owner, repo string, opts ...CheckerOption) *Checker {
	c := &Checker{
		owner:   owner,
		repo:    repo,
		baseURL: DefaultBaseURL,
		timeout: DefaultTimeout,
		perPage: DefaultPerPage,
		matcher: DefaultAssetMatcher(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.transport == nil {
		c.transport = &HTTPTransport{
			Client:    c.httpClient,
			UserAgent: c.userAgent,
			Token:     c.token,
		}
	}
	return c
}

// Timeout returns the deadline applied to each check.
func (c *Checker) Timeout() time.Duration {
	return c.timeout
}

// FeedURL returns the endpoint the channel reads: the latest release for
// official, the release list for beta and all.
func (c *Checker) FeedURL(channel Channel) string {
	base := fmt.Sprintf("%s/repos/%s/%s/releases", c.baseURL, url.PathEscape(c.owner), url.PathEscape(c.repo))
	if channel.usesListEndpoint() {
		return fmt.Sprintf("%s?per_page=%d", base, c.perPage)
	}
	return base + "/latest"
}

// TagURL returns the endpoint for one release by tag.
func (c *Checker) TagURL(tag string) string {
	return fmt.Sprintf("%s/repos/%s/%s/releases/tags/%s",
		c.baseURL, url.PathEscape(c.owner), url.PathEscape(c.repo), url.PathEscape(tag))
}

// Check fetches the feed for req.Channel, normalizes it and selects the
// newest candidate above req.CurrentVersion.
//
// Being up to date is reported through Outcome.Status. Errors carry one of
// the codes invalid_version, feed_fetch, feed_parse, timeout or canceled.
// The whole check shares one deadline; once it fires the result is a
// timeout, whatever progress was made.
func (c *Checker) Check(ctx context.Context, req CheckRequest) (Outcome, error) {
	current, err := ParseVersion(strings.TrimSpace(req.CurrentVersion))
	if err != nil {
		return Outcome{}, err
	}
	if req.Channel == ChannelOther {
		return Outcome{}, apperrors.New(apperrors.CodeConfigurationError,
			"channel other cannot be subscribed to", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	outcome, err := c.check(ctx, req.Channel, current)
	if ctxErr := c.contextError(ctx); ctxErr != nil {
		logger.Logf("check %s abandoned: %v", req.Channel, ctxErr)
		return Outcome{}, ctxErr
	}
	if err != nil {
		logger.Logf("check %s failed: %v", req.Channel, err)
		return Outcome{}, err
	}
	logger.Logf("check %s: %s (%d candidates)", req.Channel, outcome.Status, outcome.Candidates)
	return outcome, nil
}

func (c *Checker) check(ctx context.Context, channel Channel, current Version) (Outcome, error) {
	feedURL := c.FeedURL(channel)
	c.stage(StageFetching, feedURL)
	body, err := c.fetch(ctx, feedURL)
	if err != nil {
		return Outcome{}, err
	}
	if ctx.Err() != nil {
		return Outcome{}, ctx.Err()
	}

	c.stage(StageNormalizing, fmt.Sprintf("%d bytes", len(body)))
	candidates, err := Normalize(body, channel, c.matcher)
	if err != nil {
		return Outcome{}, err
	}
	if ctx.Err() != nil {
		return Outcome{}, ctx.Err()
	}

	c.stage(StageSelecting, fmt.Sprintf("%d candidates", len(candidates)))
	outcome := Outcome{
		Status:         StatusUpToDate,
		Channel:        channel,
		CurrentVersion: current,
		CheckedAt:      c.now(),
		Candidates:     len(candidates),
	}
	if hit, ok := Select(candidates, channel, current); ok {
		outcome.Status = StatusUpdateAvailable
		outcome.Result = hit.Result()
	}
	return outcome, nil
}

// fetch returns the body of a successful, non-empty response.
func (c *Checker) fetch(ctx context.Context, feedURL string) ([]byte, error) {
	logger.Logf("GET %s", feedURL)
	resp, err := c.transport.Get(ctx, feedURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.New(apperrors.CodeFeedFetch, "fetch release feed",
			&StatusError{Err: fmt.Errorf("%w: %v", ErrNetworkFailure, err)})
	}
	logger.Logf("GET %s -> %d (%d bytes)", feedURL, resp.StatusCode, len(resp.Body))

	if !resp.Success() {
		var cause error
		if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
			cause = ErrRateLimited
		}
		return nil, apperrors.New(apperrors.CodeFeedFetch, "fetch release feed",
			&StatusError{StatusCode: resp.StatusCode, Err: cause})
	}
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil, apperrors.New(apperrors.CodeFeedFetch, "fetch release feed",
			&StatusError{StatusCode: resp.StatusCode, Err: ErrEmptyBody})
	}
	return resp.Body, nil
}

func (c *Checker) contextError(ctx context.Context) error {
	switch err := ctx.Err(); {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.New(apperrors.CodeTimeout,
			fmt.Sprintf("update check timed out after %s", c.timeout), err)
	default:
		return apperrors.New(apperrors.CodeCanceled, "update check canceled", err)
	}
}

func (c *Checker) stage(s Stage, detail string) {
	if c.onStage != nil {
		c.onStage(s, detail)
	}
}

// CheckAsync runs Check on its own goroutine. The returned channel receives
// exactly one Report and is then closed. It is buffered, so a caller that
// stops listening does not leak the goroutine; cancel ctx to abort the
// request itself.
func (c *Checker) CheckAsync(ctx context.Context, req CheckRequest) <-chan Report {
	ch := make(chan Report, 1)
	go func() {
		defer close(ch)
		outcome, err := c.Check(ctx, req)
		ch <- Report{Outcome: outcome, Err: err}
	}()
	return ch
}

// ResolveByTag looks up one release by tag and returns its first installable
// asset, ignoring channel and version ordering. Any failure, including a
// missing release, yields ok=false; the cause only goes to the debug log.
func (c *Checker) ResolveByTag(ctx context.Context, tag string) (Result, bool) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return Result{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := c.fetch(ctx, c.TagURL(tag))
	if err != nil {
		logger.Logf("resolve tag %s: %v", tag, err)
		return Result{}, false
	}
	release, err := decodeRelease(body)
	if err != nil {
		logger.Logf("resolve tag %s: %v", tag, err)
		return Result{}, false
	}

	fallback := ChannelOfficial
	if release.Prerelease {
		fallback = ChannelBeta
	}
	candidates := c.matcher.expand(release, fallback)
	if len(candidates) == 0 {
		logger.Logf("resolve tag %s: no installable assets", tag)
		return Result{}, false
	}
	if ctx.Err() != nil {
		logger.Logf("resolve tag %s: %v", tag, ctx.Err())
		return Result{}, false
	}
	return candidates[0].Result(), true
}
