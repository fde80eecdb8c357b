// Package github fetches repository trees and file contents from the
// GitHub API, with rate limiting and bounded retry.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxRetries is the maximum number of retries for transient errors.
	MaxRetries = 3

	// RetryDelay is the initial delay between retries; it doubles per attempt.
	RetryDelay = time.Second

	// maxRateLimitWait caps how long a retry will sleep on a quota reset
	// before giving up and surfacing the rate limit error.
	maxRateLimitWait = 2 * time.Minute
)

// RepoRef identifies a GitHub repository.
type RepoRef struct {
	Owner string
	Name  string
}

func (r RepoRef) String() string { return r.Owner + "/" + r.Name }

// ParseRepoURL parses "owner/name" or a GitHub URL into a RepoRef.
func ParseRepoURL(repo string) (RepoRef, error) {
	s := strings.TrimSpace(repo)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "git@github.com:")
	s = strings.TrimPrefix(s, "github.com/")
	s = strings.TrimSuffix(s, "/")
	s = strings.TrimSuffix(s, ".git")

	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return RepoRef{}, fmt.Errorf("%w: %q", ErrInvalidRepo, repo)
	}
	return RepoRef{Owner: parts[0], Name: parts[1]}, nil
}

// TreeEntry is a file discovered in a repository tree.
type TreeEntry struct {
	Path string
	Size int
	SHA  string
}

// Client wraps the go-github client with rate limiting and retry.
type Client struct {
	gh          *gh.Client
	rateLimiter *RateLimiter
}

// NewClient creates a GitHub client. An empty token yields an
// unauthenticated client with the lower anonymous quota.
func NewClient(ctx context.Context, token string) *Client {
	var httpClient *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(ctx, ts)
	} else {
		httpClient = &http.Client{}
	}
	httpClient.Timeout = DefaultTimeout

	return &Client{
		gh:          gh.NewClient(httpClient),
		rateLimiter: NewRateLimiter(),
	}
}

// NewClientWithHTTPClient creates a client over a custom http.Client,
// optionally pointed at an alternate API base URL.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	ghc := gh.NewClient(httpClient)
	if baseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		ghc.BaseURL = u
	}
	return &Client{gh: ghc, rateLimiter: NewRateLimiter()}, nil
}

// RateLimiter returns the rate limiter for external inspection.
func (c *Client) RateLimiter() *RateLimiter {
	return c.rateLimiter
}

// DefaultBranch returns the repository's default branch, falling back
// to "main" when the API does not report one.
func (c *Client) DefaultBranch(ctx context.Context, repo RepoRef) (string, error) {
	var branch string
	err := c.withRetry(ctx, func() error {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return err
		}
		repository, resp, err := c.gh.Repositories.Get(ctx, repo.Owner, repo.Name)
		if err != nil {
			return c.wrapError(resp, err, "get repo", ErrRepoNotFound)
		}
		c.updateRateLimitFromResponse(resp)
		branch = repository.GetDefaultBranch()
		return nil
	})
	if err != nil {
		return "", err
	}
	if branch == "" {
		branch = "main"
	}
	return branch, nil
}

// ListTree returns every blob path in the repository at the given ref,
// using a single recursive tree call.
func (c *Client) ListTree(ctx context.Context, repo RepoRef, ref string) ([]TreeEntry, error) {
	var entries []TreeEntry
	err := c.withRetry(ctx, func() error {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return err
		}
		tree, resp, err := c.gh.Git.GetTree(ctx, repo.Owner, repo.Name, ref, true)
		if err != nil {
			return c.wrapError(resp, err, "get tree", ErrRepoNotFound)
		}
		c.updateRateLimitFromResponse(resp)

		entries = entries[:0]
		for _, e := range tree.Entries {
			if e.GetType() != "blob" {
				continue
			}
			entries = append(entries, TreeEntry{
				Path: e.GetPath(),
				Size: e.GetSize(),
				SHA:  e.GetSHA(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// GetFile fetches and decodes the content of a file at the given ref.
func (c *Client) GetFile(ctx context.Context, repo RepoRef, path, ref string) (string, error) {
	var content string
	err := c.withRetry(ctx, func() error {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return err
		}
		opts := &gh.RepositoryContentGetOptions{Ref: ref}
		fileContent, _, resp, err := c.gh.Repositories.GetContents(ctx, repo.Owner, repo.Name, path, opts)
		if err != nil {
			return c.wrapError(resp, err, "get contents", ErrFileNotFound)
		}
		c.updateRateLimitFromResponse(resp)

		if fileContent == nil {
			return fmt.Errorf("%w: %s is a directory", ErrFileNotFound, path)
		}
		decoded, err := fileContent.GetContent()
		if err != nil {
			return fmt.Errorf("decode content of %s: %w", path, err)
		}
		content = decoded
		return nil
	})
	if err != nil {
		return "", err
	}
	return content, nil
}

// withRetry runs fn up to MaxRetries+1 times with exponential backoff
// on transient errors. Rate limit errors wait for the published reset
// when it is near, otherwise they surface immediately.
func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	delay := RetryDelay
	var lastErr error

	for attempt := 0; attempt <= MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) || attempt == MaxRetries {
			return lastErr
		}

		wait := delay
		var rlErr *RateLimitError
		if errors.As(lastErr, &rlErr) {
			until := time.Until(rlErr.ResetAt)
			if until > maxRateLimitWait {
				return lastErr
			}
			if until > wait {
				wait = until
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		delay *= 2
	}
	return lastErr
}

func (c *Client) updateRateLimitFromResponse(resp *gh.Response) {
	if resp == nil || resp.Response == nil {
		return
	}
	c.rateLimiter.UpdateFromResponse(resp.Response)
}

// wrapError converts go-github errors to this package's error types.
// notFound is the sentinel a 404 maps to, so file fetches can report
// a missing path rather than a missing repository. The raw response
// headers are consulted as a fallback when go-github did not produce
// a typed rate limit error.
func (c *Client) wrapError(resp *gh.Response, err error, operation string, notFound error) error {
	if err == nil {
		return nil
	}

	var rateLimitErr *gh.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return &RateLimitError{
			ResetAt:   rateLimitErr.Rate.Reset.Time,
			Remaining: rateLimitErr.Rate.Remaining,
			Limit:     rateLimitErr.Rate.Limit,
		}
	}

	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		reset := time.Now().Add(abuseErr.GetRetryAfter())
		return &RateLimitError{ResetAt: reset}
	}

	if resp != nil && resp.Response != nil {
		if rlErr := c.rateLimiter.CheckRateLimit(resp.Response); rlErr != nil {
			return rlErr
		}
	}

	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) {
		apiErr := &APIError{
			StatusCode: ghErr.Response.StatusCode,
			Message:    ghErr.Message,
		}
		if apiErr.StatusCode == 404 {
			return fmt.Errorf("%w: %s", notFound, apiErr.Message)
		}
		return apiErr
	}

	return fmt.Errorf("%s: %w", operation, err)
}
