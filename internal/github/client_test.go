package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	gh "github.com/google/go-github/v80/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRepoURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    RepoRef
		wantErr bool
	}{
		{"owner slash name", "octocat/hello-world", RepoRef{"octocat", "hello-world"}, false},
		{"https url", "https://github.com/octocat/hello-world", RepoRef{"octocat", "hello-world"}, false},
		{"dot git", "https://github.com/octocat/hello-world.git", RepoRef{"octocat", "hello-world"}, false},
		{"ssh remote", "git@github.com:octocat/hello-world.git", RepoRef{"octocat", "hello-world"}, false},
		{"trailing slash", "github.com/octocat/hello-world/", RepoRef{"octocat", "hello-world"}, false},
		{"bare name", "hello-world", RepoRef{}, true},
		{"too many parts", "a/b/c", RepoRef{}, true},
		{"empty", "", RepoRef{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRepoURL(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidRepo)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newStubClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClientWithHTTPClient(srv.Client(), srv.URL)
	require.NoError(t, err)
	// Tests should not throttle.
	c.rateLimiter.bucket.SetLimit(1000)
	return c
}

func TestDefaultBranch(t *testing.T) {
	c := newStubClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/octocat/hello-world", r.URL.Path)
		fmt.Fprint(w, `{"name": "hello-world", "default_branch": "trunk"}`)
	}))

	branch, err := c.DefaultBranch(context.Background(), RepoRef{"octocat", "hello-world"})
	require.NoError(t, err)
	assert.Equal(t, "trunk", branch)
}

func TestDefaultBranch_FallsBackToMain(t *testing.T) {
	c := newStubClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name": "hello-world"}`)
	}))

	branch, err := c.DefaultBranch(context.Background(), RepoRef{"octocat", "hello-world"})
	require.NoError(t, err)
	assert.Equal(t, "main", branch)
}

func TestListTree_BlobsOnly(t *testing.T) {
	var gotPath, gotRecursive string
	c := newStubClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotRecursive = r.URL.Query().Get("recursive")
		fmt.Fprint(w, `{
			"sha": "abc",
			"tree": [
				{"path": "README.md", "type": "blob", "size": 42, "sha": "s1"},
				{"path": "docs", "type": "tree", "sha": "s2"},
				{"path": "docs/guide.md", "type": "blob", "size": 7, "sha": "s3"}
			]
		}`)
	}))

	entries, err := c.ListTree(context.Background(), RepoRef{"octocat", "hello-world"}, "main")
	require.NoError(t, err)
	assert.Equal(t, "/repos/octocat/hello-world/git/trees/main", gotPath)
	assert.Equal(t, "1", gotRecursive)
	require.Len(t, entries, 2)
	assert.Equal(t, "README.md", entries[0].Path)
	assert.Equal(t, 42, entries[0].Size)
	assert.Equal(t, "docs/guide.md", entries[1].Path)
}

func TestGetFile_DecodesContent(t *testing.T) {
	c := newStubClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/octocat/hello-world/contents/README.md", r.URL.Path)
		require.Equal(t, "main", r.URL.Query().Get("ref"))
		// "# Hello" base64-encoded.
		fmt.Fprint(w, `{"type": "file", "encoding": "base64", "content": "IyBIZWxsbw=="}`)
	}))

	content, err := c.GetFile(context.Background(), RepoRef{"octocat", "hello-world"}, "README.md", "main")
	require.NoError(t, err)
	assert.Equal(t, "# Hello", content)
}

func TestGetFile_NotFound(t *testing.T) {
	c := newStubClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	}))

	_, err := c.GetFile(context.Background(), RepoRef{"octocat", "hello-world"}, "missing.md", "main")
	require.ErrorIs(t, err, ErrFileNotFound)
	assert.True(t, IsNotFound(err))
}

func TestDefaultBranch_RepoNotFound(t *testing.T) {
	c := newStubClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	}))

	_, err := c.DefaultBranch(context.Background(), RepoRef{"octocat", "gone"})
	require.ErrorIs(t, err, ErrRepoNotFound)
}

func TestWrapError_HeaderRateLimitFallback(t *testing.T) {
	c, err := NewClientWithHTTPClient(&http.Client{}, "")
	require.NoError(t, err)

	// An untyped 429 must still surface as a rate limit error via the
	// response headers.
	resp := &gh.Response{Response: &http.Response{
		StatusCode: http.StatusTooManyRequests,
		Header:     http.Header{"Retry-After": []string{"30"}},
	}}
	wrapped := c.wrapError(resp, errors.New("429 Too Many Requests"), "get tree", ErrRepoNotFound)
	assert.True(t, IsRateLimited(wrapped))

	var rlErr *RateLimitError
	require.ErrorAs(t, wrapped, &rlErr)
	assert.WithinDuration(t, time.Now().Add(30*time.Second), rlErr.ResetAt, 2*time.Second)
}

func TestWithRetry_RecoversFromServerError(t *testing.T) {
	var calls atomic.Int32
	c := newStubClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			fmt.Fprint(w, `{"message": "upstream hiccup"}`)
			return
		}
		fmt.Fprint(w, `{"name": "hello-world", "default_branch": "main"}`)
	}))

	branch, err := c.DefaultBranch(context.Background(), RepoRef{"octocat", "hello-world"})
	require.NoError(t, err)
	assert.Equal(t, "main", branch)
	assert.Equal(t, int32(2), calls.Load())
}

func TestWithRetry_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newStubClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	}))

	_, err := c.DefaultBranch(context.Background(), RepoRef{"octocat", "hello-world"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
