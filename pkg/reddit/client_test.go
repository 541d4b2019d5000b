package reddit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redditmcp/redditmcp/pkg/mcp"
)

func testCreds() mcp.Credentials {
	return mcp.Credentials{UserID: "spez", UpstreamAccessToken: "upstream-access"}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient("redditmcp-gateway-test/1.0", WithBaseURL(srv.URL))
	// Tests should not sleep behind the pacing limiter.
	c.limiter.SetLimit(1000)
	c.limiter.SetBurst(1000)
	return c
}

func TestMe(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/me", r.URL.Path)
		assert.Equal(t, "Bearer upstream-access", r.Header.Get("Authorization"))
		assert.Equal(t, "redditmcp-gateway-test/1.0", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"name":"spez","total_karma":1000}`))
	})

	body, err := c.Me(context.Background(), testCreds())
	require.NoError(t, err)
	assert.Contains(t, string(body), "spez")
}

func TestSubredditPosts(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/r/golang/hot", r.URL.Path)
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"kind":"Listing","data":{"children":[]}}`))
	})

	body, err := c.SubredditPosts(context.Background(), testCreds(), "golang", "hot", 25)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Listing")
}

func TestSubredditPostsDefaultsAndClamps(t *testing.T) {
	t.Parallel()

	var gotPath, gotLimit string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotLimit = r.URL.Query().Get("limit")
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := c.SubredditPosts(context.Background(), testCreds(), "golang", "", 9999)
	require.NoError(t, err)
	assert.Equal(t, "/r/golang/hot", gotPath)
	assert.Equal(t, "100", gotLimit)
}

func TestSubredditPostsValidation(t *testing.T) {
	t.Parallel()

	c := NewClient("test")
	_, err := c.SubredditPosts(context.Background(), testCreds(), "", "hot", 10)
	assert.Error(t, err)

	_, err = c.SubredditPosts(context.Background(), testCreds(), "golang", "controversial", 10)
	assert.Error(t, err)
}

func TestPostComments(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/r/golang/comments/abc123", r.URL.Path)
		_, _ = w.Write([]byte(`[{"kind":"Listing"}]`))
	})

	body, err := c.PostComments(context.Background(), testCreds(), "golang", "abc123", 10)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Listing")
}

func TestUpstreamFailureWrapsSentinel(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": 401}`, http.StatusUnauthorized)
	})

	_, err := c.Me(context.Background(), testCreds())
	assert.ErrorIs(t, err, mcp.ErrUpstreamAPI)
}

func TestMissingTokenFailsAuthRequiredWithoutRequest(t *testing.T) {
	t.Parallel()

	called := false
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	_, err := c.Me(context.Background(), mcp.Credentials{UserID: "spez"})
	assert.ErrorIs(t, err, mcp.ErrAuthRequired)
	assert.False(t, called)
}
