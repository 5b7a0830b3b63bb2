package twitter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xscraper/pkg/errors"
	"xscraper/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(server.URL, 5*time.Second, logger.Nop())
	return client
}

func TestNewClientBaseURL(t *testing.T) {
	custom := NewClient("http://proxy.local", time.Second, logger.Nop())
	assert.Equal(t, "http://proxy.local", custom.baseURL)

	canonical := NewClient("", time.Second, logger.Nop())
	assert.Equal(t, BaseURL, canonical.baseURL)
}

func TestStatusCodeMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   errors.Kind
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, kind: errors.KindAuth},
		{name: "forbidden", status: http.StatusForbidden, kind: errors.KindAuth},
		{name: "not found", status: http.StatusNotFound, kind: errors.KindNotFound},
		{name: "too many requests", status: http.StatusTooManyRequests, kind: errors.KindRateLimit},
		{name: "internal error", status: http.StatusInternalServerError, kind: errors.KindServer},
		{name: "bad gateway", status: http.StatusBadGateway, kind: errors.KindServer},
		{name: "teapot", status: http.StatusTeapot, kind: errors.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			var out map[string]interface{}
			err := client.GetJSON(context.Background(), "/anything", &out)
			require.Error(t, err)
			assert.Equal(t, tt.kind, errors.KindOf(err))
		})
	}
}

func TestNetworkFailureIsNetworkKind(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	client := NewClient(server.URL, time.Second, logger.Nop())

	var out map[string]interface{}
	err := client.GetJSON(context.Background(), "/anything", &out)
	require.Error(t, err)
	assert.Equal(t, errors.KindNetwork, errors.KindOf(err))
}

func TestGetJSONParseError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	})

	var out map[string]interface{}
	err := client.GetJSON(context.Background(), "/anything", &out)
	require.Error(t, err)
	assert.True(t, errors.IsParse(err))
}

func TestContextCancellationSurfaces(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{}"))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out map[string]interface{}
	err := client.GetJSON(ctx, "/anything", &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVerifyCredentials(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, VerifyEndpoint, r.URL.Path)
		assert.Equal(t, "Bearer test-bearer", r.Header.Get("Authorization"))
		assert.Equal(t, "test-csrf", r.Header.Get("x-csrf-token"))
		w.Write([]byte(`{"id_str":"12345","screen_name":"testuser"}`))
	})
	client.Authorize("test-bearer", "test-auth", "test-csrf")

	identity, err := client.VerifyCredentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "12345", identity.UserID)
	assert.Equal(t, "testuser", identity.ScreenName)
}

func TestFetchUserInfo(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, UserInfoEndpoint, r.URL.Path)
		assert.Equal(t, "testuser", r.URL.Query().Get("screen_name"))
		w.Write([]byte(`{
			"data": {"user": {"result": {
				"rest_id": "12345",
				"legacy": {"screen_name": "testuser", "statuses_count": 600}
			}}}
		}`))
	})

	info, err := client.FetchUserInfo(context.Background(), "testuser")
	require.NoError(t, err)
	assert.Equal(t, "12345", info.UserID)
	assert.Equal(t, "testuser", info.ScreenName)
	assert.Equal(t, 600, info.ExpectedTotal)
}

func TestFetchUserInfoUnknownUser(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"user": {}}}`))
	})

	_, err := client.FetchUserInfo(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, errors.KindNotFound, errors.KindOf(err))
}

func TestFetchUserTimeline(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, TimelineEndpoint, r.URL.Path)
		assert.Equal(t, "12345", r.URL.Query().Get("user_id"))
		assert.Equal(t, "cursor-1", r.URL.Query().Get("cursor"))
		assert.Equal(t, "20", r.URL.Query().Get("count"))
		w.Write([]byte(`{
			"entries": [
				{"tweet": {"rest_id": "1", "text": "first", "created_at_ms": 1730000000000}},
				{"legacy": {"id_str": "2", "full_text": "second", "created_at": "Mon Oct 02 15:04:05 +0000 2023"}}
			],
			"next_cursor": "cursor-2"
		}`))
	})

	page, err := client.FetchUserTimeline(context.Background(), "12345", "cursor-1", 20)
	require.NoError(t, err)
	assert.Equal(t, "cursor-2", page.NextCursor)
	require.Len(t, page.Entries, 2)
	assert.NotNil(t, page.Entries[0].Tweet)
	assert.NotNil(t, page.Entries[1].Legacy)
}

func TestSearchReplies(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, SearchEndpoint, r.URL.Path)
		assert.Equal(t, "from:testuser filter:replies", r.URL.Query().Get("q"))
		w.Write([]byte(`{"entries": [{"tweet": {"rest_id": "9", "text": "reply", "is_reply": true}}], "next_cursor": ""}`))
	})

	page, err := client.SearchReplies(context.Background(), "testuser", "", 50)
	require.NoError(t, err)
	assert.Empty(t, page.NextCursor)
	require.Len(t, page.Entries, 1)
	assert.True(t, page.Entries[0].Tweet.IsReply)
}

func TestDeauthenticateClearsHeaders(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, LogoutEndpoint, r.URL.Path)
		w.Write([]byte(`{}`))
	})
	client.Authorize("b", "a", "c")

	require.NoError(t, client.Deauthenticate(context.Background()))
	assert.NotContains(t, client.headers, "Authorization")
	assert.NotContains(t, client.headers, "Cookie")
	assert.NotContains(t, client.headers, "x-csrf-token")
}

func TestSanitizeUsername(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"@testuser", "testuser"},
		{"testuser/", "testuser"},
		{"testuser ", "testuser"},
		{"@testuser/ ", "testuser"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, SanitizeUsername(tt.input))
	}
}

func TestIsValidUsername(t *testing.T) {
	assert.True(t, IsValidUsername("test_user1"))
	assert.False(t, IsValidUsername(""))
	assert.False(t, IsValidUsername("way_too_long_handle"))
	assert.False(t, IsValidUsername("bad.handle"))
}
