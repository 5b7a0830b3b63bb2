package twitter

import (
	"fmt"
	"net/url"
	"strconv"
)

const (
	// BaseURL is the base URL for the web API.
	BaseURL = "https://x.com"

	// VerifyEndpoint validates the stored credentials.
	VerifyEndpoint = "/i/api/1.1/account/verify_credentials.json"

	// LogoutEndpoint invalidates the current session.
	LogoutEndpoint = "/i/api/1.1/account/logout.json"

	// UserInfoEndpoint resolves a handle to a user id and profile counters.
	UserInfoEndpoint = "/i/api/graphql/UserByScreenName"

	// TimelineEndpoint is the paginated timeline for a user id.
	TimelineEndpoint = "/i/api/graphql/UserTweets"

	// SearchEndpoint is the search timeline used for reply discovery.
	SearchEndpoint = "/i/api/graphql/SearchTimeline"

	// DefaultBatchSize is the page size used when none is given.
	DefaultBatchSize = 20

	// MaxBatchSize is the largest page size the source accepts.
	MaxBatchSize = 100
)

func clampBatch(batch int) int {
	if batch <= 0 {
		return DefaultBatchSize
	}
	if batch > MaxBatchSize {
		return MaxBatchSize
	}
	return batch
}

// GetUserInfoURL constructs the relative URL for resolving a username.
func GetUserInfoURL(username string) string {
	params := url.Values{}
	params.Set("screen_name", username)

	return fmt.Sprintf("%s?%s", UserInfoEndpoint, params.Encode())
}

// GetTimelineURL constructs the relative timeline URL for a user id with
// pagination.
func GetTimelineURL(userID, cursor string, batch int) string {
	params := url.Values{}
	params.Set("user_id", userID)
	params.Set("count", strconv.Itoa(clampBatch(batch)))
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	return fmt.Sprintf("%s?%s", TimelineEndpoint, params.Encode())
}

// GetSearchRepliesURL constructs the relative search URL that surfaces
// replies the timeline endpoint withholds.
func GetSearchRepliesURL(account, cursor string, batch int) string {
	params := url.Values{}
	params.Set("q", fmt.Sprintf("from:%s filter:replies", account))
	params.Set("count", strconv.Itoa(clampBatch(batch)))
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	return fmt.Sprintf("%s?%s", SearchEndpoint, params.Encode())
}

// GetPostURL constructs the permalink for a post.
func GetPostURL(account, id string) string {
	if account == "" || id == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/status/%s", BaseURL, account, id)
}

// IsValidUsername checks whether a handle is well formed.
func IsValidUsername(username string) bool {
	if username == "" || len(username) > 15 {
		return false
	}

	for _, char := range username {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '_') {
			return false
		}
	}

	return true
}

// SanitizeUsername strips the decorations people paste along with a handle.
func SanitizeUsername(username string) string {
	if username == "" {
		return ""
	}

	if username[0] == '@' {
		username = username[1:]
	}

	for len(username) > 0 && (username[len(username)-1] == '/' || username[len(username)-1] == ' ') {
		username = username[:len(username)-1]
	}

	return username
}
