package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"xscraper/pkg/errors"
	"xscraper/pkg/logger"
)

// Client talks to the web API with the headers of a logged-in browser
// session. It is not safe for concurrent use; the collectors drive it from a
// single goroutine.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	logger     logger.Logger
}

// NewClient creates a source client with browser-equivalent headers. An
// empty baseURL selects the canonical endpoint.
func NewClient(baseURL string, timeout time.Duration, log logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	if baseURL == "" {
		baseURL = BaseURL
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		headers: map[string]string{
			"User-Agent":      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			"Accept":          "*/*",
			"Accept-Language": "en-US,en;q=0.9",
			"Cache-Control":   "no-cache",
			"Pragma":          "no-cache",
		},
		baseURL: baseURL,
		logger:  log,
	}
}

// SetHeader sets a custom header for the client.
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetHeaders sets multiple headers at once.
func (c *Client) SetHeaders(headers map[string]string) {
	for key, value := range headers {
		c.headers[key] = value
	}
}

// Authorize installs the session credentials as request headers.
func (c *Client) Authorize(bearerToken, authToken, csrfToken string) {
	c.headers["Authorization"] = "Bearer " + bearerToken
	c.headers["Cookie"] = fmt.Sprintf("auth_token=%s; ct0=%s", authToken, csrfToken)
	c.headers["x-csrf-token"] = csrfToken
}

// doRequest performs an HTTP request with the configured headers.
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		if req.Context().Err() != nil {
			return nil, req.Context().Err()
		}
		return nil, errors.New(errors.KindNetwork, 0, "network error: %v", err)
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// get performs a GET request against a relative endpoint URL.
func (c *Client) get(ctx context.Context, relativeURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+relativeURL, nil)
	if err != nil {
		return nil, errors.New(errors.KindUnknown, 0, "failed to create request: %v", err)
	}

	return c.doRequest(req)
}

// GetJSON performs a GET request and decodes the JSON response.
func (c *Client) GetJSON(ctx context.Context, relativeURL string, target interface{}) error {
	resp, err := c.get(ctx, relativeURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.New(errors.KindNetwork, resp.StatusCode, "failed to read response body: %v", err)
	}

	if err := json.Unmarshal(body, target); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}

		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          relativeURL,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return errors.New(errors.KindParse, resp.StatusCode, "failed to parse JSON: %v", err)
	}

	return nil
}

// checkResponseStatus maps HTTP status codes onto error kinds.
func (c *Client) checkResponseStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.logger.WarnWithFields("authentication error", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return errors.New(errors.KindAuth, resp.StatusCode, "authentication rejected")
	case resp.StatusCode == http.StatusNotFound:
		c.logger.WarnWithFields("resource not found", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return errors.New(errors.KindNotFound, resp.StatusCode, "resource not found")
	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.WarnWithFields("rate limit exceeded", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return errors.New(errors.KindRateLimit, resp.StatusCode, "rate limit exceeded")
	case resp.StatusCode >= 500:
		c.logger.ErrorWithFields("server error", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return errors.New(errors.KindServer, resp.StatusCode, "server error")
	case resp.StatusCode >= 400:
		c.logger.ErrorWithFields("unexpected API error", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return errors.New(errors.KindUnknown, resp.StatusCode, "unexpected status code: %d", resp.StatusCode)
	default:
		return nil
	}
}

// VerifyCredentials checks that the installed session is still valid and
// returns the authenticated identity.
func (c *Client) VerifyCredentials(ctx context.Context) (*AccountIdentity, error) {
	var identity AccountIdentity
	if err := c.GetJSON(ctx, VerifyEndpoint, &identity); err != nil {
		c.logger.ErrorWithFields("credential verification failed", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}

	c.logger.DebugWithFields("credentials verified", map[string]interface{}{
		"screen_name": identity.ScreenName,
	})

	return &identity, nil
}

// FetchUserInfo resolves a handle to its user id and expected post count.
func (c *Client) FetchUserInfo(ctx context.Context, username string) (*UserInfo, error) {
	c.logger.DebugWithFields("fetching user info", map[string]interface{}{
		"username": username,
	})

	var response userInfoResponse
	if err := c.GetJSON(ctx, GetUserInfoURL(username), &response); err != nil {
		c.logger.ErrorWithFields("failed to fetch user info", map[string]interface{}{
			"username": username,
			"error":    err.Error(),
		})
		return nil, err
	}

	result := response.Data.User.Result
	if result.RestID == "" {
		return nil, errors.New(errors.KindNotFound, http.StatusNotFound, "user %q not found", username)
	}

	return &UserInfo{
		UserID:        result.RestID,
		ScreenName:    result.Legacy.ScreenName,
		ExpectedTotal: result.Legacy.StatusesCount,
	}, nil
}

// FetchUserTimeline fetches one timeline page for a user id.
func (c *Client) FetchUserTimeline(ctx context.Context, userID, cursor string, batch int) (*Timeline, error) {
	c.logger.DebugWithFields("fetching timeline page", map[string]interface{}{
		"user_id": userID,
		"cursor":  cursor,
	})

	var page Timeline
	if err := c.GetJSON(ctx, GetTimelineURL(userID, cursor, batch), &page); err != nil {
		return nil, err
	}

	return &page, nil
}

// SearchReplies fetches one search page of the account's replies.
func (c *Client) SearchReplies(ctx context.Context, account, cursor string, batch int) (*Timeline, error) {
	c.logger.DebugWithFields("fetching reply search page", map[string]interface{}{
		"account": account,
		"cursor":  cursor,
	})

	var page Timeline
	if err := c.GetJSON(ctx, GetSearchRepliesURL(account, cursor, batch), &page); err != nil {
		return nil, err
	}

	return &page, nil
}

// Deauthenticate invalidates the session and drops the auth headers.
func (c *Client) Deauthenticate(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+LogoutEndpoint, nil)
	if err != nil {
		return errors.New(errors.KindUnknown, 0, "failed to create request: %v", err)
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return err
	}

	delete(c.headers, "Authorization")
	delete(c.headers, "Cookie")
	delete(c.headers, "x-csrf-token")

	c.logger.Info("session deauthenticated")
	return nil
}
