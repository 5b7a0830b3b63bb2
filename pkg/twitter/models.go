package twitter

import (
	"time"

	"xscraper/pkg/errors"
	"xscraper/pkg/models"
)

// AccountIdentity is the authenticated user returned by credential
// verification.
type AccountIdentity struct {
	UserID     string `json:"id_str"`
	ScreenName string `json:"screen_name"`
}

// UserInfo is the resolved profile of a collection target.
type UserInfo struct {
	UserID        string
	ScreenName    string
	ExpectedTotal int
}

// userInfoResponse mirrors the nested user lookup payload.
type userInfoResponse struct {
	Data struct {
		User struct {
			Result struct {
				RestID string `json:"rest_id"`
				Legacy struct {
					ScreenName    string `json:"screen_name"`
					StatusesCount int    `json:"statuses_count"`
				} `json:"legacy"`
			} `json:"result"`
		} `json:"user"`
	} `json:"data"`
}

// Timeline is one page of raw entries plus the pagination token for the next
// page. An empty NextCursor means the source reported no further pages.
type Timeline struct {
	Entries    []Entry `json:"entries"`
	NextCursor string  `json:"next_cursor"`
}

// Entry is one raw timeline item. The source emits two divergent layouts
// depending on endpoint and account age; exactly one of the two fields is
// populated for a recognized entry.
type Entry struct {
	Legacy *LegacyTweet  `json:"legacy,omitempty"`
	Tweet  *CurrentTweet `json:"tweet,omitempty"`
}

// LegacyTweet is the older REST-style layout with a Ruby-format timestamp.
type LegacyTweet struct {
	IDStr         string `json:"id_str"`
	FullText      string `json:"full_text"`
	CreatedAt     string `json:"created_at"`
	FavoriteCount int    `json:"favorite_count"`
	RetweetCount  int    `json:"retweet_count"`
	ReplyCount    int    `json:"reply_count"`
	QuoteCount    int    `json:"quote_count"`
	InReplyTo     string `json:"in_reply_to_status_id_str"`
	Retweeted     bool   `json:"retweeted"`
	Entities      struct {
		Media []struct {
			Type     string `json:"type"`
			MediaURL string `json:"media_url_https"`
		} `json:"media"`
	} `json:"entities"`
}

// CurrentTweet is the newer layout with millisecond timestamps. Search
// results arrive in this layout with CreatedAtMs zeroed out.
type CurrentTweet struct {
	RestID      string `json:"rest_id"`
	Text        string `json:"text"`
	CreatedAtMs int64  `json:"created_at_ms"`
	Likes       int    `json:"likes"`
	Reposts     int    `json:"reposts"`
	Replies     int    `json:"replies"`
	Quotes      int    `json:"quotes"`
	IsReply     bool   `json:"is_reply"`
	IsRepost    bool   `json:"is_repost"`
	Media       []struct {
		Type string `json:"type"`
		URL  string `json:"url"`
	} `json:"media"`
}

// legacyTimeFormat is the Ruby-style timestamp the old layout carries.
const legacyTimeFormat = time.RubyDate

// Normalize maps a raw entry to the canonical record form. Entries matching
// neither layout, and entries without an id, produce a parse error so the
// caller can skip the single record and keep the page.
func (e *Entry) Normalize(account string) (models.Record, error) {
	switch {
	case e.Tweet != nil:
		return e.Tweet.normalize(account)
	case e.Legacy != nil:
		return e.Legacy.normalize(account)
	default:
		return models.Record{}, errors.New(errors.KindParse, 0, "entry matches no known layout")
	}
}

func (t *CurrentTweet) normalize(account string) (models.Record, error) {
	if t.RestID == "" {
		return models.Record{}, errors.New(errors.KindParse, 0, "entry has no id")
	}

	rec := models.Record{
		ID:   t.RestID,
		Text: t.Text,
		Engagement: models.Engagement{
			Likes:   t.Likes,
			Reposts: t.Reposts,
			Replies: t.Replies,
			Quotes:  t.Quotes,
		},
		IsReply:   t.IsReply,
		IsRepost:  t.IsRepost,
		Permalink: GetPostURL(account, t.RestID),
	}

	if t.CreatedAtMs > 0 {
		rec.Timestamp = models.Millis(t.CreatedAtMs)
	}

	for _, m := range t.Media {
		rec.Media = append(rec.Media, models.MediaRef{Type: m.Type, URL: m.URL})
	}

	return rec, nil
}

func (t *LegacyTweet) normalize(account string) (models.Record, error) {
	if t.IDStr == "" {
		return models.Record{}, errors.New(errors.KindParse, 0, "entry has no id")
	}

	rec := models.Record{
		ID:   t.IDStr,
		Text: t.FullText,
		Engagement: models.Engagement{
			Likes:   t.FavoriteCount,
			Reposts: t.RetweetCount,
			Replies: t.ReplyCount,
			Quotes:  t.QuoteCount,
		},
		IsReply:   t.InReplyTo != "",
		IsRepost:  t.Retweeted,
		Permalink: GetPostURL(account, t.IDStr),
	}

	// An unparseable timestamp keeps the record, just without an anchor.
	if parsed, err := time.Parse(legacyTimeFormat, t.CreatedAt); err == nil {
		rec.Timestamp = models.Millis(parsed.UnixMilli())
	}

	for _, m := range t.Entities.Media {
		rec.Media = append(rec.Media, models.MediaRef{Type: m.Type, URL: m.MediaURL})
	}

	return rec, nil
}
