package models

// Engagement holds the interaction counters attached to a record.
type Engagement struct {
	Likes   int `json:"likes"`
	Reposts int `json:"reposts"`
	Replies int `json:"replies"`
	Quotes  int `json:"quotes"`
}

// MediaRef points at a media attachment of a record.
type MediaRef struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Record is the canonical, normalized form of a collected post. Identity is
// ID: two records with equal ID are the same entity regardless of which
// collection path produced them.
type Record struct {
	ID         string     `json:"id"`
	Text       string     `json:"text"`
	Timestamp  *int64     `json:"timestamp"` // epoch millis; nil = unanchored
	Engagement Engagement `json:"engagement"`
	IsReply    bool       `json:"is_reply"`
	IsRepost   bool       `json:"is_repost"`
	Media      []MediaRef `json:"media,omitempty"`
	Permalink  string     `json:"permalink"`
}

// Anchored reports whether the record carries a usable timestamp. Unanchored
// records are retained for dedup but excluded from time-range analytics.
func (r *Record) Anchored() bool {
	return r.Timestamp != nil
}

// Millis is a convenience constructor for timestamp pointers.
func Millis(ms int64) *int64 {
	return &ms
}

// MergeByID merges two record slices into a union keyed by ID. Order follows
// first appearance. When the same ID occurs in both inputs, the anchored
// version wins over an unanchored one; otherwise the earlier occurrence is
// kept.
func MergeByID(primary, secondary []Record) []Record {
	merged := make([]Record, 0, len(primary)+len(secondary))
	index := make(map[string]int, len(primary)+len(secondary))

	for _, rec := range primary {
		if at, seen := index[rec.ID]; seen {
			if !merged[at].Anchored() && rec.Anchored() {
				merged[at] = rec
			}
			continue
		}
		index[rec.ID] = len(merged)
		merged = append(merged, rec)
	}

	for _, rec := range secondary {
		if at, seen := index[rec.ID]; seen {
			if !merged[at].Anchored() && rec.Anchored() {
				merged[at] = rec
			}
			continue
		}
		index[rec.ID] = len(merged)
		merged = append(merged, rec)
	}

	return merged
}
