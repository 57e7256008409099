package pipeline

import (
	"fmt"
	"strings"

	"github.com/IshaanNene/eventscope/internal/types"
)

// FieldMap lists, per canonical field, the source keys to try in order.
// The first present, non-empty key wins.
type FieldMap struct {
	ID       []string
	Title    []string
	Text     []string
	Author   []string
	Likes    []string
	Comments []string
	Shares   []string
	Created  []string
	Type     []string
	Audience []string
	Meta     []string
}

// DefaultFieldMap covers the key spellings used by the bundled adapters.
func DefaultFieldMap() FieldMap {
	return FieldMap{
		ID:       []string{"id", "name", "post_id"},
		Title:    []string{"title", "headline"},
		Text:     []string{"text", "post_text", "selftext", "body", "content", "description", "caption"},
		Author:   []string{"author", "username", "user", "source_name"},
		Likes:    []string{"likes", "score", "ups", "like_count", "reactions"},
		Comments: []string{"num_comments", "numComments", "comments_count", "reply_count", "comments"},
		Shares:   []string{"shares", "retweets", "retweet_count", "quote_count"},
		Created:  []string{"created", "created_at", "created_utc", "timestamp", "postDate", "published_at", "publishedAt"},
		Type:     []string{"post_type", "type"},
		Audience: []string{"followers", "followers_count", "subscribers"},
		Meta:     []string{"subreddit", "source", "lang", "permalink"},
	}
}

// CommentFieldMap covers comment payloads: user, then username, then author.
func CommentFieldMap() FieldMap {
	return FieldMap{
		Text:     []string{"text", "comment", "body"},
		Author:   []string{"user", "username", "author"},
		Likes:    []string{"likes", "reactions", "score"},
		Comments: []string{"replies_count", "replies", "reply_count"},
		Created:  []string{"created", "created_at", "created_utc", "timestamp"},
	}
}

// first returns the first present, non-empty value among keys.
func first(rec *types.Record, keys []string) (any, bool) {
	for _, k := range keys {
		v, ok := rec.Get(k)
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

// firstString is first rendered as a cleaned string.
func firstString(rec *types.Record, keys []string) string {
	v, ok := first(rec, keys)
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return CleanText(s)
	case fmt.Stringer:
		return CleanText(s.String())
	case map[string]any, []any:
		return ""
	default:
		return CleanText(fmt.Sprint(s))
	}
}

// firstCount is first coerced with ParseCount. Slices count their length,
// which lets a "comments" key hold either a number or the comment list.
func firstCount(rec *types.Record, keys []string) int64 {
	for _, k := range keys {
		v, ok := rec.Get(k)
		if !ok || v == nil {
			continue
		}
		if list, isList := v.([]any); isList {
			return int64(len(list))
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		return ParseCount(v)
	}
	return 0
}
