package pipeline

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/IshaanNene/eventscope/internal/types"
)

// DefaultMaxComments caps the comments kept per post.
const DefaultMaxComments = 500

// Normalizer turns raw adapter records into canonical Posts.
type Normalizer struct {
	Fields        FieldMap
	CommentFields FieldMap
	MaxComments   int

	// Now supplies the fallback timestamp. Defaults to time.Now.
	Now func() time.Time
}

// NewNormalizer creates a Normalizer with the default field maps.
func NewNormalizer(maxComments int) *Normalizer {
	if maxComments <= 0 {
		maxComments = DefaultMaxComments
	}
	return &Normalizer{
		Fields:        DefaultFieldMap(),
		CommentFields: CommentFieldMap(),
		MaxComments:   maxComments,
		Now:           time.Now,
	}
}

func (n *Normalizer) now() time.Time {
	if n.Now == nil {
		return time.Now().UTC()
	}
	return n.Now().UTC()
}

// Normalize maps one raw record onto a Post. Scores and sentiment are left
// for the scorer.
func (n *Normalizer) Normalize(rec *types.Record) (types.Post, error) {
	if rec == nil {
		return types.Post{}, &types.PipelineError{Stage: "normalize", Err: fmt.Errorf("%w: nil record", types.ErrMalformed)}
	}

	text := firstString(rec, n.Fields.Text)
	title := firstString(rec, n.Fields.Title)
	created, ok := ParseTimestamp(firstValue(rec, n.Fields.Created), n.now())

	post := types.Post{
		ID:        firstString(rec, n.Fields.ID),
		Platform:  rec.Platform,
		URL:       rec.URL,
		Title:     title,
		Text:      text,
		Author:    authorOr(firstString(rec, n.Fields.Author), types.UnknownAuthor),
		CreatedAt: created,
		Engagement: types.Engagement{
			Likes:    firstCount(rec, n.Fields.Likes),
			Comments: firstCount(rec, n.Fields.Comments),
			Shares:   firstCount(rec, n.Fields.Shares),
		},
		Type:               postType(rec, n.Fields.Type),
		Hashtags:           ExtractHashtags(title + " " + text),
		Mentions:           ExtractMentions(title + " " + text),
		TimestampDefaulted: !ok,
	}
	if post.ID == "" {
		post.ID = recordID(rec)
	}

	meta := make(map[string]string)
	for _, k := range n.Fields.Meta {
		if s := firstString(rec, []string{k}); s != "" {
			meta[k] = s
		}
	}
	if len(meta) > 0 {
		post.Metadata = meta
	}

	post.Comments = n.NormalizeComments(rec.Comments)
	if post.Engagement.Comments == 0 && len(post.Comments) > 0 {
		post.Engagement.Comments = int64(len(post.Comments))
	}

	return post, nil
}

// NormalizeAll normalizes records in order. A record that fails is reported
// in errs and skipped; source order of the rest is preserved.
func (n *Normalizer) NormalizeAll(recs []*types.Record) (posts []types.Post, errs []error) {
	posts = make([]types.Post, 0, len(recs))
	for _, rec := range recs {
		p, err := n.Normalize(rec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		posts = append(posts, p)
	}
	return posts, errs
}

// NormalizeComments maps raw comment records, keeping at most MaxComments.
func (n *Normalizer) NormalizeComments(recs []*types.Record) []types.Comment {
	if len(recs) == 0 {
		return nil
	}
	limit := len(recs)
	if n.MaxComments > 0 && limit > n.MaxComments {
		limit = n.MaxComments
	}
	comments := make([]types.Comment, 0, limit)
	for _, rec := range recs[:limit] {
		if rec == nil {
			continue
		}
		c := types.Comment{
			Author:  authorOr(firstString(rec, n.CommentFields.Author), types.AnonymousAuthor),
			Text:    firstString(rec, n.CommentFields.Text),
			Likes:   firstCount(rec, n.CommentFields.Likes),
			Replies: firstCount(rec, n.CommentFields.Comments),
			Depth:   int(ParseCount(rec.Fields["depth"])),
		}
		if v := firstValue(rec, n.CommentFields.Created); v != nil {
			if t, ok := ParseTimestamp(v, time.Time{}); ok {
				c.CreatedAt = &t
			}
		}
		comments = append(comments, c)
	}
	return comments
}

func firstValue(rec *types.Record, keys []string) any {
	v, _ := first(rec, keys)
	return v
}

func authorOr(author, fallback string) string {
	if author == "" {
		return fallback
	}
	return author
}

func postType(rec *types.Record, keys []string) types.PostType {
	if s := firstString(rec, keys); s != "" {
		return types.PostType(s)
	}
	if rec.Kind != "" {
		return types.PostType(rec.Kind)
	}
	return types.PostTypePost
}

// recordID derives a stable identifier from platform and URL.
func recordID(rec *types.Record) string {
	h := sha1.Sum([]byte(rec.Platform + "|" + rec.URL))
	return hex.EncodeToString(h[:8])
}
