package types

import "time"

// PostType classifies the shape of a post.
type PostType string

const (
	PostTypePost        PostType = "post"
	PostTypeVideo       PostType = "video"
	PostTypeReel        PostType = "reel"
	PostTypeStory       PostType = "story"
	PostTypeProfile     PostType = "profile"
	PostTypeTweet       PostType = "tweet"
	PostTypeNewsArticle PostType = "news_article"
	PostTypeBlogPost    PostType = "blog_post"
	PostTypeComment     PostType = "comment"
)

// Sentiment is a polarity label derived from keyword matching.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Author placeholders used when a source omits the name.
const (
	UnknownAuthor   = "Unknown"
	AnonymousAuthor = "Anonymous"
	DeletedAuthor   = "[deleted]"
)

// Engagement holds raw interaction counts.
type Engagement struct {
	Likes    int64 `json:"likes"    bson:"likes"`
	Comments int64 `json:"comments" bson:"comments"`
	Shares   int64 `json:"shares"   bson:"shares"`
}

// Total returns the unweighted sum of all interactions.
func (e Engagement) Total() int64 {
	return e.Likes + e.Comments + e.Shares
}

// Comment is a normalized reply attached to a post.
type Comment struct {
	Author    string     `json:"author"               bson:"author"`
	Text      string     `json:"text"                 bson:"text"`
	Likes     int64      `json:"likes"                bson:"likes"`
	Replies   int64      `json:"replies"              bson:"replies"`
	CreatedAt *time.Time `json:"created_at,omitempty" bson:"created_at,omitempty"`
	Depth     int        `json:"depth"                bson:"depth"`
	Sentiment Sentiment  `json:"sentiment,omitempty"  bson:"sentiment,omitempty"`
}

// SentimentSummary aggregates comment polarity counts.
type SentimentSummary struct {
	Positive    int     `json:"positive"     bson:"positive"`
	Negative    int     `json:"negative"     bson:"negative"`
	Neutral     int     `json:"neutral"      bson:"neutral"`
	Total       int     `json:"total"        bson:"total"`
	PositivePct float64 `json:"positive_pct" bson:"positive_pct"`
	NegativePct float64 `json:"negative_pct" bson:"negative_pct"`
}

// Add counts one label.
func (s *SentimentSummary) Add(label Sentiment) {
	switch label {
	case SentimentPositive:
		s.Positive++
	case SentimentNegative:
		s.Negative++
	default:
		s.Neutral++
	}
}

// Merge adds the counts of o. Percentages are not recomputed.
func (s *SentimentSummary) Merge(o SentimentSummary) {
	s.Positive += o.Positive
	s.Negative += o.Negative
	s.Neutral += o.Neutral
}

// Overall returns the dominant label of the summary.
func (s SentimentSummary) Overall() Sentiment {
	switch {
	case s.Positive > s.Negative:
		return SentimentPositive
	case s.Negative > s.Positive:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// Post is the canonical cross-platform record. A Post is built once by the
// normalization pipeline and treated as read-only afterwards.
type Post struct {
	ID         string            `json:"id"                   bson:"id"`
	Platform   string            `json:"platform"             bson:"platform"`
	URL        string            `json:"url"                  bson:"url"`
	Title      string            `json:"title,omitempty"      bson:"title,omitempty"`
	Text       string            `json:"text"                 bson:"text"`
	Author     string            `json:"author"               bson:"author"`
	CreatedAt  time.Time         `json:"created_at"           bson:"created_at"`
	Engagement Engagement        `json:"engagement"           bson:"engagement"`
	Score      int64             `json:"score"                bson:"score"`
	Type       PostType          `json:"type"                 bson:"type"`
	Hashtags   []string          `json:"hashtags,omitempty"   bson:"hashtags,omitempty"`
	Mentions   []string          `json:"mentions,omitempty"   bson:"mentions,omitempty"`
	Comments   []Comment         `json:"comments,omitempty"   bson:"comments,omitempty"`
	Sentiment  *SentimentSummary `json:"sentiment,omitempty"  bson:"sentiment,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"   bson:"metadata,omitempty"`

	// TimestampDefaulted is set when the source carried no usable creation
	// time and CreatedAt holds the normalization time instead.
	TimestampDefaulted bool `json:"timestamp_defaulted,omitempty" bson:"timestamp_defaulted,omitempty"`
}
