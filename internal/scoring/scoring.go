// Package scoring derives engagement scores and keyword sentiment for
// normalized posts.
package scoring

import (
	"math"
	"strings"

	"github.com/IshaanNene/eventscope/internal/types"
)

// Engagement weights. Comments and shares cost the audience more effort
// than a like.
const (
	LikeWeight    = 1
	CommentWeight = 2
	ShareWeight   = 3
)

// DefaultPositive and DefaultNegative are the built-in sentiment lexicon.
var (
	DefaultPositive = []string{
		"amazing", "great", "awesome", "best", "love",
		"excellent", "fantastic", "wonderful", "perfect", "good",
	}
	DefaultNegative = []string{
		"bad", "worst", "terrible", "awful", "hate",
		"poor", "disappointing", "waste", "not worth", "crowded",
	}
)

// WeightedEngagement returns likes + 2*comments + 3*shares.
func WeightedEngagement(e types.Engagement) int64 {
	return e.Likes*LikeWeight + e.Comments*CommentWeight + e.Shares*ShareWeight
}

// EngagementRate returns total interactions per audience member as a
// percentage rounded to two decimals. ok is false when the audience size
// is zero or unknown.
func EngagementRate(e types.Engagement, audience int64) (rate float64, ok bool) {
	if audience <= 0 {
		return 0, false
	}
	raw := float64(e.Total()) / float64(audience) * 100
	return math.Round(raw*100) / 100, true
}

// Scorer classifies text against a keyword lexicon.
type Scorer struct {
	positive []string
	negative []string
}

// New creates a Scorer. Empty lists fall back to the default lexicon.
func New(positive, negative []string) *Scorer {
	if len(positive) == 0 {
		positive = DefaultPositive
	}
	if len(negative) == 0 {
		negative = DefaultNegative
	}
	return &Scorer{positive: lower(positive), negative: lower(negative)}
}

// Default returns a Scorer with the built-in lexicon.
func Default() *Scorer {
	return New(nil, nil)
}

func lower(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = strings.ToLower(w)
	}
	return out
}

// Classify labels text by substring match. Text hitting only positive
// keywords is positive, only negative is negative, anything else neutral.
func (s *Scorer) Classify(text string) types.Sentiment {
	t := strings.ToLower(text)
	pos := containsAny(t, s.positive)
	neg := containsAny(t, s.negative)
	switch {
	case pos && !neg:
		return types.SentimentPositive
	case neg && !pos:
		return types.SentimentNegative
	default:
		return types.SentimentNeutral
	}
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// Aggregate counts comment labels. Comments without a label are classified
// on the fly.
func (s *Scorer) Aggregate(comments []types.Comment) types.SentimentSummary {
	var sum types.SentimentSummary
	for _, c := range comments {
		label := c.Sentiment
		if label == "" {
			label = s.Classify(c.Text)
		}
		sum.Add(label)
	}
	return Finalize(sum)
}

// Finalize fills in the percentage fields from the counts.
func Finalize(sum types.SentimentSummary) types.SentimentSummary {
	sum.Total = sum.Positive + sum.Negative + sum.Neutral
	if sum.Total == 0 {
		sum.PositivePct, sum.NegativePct = 0, 0
		return sum
	}
	sum.PositivePct = percent(sum.Positive, sum.Total)
	sum.NegativePct = percent(sum.Negative, sum.Total)
	return sum
}

func percent(n, total int) float64 {
	return math.Round(float64(n)/float64(total)*10000) / 100
}

// Annotate returns a copy of post with comment labels, the aggregate
// sentiment and the weighted score filled in.
func (s *Scorer) Annotate(post types.Post) types.Post {
	if len(post.Comments) > 0 {
		comments := make([]types.Comment, len(post.Comments))
		for i, c := range post.Comments {
			c.Sentiment = s.Classify(c.Text)
			comments[i] = c
		}
		post.Comments = comments
	}
	sum := s.Aggregate(post.Comments)
	post.Sentiment = &sum
	post.Score = WeightedEngagement(post.Engagement)
	return post
}

// AnnotateAll annotates posts in order.
func (s *Scorer) AnnotateAll(posts []types.Post) []types.Post {
	out := make([]types.Post, len(posts))
	for i, p := range posts {
		out[i] = s.Annotate(p)
	}
	return out
}
