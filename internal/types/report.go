package types

import "time"

// TaskSource describes which adapter capability produced a result.
type TaskSource string

const (
	SourceSearch  TaskSource = "search"
	SourceProfile TaskSource = "profile"
	SourceSingle  TaskSource = "single"
)

// TimeWindow is a half-open interval [Start, End) used to bound a search.
type TimeWindow struct {
	Start time.Time `json:"start" bson:"start"`
	End   time.Time `json:"end"   bson:"end"`
}

// Contains reports whether t falls inside the window.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// SourceResult is the successful outcome of one source task.
type SourceResult struct {
	Tag          string     `json:"tag"           bson:"tag"`
	Platform     string     `json:"platform"      bson:"platform"`
	Source       TaskSource `json:"source"        bson:"source"`
	Query        string     `json:"query"         bson:"query"`
	Window       TimeWindow `json:"window"        bson:"window"`
	Posts        []Post     `json:"posts"         bson:"posts"`
	TotalResults int        `json:"total_results" bson:"total_results"`
}

// SourceFailure records a failed source task.
type SourceFailure struct {
	Tag      string     `json:"tag"      bson:"tag"`
	Platform string     `json:"platform" bson:"platform"`
	Source   TaskSource `json:"source"   bson:"source"`
	Kind     ErrorKind  `json:"kind"     bson:"kind"`
	Message  string     `json:"message"  bson:"message"`
}

// PlatformSummary is a per-source reduction over its posts.
type PlatformSummary struct {
	TotalPosts      int              `json:"total_posts"      bson:"total_posts"`
	TotalEngagement int64            `json:"total_engagement" bson:"total_engagement"`
	PostTypes       map[PostType]int `json:"post_types"       bson:"post_types"`
}

// EventReport is the merged outcome of one event run.
type EventReport struct {
	ID              string                     `json:"id"               bson:"_id"`
	EventName       string                     `json:"event_name"       bson:"event_name"`
	EventDate       time.Time                  `json:"event_date"       bson:"event_date"`
	Window          TimeWindow                 `json:"window"           bson:"window"`
	Results         []SourceResult             `json:"results"          bson:"results"`
	Failures        []SourceFailure            `json:"failures"         bson:"failures"`
	Platforms       map[string]PlatformSummary `json:"platforms"        bson:"platforms"`
	TotalEngagement int64                      `json:"total_engagement" bson:"total_engagement"`
	Sentiment       SentimentSummary           `json:"sentiment"        bson:"sentiment"`
	GeneratedAt     time.Time                  `json:"generated_at"     bson:"generated_at"`
}

// PostCount returns the number of posts across every result.
func (r *EventReport) PostCount() int {
	n := 0
	for _, res := range r.Results {
		n += len(res.Posts)
	}
	return n
}

// ProfileMetrics aggregates engagement over a profile's posts.
type ProfileMetrics struct {
	TotalPosts      int     `json:"total_posts"`
	TotalLikes      int64   `json:"total_likes"`
	TotalComments   int64   `json:"total_comments"`
	TotalShares     int64   `json:"total_shares"`
	AverageLikes    float64 `json:"average_likes"`
	AverageComments float64 `json:"average_comments"`
	AverageShares   float64 `json:"average_shares"`

	// Followers is the profile audience when the source exposes it.
	Followers int64 `json:"followers,omitempty"`
	// EngagementRate is nil when Followers is unknown.
	EngagementRate *float64 `json:"engagement_rate,omitempty"`
}

// ProfileReport is the outcome of a standalone profile scrape.
type ProfileReport struct {
	EventName   string           `json:"event_name"`
	Platform    string           `json:"platform"`
	ProfileURL  string           `json:"profile_url"`
	Username    string           `json:"username,omitempty"`
	Posts       []Post           `json:"posts"`
	Metrics     ProfileMetrics   `json:"metrics"`
	Sentiment   SentimentSummary `json:"sentiment"`
	Overall     Sentiment        `json:"overall_sentiment"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// URLOutcome is one entry of a multi-URL scrape.
type URLOutcome struct {
	URL      string    `json:"url"`
	Platform string    `json:"platform,omitempty"`
	Post     *Post     `json:"post,omitempty"`
	Kind     ErrorKind `json:"kind,omitempty"`
	Error    string    `json:"error,omitempty"`
}
