package engine

import (
	"math"
	"sort"
	"time"

	"github.com/IshaanNene/eventscope/internal/scoring"
	"github.com/IshaanNene/eventscope/internal/types"
)

// BuildReport reduces settled outcomes into an EventReport. It is a pure
// function of its arguments: results and failures are ordered by tag and
// every summary is recomputed from the posts, so the order in which tasks
// settled has no effect.
func BuildReport(id, eventName string, eventDate time.Time, window types.TimeWindow, outcomes []Outcome, generatedAt time.Time) *types.EventReport {
	report := &types.EventReport{
		ID:          id,
		EventName:   eventName,
		EventDate:   eventDate,
		Window:      window,
		Results:     []types.SourceResult{},
		Failures:    []types.SourceFailure{},
		Platforms:   make(map[string]types.PlatformSummary),
		GeneratedAt: generatedAt.UTC(),
	}

	for _, out := range outcomes {
		switch {
		case out.Result != nil:
			report.Results = append(report.Results, *out.Result)
		case out.Failure != nil:
			report.Failures = append(report.Failures, *out.Failure)
		}
	}
	sort.SliceStable(report.Results, func(i, j int) bool { return report.Results[i].Tag < report.Results[j].Tag })
	sort.SliceStable(report.Failures, func(i, j int) bool { return report.Failures[i].Tag < report.Failures[j].Tag })

	var sentiment types.SentimentSummary
	for _, res := range report.Results {
		summary := Summarize(res.Posts)
		report.Platforms[res.Tag] = summary
		report.TotalEngagement += summary.TotalEngagement
		for _, p := range res.Posts {
			if p.Sentiment != nil {
				sentiment.Merge(*p.Sentiment)
			}
		}
	}
	report.Sentiment = scoring.Finalize(sentiment)
	return report
}

// Summarize reduces a post sequence to its per-source summary.
func Summarize(posts []types.Post) types.PlatformSummary {
	summary := types.PlatformSummary{
		TotalPosts: len(posts),
		PostTypes:  make(map[types.PostType]int),
	}
	for _, p := range posts {
		summary.TotalEngagement += scoring.WeightedEngagement(p.Engagement)
		summary.PostTypes[p.Type]++
	}
	return summary
}

// ProfileMetrics reduces a profile's posts to totals and per-post averages.
// EngagementRate is set only when the audience is known.
func ProfileMetrics(posts []types.Post, followers int64) types.ProfileMetrics {
	m := types.ProfileMetrics{TotalPosts: len(posts), Followers: followers}
	var total types.Engagement
	for _, p := range posts {
		total.Likes += p.Engagement.Likes
		total.Comments += p.Engagement.Comments
		total.Shares += p.Engagement.Shares
	}
	m.TotalLikes, m.TotalComments, m.TotalShares = total.Likes, total.Comments, total.Shares

	if n := float64(len(posts)); n > 0 {
		m.AverageLikes = round2(float64(total.Likes) / n)
		m.AverageComments = round2(float64(total.Comments) / n)
		m.AverageShares = round2(float64(total.Shares) / n)
	}
	if rate, ok := scoring.EngagementRate(total, followers); ok {
		m.EngagementRate = &rate
	}
	return m
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
