package adapter

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/IshaanNene/eventscope/internal/config"
	"github.com/IshaanNene/eventscope/internal/pagination"
	"github.com/IshaanNene/eventscope/internal/types"
)

const (
	twitterMinResults = 10
	twitterMaxResults = 100

	// twitterRecentWindow is how far back the recent search endpoint reaches.
	twitterRecentWindow = 7 * 24 * time.Hour

	twitterTweetFields = "created_at,public_metrics,author_id,lang,conversation_id"
)

// Twitter reads the X API v2 for search and timelines and falls back to the
// rendered page for single tweets.
type Twitter struct {
	client
	deps  Deps
	rules []config.ParseRule
}

// NewTwitter creates the twitter adapter.
func NewTwitter(cfg config.PlatformConfig, deps Deps) *Twitter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.twitter.com"
	}
	rules := cfg.Rules
	if len(rules) == 0 {
		rules = twitterPageRules
	}
	return &Twitter{client: newClient("twitter", cfg, deps), deps: deps, rules: rules}
}

// Name implements Adapter.
func (t *Twitter) Name() string { return "twitter" }

var twitterPageRules = []config.ParseRule{
	{Name: "text", Selector: `[data-testid="tweetText"]`},
	{Name: "author", Selector: `[data-testid="User-Name"] span`},
	{Name: "likes", Selector: `[data-testid="like"]`},
	{Name: "retweets", Selector: `[data-testid="retweet"]`},
	{Name: "reply_count", Selector: `[data-testid="reply"]`},
	{Name: "created_at", Selector: "time", Attribute: "datetime"},
}

type twitterTweet struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	AuthorID      string `json:"author_id"`
	CreatedAt     string `json:"created_at"`
	Lang          string `json:"lang"`
	PublicMetrics struct {
		LikeCount    int64 `json:"like_count"`
		RetweetCount int64 `json:"retweet_count"`
		ReplyCount   int64 `json:"reply_count"`
		QuoteCount   int64 `json:"quote_count"`
	} `json:"public_metrics"`
}

type twitterUser struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Name          string `json:"name"`
	PublicMetrics struct {
		FollowersCount int64 `json:"followers_count"`
	} `json:"public_metrics"`
}

type twitterPage struct {
	Data     []twitterTweet `json:"data"`
	Includes struct {
		Users []twitterUser `json:"users"`
	} `json:"includes"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

// SearchEvent queries recent search. The endpoint only reaches back seven
// days, so the window is clipped and a window entirely outside that range
// yields an empty result without a request.
func (t *Twitter) SearchEvent(ctx context.Context, query string, start, end time.Time) (*Result, error) {
	from, to, ok := t.clipWindow(start, end)
	if !ok {
		return &Result{Query: query}, nil
	}

	endpoint := t.baseURL() + "/2/tweets/search/recent"
	records, stats, err := t.paginate(ctx, func(cursor string, limit int) string {
		q := t.tweetQuery(limit, from, to)
		q.Set("query", query)
		if cursor != "" {
			q.Set("next_token", cursor)
		}
		return endpoint + "?" + q.Encode()
	}, nil)
	if err != nil {
		return nil, err
	}
	return &Result{Query: query, Records: records, Total: len(records), Stats: stats}, nil
}

// ScrapeProfile resolves the handle in profileURL and walks the user's
// timeline inside the window.
func (t *Twitter) ScrapeProfile(ctx context.Context, profileURL string, start, end time.Time) (*Result, error) {
	handle, err := twitterHandle(profileURL)
	if err != nil {
		return nil, err
	}

	var lookup struct {
		Data *twitterUser `json:"data"`
	}
	userURL := t.baseURL() + "/2/users/by/username/" + url.PathEscape(handle) + "?user.fields=public_metrics"
	if err := t.getJSON(ctx, userURL, &lookup); err != nil {
		return nil, err
	}
	if lookup.Data == nil {
		return nil, fmt.Errorf("%w: twitter user %q", types.ErrNotFound, handle)
	}
	user := *lookup.Data

	endpoint := t.baseURL() + "/2/users/" + url.PathEscape(user.ID) + "/tweets"
	records, stats, err := t.paginate(ctx, func(cursor string, limit int) string {
		q := t.tweetQuery(limit, start, end)
		if cursor != "" {
			q.Set("pagination_token", cursor)
		}
		return endpoint + "?" + q.Encode()
	}, map[string]twitterUser{user.ID: user})
	if err != nil {
		return nil, err
	}

	return &Result{
		Query:    profileURL,
		Records:  records,
		Total:    len(records),
		Username: user.Username,
		Audience: user.PublicMetrics.FollowersCount,
		Stats:    stats,
	}, nil
}

// ScrapeSingle extracts a tweet from its rendered page.
func (t *Twitter) ScrapeSingle(ctx context.Context, rawURL string) (*types.Record, error) {
	resp, err := t.getPage(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if t.deps.Parser == nil {
		return nil, fmt.Errorf("twitter: no page parser configured")
	}

	rec, _, err := t.deps.Parser.Parse(resp, t.rules)
	if err != nil {
		return nil, err
	}
	if rec == nil || !rec.Has("text") {
		return nil, &types.ParseError{URL: rawURL, Selector: `[data-testid="tweetText"]`, Err: fmt.Errorf("%w: tweet text not found", types.ErrMalformed)}
	}
	collapseLists(rec)
	rec.URL = rawURL
	rec.Kind = string(types.PostTypeTweet)
	return rec, nil
}

func (t *Twitter) paginate(ctx context.Context, pageURL func(cursor string, limit int) string, users map[string]twitterUser) ([]*types.Record, pagination.Stats, error) {
	pager := pagination.FromConfig[*types.Record](t.deps.Pagination)
	return pager.Fetch(ctx, func(ctx context.Context, cursor string, limit int) (pagination.Page[*types.Record], error) {
		limit = min(max(limit, twitterMinResults), twitterMaxResults)

		var body twitterPage
		if err := t.getJSON(ctx, pageURL(cursor, limit), &body); err != nil {
			return pagination.Page[*types.Record]{}, err
		}
		if len(body.Data) == 0 && len(body.Errors) > 0 {
			return pagination.Page[*types.Record]{}, &types.ParseError{
				URL: t.baseURL(),
				Err: fmt.Errorf("%w: %s: %s", types.ErrMalformed, body.Errors[0].Title, body.Errors[0].Detail),
			}
		}

		known := make(map[string]twitterUser, len(users)+len(body.Includes.Users))
		for id, u := range users {
			known[id] = u
		}
		for _, u := range body.Includes.Users {
			known[u.ID] = u
		}

		page := pagination.Page[*types.Record]{NextCursor: body.Meta.NextToken}
		for _, tw := range body.Data {
			page.Items = append(page.Items, tweetRecord(tw, known[tw.AuthorID]))
		}
		return page, nil
	})
}

func (t *Twitter) tweetQuery(limit int, start, end time.Time) url.Values {
	q := url.Values{}
	q.Set("max_results", strconv.Itoa(limit))
	q.Set("tweet.fields", twitterTweetFields)
	q.Set("expansions", "author_id")
	q.Set("user.fields", "username")
	q.Set("start_time", start.UTC().Format(time.RFC3339))
	q.Set("end_time", end.UTC().Format(time.RFC3339))
	return q
}

// clipWindow fits [start, end) inside what recent search accepts.
func (t *Twitter) clipWindow(start, end time.Time) (time.Time, time.Time, bool) {
	now := t.deps.now()
	earliest := now.Add(-twitterRecentWindow).Add(time.Minute)
	latest := now.Add(-30 * time.Second)
	if start.Before(earliest) {
		start = earliest
	}
	if end.After(latest) {
		end = latest
	}
	return start, end, start.Before(end)
}

func tweetRecord(tw twitterTweet, author twitterUser) *types.Record {
	handle := author.Username
	link := "https://x.com/i/web/status/" + tw.ID
	if handle != "" {
		link = "https://x.com/" + handle + "/status/" + tw.ID
	}

	rec := types.NewRecord("twitter", link)
	rec.Kind = string(types.PostTypeTweet)
	rec.Set("id", tw.ID)
	rec.Set("text", tw.Text)
	rec.Set("username", handle)
	rec.Set("created_at", tw.CreatedAt)
	rec.Set("likes", tw.PublicMetrics.LikeCount)
	rec.Set("reply_count", tw.PublicMetrics.ReplyCount)
	rec.Set("retweets", tw.PublicMetrics.RetweetCount+tw.PublicMetrics.QuoteCount)
	if tw.Lang != "" {
		rec.Set("lang", tw.Lang)
	}
	return rec
}

// twitterHandle reads the account name from x.com/<handle> or twitter.com/@<handle>.
func twitterHandle(profileURL string) (string, error) {
	u, err := url.Parse(profileURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w %q", types.ErrInvalidURL, profileURL)
	}
	first, _, _ := strings.Cut(strings.Trim(u.Path, "/"), "/")
	handle := strings.TrimPrefix(first, "@")
	if handle == "" {
		return "", fmt.Errorf("%w %q: no account handle", types.ErrInvalidURL, profileURL)
	}
	return handle, nil
}

// collapseLists keeps the first value of fields a selector matched more
// than once, so counts and text read as scalars.
func collapseLists(rec *types.Record) {
	for k, v := range rec.Fields {
		if list, ok := v.([]string); ok && len(list) > 0 {
			rec.Fields[k] = list[0]
		}
	}
}
