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
	"github.com/IshaanNene/eventscope/internal/pipeline"
	"github.com/IshaanNene/eventscope/internal/types"
)

// redditMaxLimit is the largest page size the listing API honours.
const redditMaxLimit = 100

// Reddit reads the public reddit JSON API.
type Reddit struct {
	client
	deps Deps
}

// NewReddit creates the reddit adapter.
func NewReddit(cfg config.PlatformConfig, deps Deps) *Reddit {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.reddit.com"
	}
	return &Reddit{client: newClient("reddit", cfg, deps), deps: deps}
}

// Name implements Adapter.
func (r *Reddit) Name() string { return "reddit" }

type redditListing struct {
	Kind string `json:"kind"`
	Data struct {
		After    *string       `json:"after"`
		Children []redditThing `json:"children"`
	} `json:"data"`
}

type redditThing struct {
	Kind string         `json:"kind"`
	Data map[string]any `json:"data"`
}

// SearchEvent runs a relevance search and keeps posts created in the window.
func (r *Reddit) SearchEvent(ctx context.Context, query string, start, end time.Time) (*Result, error) {
	timeRange := redditTimeRange(start, r.deps.now())
	endpoint := r.baseURL() + "/search.json"

	records, stats, err := r.paginate(ctx, func(cursor string, limit int) string {
		q := url.Values{}
		q.Set("q", query)
		q.Set("sort", "relevance")
		q.Set("t", timeRange)
		q.Set("limit", strconv.Itoa(limit))
		if cursor != "" {
			q.Set("after", cursor)
		}
		return endpoint + "?" + q.Encode()
	}, time.Time{})
	if err != nil {
		return nil, err
	}

	records = filterWindow(records, start, end)
	r.logger.Debug("search complete", "query", query, "pages", stats.Pages, "kept", len(records))
	return &Result{Query: query, Records: records, Total: len(records), Stats: stats}, nil
}

// ScrapeProfile lists a subreddit (/r/<name>) or a user's submissions
// (/user/<name>, /u/<name>) newest first, stopping once posts predate start.
func (r *Reddit) ScrapeProfile(ctx context.Context, profileURL string, start, end time.Time) (*Result, error) {
	listing, name, err := redditProfileListing(profileURL)
	if err != nil {
		return nil, err
	}

	records, stats, err := r.paginate(ctx, func(cursor string, limit int) string {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(limit))
		q.Set("sort", "new")
		if cursor != "" {
			q.Set("after", cursor)
		}
		return listing + "?" + q.Encode()
	}, start)
	if err != nil {
		return nil, err
	}

	res := &Result{Query: profileURL, Username: name, Stats: stats}
	if len(records) > 0 {
		res.Audience = pipeline.ParseCount(records[0].Fields["subreddit_subscribers"])
	}
	res.Records = filterWindow(records, start, end)
	res.Total = len(res.Records)
	return res, nil
}

// paginate drives a listing endpoint. When stopBefore is set the walk ends
// at the first page whose last post is older than it.
func (r *Reddit) paginate(ctx context.Context, pageURL func(cursor string, limit int) string, stopBefore time.Time) ([]*types.Record, pagination.Stats, error) {
	pager := pagination.FromConfig[*types.Record](r.deps.Pagination)
	if pager.PageSize > redditMaxLimit {
		pager.PageSize = redditMaxLimit
	}

	return pager.Fetch(ctx, func(ctx context.Context, cursor string, limit int) (pagination.Page[*types.Record], error) {
		var listing redditListing
		if err := r.getJSON(ctx, pageURL(cursor, limit), &listing); err != nil {
			return pagination.Page[*types.Record]{}, err
		}

		page := pagination.Page[*types.Record]{}
		for _, child := range listing.Data.Children {
			if child.Kind != "t3" || child.Data == nil {
				continue
			}
			page.Items = append(page.Items, r.postRecord(child.Data))
		}
		if listing.Data.After != nil {
			page.NextCursor = *listing.Data.After
		}

		if !stopBefore.IsZero() && len(page.Items) > 0 {
			if t, ok := recordTime(page.Items[len(page.Items)-1]); ok && t.Before(stopBefore) {
				page.NextCursor = ""
			}
		}
		return page, nil
	})
}

// ScrapeSingle fetches <url>.json: the post listing followed by its
// comment tree.
func (r *Reddit) ScrapeSingle(ctx context.Context, rawURL string) (*types.Record, error) {
	jsonURL, err := redditJSONURL(rawURL)
	if err != nil {
		return nil, err
	}

	var listings []redditListing
	if err := r.getJSON(ctx, jsonURL, &listings); err != nil {
		return nil, err
	}
	if len(listings) == 0 || len(listings[0].Data.Children) == 0 {
		return nil, &types.ParseError{URL: jsonURL, Err: fmt.Errorf("%w: invalid reddit data structure", types.ErrMalformed)}
	}

	data := listings[0].Data.Children[0].Data
	if redditRemoved(data) {
		return nil, fmt.Errorf("%w: reddit post %s was removed", types.ErrNotFound, rawURL)
	}

	rec := r.postRecord(data)
	rec.Set("likes", pipeline.ParseCount(data["ups"])-pipeline.ParseCount(data["downs"]))

	if len(listings) > 1 {
		for _, c := range r.walkComments(listings[1].Data.Children) {
			rec.AddComment(c)
		}
	}
	return rec, nil
}

func (r *Reddit) postRecord(data map[string]any) *types.Record {
	link := stringAt(data, "url")
	if permalink := stringAt(data, "permalink"); permalink != "" {
		link = r.baseURL() + permalink
	}

	rec := types.FromMap("reddit", link, data)
	// "likes" is the caller's own vote on reddit, not a count.
	rec.Delete("likes")
	rec.Kind = string(types.PostTypePost)
	switch stringAt(data, "post_hint") {
	case "hosted:video", "rich:video":
		rec.Kind = string(types.PostTypeVideo)
	}
	if v, ok := data["is_video"].(bool); ok && v {
		rec.Kind = string(types.PostTypeVideo)
	}
	return rec
}

// walkComments flattens a comment tree depth-first with an explicit stack,
// keeping at most MaxComments comments no deeper than MaxDepth.
func (r *Reddit) walkComments(roots []redditThing) []*types.Record {
	type frame struct {
		thing redditThing
		depth int
	}

	maxComments, maxDepth := r.deps.maxComments(), r.deps.maxDepth()
	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{thing: roots[i]})
	}

	var out []*types.Record
	for len(stack) > 0 && len(out) < maxComments {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.thing.Kind != "t1" || f.thing.Data == nil {
			continue
		}

		data := f.thing.Data
		replies := redditReplies(data["replies"])

		c := types.NewRecord("reddit", r.baseURL()+stringAt(data, "permalink"))
		c.Kind = string(types.PostTypeComment)
		c.Set("author", data["author"])
		c.Set("body", data["body"])
		c.Set("likes", pipeline.ParseCount(data["ups"])-pipeline.ParseCount(data["downs"]))
		c.Set("created_utc", data["created_utc"])
		c.Set("replies_count", len(replies))
		c.Set("depth", f.depth)
		out = append(out, c)

		if f.depth+1 >= maxDepth {
			continue
		}
		for i := len(replies) - 1; i >= 0; i-- {
			stack = append(stack, frame{thing: replies[i], depth: f.depth + 1})
		}
	}
	return out
}

// redditReplies decodes a comment's "replies" field, which is either an
// empty string or a nested listing.
func redditReplies(v any) []redditThing {
	listing, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	data, ok := listing["data"].(map[string]any)
	if !ok {
		return nil
	}
	children, ok := data["children"].([]any)
	if !ok {
		return nil
	}

	things := make([]redditThing, 0, len(children))
	for _, child := range children {
		m, ok := child.(map[string]any)
		if !ok {
			continue
		}
		kind, _ := m["kind"].(string)
		d, _ := m["data"].(map[string]any)
		things = append(things, redditThing{Kind: kind, Data: d})
	}
	return things
}

func redditRemoved(data map[string]any) bool {
	if v, ok := data["removed_by_category"]; ok && v != nil {
		return true
	}
	body := stringAt(data, "selftext")
	return stringAt(data, "author") == types.DeletedAuthor && (body == "[deleted]" || body == "[removed]")
}

// redditJSONURL appends .json to the post path, dropping any query.
func redditJSONURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w %q", types.ErrInvalidURL, rawURL)
	}
	u.RawQuery = ""
	u.Fragment = ""
	if !strings.HasSuffix(u.Path, ".json") {
		u.Path = strings.TrimSuffix(u.Path, "/") + ".json"
	}
	return u.String(), nil
}

// redditProfileListing maps a subreddit or user URL onto its listing
// endpoint on the same host.
func redditProfileListing(profileURL string) (listing, name string, err error) {
	u, err := url.Parse(profileURL)
	if err != nil || u.Host == "" {
		return "", "", fmt.Errorf("%w %q", types.ErrInvalidURL, profileURL)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[1] == "" {
		return "", "", fmt.Errorf("%w %q: expected /r/<name> or /user/<name>", types.ErrInvalidURL, profileURL)
	}

	root := u.Scheme + "://" + u.Host
	switch parts[0] {
	case "r":
		return root + "/r/" + parts[1] + "/new.json", parts[1], nil
	case "u", "user":
		return root + "/user/" + parts[1] + "/submitted.json", parts[1], nil
	default:
		return "", "", fmt.Errorf("%w %q: expected /r/<name> or /user/<name>", types.ErrInvalidURL, profileURL)
	}
}

// redditTimeRange picks the narrowest "t" filter that still covers start.
func redditTimeRange(start, now time.Time) string {
	age := now.Sub(start)
	switch {
	case age <= 24*time.Hour:
		return "day"
	case age <= 7*24*time.Hour:
		return "week"
	case age <= 31*24*time.Hour:
		return "month"
	case age <= 365*24*time.Hour:
		return "year"
	default:
		return "all"
	}
}
