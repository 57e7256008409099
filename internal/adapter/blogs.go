package adapter

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/IshaanNene/eventscope/internal/config"
	"github.com/IshaanNene/eventscope/internal/pagination"
	"github.com/IshaanNene/eventscope/internal/types"
)

// maxEnrich caps the readability fetches made per search.
const maxEnrich = 20

// Blogs searches a blog index exposing GET /v1/search with a "next"
// cursor. Hits without an excerpt are enriched from the post page.
type Blogs struct {
	client
	deps Deps
}

// NewBlogs creates the blogs adapter.
func NewBlogs(cfg config.PlatformConfig, deps Deps) *Blogs {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.blogsearch.dev"
	}
	return &Blogs{client: newClient("blogs", cfg, deps), deps: deps}
}

// Name implements Adapter.
func (b *Blogs) Name() string { return "blogs" }

type blogHit struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Author      string `json:"author"`
	Excerpt     string `json:"excerpt"`
	PublishedAt string `json:"published_at"`
	Blog        struct {
		Name string `json:"name"`
	} `json:"blog"`
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
	Shares   int64 `json:"shares"`
}

type blogSearchResponse struct {
	Hits  []blogHit `json:"hits"`
	Total int       `json:"total"`
	Next  string    `json:"next"`
}

// SearchEvent pages through matching posts inside the window.
func (b *Blogs) SearchEvent(ctx context.Context, query string, start, end time.Time) (*Result, error) {
	pager := pagination.FromConfig[*types.Record](b.deps.Pagination)

	total := 0
	endpoint := b.baseURL() + "/v1/search"
	records, stats, err := pager.Fetch(ctx, func(ctx context.Context, cursor string, limit int) (pagination.Page[*types.Record], error) {
		q := url.Values{}
		q.Set("q", query)
		q.Set("from", start.UTC().Format(time.RFC3339))
		q.Set("to", end.UTC().Format(time.RFC3339))
		q.Set("limit", strconv.Itoa(limit))
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		var body blogSearchResponse
		if err := b.getJSON(ctx, endpoint+"?"+q.Encode(), &body); err != nil {
			return pagination.Page[*types.Record]{}, err
		}
		total = body.Total

		page := pagination.Page[*types.Record]{NextCursor: body.Next}
		for _, hit := range body.Hits {
			page.Items = append(page.Items, blogRecord(hit))
		}
		return page, nil
	})
	if err != nil {
		return nil, err
	}

	records = filterWindow(records, start, end)
	b.enrich(ctx, records)
	return &Result{Query: query, Records: records, Total: max(total, len(records)), Stats: stats}, nil
}

// enrich fills in text for hits that came back without an excerpt.
// Failures leave the hit as returned by the index.
func (b *Blogs) enrich(ctx context.Context, records []*types.Record) {
	fetched := 0
	for _, rec := range records {
		if rec.Has("text") || rec.URL == "" || fetched >= maxEnrich {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		fetched++

		article, err := b.ScrapeSingle(ctx, rec.URL)
		if err != nil {
			b.logger.Debug("blog enrichment failed", "url", rec.URL, "error", err)
			continue
		}
		for _, key := range []string{"text", "author", "published_at", "lang"} {
			if v, ok := article.Get(key); ok && !rec.Has(key) {
				rec.Set(key, v)
			}
		}
	}
}

// ScrapeSingle extracts a blog post with readability.
func (b *Blogs) ScrapeSingle(ctx context.Context, rawURL string) (*types.Record, error) {
	resp, err := b.getPage(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return articleRecord("blogs", resp, types.PostTypeBlogPost)
}

func blogRecord(hit blogHit) *types.Record {
	rec := types.NewRecord("blogs", hit.URL)
	rec.Kind = string(types.PostTypeBlogPost)
	rec.Set("id", hit.ID)
	rec.Set("title", hit.Title)
	if hit.Excerpt != "" {
		rec.Set("text", hit.Excerpt)
	}
	if hit.Author != "" {
		rec.Set("author", hit.Author)
	}
	if hit.PublishedAt != "" {
		rec.Set("published_at", hit.PublishedAt)
	}
	rec.Set("source", hit.Blog.Name)
	rec.Set("likes", hit.Likes)
	rec.Set("comments_count", hit.Comments)
	rec.Set("shares", hit.Shares)
	return rec
}
