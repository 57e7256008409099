package adapter

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/IshaanNene/eventscope/internal/config"
	"github.com/IshaanNene/eventscope/internal/pagination"
	"github.com/IshaanNene/eventscope/internal/types"
)

const newsMaxPageSize = 100

// News searches a NewsAPI-compatible /v2/everything endpoint.
type News struct {
	client
	deps Deps
}

// NewNews creates the news adapter. The token is sent as X-Api-Key.
func NewNews(cfg config.PlatformConfig, deps Deps) *News {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://newsapi.org"
	}
	c := newClient("news", cfg, deps)
	c.authHeader = "X-Api-Key"
	return &News{client: c, deps: deps}
}

// Name implements Adapter.
func (n *News) Name() string { return "news" }

type newsResponse struct {
	Status       string `json:"status"`
	Code         string `json:"code"`
	Message      string `json:"message"`
	TotalResults int    `json:"totalResults"`
	Articles     []struct {
		Source struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"source"`
		Author      string `json:"author"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
		Content     string `json:"content"`
	} `json:"articles"`
}

// SearchEvent pages through articles published inside the window. The
// cursor is the next page number.
func (n *News) SearchEvent(ctx context.Context, query string, start, end time.Time) (*Result, error) {
	pager := pagination.FromConfig[*types.Record](n.deps.Pagination)
	if pager.PageSize > newsMaxPageSize {
		pager.PageSize = newsMaxPageSize
	}

	total := 0
	endpoint := n.baseURL() + "/v2/everything"
	records, stats, err := pager.Fetch(ctx, func(ctx context.Context, cursor string, limit int) (pagination.Page[*types.Record], error) {
		page, err := newsPageNumber(endpoint, cursor)
		if err != nil {
			return pagination.Page[*types.Record]{}, err
		}

		q := url.Values{}
		q.Set("q", query)
		q.Set("from", start.UTC().Format(time.RFC3339))
		q.Set("to", end.UTC().Format(time.RFC3339))
		q.Set("sortBy", "publishedAt")
		q.Set("pageSize", strconv.Itoa(pager.PageSize))
		q.Set("page", strconv.Itoa(page))

		var body newsResponse
		if err := n.getJSON(ctx, endpoint+"?"+q.Encode(), &body); err != nil {
			return pagination.Page[*types.Record]{}, err
		}
		if body.Status == "error" {
			return pagination.Page[*types.Record]{}, &types.ParseError{
				URL: endpoint,
				Err: fmt.Errorf("%w: %s: %s", types.ErrMalformed, body.Code, body.Message),
			}
		}
		total = body.TotalResults

		out := pagination.Page[*types.Record]{}
		for _, a := range body.Articles {
			rec := types.NewRecord("news", a.URL)
			rec.Kind = string(types.PostTypeNewsArticle)
			rec.Set("title", a.Title)
			rec.Set("text", a.Description)
			rec.Set("content", a.Content)
			rec.Set("author", a.Author)
			rec.Set("source_name", a.Source.Name)
			rec.Set("source", a.Source.Name)
			rec.Set("publishedAt", a.PublishedAt)
			out.Items = append(out.Items, rec)
		}
		if len(body.Articles) > 0 && page*pager.PageSize < body.TotalResults {
			out.NextCursor = strconv.Itoa(page + 1)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	records = filterWindow(records, start, end)
	return &Result{Query: query, Records: records, Total: max(total, len(records)), Stats: stats}, nil
}

// ScrapeSingle extracts a news article with readability.
func (n *News) ScrapeSingle(ctx context.Context, rawURL string) (*types.Record, error) {
	resp, err := n.getPage(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return articleRecord("news", resp, types.PostTypeNewsArticle)
}

// newsPageNumber decodes the page cursor. The first request has no cursor
// and asks for page 1.
func newsPageNumber(endpoint, cursor string) (int, error) {
	if cursor == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(cursor)
	if err != nil || page < 1 {
		return 0, &types.ParseError{
			URL: endpoint,
			Err: fmt.Errorf("%w: bad page cursor %q", types.ErrMalformed, cursor),
		}
	}
	return page, nil
}
