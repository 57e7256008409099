package adapter

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/eventscope/internal/config"
	"github.com/IshaanNene/eventscope/internal/parser"
	"github.com/IshaanNene/eventscope/internal/pipeline"
	"github.com/IshaanNene/eventscope/internal/types"
)

// defaultProfilePosts caps the post pages visited per profile.
const defaultProfilePosts = 10

// maxPageComments caps the comments read from one rendered page.
const maxPageComments = 50

// PageLayout describes how to read posts and profiles from a site's HTML.
type PageLayout struct {
	// Rules extract post fields. Rule names are raw record keys.
	Rules []config.ParseRule

	// CommentSelector matches one element per comment. CommentAuthor and
	// CommentText select inside it; without CommentAuthor the first word
	// of the element text is taken as the author.
	CommentSelector string
	CommentAuthor   string
	CommentText     string

	// ProfileRules extract "username" and "followers" from a profile page.
	ProfileRules []config.ParseRule
	// PostLinks lists path fragments that mark a link as a post page.
	PostLinks []string
	// MaxPosts caps the post pages visited per profile.
	MaxPosts int

	// Kind is the record kind when the URL does not tell.
	Kind types.PostType
}

// Page scrapes rendered HTML pages using selector rules plus structured
// data (JSON-LD, OpenGraph, meta tags).
type Page struct {
	client
	deps   Deps
	name   string
	layout PageLayout
}

// NewPage creates a DOM adapter for platform name. Rules configured for
// the platform replace the layout's post rules.
func NewPage(name string, cfg config.PlatformConfig, layout PageLayout, deps Deps) *Page {
	if len(cfg.Rules) > 0 {
		layout.Rules = cfg.Rules
	}
	if layout.MaxPosts <= 0 {
		layout.MaxPosts = defaultProfilePosts
	}
	return &Page{client: newClient(name, cfg, deps), deps: deps, name: name, layout: layout}
}

// Name implements Adapter.
func (p *Page) Name() string { return p.name }

// NewInstagram creates the instagram page adapter.
func NewInstagram(cfg config.PlatformConfig, deps Deps) *Page {
	return NewPage("instagram", cfg, PageLayout{
		Rules: []config.ParseRule{
			{Name: "post_text", Selector: "article h1"},
			{Name: "author", Selector: "header a"},
			{Name: "likes", Selector: "section button span"},
			{Name: "timestamp", Selector: "time", Attribute: "datetime"},
		},
		CommentSelector: "article ul li",
		ProfileRules: []config.ParseRule{
			{Name: "username", Selector: "header h2, header h1"},
			{Name: "followers", Selector: `a[href*="followers"] span`},
		},
		PostLinks: []string{"/p/", "/reel/"},
		Kind:      types.PostTypePost,
	}, deps)
}

// NewLinkedIn creates the linkedin page adapter.
func NewLinkedIn(cfg config.PlatformConfig, deps Deps) *Page {
	return NewPage("linkedin", cfg, PageLayout{
		Rules: []config.ParseRule{
			{Name: "post_text", Selector: ".feed-shared-text"},
			{Name: "author", Selector: ".feed-shared-actor__name"},
			{Name: "reactions", Selector: ".social-details-social-counts__reactions-count"},
			{Name: "timestamp", Selector: "time", Attribute: "datetime"},
		},
		CommentSelector: ".comments-comment-item",
		CommentAuthor:   ".comments-comment-item__commenter-name",
		CommentText:     ".comments-comment-item-content-body",
		ProfileRules: []config.ParseRule{
			{Name: "username", Selector: "h1"},
			{Name: "followers", Selector: ".pv-top-card--list-bullet li"},
		},
		PostLinks: []string{"/posts/", "/feed/update/"},
		Kind:      types.PostTypePost,
	}, deps)
}

// NewGeneric creates the adapter for arbitrary pages. It only scrapes
// single URLs.
func NewGeneric(cfg config.PlatformConfig, deps Deps) *Generic {
	return &Generic{page: NewPage("generic", cfg, PageLayout{
		Rules: []config.ParseRule{
			{Name: "title", Selector: "h1"},
			{Name: "timestamp", Selector: "time", Attribute: "datetime"},
			{Name: "author", Selector: `[rel="author"], .author`},
		},
		CommentSelector: ".comment, .comment-item",
		Kind:            types.PostTypePost,
	}, deps)}
}

// Generic exposes only the single-URL capability of a Page adapter.
type Generic struct {
	page *Page
}

// Name implements Adapter.
func (g *Generic) Name() string { return "generic" }

// ScrapeSingle implements SingleScraper.
func (g *Generic) ScrapeSingle(ctx context.Context, rawURL string) (*types.Record, error) {
	return g.page.ScrapeSingle(ctx, rawURL)
}

// ScrapeSingle reads one post page.
func (p *Page) ScrapeSingle(ctx context.Context, rawURL string) (*types.Record, error) {
	resp, err := p.getPage(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if p.deps.Parser == nil {
		return nil, fmt.Errorf("%s: no page parser configured", p.name)
	}

	rec, _, err := p.deps.Parser.Parse(resp, p.layout.Rules)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, &types.ParseError{URL: rawURL, Err: fmt.Errorf("%w: page yielded no content", types.ErrMalformed)}
	}

	collapseLists(rec)
	rec.URL = rawURL
	rec.Platform = p.name
	rec.Kind = string(p.layout.Kind)
	if kind := DetectPostType(rawURL); kind != types.PostTypeProfile {
		rec.Kind = string(kind)
	}
	applyOGCounts(rec)

	if doc, err := resp.Document(); err == nil {
		for _, c := range p.comments(doc, rawURL) {
			rec.AddComment(c)
		}
	}
	return rec, nil
}

// ScrapeProfile reads the profile page, then visits up to MaxPosts linked
// post pages. A post page that fails is skipped.
func (p *Page) ScrapeProfile(ctx context.Context, profileURL string, start, end time.Time) (*Result, error) {
	if len(p.layout.PostLinks) == 0 {
		return nil, types.Unsupported(p.name, "profile scraping")
	}

	resp, err := p.getPage(ctx, profileURL)
	if err != nil {
		return nil, err
	}
	doc, err := resp.Document()
	if err != nil {
		return nil, err
	}

	res := &Result{Query: profileURL}
	if len(p.layout.ProfileRules) > 0 && p.deps.Parser != nil {
		if prof, _, err := p.deps.Parser.Parse(resp, p.layout.ProfileRules); err == nil && prof != nil {
			collapseLists(prof)
			res.Username = strings.TrimSpace(prof.GetString("username"))
			res.Audience = pipeline.ParseCount(prof.GetString("followers"))
		}
	}

	var records []*types.Record
	for _, link := range p.postLinks(doc, profileURL) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		rec, err := p.ScrapeSingle(ctx, link)
		if err != nil {
			p.logger.Debug("profile post skipped", "url", link, "error", err)
			continue
		}
		records = append(records, rec)
	}

	res.Records = filterWindow(records, start, end)
	res.Total = len(res.Records)
	return res, nil
}

// postLinks collects distinct post URLs from a profile page in page order.
func (p *Page) postLinks(doc *goquery.Document, base string) []string {
	var links []string
	for _, link := range parser.ExtractLinks(doc, base) {
		for _, frag := range p.layout.PostLinks {
			if strings.Contains(link, frag) {
				links = append(links, link)
				break
			}
		}
		if len(links) >= p.layout.MaxPosts {
			break
		}
	}
	return links
}

var leadingAuthor = regexp.MustCompile(`^(\S+)\s+(.+)$`)

func (p *Page) comments(doc *goquery.Document, pageURL string) []*types.Record {
	if p.layout.CommentSelector == "" {
		return nil
	}

	var out []*types.Record
	doc.Find(p.layout.CommentSelector).EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if len(out) >= maxPageComments {
			return false
		}

		var author, text string
		if p.layout.CommentAuthor != "" {
			author = strings.TrimSpace(sel.Find(p.layout.CommentAuthor).First().Text())
			text = strings.TrimSpace(sel.Find(p.layout.CommentText).First().Text())
		} else {
			text = strings.TrimSpace(sel.Text())
			if m := leadingAuthor.FindStringSubmatch(text); m != nil && p.name != "generic" {
				author, text = m[1], m[2]
			}
		}
		if len(text) <= 2 || len(text) > 1000 {
			return true
		}

		c := types.NewRecord(p.name, pageURL)
		c.Kind = string(types.PostTypeComment)
		if author != "" {
			c.Set("user", author)
		}
		c.Set("text", text)
		if ts, ok := sel.Find("time").Attr("datetime"); ok {
			c.Set("timestamp", ts)
		}
		out = append(out, c)
		return true
	})
	return out
}

// ogCountsPattern matches Instagram-style descriptions such as
// "1,204 likes, 37 comments - user on ...".
var ogCountsPattern = regexp.MustCompile(`(?i)([\d.,]+[KMB]?)\s+likes?,\s*([\d.,]+[KMB]?)\s+comments?`)

// applyOGCounts fills likes and comment counts from the page description
// when selectors found none.
func applyOGCounts(rec *types.Record) {
	m := ogCountsPattern.FindStringSubmatch(rec.GetString("description"))
	if m == nil {
		return
	}
	if !rec.Has("likes") {
		rec.Set("likes", m[1])
	}
	if !rec.Has("num_comments") {
		rec.Set("num_comments", m[2])
	}
}
