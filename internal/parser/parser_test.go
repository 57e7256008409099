package parser

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/IshaanNene/eventscope/internal/config"
	"github.com/IshaanNene/eventscope/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

const testHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Launch Night Recap</title>
    <meta name="description" content="Recap of the launch night">
    <meta name="author" content="meta-author">
    <meta property="og:title" content="OG Launch Title">
    <meta property="og:description" content="1,204 likes, 37 comments - crowd on Instagram">
    <meta property="article:published_time" content="2024-06-01T18:30:00Z">
    <meta name="twitter:card" content="summary">
    <script type="application/ld+json">
    {"@context":"https://schema.org","@type":"SocialMediaPosting",
     "headline":"Launch Night","articleBody":"What a show #launch",
     "author":{"@type":"Person","name":"alice"},
     "datePublished":"2024-06-01T18:00:00Z",
     "interactionStatistic":[
       {"@type":"InteractionCounter","interactionType":"https://schema.org/LikeAction","userInteractionCount":120},
       {"@type":"InteractionCounter","interactionType":{"@type":"CommentAction"},"userInteractionCount":14},
       {"@type":"InteractionCounter","interactionType":"https://schema.org/ShareAction","userInteractionCount":3}
     ]}
    </script>
</head>
<body>
    <h1 class="title">Hello World</h1>
    <div class="content">
        <p class="intro">This is a test paragraph.</p>
        <a href="/page2">Link 1</a>
        <a href="https://example.com/page3#top">Link 2</a>
        <a href="/page2">Duplicate</a>
        <a href="mailto:someone@example.com">Mail</a>
    </div>
    <ul class="items">
        <li>Item 1</li>
        <li>Item 2</li>
        <li>Item 3</li>
    </ul>
    <span class="likes">Liked by 2.5K people</span>
</body>
</html>`

func makeResp(url, body string) *types.Response {
	req, _ := types.NewRequest(url)
	req.Platform = "generic"
	return &types.Response{
		Request:     req,
		StatusCode:  200,
		Body:        []byte(body),
		ContentType: "text/html",
	}
}

func TestRuleTypes(t *testing.T) {
	p := New(testLogger)
	resp := makeResp("https://example.com/post/1", testHTML)

	tests := []struct {
		name    string
		rule    config.ParseRule
		want    []string
		wantErr bool
	}{
		{
			name: "css text",
			rule: config.ParseRule{Type: "css", Selector: "h1.title"},
			want: []string{"Hello World"},
		},
		{
			name: "css default type",
			rule: config.ParseRule{Selector: "ul.items li"},
			want: []string{"Item 1", "Item 2", "Item 3"},
		},
		{
			name: "css attribute",
			rule: config.ParseRule{Selector: `meta[property="og:title"]`, Attribute: "content"},
			want: []string{"OG Launch Title"},
		},
		{
			name: "xpath text",
			rule: config.ParseRule{Type: "xpath", Selector: "//h1[@class='title']"},
			want: []string{"Hello World"},
		},
		{
			name: "xpath attribute",
			rule: config.ParseRule{Type: "xpath", Selector: "(//div[@class='content']/a)[1]", Attribute: "href"},
			want: []string{"/page2"},
		},
		{
			name:    "xpath invalid",
			rule:    config.ParseRule{Type: "xpath", Selector: "//h1[@class="},
			wantErr: true,
		},
		{
			name: "regex first group",
			rule: config.ParseRule{Type: "regex", Pattern: `Liked by ([0-9.]+[KMB]?) people`},
			want: []string{"2.5K"},
		},
		{
			name: "regex named group",
			rule: config.ParseRule{Type: "regex", Pattern: `(?P<count>[0-9,]+) comments`},
			want: []string{"37"},
		},
		{
			name: "regex whole match",
			rule: config.ParseRule{Type: "regex", Pattern: `#launch`},
			want: []string{"#launch"},
		},
		{
			name:    "regex invalid",
			rule:    config.ParseRule{Type: "regex", Pattern: `([`},
			wantErr: true,
		},
		{
			name:    "unknown type",
			rule:    config.ParseRule{Type: "jsonpath", Selector: "$.x"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Rule(resp, tt.rule)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("value[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseLinks(t *testing.T) {
	p := New(testLogger)
	resp := makeResp("https://example.com/post/1", testHTML)

	_, links, err := p.Parse(resp, nil)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	want := []string{"https://example.com/page2", "https://example.com/page3"}
	if len(links) != len(want) {
		t.Fatalf("links = %v, want %v", links, want)
	}
	for i := range want {
		if links[i] != want[i] {
			t.Errorf("links[%d] = %q, want %q", i, links[i], want[i])
		}
	}
}

func TestBlocks(t *testing.T) {
	resp := makeResp("https://example.com", testHTML)
	doc, err := resp.Document()
	if err != nil {
		t.Fatalf("document: %v", err)
	}

	found := make(map[BlockKind]bool)
	for _, b := range Blocks(doc) {
		found[b.Kind] = true
	}
	for _, kind := range []BlockKind{JSONLD, OpenGraph, TwitterCard, MetaTags} {
		if !found[kind] {
			t.Errorf("missing %s block", kind)
		}
	}
	if found[Microdata] {
		t.Error("page has no microdata")
	}
}

func TestBlocksGraph(t *testing.T) {
	body := `<html><head><script type="application/ld+json">
	{"@graph":[{"@type":"WebPage","name":"Page"},{"@type":"SocialMediaPosting","headline":"Post"}]}
	</script></head><body></body></html>`
	doc, err := makeResp("https://example.com", body).Document()
	if err != nil {
		t.Fatalf("document: %v", err)
	}

	blocks := Blocks(doc)
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want one per @graph entry", len(blocks))
	}
}

func TestApplyBlocks(t *testing.T) {
	doc, err := makeResp("https://example.com", testHTML).Document()
	if err != nil {
		t.Fatalf("document: %v", err)
	}

	rec := types.NewRecord("generic", "https://example.com")
	rec.Set("title", "From rule")
	ApplyBlocks(rec, Blocks(doc))

	if got := rec.GetString("title"); got != "From rule" {
		t.Errorf("existing title overwritten: %q", got)
	}
	if got := rec.GetString("text"); got != "What a show #launch" {
		t.Errorf("text = %q", got)
	}
	if got := rec.GetString("author"); got != "alice" {
		t.Errorf("author = %q, want JSON-LD author", got)
	}
	if got := rec.GetString("created_at"); got != "2024-06-01T18:00:00Z" {
		t.Errorf("created_at = %q", got)
	}
	if got := rec.GetString("description"); got != "1,204 likes, 37 comments - crowd on Instagram" {
		t.Errorf("description = %q", got)
	}

	counts := map[string]float64{"likes": 120, "num_comments": 14, "shares": 3}
	for key, want := range counts {
		v, _ := rec.Get(key)
		if got, ok := v.(float64); !ok || got != want {
			t.Errorf("%s = %v, want %v", key, v, want)
		}
	}
	if !rec.Has("json_ld") || !rec.Has("opengraph") {
		t.Error("raw structured blocks should be kept")
	}
}

func TestParse(t *testing.T) {
	p := New(testLogger)
	resp := makeResp("https://example.com/post/1", testHTML)

	rules := []config.ParseRule{
		{Name: "title", Type: "css", Selector: "h1.title"},
		{Name: "likes", Type: "regex", Pattern: `Liked by ([0-9.]+[KMB]?) people`},
		{Name: "intro", Type: "xpath", Selector: "//p[@class='intro']"},
		{Name: "entries", Selector: "ul.items li"},
		{Name: "broken", Type: "regex", Pattern: `([`},
	}

	rec, links, err := p.Parse(resp, rules)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if rec == nil {
		t.Fatal("expected a record")
	}
	if len(links) == 0 {
		t.Error("expected discovered links")
	}
	if rec.Platform != "generic" {
		t.Errorf("platform = %q, want generic", rec.Platform)
	}

	if got := rec.GetString("title"); got != "Hello World" {
		t.Errorf("title = %q, rule should win over structured data", got)
	}
	if got := rec.GetString("likes"); got != "2.5K" {
		t.Errorf("likes = %q, regex rule should win", got)
	}
	if got := rec.GetString("intro"); got != "This is a test paragraph." {
		t.Errorf("intro = %q", got)
	}
	if entries, ok := rec.Fields["entries"].([]string); !ok || len(entries) != 3 {
		t.Errorf("entries = %#v, want 3 values", rec.Fields["entries"])
	}
	if got := rec.GetString("author"); got != "alice" {
		t.Errorf("author = %q", got)
	}
	if rec.Has("broken") {
		t.Error("a broken rule should be skipped")
	}
}

func TestParseEmptyBody(t *testing.T) {
	p := New(testLogger)
	resp := makeResp("https://example.com", "")

	_, _, err := p.Parse(resp, nil)
	if !errors.Is(err, types.ErrMalformed) {
		t.Fatalf("err = %v, want malformed", err)
	}
}

func BenchmarkParse(b *testing.B) {
	p := New(testLogger)
	resp := makeResp("https://example.com", testHTML)
	rules := []config.ParseRule{
		{Name: "title", Type: "css", Selector: "h1.title"},
		{Name: "intro", Type: "xpath", Selector: "//p[@class='intro']"},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		resp.Doc = nil
		_, _, _ = p.Parse(resp, rules)
	}
}
