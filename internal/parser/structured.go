package parser

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/eventscope/internal/types"
)

// BlockKind names where a block of page metadata came from.
type BlockKind string

const (
	JSONLD      BlockKind = "json_ld"
	Microdata   BlockKind = "microdata"
	OpenGraph   BlockKind = "opengraph"
	TwitterCard BlockKind = "twitter_card"
	MetaTags    BlockKind = "meta"
)

// Block is one piece of machine-readable metadata found on a post page.
type Block struct {
	Kind BlockKind
	Data map[string]any
}

// Blocks collects the JSON-LD, microdata, OpenGraph, Twitter card and
// plain meta tags of doc, in that order.
func Blocks(doc *goquery.Document) []Block {
	var blocks []Block
	blocks = append(blocks, jsonLD(doc)...)
	blocks = append(blocks, microdata(doc)...)
	for _, b := range []Block{
		prefixedMeta(doc, OpenGraph, "og:"),
		prefixedMeta(doc, TwitterCard, "twitter:"),
		metaTags(doc),
	} {
		if len(b.Data) > 0 {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

// jsonLD decodes every ld+json script. A script holding a list or an
// @graph yields one block per entry.
func jsonLD(doc *goquery.Document) []Block {
	var blocks []Block
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var v any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &v); err != nil {
			return
		}
		for _, obj := range flattenLD(v) {
			blocks = append(blocks, Block{Kind: JSONLD, Data: obj})
		}
	})
	return blocks
}

func flattenLD(v any) []map[string]any {
	switch t := v.(type) {
	case map[string]any:
		if graph, ok := t["@graph"]; ok {
			return flattenLD(graph)
		}
		return []map[string]any{t}
	case []any:
		var out []map[string]any
		for _, item := range t {
			out = append(out, flattenLD(item)...)
		}
		return out
	}
	return nil
}

// microdata reads top-level itemscope elements.
func microdata(doc *goquery.Document) []Block {
	var blocks []Block
	doc.Find("[itemscope]:not([itemscope] [itemscope])").Each(func(_ int, scope *goquery.Selection) {
		data := make(map[string]any)
		if t, ok := scope.Attr("itemtype"); ok && t != "" {
			data["@type"] = t
		}
		scope.Find("[itemprop]").Each(func(_ int, prop *goquery.Selection) {
			name, _ := prop.Attr("itemprop")
			if name == "" {
				return
			}
			if v := itemValue(prop); v != "" {
				data[name] = v
			}
		})
		if len(data) > 0 {
			blocks = append(blocks, Block{Kind: Microdata, Data: data})
		}
	})
	return blocks
}

func itemValue(prop *goquery.Selection) string {
	for _, attr := range []string{"content", "datetime", "href", "src"} {
		if v, ok := prop.Attr(attr); ok {
			return strings.TrimSpace(v)
		}
	}
	return strings.TrimSpace(prop.Text())
}

// prefixedMeta gathers meta tags whose property or name starts with prefix,
// keyed without the prefix.
func prefixedMeta(doc *goquery.Document, kind BlockKind, prefix string) Block {
	data := make(map[string]any)
	doc.Find("meta[content]").Each(func(_ int, s *goquery.Selection) {
		key, _ := s.Attr("property")
		if !strings.HasPrefix(key, prefix) {
			key, _ = s.Attr("name")
		}
		if !strings.HasPrefix(key, prefix) {
			return
		}
		if content, _ := s.Attr("content"); content != "" {
			data[strings.TrimPrefix(key, prefix)] = content
		}
	})
	return Block{Kind: kind, Data: data}
}

func metaTags(doc *goquery.Document) Block {
	data := make(map[string]any)
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		data["title"] = title
	}
	for key, sel := range map[string]string{
		"description":    `meta[name="description"]`,
		"author":         `meta[name="author"]`,
		"keywords":       `meta[name="keywords"]`,
		"published_time": `meta[property="article:published_time"], meta[itemprop="datePublished"]`,
	} {
		if v, ok := doc.Find(sel).Attr("content"); ok && v != "" {
			data[key] = v
		}
	}
	if v, ok := doc.Find(`link[rel="canonical"]`).Attr("href"); ok && v != "" {
		data["canonical"] = v
	}
	return Block{Kind: MetaTags, Data: data}
}

// Record keys filled from schema.org objects, in priority order.
var (
	titleKeys   = []string{"headline", "name", "title"}
	textKeys    = []string{"articleBody", "text", "caption", "description"}
	createdKeys = []string{"datePublished", "uploadDate", "dateCreated"}
)

// ApplyBlocks copies post fields out of blocks into rec. Values already in
// rec win. Each raw block is also kept under its kind.
func ApplyBlocks(rec *types.Record, blocks []Block) {
	for _, b := range blocks {
		switch b.Kind {
		case JSONLD, Microdata:
			fill(rec, "title", first(b.Data, titleKeys))
			fill(rec, "text", first(b.Data, textKeys))
			fill(rec, "author", authorName(b.Data["author"]))
			fill(rec, "created_at", first(b.Data, createdKeys))
			fill(rec, "num_comments", b.Data["commentCount"])
			applyInteractions(rec, b.Data["interactionStatistic"])
		case OpenGraph, TwitterCard:
			fill(rec, "title", b.Data["title"])
			fill(rec, "description", b.Data["description"])
		case MetaTags:
			fill(rec, "title", b.Data["title"])
			fill(rec, "description", b.Data["description"])
			fill(rec, "author", b.Data["author"])
			fill(rec, "created_at", b.Data["published_time"])
			continue
		}
		rec.Set(string(b.Kind), b.Data)
	}
}

func fill(rec *types.Record, key string, v any) {
	if v == nil || rec.Has(key) {
		return
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return
	}
	rec.Set(key, v)
}

func first(data map[string]any, keys []string) any {
	for _, k := range keys {
		if s, ok := data[k].(string); ok && s != "" {
			return s
		}
	}
	return nil
}

// authorName reads a schema.org author: a string, a Person object or a list.
func authorName(v any) any {
	switch a := v.(type) {
	case string:
		return a
	case map[string]any:
		if name, ok := a["name"].(string); ok {
			return name
		}
		if name, ok := a["alternateName"].(string); ok {
			return name
		}
	case []any:
		if len(a) > 0 {
			return authorName(a[0])
		}
	}
	return nil
}

// applyInteractions maps InteractionCounter entries onto likes,
// num_comments and shares.
func applyInteractions(rec *types.Record, v any) {
	counters, ok := v.([]any)
	if !ok {
		if single, isMap := v.(map[string]any); isMap {
			counters = []any{single}
		}
	}

	for _, c := range counters {
		counter, ok := c.(map[string]any)
		if !ok {
			continue
		}
		var action string
		switch t := counter["interactionType"].(type) {
		case string:
			action = t
		case map[string]any:
			action, _ = t["@type"].(string)
		}
		count := counter["userInteractionCount"]
		switch {
		case strings.HasSuffix(action, "LikeAction"):
			fill(rec, "likes", count)
		case strings.HasSuffix(action, "CommentAction"):
			fill(rec, "num_comments", count)
		case strings.HasSuffix(action, "ShareAction"):
			fill(rec, "shares", count)
		}
	}
}
