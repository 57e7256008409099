package adapter

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"

	"github.com/IshaanNene/eventscope/internal/types"
)

// maxArticleChars bounds the text kept from an extracted article.
const maxArticleChars = 20000

// articleRecord runs readability over an article page.
func articleRecord(platform string, resp *types.Response, kind types.PostType) (*types.Record, error) {
	pageURL := resp.FinalURL
	if pageURL == "" && resp.Request != nil {
		pageURL = resp.Request.URLString()
	}
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w %q", types.ErrInvalidURL, pageURL)
	}

	article, err := readability.FromReader(bytes.NewReader(resp.Body), parsed)
	if err != nil {
		return nil, &types.ParseError{URL: pageURL, Err: fmt.Errorf("%w: %v", types.ErrMalformed, err)}
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" && article.Excerpt == "" {
		return nil, &types.ParseError{URL: pageURL, Err: fmt.Errorf("%w: no readable content", types.ErrMalformed)}
	}
	if runes := []rune(text); len(runes) > maxArticleChars {
		text = string(runes[:maxArticleChars])
	}

	rec := types.NewRecord(platform, pageURL)
	rec.Kind = string(kind)
	rec.Set("title", article.Title)
	rec.Set("text", text)
	rec.Set("description", article.Excerpt)
	if article.Byline != "" {
		rec.Set("author", article.Byline)
	}
	if article.SiteName != "" {
		rec.Set("source", article.SiteName)
	}
	if article.PublishedTime != nil {
		rec.Set("published_at", *article.PublishedTime)
	}
	if article.Language != "" {
		rec.Set("lang", article.Language)
	}
	return rec, nil
}
