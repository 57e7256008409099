package parser

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/eventscope/internal/config"
	"github.com/IshaanNene/eventscope/internal/types"
)

// Parser extracts a raw record and outbound links from a fetched page.
type Parser interface {
	// Parse applies rules to resp. The record is nil when nothing matched.
	Parse(resp *types.Response, rules []config.ParseRule) (*types.Record, []string, error)
}

// Rule types understood by RuleParser. An empty type means css.
const (
	RuleCSS   = "css"
	RuleXPath = "xpath"
	RuleRegex = "regex"
)

// RuleParser runs css, xpath and regex rules against one decoded document
// and then fills the gaps from the page's structured data.
type RuleParser struct {
	logger *slog.Logger

	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
}

var _ Parser = (*RuleParser)(nil)

// New creates a RuleParser.
func New(logger *slog.Logger) *RuleParser {
	return &RuleParser{
		logger:   logger.With("component", "parser"),
		patterns: make(map[string]*regexp.Regexp),
	}
}

// Parse implements Parser. Rule matches take precedence over structured
// data. An undecodable body is the only hard failure; a broken rule is
// logged and skipped.
func (p *RuleParser) Parse(resp *types.Response, rules []config.ParseRule) (*types.Record, []string, error) {
	doc, err := resp.Document()
	if err != nil {
		return nil, nil, err
	}

	pg := &page{resp: resp, doc: doc}
	links := ExtractLinks(doc, pg.url())

	rec := pg.record()
	for _, rule := range rules {
		values, err := p.apply(pg, rule)
		if err != nil {
			p.logger.Warn("rule skipped", "url", pg.url(), "rule", rule.Name, "type", rule.Type, "error", err)
			continue
		}
		setValues(rec, rule.Name, values)
	}

	ApplyBlocks(rec, Blocks(doc))

	if len(rec.Fields) == 0 {
		return nil, links, nil
	}
	return rec, links, nil
}

// Rule runs a single rule against resp without structured data.
func (p *RuleParser) Rule(resp *types.Response, rule config.ParseRule) ([]string, error) {
	doc, err := resp.Document()
	if err != nil {
		return nil, err
	}
	return p.apply(&page{resp: resp, doc: doc}, rule)
}

func (p *RuleParser) apply(pg *page, rule config.ParseRule) ([]string, error) {
	switch strings.ToLower(rule.Type) {
	case "", RuleCSS:
		return selectCSS(pg.doc.Selection, rule), nil
	case RuleXPath:
		return selectXPath(pg.doc, rule)
	case RuleRegex:
		re, err := p.compile(rule.Pattern)
		if err != nil {
			return nil, &types.ParseError{URL: pg.url(), Selector: rule.Pattern, Err: err}
		}
		return matchRegex(re, pg.text()), nil
	default:
		return nil, fmt.Errorf("unknown rule type %q", rule.Type)
	}
}

func (p *RuleParser) compile(pattern string) (*regexp.Regexp, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if re, ok := p.patterns[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	p.patterns[pattern] = re
	return re, nil
}

// page is one response and its decoded document.
type page struct {
	resp *types.Response
	doc  *goquery.Document
	body string
}

func (pg *page) url() string {
	if pg.resp.FinalURL != "" {
		return pg.resp.FinalURL
	}
	if pg.resp.Request != nil {
		return pg.resp.Request.URLString()
	}
	return ""
}

func (pg *page) text() string {
	if pg.body == "" {
		pg.body = string(pg.resp.Body)
	}
	return pg.body
}

func (pg *page) record() *types.Record {
	platform := ""
	if pg.resp.Request != nil {
		platform = pg.resp.Request.Platform
	}
	return types.NewRecord(platform, pg.url())
}

// setValues stores one value as a scalar and several as a list.
func setValues(rec *types.Record, name string, values []string) {
	switch len(values) {
	case 0:
	case 1:
		rec.Set(name, values[0])
	default:
		rec.Set(name, values)
	}
}
