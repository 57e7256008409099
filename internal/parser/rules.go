package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/eventscope/internal/config"
)

// selectCSS returns the non-empty values of every match of rule under root.
func selectCSS(root *goquery.Selection, rule config.ParseRule) []string {
	return values(root.Find(rule.Selector), rule.Attribute)
}

// selectXPath evaluates rule against the document tree goquery already built
// and reads the matches the same way selectCSS does.
func selectXPath(doc *goquery.Document, rule config.ParseRule) ([]string, error) {
	var matched []*html.Node
	for _, root := range doc.Nodes {
		nodes, err := htmlquery.QueryAll(root, rule.Selector)
		if err != nil {
			return nil, fmt.Errorf("invalid xpath %q: %w", rule.Selector, err)
		}
		matched = append(matched, nodes...)
	}
	if len(matched) == 0 {
		return nil, nil
	}
	return values(doc.FindNodes(matched...), rule.Attribute), nil
}

// values reads attr from each node in sel. "text" (or empty) is the trimmed
// text content; "html" and "outerHTML" return markup.
func values(sel *goquery.Selection, attr string) []string {
	var out []string
	sel.Each(func(_ int, s *goquery.Selection) {
		var v string
		switch attr {
		case "", "text":
			v = strings.Join(strings.Fields(s.Text()), " ")
		case "html", "innerHTML":
			v, _ = s.Html()
		case "outerHTML":
			v, _ = goquery.OuterHtml(s)
		case "href", "src":
			v, _ = s.Attr(attr)
			v = strings.TrimSpace(v)
		default:
			v, _ = s.Attr(attr)
		}
		if v != "" {
			out = append(out, v)
		}
	})
	return out
}

// matchRegex returns, per match, the named groups if the pattern has any,
// else the first group, else the whole match.
func matchRegex(re *regexp.Regexp, body string) []string {
	matches := re.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return nil
	}

	var named []int
	for i, name := range re.SubexpNames() {
		if name != "" {
			named = append(named, i)
		}
	}

	var out []string
	for _, m := range matches {
		switch {
		case len(named) > 0:
			for _, i := range named {
				if m[i] != "" {
					out = append(out, m[i])
				}
			}
		case len(m) > 1:
			if m[1] != "" {
				out = append(out, m[1])
			}
		default:
			out = append(out, m[0])
		}
	}
	return out
}

// ExtractLinks returns the distinct absolute http(s) links of the document
// in page order, without fragments.
func ExtractLinks(doc *goquery.Document, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var links []string
	for _, href := range values(doc.Find("a[href]"), "href") {
		if strings.HasPrefix(href, "#") {
			continue
		}
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			continue
		}
		abs.Fragment = ""
		link := abs.String()
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}
		links = append(links, link)
	}
	return links
}
