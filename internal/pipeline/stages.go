package pipeline

import (
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/IshaanNene/eventscope/internal/types"
)

type builder func(opts map[string]any, logger *slog.Logger) Middleware

// builders maps configured middleware names to their constructors.
var builders = map[string]builder{
	"trim":           func(map[string]any, *slog.Logger) Middleware { return CollapseSpace() },
	"html_sanitize":  func(map[string]any, *slog.Logger) Middleware { return StripHTML() },
	"pii_redact":     func(_ map[string]any, l *slog.Logger) Middleware { return RedactPII(l) },
	"date_normalize": func(o map[string]any, _ *slog.Logger) Middleware { return NormalizeDates(stringList(o["fields"])) },
	"required_fields": func(o map[string]any, _ *slog.Logger) Middleware {
		return Require(stringList(o["fields"])...)
	},
	"field_rename": func(o map[string]any, _ *slog.Logger) Middleware {
		mapping := make(map[string]string)
		for k, v := range anyMap(o["mapping"]) {
			mapping[k] = fmt.Sprint(v)
		}
		return Rename(mapping)
	},
	"default_values": func(o map[string]any, _ *slog.Logger) Middleware { return Defaults(anyMap(o["values"])) },
}

// eachString rewrites every string field of rec with fn.
func eachString(rec *types.Record, fn func(key, s string) string) {
	for key, v := range rec.Fields {
		if s, ok := v.(string); ok && s != "" {
			rec.Fields[key] = fn(key, s)
		}
	}
}

// CollapseSpace trims string fields and collapses inner whitespace.
func CollapseSpace() Stage {
	return NewStage("trim", func(rec *types.Record) (*types.Record, error) {
		eachString(rec, func(_, s string) string { return CleanText(s) })
		return rec, nil
	})
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

// StripHTML removes tags and decodes entities in text fields. URLs are left
// alone.
func StripHTML() Stage {
	return NewStage("html_sanitize", func(rec *types.Record) (*types.Record, error) {
		eachString(rec, func(_, s string) string {
			if strings.HasPrefix(s, "http") || !strings.ContainsAny(s, "<&") {
				return s
			}
			return CleanText(html.UnescapeString(tagRe.ReplaceAllString(s, " ")))
		})
		return rec, nil
	})
}

// NormalizeDates rewrites the given fields as RFC3339 when they parse. The
// post creation keys are used when fields is empty. Unparseable values stay
// for the normalizer to default.
func NormalizeDates(fields []string) Stage {
	if len(fields) == 0 {
		fields = DefaultFieldMap().Created
	}
	return NewStage("date_normalize", func(rec *types.Record) (*types.Record, error) {
		for _, field := range fields {
			s := rec.GetString(field)
			if s == "" {
				continue
			}
			if t, ok := ParseTimestamp(s, time.Time{}); ok {
				rec.Set(field, t.Format(time.RFC3339))
			}
		}
		return rec, nil
	})
}

var piiPatterns = []struct {
	label string
	re    *regexp.Regexp
}{
	{"EMAIL", regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)},
	{"PHONE", regexp.MustCompile(`\+\d{1,3}[-.\s]?\(?\d{1,4}\)?[-.\s]?\d{1,4}[-.\s]?\d{1,9}`)},
	{"PHONE", regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`)},
}

// RedactPII masks e-mail addresses and phone numbers in post and comment
// text.
func RedactPII(logger *slog.Logger) Stage {
	logger = logger.With("component", "pii_redact")
	return NewStage("pii_redact", func(rec *types.Record) (*types.Record, error) {
		eachString(rec, func(key, s string) string {
			for _, p := range piiPatterns {
				if p.re.MatchString(s) {
					s = p.re.ReplaceAllString(s, "[REDACTED_"+p.label+"]")
					logger.Debug("redacted", "field", key, "kind", p.label)
				}
			}
			return s
		})
		return rec, nil
	})
}

// Require drops records where any of fields is missing or blank.
func Require(fields ...string) Stage {
	return NewStage("required_fields", func(rec *types.Record) (*types.Record, error) {
		for _, f := range fields {
			v, ok := rec.Get(f)
			if !ok || v == nil {
				return nil, nil
			}
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
				return nil, nil
			}
		}
		return rec, nil
	})
}

// Rename moves fields from old to new key.
func Rename(mapping map[string]string) Stage {
	return NewStage("field_rename", func(rec *types.Record) (*types.Record, error) {
		for from, to := range mapping {
			if v, ok := rec.Get(from); ok {
				rec.Delete(from)
				rec.Set(to, v)
			}
		}
		return rec, nil
	})
}

// Defaults fills fields the record lacks.
func Defaults(values map[string]any) Stage {
	return NewStage("default_values", func(rec *types.Record) (*types.Record, error) {
		for k, v := range values {
			if !rec.Has(k) {
				rec.Set(k, v)
			}
		}
		return rec, nil
	})
}

func anyMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		var out []string
		for _, s := range strings.Split(list, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
