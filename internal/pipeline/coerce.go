package pipeline

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var (
	countMatchRe  = regexp.MustCompile(`^(\d+(?:\.\d+)?|\.\d+)\s*([KMB])?\b`)
	hashtagRe     = regexp.MustCompile(`#(\w+)`)
	mentionRe     = regexp.MustCompile(`@(\w+)`)
	countSuffixes = map[string]float64{"K": 1e3, "M": 1e6, "B": 1e9}
)

// ParseCount coerces an engagement count into an integer. Numbers pass
// through (floats are floored); strings may carry a K/M/B suffix such as
// "12.3K". Only the leading magnitude counts, so "2.1K comments" is 2100.
// Anything unparseable yields 0.
func ParseCount(v any) int64 {
	switch n := v.(type) {
	case nil:
		return 0
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case uint:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		return int64(n)
	case float32:
		return floorCount(float64(n))
	case float64:
		return floorCount(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return floorCount(f)
		}
		return 0
	case bool:
		return 0
	case string:
		return parseCountString(n)
	default:
		return 0
	}
}

func parseCountString(s string) int64 {
	cleaned := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
	m := countMatchRe.FindStringSubmatch(cleaned)
	if m == nil {
		return 0
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	if mult, ok := countSuffixes[m[2]]; ok {
		f *= mult
	}
	return floorCount(f)
}

// floorCount floors f, absorbing binary rounding noise such as
// 4.35*1000 = 4349.999999999999.
func floorCount(f float64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int64(math.Floor(f + 1e-9))
}

// CleanText collapses runs of whitespace into single spaces and trims the ends.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ExtractHashtags returns lower-cased hashtags (with their leading #) in
// order of appearance.
func ExtractHashtags(text string) []string {
	matches := hashtagRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tags = append(tags, "#"+strings.ToLower(m[1]))
	}
	return tags
}

// ExtractMentions returns mentioned handles without the leading @.
func ExtractMentions(text string) []string {
	matches := mentionRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	mentions := make([]string, 0, len(matches))
	for _, m := range matches {
		mentions = append(mentions, m[1])
	}
	return mentions
}

// ParseTimestamp converts a source timestamp into an absolute UTC time.
// Numbers are unix seconds (or milliseconds when large enough); strings go
// through RFC3339 and then dateparse. ok is false when nothing usable was
// found, in which case now is returned.
func ParseTimestamp(v any, now time.Time) (t time.Time, ok bool) {
	switch ts := v.(type) {
	case time.Time:
		if ts.IsZero() {
			return now, false
		}
		return ts.UTC(), true
	case *time.Time:
		if ts == nil || ts.IsZero() {
			return now, false
		}
		return ts.UTC(), true
	case int, int32, int64, float32, float64, json.Number:
		return fromUnix(ParseCountFloat(ts), now)
	case string:
		s := strings.TrimSpace(ts)
		if s == "" {
			return now, false
		}
		if parsed, err := time.Parse(time.RFC3339, s); err == nil {
			return parsed.UTC(), true
		}
		if parsed, err := dateparse.ParseIn(s, time.UTC); err == nil {
			return parsed.UTC(), true
		}
		return now, false
	default:
		return now, false
	}
}

// ParseCountFloat is ParseCount without the integer floor, for numeric inputs.
func ParseCountFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	case json.Number:
		f, _ := n.Float64()
		return f
	default:
		return float64(ParseCount(v))
	}
}

func fromUnix(f float64, now time.Time) (time.Time, bool) {
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return now, false
	}
	// Values past year 2286 in seconds are treated as milliseconds.
	if f > 1e10 {
		return time.UnixMilli(int64(f)).UTC(), true
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
}
