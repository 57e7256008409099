package pipeline

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestParseCount(t *testing.T) {
	tests := []struct {
		in   any
		want int64
	}{
		{"12.3K", 12300},
		{"4M", 4000000},
		{"1.5B", 1500000000},
		{"not a number", 0},
		{42, 42},
		{int64(7), 7},
		{3.9, 3},
		{"1,234", 1234},
		{"4.35k", 4350},
		{" 987 ", 987},
		{"987 likes", 987},
		{"2.1K comments", 2100},
		{"1.2k Likes", 1200},
		{"3 Kids", 3},
		{"1,024 shares", 1024},
		{"views: 12", 0},
		{"", 0},
		{nil, 0},
		{true, 0},
		{json.Number("88"), 88},
		{map[string]any{}, 0},
	}

	for _, tt := range tests {
		if got := ParseCount(tt.in); got != tt.want {
			t.Errorf("ParseCount(%#v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestCleanText(t *testing.T) {
	got := CleanText("  hello\n\n  world \t again  ")
	if got != "hello world again" {
		t.Errorf("CleanText = %q", got)
	}
	if CleanText("   ") != "" {
		t.Error("expected whitespace-only input to clean to empty")
	}
}

func TestExtractHashtagsAndMentions(t *testing.T) {
	text := "Loved #TechConf2024 with @alice and @Bob_99! #AI rocks"

	tags := ExtractHashtags(text)
	if !reflect.DeepEqual(tags, []string{"#techconf2024", "#ai"}) {
		t.Errorf("hashtags = %v", tags)
	}
	mentions := ExtractMentions(text)
	if !reflect.DeepEqual(mentions, []string{"alice", "Bob_99"}) {
		t.Errorf("mentions = %v", mentions)
	}
	if ExtractHashtags("no tags here") != nil {
		t.Error("expected nil for no hashtags")
	}
}

func TestParseTimestamp(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		in     any
		want   time.Time
		wantOK bool
	}{
		{"rfc3339", "2024-03-15T10:00:00Z", time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC), true},
		{"unix seconds", float64(1710496800), time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC), true},
		{"unix millis", int64(1710496800000), time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC), true},
		{"free form", "2024-03-15 10:00:00", time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC), true},
		{"missing", nil, now, false},
		{"empty", "  ", now, false},
		{"garbage", "yesterday-ish", now, false},
		{"zero", 0, now, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.in, now)
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}
