package adapter

import (
	"regexp"
	"strings"

	"github.com/IshaanNene/eventscope/internal/types"
)

var platformPatterns = []struct {
	name     string
	patterns []*regexp.Regexp
}{
	{"instagram", []*regexp.Regexp{regexp.MustCompile(`instagram\.com`), regexp.MustCompile(`instagr\.am`)}},
	{"twitter", []*regexp.Regexp{regexp.MustCompile(`twitter\.com`), regexp.MustCompile(`(^|[/.])x\.com`)}},
	{"reddit", []*regexp.Regexp{regexp.MustCompile(`reddit\.com`)}},
	{"linkedin", []*regexp.Regexp{regexp.MustCompile(`linkedin\.com`)}},
}

var postTypePatterns = []struct {
	kind    types.PostType
	pattern *regexp.Regexp
}{
	{types.PostTypeReel, regexp.MustCompile(`/reel/`)},
	{types.PostTypeVideo, regexp.MustCompile(`/video/|/v/|/watch|/tv/`)},
	{types.PostTypeStory, regexp.MustCompile(`/stories/`)},
	{types.PostTypePost, regexp.MustCompile(`/p/|/posts?/|/status/|/comments/`)},
	{types.PostTypeProfile, regexp.MustCompile(`/(u/|user/|@)`)},
}

var trailingSegment = regexp.MustCompile(`/([\w\-.]+)/?$`)

// DetectPlatform classifies a URL by host pattern. Anything unrecognized
// is "generic".
func DetectPlatform(rawURL string) string {
	u := strings.ToLower(rawURL)
	for _, p := range platformPatterns {
		for _, re := range p.patterns {
			if re.MatchString(u) {
				return p.name
			}
		}
	}
	return "generic"
}

// DetectPostType guesses the post type from URL path conventions. A URL
// ending in a bare path segment is taken to be a profile.
func DetectPostType(rawURL string) types.PostType {
	u := strings.ToLower(rawURL)
	for _, p := range postTypePatterns {
		if p.pattern.MatchString(u) {
			return p.kind
		}
	}
	if trailingSegment.MatchString(stripScheme(u)) {
		return types.PostTypeProfile
	}
	return types.PostTypePost
}

// stripScheme drops "scheme://host" so a bare host is not mistaken for a
// trailing path segment.
func stripScheme(u string) string {
	if i := strings.Index(u, "://"); i >= 0 {
		u = u[i+3:]
	}
	if i := strings.IndexByte(u, '/'); i >= 0 {
		return u[i:]
	}
	return ""
}
