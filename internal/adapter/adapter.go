// Package adapter fetches raw records from individual content sources.
//
// Every source implements Adapter plus any subset of the capability
// interfaces EventSearcher, ProfileScraper and SingleScraper. Adapters only
// fetch; normalization and scoring happen downstream.
package adapter

import (
	"context"
	"log/slog"
	"time"

	"github.com/IshaanNene/eventscope/internal/config"
	"github.com/IshaanNene/eventscope/internal/fetcher"
	"github.com/IshaanNene/eventscope/internal/pagination"
	"github.com/IshaanNene/eventscope/internal/parser"
	"github.com/IshaanNene/eventscope/internal/types"
)

// Adapter is implemented by every source.
type Adapter interface {
	// Name returns the lower-case platform name used for registry lookup.
	Name() string
}

// EventSearcher finds records mentioning an event inside [start, end).
// Zero matches is an empty Result, not an error.
type EventSearcher interface {
	SearchEvent(ctx context.Context, query string, start, end time.Time) (*Result, error)
}

// ProfileScraper collects the records published by one account or
// community inside [start, end).
type ProfileScraper interface {
	ScrapeProfile(ctx context.Context, profileURL string, start, end time.Time) (*Result, error)
}

// SingleScraper fetches the record behind one URL.
type SingleScraper interface {
	ScrapeSingle(ctx context.Context, rawURL string) (*types.Record, error)
}

// Result is the raw outcome of a search or profile scrape.
type Result struct {
	Query   string
	Records []*types.Record
	Total   int

	// Username and Audience describe the scraped profile when known.
	Username string
	Audience int64

	Stats pagination.Stats
}

// SearchEvent calls a's EventSearcher capability.
func SearchEvent(ctx context.Context, a Adapter, query string, start, end time.Time) (*Result, error) {
	s, ok := a.(EventSearcher)
	if !ok {
		return nil, types.Unsupported(a.Name(), "event search")
	}
	return s.SearchEvent(ctx, query, start, end)
}

// ScrapeProfile calls a's ProfileScraper capability.
func ScrapeProfile(ctx context.Context, a Adapter, profileURL string, start, end time.Time) (*Result, error) {
	s, ok := a.(ProfileScraper)
	if !ok {
		return nil, types.Unsupported(a.Name(), "profile scraping")
	}
	return s.ScrapeProfile(ctx, profileURL, start, end)
}

// ScrapeSingle calls a's SingleScraper capability.
func ScrapeSingle(ctx context.Context, a Adapter, rawURL string) (*types.Record, error) {
	s, ok := a.(SingleScraper)
	if !ok {
		return nil, types.Unsupported(a.Name(), "single URL scraping")
	}
	return s.ScrapeSingle(ctx, rawURL)
}

// Capabilities lists what an adapter supports.
type Capabilities struct {
	Search  bool `json:"search"`
	Profile bool `json:"profile"`
	Single  bool `json:"single"`
}

// CapabilitiesOf inspects a.
func CapabilitiesOf(a Adapter) Capabilities {
	_, search := a.(EventSearcher)
	_, profile := a.(ProfileScraper)
	_, single := a.(SingleScraper)
	return Capabilities{Search: search, Profile: profile, Single: single}
}

// Deps are the collaborators shared by all adapters.
type Deps struct {
	Fetcher     fetcher.Fetcher
	Parser      parser.Parser
	Pagination  config.PaginationConfig
	MaxComments int
	MaxDepth    int
	Logger      *slog.Logger

	// Now is the clock used for relative time ranges. Defaults to time.Now.
	Now func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now == nil {
		return time.Now().UTC()
	}
	return d.Now().UTC()
}

func (d Deps) maxComments() int {
	if d.MaxComments <= 0 {
		return 500
	}
	return d.MaxComments
}

func (d Deps) maxDepth() int {
	if d.MaxDepth <= 0 {
		return 10
	}
	return d.MaxDepth
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}
