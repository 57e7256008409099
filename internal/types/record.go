package types

import (
	"encoding/json"
	"time"
)

// Record is a raw, source-shaped payload produced by a platform adapter
// before normalization.
type Record struct {
	// Fields stores the extracted key-value data in the source's own naming.
	Fields map[string]any

	// URL is the canonical link to the item on its platform.
	URL string

	// Platform identifies which adapter produced this record.
	Platform string

	// Kind is the source-assigned item type (e.g. "tweet", "news_article").
	Kind string

	// Comments holds raw comment records attached to this item.
	Comments []*Record

	// FetchedAt is when this record was created.
	FetchedAt time.Time
}

// NewRecord creates a new empty Record for a platform.
func NewRecord(platform, sourceURL string) *Record {
	return &Record{
		Fields:    make(map[string]any),
		URL:       sourceURL,
		Platform:  platform,
		FetchedAt: time.Now(),
	}
}

// Set sets a field value.
func (r *Record) Set(key string, value any) {
	r.Fields[key] = value
}

// Get retrieves a field value.
func (r *Record) Get(key string) (any, bool) {
	v, ok := r.Fields[key]
	return v, ok
}

// GetString retrieves a field value as a string.
func (r *Record) GetString(key string) string {
	v, ok := r.Fields[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// Has returns true if the field exists and is not nil.
func (r *Record) Has(key string) bool {
	v, ok := r.Fields[key]
	return ok && v != nil
}

// Delete removes a field.
func (r *Record) Delete(key string) {
	delete(r.Fields, key)
}

// AddComment appends a raw comment record.
func (r *Record) AddComment(c *Record) {
	r.Comments = append(r.Comments, c)
}

// FromMap copies a decoded JSON object into a new Record.
func FromMap(platform, sourceURL string, m map[string]any) *Record {
	rec := NewRecord(platform, sourceURL)
	for k, v := range m {
		rec.Fields[k] = v
	}
	return rec
}

// ToJSON serializes the record to JSON bytes.
func (r *Record) ToJSON() ([]byte, error) {
	return json.Marshal(struct {
		Fields    map[string]any `json:"fields"`
		URL       string         `json:"url"`
		Platform  string         `json:"platform"`
		Kind      string         `json:"kind,omitempty"`
		Comments  int            `json:"comments"`
		FetchedAt time.Time      `json:"fetched_at"`
	}{
		Fields:    r.Fields,
		URL:       r.URL,
		Platform:  r.Platform,
		Kind:      r.Kind,
		Comments:  len(r.Comments),
		FetchedAt: r.FetchedAt,
	})
}

// Clone creates a copy of the record. Comment records are cloned too.
func (r *Record) Clone() *Record {
	clone := &Record{
		Fields:    make(map[string]any, len(r.Fields)),
		URL:       r.URL,
		Platform:  r.Platform,
		Kind:      r.Kind,
		FetchedAt: r.FetchedAt,
	}
	for k, v := range r.Fields {
		clone.Fields[k] = v
	}
	if len(r.Comments) > 0 {
		clone.Comments = make([]*Record, len(r.Comments))
		for i, c := range r.Comments {
			clone.Comments[i] = c.Clone()
		}
	}
	return clone
}
