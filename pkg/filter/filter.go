// Package filter holds the product browsing filter state and its query
// string codec. Only fields that differ from the defaults are written, so
// shared links stay short, and parsing falls back to the default for every
// field that is absent or unparseable.
package filter

import (
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// Query string keys, in the order Encode writes them
const (
	KeyCategory    = "category"
	KeyPriceRange  = "priceRange"
	KeyBrand       = "brand"
	KeyRating      = "rating"
	KeySortBy      = "sortBy"
	KeyPage        = "page"
	KeyPageSize    = "pageSize"
	KeySearchQuery = "searchQuery"
)

const (
	DefaultMinPrice = 0
	DefaultMaxPrice = 1000
	DefaultSortBy   = "popularity"
	DefaultPage     = 1
	DefaultPageSize = 10
)

// State is the structured form of the user's browsing constraints
type State struct {
	Category    []string   `json:"category"`
	PriceRange  [2]float64 `json:"priceRange"`
	Brand       []string   `json:"brand"`
	Rating      float64    `json:"rating"`
	SortBy      string     `json:"sortBy"`
	Page        int        `json:"page"`
	PageSize    int        `json:"pageSize"`
	SearchQuery string     `json:"searchQuery"`
}

// Default returns the state an empty query string decodes to
func Default() State {
	return State{
		Category:   []string{},
		PriceRange: [2]float64{DefaultMinPrice, DefaultMaxPrice},
		Brand:      []string{},
		SortBy:     DefaultSortBy,
		Page:       DefaultPage,
		PageSize:   DefaultPageSize,
	}
}

// Equal compares two states field by field. Nil and empty lists are equal.
func (s State) Equal(o State) bool {
	return slices.Equal(s.Category, o.Category) &&
		s.PriceRange == o.PriceRange &&
		slices.Equal(s.Brand, o.Brand) &&
		s.Rating == o.Rating &&
		s.SortBy == o.SortBy &&
		s.Page == o.Page &&
		s.PageSize == o.PageSize &&
		s.SearchQuery == o.SearchQuery
}

// HasPriceRange reports whether the price range was narrowed from the default
func (s State) HasPriceRange() bool {
	return s.PriceRange != Default().PriceRange
}

// Offset is the number of items before the current page
func (s State) Offset() int {
	if s.Page < 1 {
		return 0
	}
	return (s.Page - 1) * s.PageSize
}

// Clone returns a copy that shares no slices with s
func (s State) Clone() State {
	c := s
	c.Category = append([]string{}, s.Category...)
	c.Brand = append([]string{}, s.Brand...)
	return c
}

// Patch is a partial change. Nil fields are left untouched.
type Patch struct {
	Category    *[]string   `json:"category,omitempty"`
	PriceRange  *[2]float64 `json:"priceRange,omitempty"`
	Brand       *[]string   `json:"brand,omitempty"`
	Rating      *float64    `json:"rating,omitempty"`
	SortBy      *string     `json:"sortBy,omitempty"`
	Page        *int        `json:"page,omitempty"`
	PageSize    *int        `json:"pageSize,omitempty"`
	SearchQuery *string     `json:"searchQuery,omitempty"`
}

// Apply merges p into a copy of s
func (s State) Apply(p Patch) State {
	next := s.Clone()
	if p.Category != nil {
		next.Category = append([]string{}, (*p.Category)...)
	}
	if p.PriceRange != nil {
		next.PriceRange = *p.PriceRange
	}
	if p.Brand != nil {
		next.Brand = append([]string{}, (*p.Brand)...)
	}
	if p.Rating != nil {
		next.Rating = *p.Rating
	}
	if p.SortBy != nil {
		next.SortBy = *p.SortBy
	}
	if p.Page != nil {
		next.Page = *p.Page
	}
	if p.PageSize != nil {
		next.PageSize = *p.PageSize
	}
	if p.SearchQuery != nil {
		next.SearchQuery = *p.SearchQuery
	}
	return next
}

// Encode serializes s, omitting every field equal to its default
func Encode(s State) string {
	def := Default()
	var parts []string

	if len(s.Category) > 0 {
		parts = append(parts, KeyCategory+"="+joinList(s.Category))
	}
	if s.PriceRange != def.PriceRange {
		parts = append(parts, KeyPriceRange+"="+formatNumber(s.PriceRange[0])+"-"+formatNumber(s.PriceRange[1]))
	}
	if len(s.Brand) > 0 {
		parts = append(parts, KeyBrand+"="+joinList(s.Brand))
	}
	if s.Rating != def.Rating {
		parts = append(parts, KeyRating+"="+formatNumber(s.Rating))
	}
	if s.SortBy != def.SortBy {
		parts = append(parts, KeySortBy+"="+url.QueryEscape(s.SortBy))
	}
	if s.Page != def.Page {
		parts = append(parts, KeyPage+"="+strconv.Itoa(s.Page))
	}
	if s.PageSize != def.PageSize {
		parts = append(parts, KeyPageSize+"="+strconv.Itoa(s.PageSize))
	}
	if s.SearchQuery != def.SearchQuery {
		parts = append(parts, KeySearchQuery+"="+url.QueryEscape(s.SearchQuery))
	}

	return strings.Join(parts, "&")
}

// Parse decodes a raw query string (with or without the leading '?').
// When a key repeats, the first occurrence wins.
func Parse(rawQuery string) State {
	s := Default()
	seen := make(map[string]bool)

	for _, pair := range strings.Split(strings.TrimPrefix(rawQuery, "?"), "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key := unescape(rawKey)
		if seen[key] {
			continue
		}
		seen[key] = true

		switch key {
		case KeyCategory:
			if list := splitList(rawValue); len(list) > 0 {
				s.Category = list
			}
		case KeyBrand:
			if list := splitList(rawValue); len(list) > 0 {
				s.Brand = list
			}
		case KeyPriceRange:
			if r, ok := parseRange(unescape(rawValue)); ok {
				s.PriceRange = r
			}
		case KeyRating:
			if v, ok := parseNumber(unescape(rawValue)); ok {
				s.Rating = v
			}
		case KeySortBy:
			if v := unescape(rawValue); v != "" {
				s.SortBy = v
			}
		case KeyPage:
			if v, ok := parsePositiveInt(unescape(rawValue)); ok {
				s.Page = v
			}
		case KeyPageSize:
			if v, ok := parsePositiveInt(unescape(rawValue)); ok {
				s.PageSize = v
			}
		case KeySearchQuery:
			if v := unescape(rawValue); v != "" {
				s.SearchQuery = v
			}
		}
	}

	return s
}

func joinList(items []string) string {
	escaped := make([]string, len(items))
	for i, item := range items {
		escaped[i] = url.QueryEscape(item)
	}
	return strings.Join(escaped, ",")
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = unescape(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func unescape(s string) string {
	if v, err := url.QueryUnescape(s); err == nil {
		return v
	}
	return s
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// parseNumber treats zero like a missing value, so the default applies
func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v == 0 {
		return 0, false
	}
	return v, true
}

func parsePositiveInt(s string) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// parseRange reads "lo-hi". The separator is the last dash that follows a
// digit, so either bound may carry a minus sign.
func parseRange(s string) ([2]float64, bool) {
	sep := -1
	for i := len(s) - 1; i > 0; i-- {
		if s[i] == '-' && (isDigit(s[i-1]) || s[i-1] == '.') {
			sep = i
			break
		}
	}
	if sep < 0 {
		return [2]float64{}, false
	}
	rawLo, rawHi := s[:sep], s[sep+1:]
	lo, err := strconv.ParseFloat(strings.TrimSpace(rawLo), 64)
	if err != nil || math.IsNaN(lo) {
		return [2]float64{}, false
	}
	hi, err := strconv.ParseFloat(strings.TrimSpace(rawHi), 64)
	if err != nil || math.IsNaN(hi) {
		return [2]float64{}, false
	}
	return [2]float64{lo, hi}, true
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
