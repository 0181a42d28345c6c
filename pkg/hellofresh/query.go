package hellofresh

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"recipecards/pkg/config"
)

// Defaults for the catalog search.
const (
	DefaultLimit       = 500
	DefaultMaxPrepTime = 60
)

// DefaultProducts are the product lines included in a search.
var DefaultProducts = []string{"classic-box", "veggie-box", "meal-plan", "family-box"}

// SearchQuery holds the parameters of one search request. It is a value:
// WithOffset and Next return modified copies and leave the receiver intact.
type SearchQuery struct {
	Offset      int
	Limit       int
	Products    []string
	Locale      string
	Country     string
	MaxPrepTime int
}

// NewSearchQuery builds a query, copying products.
func NewSearchQuery(offset, limit int, products []string, locale, country string, maxPrepTime int) SearchQuery {
	return SearchQuery{
		Offset:      offset,
		Limit:       limit,
		Products:    append([]string(nil), products...),
		Locale:      locale,
		Country:     country,
		MaxPrepTime: maxPrepTime,
	}
}

// QueryFromConfig builds the initial query for a crawl.
func QueryFromConfig(cfg config.SearchConfig, loc config.LocaleSettings, offset int) SearchQuery {
	limit := cfg.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	products := cfg.Products
	if len(products) == 0 {
		products = DefaultProducts
	}
	return NewSearchQuery(offset, limit, products, loc.Locale, loc.Country, cfg.MaxPrepTime)
}

// WithOffset returns a copy of q starting at offset.
func (q SearchQuery) WithOffset(offset int) SearchQuery {
	next := q
	next.Products = append([]string(nil), q.Products...)
	next.Offset = offset
	return next
}

// Next returns the query for the following page.
func (q SearchQuery) Next() SearchQuery {
	return q.WithOffset(q.Offset + q.Limit)
}

// Validate checks the numeric bounds of the query.
func (q SearchQuery) Validate() error {
	if q.Offset < 0 {
		return fmt.Errorf("offset must be >= 0, got %d", q.Offset)
	}
	if q.Limit <= 0 {
		return fmt.Errorf("limit must be > 0, got %d", q.Limit)
	}
	return nil
}

// Encode serialises the query in the fixed order offset, limit, product,
// locale, country, max-prep-time. Product values are escaped one by one and
// joined with a literal "|".
func (q SearchQuery) Encode() string {
	products := make([]string, len(q.Products))
	for i, p := range q.Products {
		products[i] = url.QueryEscape(p)
	}

	pairs := []string{
		"offset=" + strconv.Itoa(q.Offset),
		"limit=" + strconv.Itoa(q.Limit),
		"product=" + strings.Join(products, "|"),
		"locale=" + url.QueryEscape(q.Locale),
		"country=" + url.QueryEscape(q.Country),
		"max-prep-time=" + strconv.Itoa(q.MaxPrepTime),
	}
	return strings.Join(pairs, "&")
}

// String implements fmt.Stringer
func (q SearchQuery) String() string {
	return q.Encode()
}

// ParseSearchQuery is the inverse of Encode.
func ParseSearchQuery(raw string) (SearchQuery, error) {
	var q SearchQuery
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return SearchQuery{}, fmt.Errorf("malformed query pair %q", pair)
		}

		var err error
		switch key {
		case "offset":
			q.Offset, err = strconv.Atoi(value)
		case "limit":
			q.Limit, err = strconv.Atoi(value)
		case "max-prep-time":
			q.MaxPrepTime, err = strconv.Atoi(value)
		case "locale":
			q.Locale, err = url.QueryUnescape(value)
		case "country":
			q.Country, err = url.QueryUnescape(value)
		case "product":
			q.Products = nil
			if value == "" {
				break
			}
			for _, p := range strings.Split(value, "|") {
				var product string
				product, err = url.QueryUnescape(p)
				if err != nil {
					break
				}
				q.Products = append(q.Products, product)
			}
		default:
			return SearchQuery{}, fmt.Errorf("unknown query key %q", key)
		}
		if err != nil {
			return SearchQuery{}, fmt.Errorf("parse %s: %w", key, err)
		}
	}
	return q, nil
}
