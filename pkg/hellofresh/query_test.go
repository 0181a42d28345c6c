package hellofresh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipecards/pkg/config"
)

func TestSearchQueryEncode(t *testing.T) {
	q := NewSearchQuery(0, 500, DefaultProducts, "en-US", "us", 60)
	assert.Equal(t,
		"offset=0&limit=500&product=classic-box|veggie-box|meal-plan|family-box&locale=en-US&country=us&max-prep-time=60",
		q.Encode())
}

func TestSearchQueryRoundTrip(t *testing.T) {
	queries := []SearchQuery{
		NewSearchQuery(0, 500, DefaultProducts, "en-US", "us", 60),
		NewSearchQuery(750, 250, []string{"veggie-box"}, "de-DE", "de", 30),
		NewSearchQuery(10, 1, []string{"box with space", "a|b", "ümlaut&co"}, "fr-FR", "fr", 0),
		NewSearchQuery(0, 5, nil, "en-GB", "gb", 45),
	}

	for _, q := range queries {
		t.Run(q.Encode(), func(t *testing.T) {
			parsed, err := ParseSearchQuery(q.Encode())
			require.NoError(t, err)
			assert.Equal(t, q, parsed)
		})
	}
}

func TestParseSearchQueryErrors(t *testing.T) {
	for _, raw := range []string{"offset", "offset=x", "bogus=1", "product=%zz"} {
		_, err := ParseSearchQuery(raw)
		assert.Error(t, err, raw)
	}
}

func TestSearchQueryIsAValue(t *testing.T) {
	products := []string{"classic-box"}
	q := NewSearchQuery(0, 250, products, "en-US", "us", 60)
	products[0] = "mutated"
	assert.Equal(t, "classic-box", q.Products[0])

	next := q.Next()
	assert.Equal(t, 0, q.Offset)
	assert.Equal(t, 250, next.Offset)

	next.Products[0] = "changed"
	assert.Equal(t, "classic-box", q.Products[0])

	assert.Equal(t, 1000, q.WithOffset(1000).Offset)
}

func TestSearchQueryValidate(t *testing.T) {
	assert.NoError(t, NewSearchQuery(0, 1, nil, "", "", 0).Validate())
	assert.Error(t, NewSearchQuery(-1, 1, nil, "", "", 0).Validate())
	assert.Error(t, NewSearchQuery(0, 0, nil, "", "", 0).Validate())
}

func TestQueryFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	loc, err := config.ResolveLocale("de")
	require.NoError(t, err)

	q := QueryFromConfig(cfg.Search, loc, 1500)
	assert.Equal(t, 1500, q.Offset)
	assert.Equal(t, 500, q.Limit)
	assert.Equal(t, DefaultProducts, q.Products)
	assert.Equal(t, "de-DE", q.Locale)
	assert.Equal(t, "de", q.Country)
	assert.Equal(t, 60, q.MaxPrepTime)
}
