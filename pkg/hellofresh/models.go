package hellofresh

import "time"

// Credential is the bearer token scraped from the public site. It is
// acquired once per run and never refreshed.
type Credential struct {
	Value      string
	AcquiredAt time.Time
}

// Valid reports whether the credential carries a token.
func (c Credential) Valid() bool {
	return c.Value != ""
}

// RecipeItem is a single search hit. An empty CardLink means the recipe has
// no printable card.
type RecipeItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	CardLink string `json:"cardLink"`
}

// HasCard reports whether the item can be downloaded.
func (r RecipeItem) HasCard() bool {
	return r.CardLink != ""
}

// SearchPage is one page of catalog search results.
type SearchPage struct {
	Items []RecipeItem `json:"items"`
	Skip  int          `json:"skip"`
	Take  int          `json:"take"`
	Total int          `json:"total"`
	Count int          `json:"count"`
}

// searchResponse mirrors SearchPage with optional fields so that a payload
// missing both items and total can be told apart from an empty page.
type searchResponse struct {
	Items *[]RecipeItem `json:"items"`
	Skip  int           `json:"skip"`
	Take  int           `json:"take"`
	Total *int          `json:"total"`
	Count int           `json:"count"`
}

func (r *searchResponse) page() *SearchPage {
	p := &SearchPage{Skip: r.Skip, Take: r.Take, Count: r.Count}
	if r.Items != nil {
		p.Items = *r.Items
	}
	if r.Total != nil {
		p.Total = *r.Total
	}
	return p
}
