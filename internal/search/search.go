package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID        string `json:"id"`
	FormTitle string `json:"formTitle"`
	Company   string `json:"company"`
	Category  string `json:"category"`
	Status    string `json:"status"`
	Snippet   string `json:"snippet,omitempty"`
}

// Query describes a search request; OwnerID is always set so one owner can
// never see another's records.
type Query struct {
	Text    string
	OwnerID string
	Limit   int
	Offset  int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// ApplicationRecord is the data we index for an application.
type ApplicationRecord struct {
	ID        string `json:"id"`
	OwnerID   string `json:"userId"`
	FormTitle string `json:"formTitle"`
	Company   string `json:"company"`
	Notes     string `json:"notes"`
	Category  string `json:"category"`
	Status    string `json:"status"`
}
