package db

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	VectorField  string // defaults to "vector"
	Vector       []float32
	K            int
	ReturnFields []string
}

// ListQuery is the input for a filtered, optionally sorted listing.
type ListQuery struct {
	IndexName    string
	Query        string // FT query syntax, "*" for all
	SortBy       string
	Descending   bool
	Offset       int
	Limit        int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single hit. Score is a cosine similarity for KNN results.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
