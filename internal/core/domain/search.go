package domain

// SearchHit is a single point returned by a similarity search.
type SearchHit struct {
	// ID is the point ID.
	ID string `json:"id"`

	// Text is the chunk text stored in the payload.
	Text string `json:"text"`

	// Source is the source ID stored in the payload.
	Source string `json:"source"`

	// Score is the similarity score (higher is closer).
	Score float64 `json:"score"`
}

// SearchResult holds hits ordered best-first. Its length never exceeds the
// requested top_k.
type SearchResult struct {
	Hits []SearchHit `json:"hits"`
}

// Contexts returns the hit texts in rank order.
func (r *SearchResult) Contexts() []string {
	contexts := make([]string, 0, len(r.Hits))
	for _, h := range r.Hits {
		contexts = append(contexts, h.Text)
	}
	return contexts
}

// Sources returns the distinct source IDs of the hits in rank order.
func (r *SearchResult) Sources() []string {
	seen := make(map[string]struct{}, len(r.Hits))
	sources := make([]string, 0, len(r.Hits))
	for _, h := range r.Hits {
		if _, ok := seen[h.Source]; ok {
			continue
		}
		seen[h.Source] = struct{}{}
		sources = append(sources, h.Source)
	}
	return sources
}

// QueryResult is the answer to a question.
type QueryResult struct {
	Answer      string   `json:"answer"`
	Sources     []string `json:"sources"`
	NumContexts int      `json:"num_contexts"`
}
