package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSearchResult_Contexts(t *testing.T) {
	r := &SearchResult{Hits: []SearchHit{
		{Text: "first", Source: "a.pdf", Score: 0.9},
		{Text: "second", Source: "b.pdf", Score: 0.5},
	}}
	assert.Equal(t, []string{"first", "second"}, r.Contexts())
}

func TestSearchResult_Sources(t *testing.T) {
	tests := []struct {
		name     string
		hits     []SearchHit
		expected []string
	}{
		{
			name:     "no hits",
			hits:     nil,
			expected: []string{},
		},
		{
			name: "duplicates collapse in rank order",
			hits: []SearchHit{
				{Source: "b.pdf"}, {Source: "a.pdf"}, {Source: "b.pdf"}, {Source: "c.pdf"},
			},
			expected: []string{"b.pdf", "a.pdf", "c.pdf"},
		},
		{
			name:     "single source",
			hits:     []SearchHit{{Source: "a.pdf"}, {Source: "a.pdf"}},
			expected: []string{"a.pdf"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &SearchResult{Hits: tt.hits}
			assert.Equal(t, tt.expected, r.Sources())
		})
	}
}
