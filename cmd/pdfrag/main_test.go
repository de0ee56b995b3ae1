package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerboseRequested(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want bool
	}{
		{"no args", nil, false},
		{"long flag", []string{"query", "--verbose", "why?"}, true},
		{"short flag", []string{"-v", "runs", "list"}, true},
		{"explicit true", []string{"serve", "--verbose=true"}, true},
		{"after terminator", []string{"query", "--", "-v"}, false},
		{"absent", []string{"ingest", "a.pdf"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, verboseRequested(tt.args))
		})
	}
}
