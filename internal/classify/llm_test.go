package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLabels(t *testing.T) {
	c := NewLLMClassifier("key", "", "gpt-4o-mini", []string{"Work", "Travel", "Finance"}, discardLogger())

	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "json array",
			content: `["Work","Finance"]`,
			want:    []string{"Work", "Finance"},
		},
		{
			name:    "fenced json",
			content: "```json\n[\"Travel\"]\n```",
			want:    []string{"Travel"},
		},
		{
			name:    "comma separated fallback",
			content: "Work, Travel",
			want:    []string{"Work", "Travel"},
		},
		{
			name:    "case insensitive with canonical names returned",
			content: `["work","FINANCE"]`,
			want:    []string{"Work", "Finance"},
		},
		{
			name:    "unknown labels dropped",
			content: `["Work","Spam","Gossip"]`,
			want:    []string{"Work"},
		},
		{
			name:    "duplicates collapsed",
			content: `["Work","work","Work"]`,
			want:    []string{"Work"},
		},
		{
			name:    "empty array",
			content: `[]`,
			want:    nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.parseLabels(tt.content))
		})
	}
}
