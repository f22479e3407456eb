package parse_test

import (
	"testing"

	"repo-view/model"
	"repo-view/parse"

	"github.com/stretchr/testify/assert"
)

func TestParseViewURL(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		ref         model.RepositoryRef
		segments    []string
		expectError bool
	}{
		{
			name:     "repository root",
			url:      "http://localhost:3000/alice/0b6e2f3a",
			ref:      model.RepositoryRef{Owner: "alice", ID: "0b6e2f3a"},
			segments: []string{},
		},
		{
			name:     "trailing slash",
			url:      "http://localhost:3000/alice/0b6e2f3a/",
			ref:      model.RepositoryRef{Owner: "alice", ID: "0b6e2f3a"},
			segments: []string{},
		},
		{
			name:     "nested path",
			url:      "https://share.example.com/alice/0b6e2f3a/src/lib/utils.ts",
			ref:      model.RepositoryRef{Owner: "alice", ID: "0b6e2f3a"},
			segments: []string{"src", "lib", "utils.ts"},
		},
		{
			name:     "rooted path",
			url:      "/bob/repo-1/docs",
			ref:      model.RepositoryRef{Owner: "bob", ID: "repo-1"},
			segments: []string{"docs"},
		},
		{
			name:     "bare path",
			url:      "bob/repo-1/docs/intro.md",
			ref:      model.RepositoryRef{Owner: "bob", ID: "repo-1"},
			segments: []string{"docs", "intro.md"},
		},
		{
			name:     "escaped characters",
			url:      "https://share.example.com/alice/r/docs%20%26%20resources/%E6%97%A5.md",
			ref:      model.RepositoryRef{Owner: "alice", ID: "r"},
			segments: []string{"docs & resources", "日.md"},
		},
		{
			name:        "missing repository id",
			url:         "https://share.example.com/alice",
			expectError: true,
		},
		{
			name:        "empty",
			url:         "",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, segments, err := parse.ParseViewURL(tt.url)

			if tt.expectError {
				assert.ErrorIs(t, err, parse.ErrInvalidViewURL)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.ref, ref)
			assert.Equal(t, tt.segments, segments)
		})
	}
}
