package draft

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadRules(t *testing.T) {
	path := writeRules(t, `
question_markers = ["?", "tbd"]

[[topic]]
title = "Storage"
keywords = ["disk", "bucket"]

[[topic]]
title = "Network"
keywords = ["latency"]
`)

	rules, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"?", "tbd"}, rules.QuestionMarkers)
	require.Len(t, rules.Topics, 2)
	assert.Equal(t, Topic{Title: "Storage", Keywords: []string{"disk", "bucket"}}, rules.Topics[0])
	assert.Equal(t, "Network", rules.Topics[1].Title)
}

func TestLoadRules_DefaultMarkers(t *testing.T) {
	path := writeRules(t, "[[topic]]\ntitle = \"Only\"\nkeywords = [\"x\"]\n")

	rules, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultQuestionMarkers(), rules.QuestionMarkers)
}

func TestLoadRules_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed", "[[topic]\ntitle = "},
		{"no topics", "question_markers = [\"?\"]\n"},
		{"missing title", "[[topic]]\nkeywords = [\"x\"]\n"},
		{"missing keywords", "[[topic]]\ntitle = \"t\"\n"},
		{"empty keyword", "[[topic]]\ntitle = \"t\"\nkeywords = [\"\"]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRules(writeRules(t, tt.content))
			assert.ErrorIs(t, err, ErrInvalidRules)
		})
	}
}

func TestLoadRules_MissingFile(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestDefaultRules_Valid(t *testing.T) {
	assert.NoError(t, DefaultRules().Validate())
}
