package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEvalSuite_BareArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eval.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"query":"contact","expected_sources":["contact.txt"]}]`), 0644))

	suite, err := LoadEvalSuite(path)

	require.NoError(t, err)
	require.Len(t, suite.Cases, 1)
	assert.Equal(t, 0, suite.TopK)
}

func TestLoadEvalSuite_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"invalid json", `{`, "failed to parse eval file"},
		{"no cases", `[]`, "no eval cases provided"},
		{"missing query", `[{"expected_sources":["a.txt"]}]`, "query is required"},
		{"missing sources", `[{"query":"q"}]`, "expected_sources is required"},
		{"bad strategy", `[{"query":"q","expected_sources":["a.txt"],"strategy":"fuzzy"}]`, "eval case 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "eval.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			_, err := LoadEvalSuite(path)

			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	_, err := LoadEvalSuite(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "failed to read eval file")
}
