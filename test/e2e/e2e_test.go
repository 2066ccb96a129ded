//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/imtdakar/imtbot/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type searchResponse struct {
	Results []struct {
		ChunkID string  `json:"chunk_id"`
		Source  string  `json:"source"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
	Strategy string `json:"strategy"`
	Found    bool   `json:"found"`
	SearchID string `json:"search_id"`
}

func postSearch(t *testing.T, env *E2ETestEnv, body, key string) (int, searchResponse) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, env.Server.URL+"/search", bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope struct {
		Data searchResponse `json:"data"`
	}
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	}
	return resp.StatusCode, envelope.Data
}

func TestE2E_SearchAndLogs(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	status, _ := postSearch(t, env, `{"query":"contact"}`, "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, found := postSearch(t, env, `{"query":"Où se trouve l'IMT ?"}`, apiKey)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, found.Found)
	require.NotEmpty(t, found.Results)
	assert.Equal(t, "contact.txt", found.Results[0].Source)
	assert.NotEmpty(t, found.SearchID)

	status, missing := postSearch(t, env, `{"query":"recette de thieboudienne"}`, apiKey)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, missing.Found)

	n, err := env.Logs.CountNotFound(env.Ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestE2E_IndexDistribution(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	// export the database index, push it, pull it back elsewhere
	idx, err := env.Store.Load(env.Ctx)
	require.NoError(t, err)

	exported := repository.NewFileIndexRepository(filepath.Join(t.TempDir(), "index.json"))
	require.NoError(t, exported.Save(env.Ctx, idx))

	pushed, err := env.S3Client.PushFile(env.Ctx, exported.Path(), "index/index.json")
	require.NoError(t, err)

	pulled := repository.NewFileIndexRepository(filepath.Join(t.TempDir(), "pulled", "index.json"))
	n, err := env.S3Client.PullFile(env.Ctx, "index/index.json", pulled.Path())
	require.NoError(t, err)
	assert.Equal(t, pushed, n)

	got, err := pulled.Load(env.Ctx)
	require.NoError(t, err)
	require.Len(t, got.Chunks, len(idx.Chunks))
	for i := range idx.Chunks {
		assert.Equal(t, idx.Chunks[i].ID, got.Chunks[i].ID)
	}
}

func TestE2E_CLIWorkflow(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.BuildBinaries()

	// the CLI runs in workDir, so the corpus path must be absolute
	absCorpus, err := filepath.Abs(corpusDir)
	require.NoError(t, err)

	workDir := t.TempDir()
	localEnv := []string{
		"IMTBOT_DATA_DIR=" + absCorpus,
		"IMTBOT_INDEX_PATH=" + filepath.Join(workDir, "index.json"),
		"IMTBOT_INDEX_BACKEND=file",
	}

	out, err := env.RunImtbot(workDir, localEnv, "index", "build", "--output")
	require.NoError(t, err, out)
	var stats struct {
		Chunks  int      `json:"chunks"`
		Sources []string `json:"sources"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Positive(t, stats.Chunks)
	assert.Contains(t, stats.Sources, "contact.txt")

	out, err = env.RunImtbot(workDir, localEnv, "search", "Où se trouve l'IMT ?", "--output")
	require.NoError(t, err, out)
	var local searchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &local))
	assert.True(t, local.Found)

	out, err = env.RunImtbot(workDir, localEnv, "search", "Où se trouve l'IMT ?", "--remote", "--output")
	require.NoError(t, err, out)
	var remote searchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &remote))
	assert.True(t, remote.Found)
	require.NotEmpty(t, remote.Results)
	assert.Equal(t, local.Results[0].Source, remote.Results[0].Source)
}
