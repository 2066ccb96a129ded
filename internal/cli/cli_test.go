package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/imtdakar/imtbot/internal/config"
	"github.com/imtdakar/imtbot/internal/domain"
	"github.com/imtdakar/imtbot/internal/repository"
	"github.com/imtdakar/imtbot/internal/service"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		IndexBackend:      "file",
		IndexPath:         "index/index.json",
		ChunkStrategy:     "window",
		ChunkWindow:       300,
		ChunkOverlap:      30,
		ChunkMinChars:     20,
		TopK:              3,
		RoutingTopN:       3,
		LexicalFloor:      1.5,
		SemanticThreshold: 0.3,
		SnippetLines:      2,

		TokenWeight:        1.0,
		SynonymWeight:      0.6,
		MultiMatchBonus:    0.5,
		MarkerBonus:        1.5,
		InstitutionBonus:   0.3,
		PositionBonus:      0.3,
		PositionWindow:     5,
		PrimarySourceBonus: 3.0,
		ShortPenalty:       0.5,
		MinParagraphRunes:  40,
		TestimonialPenalty: 1.0,
		SnippetMaxRunes:    600,
	}
}

func TestGenerateSchema(t *testing.T) {
	root := &cobra.Command{Use: "imtbot", Short: "root"}
	search := &cobra.Command{Use: "search <query>", Short: "Search", Run: func(*cobra.Command, []string) {}}
	search.Flags().Int("top-k", 3, "passages")
	search.Flags().String("file", "", "eval file")
	require.NoError(t, search.MarkFlagRequired("file"))
	hidden := &cobra.Command{Use: "secret", Hidden: true, Run: func(*cobra.Command, []string) {}}
	root.AddCommand(search, hidden)
	AddHelpJSONFlag(root)

	schema := GenerateSchema(root)

	assert.Equal(t, "imtbot", schema.Name)
	require.Len(t, schema.Subcommands, 1)
	sub := schema.Subcommands[0]
	assert.Equal(t, "search", sub.Name)

	byName := map[string]FlagSchema{}
	for _, f := range sub.Flags {
		byName[f.Name] = f
	}
	assert.Equal(t, "int", byName["top-k"].Type)
	assert.Equal(t, "3", byName["top-k"].Default)
	assert.False(t, byName["top-k"].Required)
	assert.True(t, byName["file"].Required)
}

func TestFindTargetCommand(t *testing.T) {
	root := &cobra.Command{Use: "imtbot"}
	index := &cobra.Command{Use: "index"}
	build := &cobra.Command{Use: "build", Aliases: []string{"b"}}
	index.AddCommand(build)
	root.AddCommand(index)

	assert.Same(t, build, findTargetCommand(root, []string{"index", "build"}))
	assert.Same(t, build, findTargetCommand(root, []string{"index", "b"}))
	assert.Same(t, index, findTargetCommand(root, []string{"index", "nope"}))
	assert.Same(t, root, findTargetCommand(root, nil))
}

func TestChunkConfig(t *testing.T) {
	cc := ChunkConfig(testConfig())

	assert.Equal(t, domain.ChunkStrategyWindow, cc.Strategy)
	assert.Equal(t, 300, cc.Window)
	assert.Equal(t, 30, cc.Overlap)
	assert.Equal(t, 20, cc.MinChars)
}

func TestSearchConfig(t *testing.T) {
	sc, err := SearchConfig(testConfig())
	require.NoError(t, err)

	assert.Equal(t, 3, sc.TopK)
	assert.InDelta(t, 1.5, sc.Lexical.Floor, 1e-9)
	assert.Equal(t, 2, sc.Lexical.SnippetLines)
	assert.InDelta(t, 3.0, sc.Lexical.PrimarySourceBonus, 1e-9)
	assert.Equal(t, 40, sc.Lexical.MinParagraphRunes)
	assert.Equal(t, 600, sc.Lexical.SnippetMaxRunes)
	assert.NotEmpty(t, sc.Lexical.Synonyms)
	assert.NotEmpty(t, sc.Routes)
}

func TestSearchConfig_DefaultsMatchScorerDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	sc, err := SearchConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, service.DefaultLexicalConfig(), sc.Lexical)
}

func TestSearchConfig_RoutesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"file":"contact.txt","keywords":["adresse"]}]`), 0o644))

	cfg := testConfig()
	cfg.RoutesFile = path
	sc, err := SearchConfig(cfg)
	require.NoError(t, err)
	require.Len(t, sc.Routes, 1)
	assert.Equal(t, "contact.txt", sc.Routes[0].File)

	cfg.RoutesFile = filepath.Join(t.TempDir(), "missing.json")
	_, err = SearchConfig(cfg)
	assert.Error(t, err)
}

func TestNewEmbedder_Disabled(t *testing.T) {
	embedder, closer, err := NewEmbedder(context.Background(), testConfig())
	require.NoError(t, err)
	defer closer()

	assert.Nil(t, embedder)
}

func TestOpenIndexStore(t *testing.T) {
	cfg := testConfig()
	store, err := OpenIndexStore(cfg, nil)
	require.NoError(t, err)
	fileStore, ok := store.(*repository.FileIndexRepository)
	require.True(t, ok)
	assert.Equal(t, "index/index.json", fileStore.Path())

	cfg.IndexBackend = "postgres"
	_, err = OpenIndexStore(cfg, nil)
	assert.Error(t, err)
}

func TestApplyFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "search"}
	AddIndexFlags(cmd)
	AddRetrievalFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--index", "/tmp/i.json", "--top-k", "5", "--threshold", "0.5"}))

	cfg := testConfig()
	require.NoError(t, ApplyFlags(cmd, cfg))

	assert.Equal(t, "/tmp/i.json", cfg.IndexPath)
	assert.Equal(t, 5, cfg.TopK)
	assert.InDelta(t, 0.5, cfg.SemanticThreshold, 1e-9)
	assert.Equal(t, "file", cfg.IndexBackend)
}

func TestApplyFlags_Invalid(t *testing.T) {
	cmd := &cobra.Command{Use: "search"}
	AddIndexFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--backend", "sqlite"}))

	assert.Error(t, ApplyFlags(cmd, testConfig()))
}
