package service

import (
	"strings"
	"testing"

	"github.com/imtdakar/imtbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"apostrophe splits", "Où se trouve l'IMT ?", []string{"où", "se", "trouve", "l", "imt"}},
		{"hyphen splits", "Qui sommes-nous", []string{"qui", "sommes", "nous"}},
		{"accents kept", "Diplôme d'INGÉNIEUR", []string{"diplôme", "d", "ingénieur"}},
		{"digits kept", "Bac+5 en 2024", []string{"bac", "5", "en", "2024"}},
		{"empty", "  ?! ", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tokenize(tt.input))
		})
	}
}

func TestNormalize_ComposesAccents(t *testing.T) {
	decomposed := "e\u0301tude"
	assert.Equal(t, "\u00e9tude", normalize(decomposed))
	assert.Equal(t, normalize("ÉTUDE"), normalize(decomposed))
}

func TestStem(t *testing.T) {
	assert.Equal(t, "formation", stem("formations"))
	assert.Equal(t, "réseau", stem("réseaux"))
	assert.Equal(t, "prix", stem("prix"))
	assert.Equal(t, "bac", stem("bac"))
}

func TestIsStopword(t *testing.T) {
	assert.True(t, isStopword("le"))
	assert.True(t, isStopword("ou"))
	assert.False(t, isStopword("où"))
	assert.False(t, isStopword("formation"))
}

func TestCleanText(t *testing.T) {
	input := "Titre\r\n\r\n\r\n\r\nPremier   paragraphe\t ici.\n   \nSecond."

	got := cleanText(input)

	assert.Equal(t, "Titre\n\nPremier paragraphe ici.\n\nSecond.", got)
}

func TestContainsRun(t *testing.T) {
	hay := tokenize("qui sommes-nous et notre mission")

	assert.True(t, containsRun(hay, []string{"qui", "sommes"}, prefixMatch))
	assert.True(t, containsRun(hay, []string{"miss"}, prefixMatch))
	assert.False(t, containsRun(hay, []string{"sommes", "qui"}, prefixMatch))
	assert.False(t, containsRun(hay, nil, prefixMatch))
	assert.True(t, containsRun(tokenize("les formations"), []string{"formation"}, stemMatch))
}

func TestChunkDocument_Paragraph(t *testing.T) {
	text := cleanText(strings.Join([]string{
		"Court.",
		"L'IMT Dakar forme des ingénieurs dans le numérique depuis plusieurs années.",
		"Ce site utilise des cookies pour mesurer l'audience du site web.",
		"Le campus se trouve sur l'avenue Cheikh Anta Diop à Dakar.",
	}, "\n\n"))

	chunks := chunkDocument(text, DefaultChunkConfig())

	require.Len(t, chunks, 2)
	assert.Contains(t, chunks[0], "ingénieurs")
	assert.Contains(t, chunks[1], "avenue")
	for _, c := range chunks {
		assert.GreaterOrEqual(t, len([]rune(c)), DefaultChunkConfig().MinChars)
		assert.NotContains(t, strings.ToLower(c), "cookie")
	}
}

func TestChunkDocument_Window(t *testing.T) {
	para := strings.Repeat("formation ingénieur numérique ", 20)
	text := cleanText(para + "\n\n" + para + "\n\nNous utilisons des cookies de tracking sur ce site.")
	cfg := ChunkConfig{Strategy: domain.ChunkStrategyWindow, Window: 120, Overlap: 20, MinChars: 30}

	chunks := chunkDocument(text, cfg)

	require.Greater(t, len(chunks), 2)
	for _, c := range chunks {
		n := len([]rune(c))
		assert.LessOrEqual(t, n, cfg.Window)
		assert.GreaterOrEqual(t, n, cfg.MinChars)
		assert.NotContains(t, c, "cookies")
	}
}

func TestChunkText_ShortTextSingleChunk(t *testing.T) {
	cfg := ChunkConfig{Window: 500, Overlap: 50}
	assert.Equal(t, []string{"Texte court."}, chunkText("  Texte court.  ", cfg))
	assert.Nil(t, chunkText("   ", cfg))
}

func TestChunkText_OverlapAndWordBoundaries(t *testing.T) {
	words := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		words = append(words, "mot")
	}
	text := strings.Join(words, " ")
	cfg := ChunkConfig{Window: 40, Overlap: 10}

	chunks := chunkText(text, cfg)

	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		for _, w := range strings.Fields(c) {
			assert.Equal(t, "mot", w)
		}
	}
}
