package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var corpusSources = []string{
	"Edulab.txt", "accueil.txt", "contact.txt", "formations.txt", "institut_mines_telecom.txt",
}

func TestRouter_LocationQueryRoutesToContact(t *testing.T) {
	router := NewRouter(DefaultRoutes(), 3)

	decision := router.Route("Où se trouve l'IMT ?", corpusSources)

	require.True(t, decision.Matched)
	assert.Equal(t, "contact.txt", decision.Primary())
	assert.Equal(t, 1, decision.Counts["contact.txt"])
	assert.Equal(t, []string{"contact.txt", "institut_mines_telecom.txt", "Edulab.txt"}, decision.Files)
}

func TestRouter_NamedFileBeatsSharedLocationWords(t *testing.T) {
	router := NewRouter(DefaultRoutes(), 3)

	decision := router.Route("Où se trouve Edulab ?", corpusSources)

	require.True(t, decision.Matched)
	assert.Equal(t, "Edulab.txt", decision.Primary())
	assert.Equal(t, 2, decision.Counts["Edulab.txt"])
	assert.Equal(t, 1, decision.Counts["contact.txt"])
}

func TestRouter_PluralMatchesKeywordPrefix(t *testing.T) {
	router := NewRouter(DefaultRoutes(), 3)

	decision := router.Route("Quelles formations proposez-vous ?", corpusSources)

	require.True(t, decision.Matched)
	assert.Equal(t, []string{"formations.txt"}, decision.Files)
}

func TestRouter_MultiWordKeyword(t *testing.T) {
	router := NewRouter(DefaultRoutes(), 3)

	decision := router.Route("Qui sommes-nous ?", nil)

	assert.Equal(t, "qui_sommes_nous.txt", decision.Primary())
}

func TestRouter_NoMatchFallsBackToIndexedSources(t *testing.T) {
	router := NewRouter(DefaultRoutes(), 3)

	decision := router.Route("recette de thieboudienne", corpusSources)

	assert.False(t, decision.Matched)
	assert.Equal(t, "", decision.Primary())
	assert.Equal(t, corpusSources, decision.Files)
}

func TestRouter_NoMatchEmptyIndexFallsBackToRouteFiles(t *testing.T) {
	router := NewRouter(DefaultRoutes(), 3)

	decision := router.Route("recette de thieboudienne", nil)

	assert.False(t, decision.Matched)
	assert.Len(t, decision.Files, len(DefaultRoutes()))
}

func TestRouter_DropsFilesMissingFromIndex(t *testing.T) {
	router := NewRouter(DefaultRoutes(), 3)
	indexed := []string{"Edulab.txt", "formations.txt", "institut_mines_telecom.txt"}

	decision := router.Route("Où se trouve l'IMT ?", indexed)

	assert.NotContains(t, decision.Files, "contact.txt")
	assert.Equal(t, "institut_mines_telecom.txt", decision.Primary())
}

func TestRouter_TopN(t *testing.T) {
	router := NewRouter(DefaultRoutes(), 1)

	decision := router.Route("Où se trouve l'IMT ?", corpusSources)

	assert.Equal(t, []string{"contact.txt"}, decision.Files)
}

func TestRouter_TiesKeepDeclarationOrder(t *testing.T) {
	routes := []Route{
		{File: "b.txt", Keywords: []string{"campus"}},
		{File: "a.txt", Keywords: []string{"campus"}},
	}
	router := NewRouter(routes, 3)

	decision := router.Route("le campus", nil)

	assert.Equal(t, []string{"b.txt", "a.txt"}, decision.Files)
}

// Adding a keyword that only matches one file never lowers that file's rank.
func TestRouter_AddingKeywordIsMonotonic(t *testing.T) {
	queries := []string{
		"Où se trouve l'IMT ?",
		"Quel est le prix du master ?",
		"Le laboratoire Edulab et ses projets de recherche",
		"Comment contacter l'école par téléphone ?",
	}

	for _, q := range queries {
		for i := range DefaultRoutes() {
			base := DefaultRoutes()
			extended := DefaultRoutes()
			target := extended[i].File
			extended[i].Keywords = append(extended[i].Keywords, firstSignificantToken(q))

			before := rankOf(NewRouter(base, len(base)).Route(q, nil), target)
			after := rankOf(NewRouter(extended, len(extended)).Route(q, nil), target)

			if before >= 0 {
				assert.LessOrEqual(t, after, before, "query %q, file %s", q, target)
			}
			assert.GreaterOrEqual(t, after, 0, "query %q, file %s", q, target)
		}
	}
}

func firstSignificantToken(q string) string {
	for _, tok := range tokenize(q) {
		if !isStopword(tok) && len([]rune(tok)) >= minSignificantRunes {
			return tok
		}
	}
	return tokenize(q)[0]
}

func rankOf(d RouteDecision, file string) int {
	if !d.Matched {
		return -1
	}
	for i, f := range d.Files {
		if f == file {
			return i
		}
	}
	return -1
}

func TestLoadRoutes(t *testing.T) {
	routes, err := LoadRoutes(filepath.Join("testdata", "routes.json"))

	require.NoError(t, err)
	require.Len(t, routes, 2)
	assert.Equal(t, "contact.txt", routes[0].File)
	assert.Equal(t, []string{"formation", "master"}, routes[1].Keywords)
}

func TestLoadRoutes_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadRoutes(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[{"keywords":["x"]}]`), 0o644))
	_, err = LoadRoutes(bad)
	assert.ErrorContains(t, err, "file is required")
}
