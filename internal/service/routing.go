package service

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

const defaultRoutingTopN = 3

// Route ties a source file to the domain keywords that should send a query
// to it.
type Route struct {
	File     string   `json:"file"`
	Keywords []string `json:"keywords"`
}

// DefaultRoutes returns the keyword table for the IMT Dakar corpus. Order
// matters: it breaks ties between files with the same match count.
func DefaultRoutes() []Route {
	return []Route{
		{File: "formations.txt", Keywords: []string{
			"formation", "programme", "cursus", "diplôme", "bac", "master",
			"ingénieur", "licence", "étude", "filière", "spécialité",
		}},
		{File: "qui_sommes_nous.txt", Keywords: []string{
			"histoire", "création", "fondation", "mission", "vision",
			"objectif", "qui sommes", "qui êtes", "présentation",
		}},
		{File: "contact.txt", Keywords: []string{
			"contact", "téléphone", "email", "adresse", "localisation",
			"situer", "trouver", "appeler", "joindre", "écrire", "où", "lieu", "km",
		}},
		{File: "institut_mines_telecom.txt", Keywords: []string{
			"imt", "mines télécom", "télécom", "qu'est-ce", "c'est quoi",
			"définition", "réseau", "groupe",
		}},
		{File: "accueil.txt", Keywords: []string{
			"accueil", "bienvenue", "général", "présentation générale",
		}},
		{File: "Edulab.txt", Keywords: []string{
			"edulab", "laboratoire", "recherche", "innovation", "projet",
			"adresse", "situé", "localisation", "où", "avenue", "lieu", "anta diop",
		}},
		{File: "formations_generale.txt", Keywords: []string{
			"admission", "inscription", "candidature", "prérequis",
			"condition", "dossier", "frais", "coût", "prix",
		}},
	}
}

// LoadRoutes reads a routing table from a JSON file holding an array of
// {"file": ..., "keywords": [...]} objects.
func LoadRoutes(path string) ([]Route, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read routes file: %w", err)
	}
	var routes []Route
	if err := json.Unmarshal(data, &routes); err != nil {
		return nil, fmt.Errorf("failed to parse routes file: %w", err)
	}
	for i, r := range routes {
		if r.File == "" {
			return nil, fmt.Errorf("route %d: file is required", i)
		}
	}
	return routes, nil
}

// RouteDecision is the outcome of routing one query.
type RouteDecision struct {
	Files   []string       // candidate files, best first
	Matched bool           // false when no keyword matched and Files is the fallback
	Counts  map[string]int // keyword matches per file
}

// Primary returns the single top-ranked file, or "" when routing fell back.
func (d RouteDecision) Primary() string {
	if !d.Matched || len(d.Files) == 0 {
		return ""
	}
	return d.Files[0]
}

type compiledRoute struct {
	file     string
	keywords [][]string
}

// Router selects candidate source files for a query by keyword match.
type Router struct {
	routes []compiledRoute
	topN   int
}

func NewRouter(routes []Route, topN int) *Router {
	if topN <= 0 {
		topN = defaultRoutingTopN
	}
	compiled := make([]compiledRoute, 0, len(routes))
	for _, r := range routes {
		cr := compiledRoute{file: r.File}
		for _, kw := range r.Keywords {
			if toks := tokenize(kw); len(toks) > 0 {
				cr.keywords = append(cr.keywords, toks)
			}
		}
		compiled = append(compiled, cr)
	}
	return &Router{routes: compiled, topN: topN}
}

// Route counts keyword matches per file and keeps the topN files. A keyword
// matches when the query holds a run of consecutive tokens starting with the
// keyword's tokens, so "formation" matches "formations". indexed lists the
// sources present in the index: matched files missing from it are dropped,
// and it is the fallback when nothing matches.
func (r *Router) Route(query string, indexed []string) RouteDecision {
	tokens := tokenize(query)
	present := make(map[string]struct{}, len(indexed))
	for _, s := range indexed {
		present[s] = struct{}{}
	}

	type ranked struct {
		file  string
		count int
		order int
	}
	counts := make(map[string]int)
	matches := make([]ranked, 0, len(r.routes))
	for order, route := range r.routes {
		n := 0
		for _, kw := range route.keywords {
			if containsRun(tokens, kw, prefixMatch) {
				n++
			}
		}
		if n == 0 {
			continue
		}
		counts[route.file] = n
		if len(indexed) > 0 {
			if _, ok := present[route.file]; !ok {
				continue
			}
		}
		matches = append(matches, ranked{file: route.file, count: n, order: order})
	}

	if len(matches) == 0 {
		files := make([]string, 0, len(indexed))
		files = append(files, indexed...)
		if len(files) == 0 {
			for _, route := range r.routes {
				files = append(files, route.file)
			}
		}
		return RouteDecision{Files: files, Matched: false, Counts: counts}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].count != matches[j].count {
			return matches[i].count > matches[j].count
		}
		return matches[i].order < matches[j].order
	})
	if len(matches) > r.topN {
		matches = matches[:r.topN]
	}
	files := make([]string, len(matches))
	for i, m := range matches {
		files[i] = m.file
	}
	return RouteDecision{Files: files, Matched: true, Counts: counts}
}
