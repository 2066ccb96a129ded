package service

import (
	"regexp"
	"sort"
	"strings"

	"github.com/imtdakar/imtbot/internal/domain"
)

// LexicalConfig holds the weights of the lexical scorer. The defaults were
// tuned by hand on the IMT Dakar pages; treat them as starting points.
type LexicalConfig struct {
	TokenWeight        float64 // per query term literally present
	SynonymWeight      float64 // per query term matched only through a synonym
	MultiMatchBonus    float64 // at least two terms matched literally
	MarkerBonus        float64 // per phone/email/address marker the query asks for
	InstitutionBonus   float64 // paragraph names the institution
	PositionBonus      float64 // early paragraphs of the primary file, decaying
	PositionWindow     int
	PrimarySourceBonus float64 // paragraph belongs to the top-routed file
	ShortPenalty       float64
	MinParagraphRunes  int
	TestimonialPenalty float64
	Floor              float64 // candidates below are discarded
	SnippetLines       int
	SnippetMaxRunes    int
	Synonyms           map[string][]string
}

// DefaultLexicalConfig returns the default scorer weights.
func DefaultLexicalConfig() LexicalConfig {
	return LexicalConfig{
		TokenWeight:        1.0,
		SynonymWeight:      0.6,
		MultiMatchBonus:    0.5,
		MarkerBonus:        1.5,
		InstitutionBonus:   0.3,
		PositionBonus:      0.3,
		PositionWindow:     5,
		PrimarySourceBonus: 2.0,
		ShortPenalty:       0.5,
		MinParagraphRunes:  60,
		TestimonialPenalty: 1.0,
		Floor:              1.0,
		SnippetLines:       3,
		SnippetMaxRunes:    600,
		Synonyms:           DefaultSynonyms(),
	}
}

// DefaultSynonyms maps query terms to words that answer them when the term
// itself is absent from the text.
func DefaultSynonyms() map[string][]string {
	location := []string{"localisation", "situé", "adresse", "trouve", "où", "lieu", "km", "avenue"}
	without := func(list []string, self string) []string {
		out := make([]string, 0, len(list))
		for _, w := range list {
			if w != self {
				out = append(out, w)
			}
		}
		return out
	}
	contact := []string{"téléphone", "email", "adresse", "joindre", "appeler"}

	return map[string][]string{
		"formation":    {"bachelor", "master", "diplôme", "programme", "cursus", "étude"},
		"contact":      contact,
		"contacter":    append([]string{"contact"}, contact...),
		"localisation": without(location, "localisation"),
		"situé":        without(location, "situé"),
		"adresse":      without(location, "adresse"),
		"où":           without(location, "où"),
		"trouve":       without(location, "trouve"),
		"prix":         {"frais", "coût", "tarif", "montant"},
		"tarif":        {"frais", "coût", "prix", "montant"},
		"coût":         {"frais", "prix", "tarif", "montant"},
		"imt":          {"institut", "mines", "télécom"},
		"admission":    {"inscription", "candidature", "dossier", "concours"},
	}
}

type markerRule struct {
	triggers map[string]struct{}
	pattern  *regexp.Regexp
}

func newMarkerRule(pattern string, triggers ...string) markerRule {
	set := make(map[string]struct{}, len(triggers))
	for _, t := range triggers {
		set[normalize(t)] = struct{}{}
	}
	return markerRule{triggers: set, pattern: regexp.MustCompile(pattern)}
}

// markerRules reward paragraphs holding the kind of fact the query asks for.
var markerRules = []markerRule{
	newMarkerRule(`(\+?221[ .-]?)?\b(3[03]|7[0-8])[ .-]?\d{3}[ .-]?\d{2}[ .-]?\d{2}\b`,
		"téléphone", "telephone", "tél", "tel", "numéro", "numero", "appeler", "joindre", "contact", "contacter"),
	newMarkerRule(`[\w.+-]+@[\w-]+(\.[\w-]+)+`,
		"email", "mail", "courriel", "écrire", "contact", "contacter"),
	newMarkerRule(`(?i)\b(avenue|rue|boulevard|bd|route|km|bp|dakar)\b`,
		"où", "adresse", "situé", "située", "situe", "trouve", "trouver", "localisation", "lieu", "accès", "venir"),
}

var (
	institutionPhrases = tokenizeAll("imt dakar", "institut mines-télécom", "mines-télécom dakar")
	testimonialPhrases = tokenizeAll("je suis", "j'ai", "mon parcours", "mon expérience", "ma formation", "témoignage")
)

func tokenizeAll(phrases ...string) [][]string {
	out := make([][]string, 0, len(phrases))
	for _, p := range phrases {
		out = append(out, tokenize(p))
	}
	return out
}

type preparedChunk struct {
	chunk  domain.Chunk
	tokens []string
	runes  int
}

// LexicalRetriever scores the chunks of one index by token overlap with the
// query, after routing the query to a few candidate files.
type LexicalRetriever struct {
	cfg      LexicalConfig
	router   *Router
	synonyms map[string][][]string
	bySource map[string][]preparedChunk
	sources  []string
}

func NewLexicalRetriever(idx *domain.Index, router *Router, cfg LexicalConfig) *LexicalRetriever {
	synonyms := make(map[string][][]string, len(cfg.Synonyms))
	for term, list := range cfg.Synonyms {
		key := normalize(term)
		for _, s := range list {
			if toks := tokenize(s); len(toks) > 0 {
				synonyms[key] = append(synonyms[key], toks)
			}
		}
	}

	r := &LexicalRetriever{
		cfg:      cfg,
		router:   router,
		synonyms: synonyms,
		bySource: make(map[string][]preparedChunk),
		sources:  idx.Sources(),
	}
	for source, positions := range idx.ChunksBySource() {
		prepared := make([]preparedChunk, 0, len(positions))
		for _, i := range positions {
			c := idx.Chunks[i]
			prepared = append(prepared, preparedChunk{
				chunk:  c,
				tokens: tokenize(c.Content),
				runes:  len([]rune(c.Content)),
			})
		}
		r.bySource[source] = prepared
	}
	return r
}

// Route exposes the routing decision for query against this index.
func (r *LexicalRetriever) Route(query string) RouteDecision {
	return r.router.Route(query, r.sources)
}

// Search returns up to topK scored chunks sorted by descending score. When
// nothing reaches the floor it returns domain.ErrNoRelevantResult.
func (r *LexicalRetriever) Search(query string, topK int) ([]domain.SearchResult, RouteDecision, error) {
	decision := r.Route(query)
	terms := r.queryTerms(query)
	if len(terms) == 0 {
		return nil, decision, domain.ErrNoRelevantResult
	}
	active := activeMarkers(terms)
	primary := decision.Primary()

	results := make([]domain.SearchResult, 0, 16)
	for _, file := range decision.Files {
		for _, p := range r.bySource[file] {
			score, ok := r.score(terms, active, p, file == primary)
			if !ok || score < r.cfg.Floor {
				continue
			}
			results = append(results, domain.SearchResult{
				ChunkID: p.chunk.ID,
				Source:  p.chunk.Source,
				Index:   p.chunk.Index,
				Content: makeSnippet(p.chunk.Content, r.cfg.SnippetLines, r.cfg.SnippetMaxRunes),
				Score:   score,
			})
		}
	}

	if len(results) == 0 {
		return nil, decision, domain.ErrNoRelevantResult
	}
	sortResults(results)
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, decision, nil
}

// queryTerms keeps tokens that are not stopwords and are either long enough
// or known to the synonym table, without duplicates.
func (r *LexicalRetriever) queryTerms(query string) []string {
	seen := make(map[string]struct{})
	terms := make([]string, 0, 8)
	for _, tok := range tokenize(query) {
		if isStopword(tok) {
			continue
		}
		_, known := r.synonyms[tok]
		if len([]rune(tok)) < minSignificantRunes && !known {
			continue
		}
		key := stem(tok)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		terms = append(terms, tok)
	}
	return terms
}

func activeMarkers(terms []string) []markerRule {
	var active []markerRule
	for _, rule := range markerRules {
		for _, t := range terms {
			_, hit := rule.triggers[t]
			_, stemHit := rule.triggers[stem(t)]
			if hit || stemHit {
				active = append(active, rule)
				break
			}
		}
	}
	return active
}

func (r *LexicalRetriever) score(terms []string, markers []markerRule, p preparedChunk, primary bool) (float64, bool) {
	var base float64
	direct := 0
	for _, term := range terms {
		if containsRun(p.tokens, []string{term}, stemMatch) {
			base += r.cfg.TokenWeight
			direct++
			continue
		}
		for _, syn := range r.synonymsFor(term) {
			if containsRun(p.tokens, syn, stemMatch) {
				base += r.cfg.SynonymWeight
				break
			}
		}
	}
	if base == 0 {
		return 0, false
	}

	score := base
	if direct >= 2 {
		score += r.cfg.MultiMatchBonus
	}
	for _, m := range markers {
		if m.pattern.MatchString(p.chunk.Content) {
			score += r.cfg.MarkerBonus
		}
	}
	for _, phrase := range institutionPhrases {
		if containsRun(p.tokens, phrase, stemMatch) {
			score += r.cfg.InstitutionBonus
			break
		}
	}
	if primary {
		score += r.cfg.PrimarySourceBonus
		if w := r.cfg.PositionWindow; w > 0 && p.chunk.Index < w {
			score += r.cfg.PositionBonus * float64(w-p.chunk.Index) / float64(w)
		}
	}
	if p.runes < r.cfg.MinParagraphRunes {
		score -= r.cfg.ShortPenalty
	}
	if isTestimonial(p) {
		score -= r.cfg.TestimonialPenalty
	}
	return score, true
}

func (r *LexicalRetriever) synonymsFor(term string) [][]string {
	if syn, ok := r.synonyms[term]; ok {
		return syn
	}
	return r.synonyms[stem(term)]
}

func isTestimonial(p preparedChunk) bool {
	content := strings.TrimSpace(p.chunk.Content)
	if strings.HasPrefix(content, "«") || strings.HasPrefix(content, "\"") || strings.HasPrefix(content, "“") {
		return true
	}
	for _, phrase := range testimonialPhrases {
		if containsRun(p.tokens, phrase, stemMatch) {
			return true
		}
	}
	return false
}

// sortResults orders by descending score, then source and chunk index so
// that equal scores come back in a stable order.
func sortResults(results []domain.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Source != results[j].Source {
			return results[i].Source < results[j].Source
		}
		return results[i].Index < results[j].Index
	})
}

// makeSnippet keeps the first maxLines lines of content and cuts it at a word
// boundary when longer than maxRunes.
func makeSnippet(content string, maxLines, maxRunes int) string {
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	snippet := strings.TrimSpace(strings.Join(lines, "\n"))

	runes := []rune(snippet)
	if maxRunes <= 0 || len(runes) <= maxRunes {
		return snippet
	}
	cut := maxRunes
	for i := maxRunes; i > maxRunes/2; i-- {
		if runes[i] == ' ' {
			cut = i
			break
		}
	}
	return strings.TrimSpace(string(runes[:cut])) + "..."
}
