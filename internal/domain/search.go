package domain

import "strings"

// Strategy selects the retrieval path for a query.
type Strategy string

const (
	StrategyAuto     Strategy = "auto"
	StrategyLexical  Strategy = "lexical"
	StrategySemantic Strategy = "semantic"
)

// ParseStrategy normalizes a user-supplied strategy name. An empty value
// means StrategyAuto.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(StrategyAuto):
		return StrategyAuto, nil
	case string(StrategyLexical):
		return StrategyLexical, nil
	case string(StrategySemantic):
		return StrategySemantic, nil
	}
	return "", ErrInvalidStrategy
}

// SearchResult is a single retrieved passage.
type SearchResult struct {
	ChunkID string  `json:"chunk_id"`
	Source  string  `json:"source"`
	Index   int     `json:"index"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}
