package service

import (
	"strings"
	"unicode"

	"github.com/imtdakar/imtbot/internal/domain"
)

// ChunkConfig controls how documents are cut into chunks.
type ChunkConfig struct {
	Strategy domain.ChunkStrategy
	Window   int // window size in runes (window strategy)
	Overlap  int // overlap between consecutive windows in runes
	MinChars int // fragments shorter than this are dropped
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Strategy: domain.ChunkStrategyParagraph,
		Window:   500,
		Overlap:  50,
		MinChars: 30,
	}
}

// noiseMarkers flag consent banners and tracking notices left over by the
// scraper. A paragraph containing any of them carries no answer.
var noiseMarkers = []string{
	"cookie",
	"rgpd",
	"données personnelles",
	"consentement",
	"tracking",
}

// chunkDocument cuts cleaned document text into chunk contents according to
// cfg. Every returned string has at least cfg.MinChars runes.
func chunkDocument(text string, cfg ChunkConfig) []string {
	if cfg.Window <= 0 {
		d := DefaultChunkConfig()
		cfg.Window, cfg.Overlap = d.Window, d.Overlap
	}

	var raw []string
	switch cfg.Strategy {
	case domain.ChunkStrategyWindow:
		kept := make([]string, 0, 16)
		for _, p := range splitParagraphs(text) {
			if !isNoise(p) {
				kept = append(kept, p)
			}
		}
		raw = chunkText(strings.Join(kept, "\n\n"), cfg)
	default:
		raw = splitParagraphs(text)
	}

	out := make([]string, 0, len(raw))
	for _, c := range raw {
		if len([]rune(c)) < cfg.MinChars {
			continue
		}
		if isNoise(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func splitParagraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isNoise(p string) bool {
	lower := normalize(p)
	for _, m := range noiseMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// chunkText slides a rune window across text, cutting back to whitespace
// when possible so words are not split.
func chunkText(text string, cfg ChunkConfig) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	runes := []rune(clean)
	if len(runes) <= cfg.Window {
		return []string{clean}
	}

	chunks := make([]string, 0, 8)
	start := 0
	for start < len(runes) {
		end := start + cfg.Window
		if end > len(runes) {
			end = len(runes)
		}

		if end < len(runes) {
			cut := end
			minCut := start + cfg.Window/2
			for i := end; i > minCut; i-- {
				if unicode.IsSpace(runes[i-1]) {
					cut = i
					break
				}
			}
			end = cut
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end >= len(runes) {
			break
		}

		nextStart := end
		if cfg.Overlap > 0 && end-start > cfg.Overlap {
			nextStart = end - cfg.Overlap
			for nextStart < end && !unicode.IsSpace(runes[nextStart-1]) {
				nextStart++
			}
		}
		if nextStart <= start {
			nextStart = end
		}
		start = nextStart
	}

	return chunks
}
