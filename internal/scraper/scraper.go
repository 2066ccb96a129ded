// Package scraper downloads the IMT Dakar web pages and reduces each one to
// the plain-text corpus file the indexer reads.
package scraper

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

const (
	// MinBlockRunes is the length a text block must exceed to be kept.
	MinBlockRunes = 15
	// MaxReadSize caps the size of one page body (5MB).
	MaxReadSize = int64(5 * 1024 * 1024)

	userAgent = "imtbot-scraper/1.0"
)

// Page is one web page to scrape. Name becomes the corpus file name.
type Page struct {
	Name string
	Path string
}

// DefaultPages returns the pages that make up the knowledge base.
func DefaultPages() []Page {
	return []Page{
		{Name: "accueil", Path: "/"},
		{Name: "formations", Path: "/bachelor-sciences-et-ingenierie-du-numerique-iot-cyber-cloud/"},
		{Name: "formations_generale", Path: "/2-bachelors-en-sciences-et-ingenierie/"},
		{Name: "institut_mines_telecom", Path: "/institut-mines-telecom/"},
		{Name: "qui_sommes_nous", Path: "/qui-sommes-nous/institut-mines-telecom-dakar/"},
		{Name: "Edulab", Path: "/espace-edulab/"},
		{Name: "contact", Path: "/contact/"},
	}
}

// blacklist holds lower-case fragments of consent banners and widgets.
var blacklist = []string{
	"accepter les cookies",
	"refuser les cookies",
	"politique de confidentialité",
	"google analytics",
	"google recaptcha",
	"combien font",
	"pistage dans votre navigateur",
	"réglages des polices google",
	"intégrations de vidéo",
	"page mentions légales",
}

const (
	removedTags = "script, style, nav, footer, header, aside, noscript"
	textTags    = "h1, h2, h3, p, li"
)

// Config tunes a Scraper.
type Config struct {
	BaseURL           string
	Pages             []Page
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Scraper fetches pages sequentially, paced by a rate limiter.
type Scraper struct {
	baseURL    string
	pages      []Page
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Result summarises one scrape run.
type Result struct {
	Written []string // corpus files written
	Empty   []string // pages without usable text
	Failed  map[string]error
}

func New(cfg Config) *Scraper {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if len(cfg.Pages) == 0 {
		cfg.Pages = DefaultPages()
	}
	return &Scraper{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		pages:      cfg.Pages,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}
}

// Scrape writes one <name>.txt per page into outDir. A page that fails is
// logged and recorded in the result; the run continues with the next page.
// Only a cancelled context or an unusable outDir abort the run.
func (s *Scraper) Scrape(ctx context.Context, outDir string) (*Result, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	res := &Result{Failed: make(map[string]error)}
	for _, page := range s.pages {
		if err := s.limiter.Wait(ctx); err != nil {
			return res, err
		}

		log.Printf("scraper: fetching %s", page.Name)
		blocks, err := s.scrapePage(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			log.Printf("scraper: %s failed: %v", page.Name, err)
			res.Failed[page.Name] = err
			continue
		}
		if len(blocks) == 0 {
			log.Printf("scraper: no content found for %s", page.Name)
			res.Empty = append(res.Empty, page.Name)
			continue
		}

		file := filepath.Join(outDir, page.Name+".txt")
		if err := os.WriteFile(file, []byte(strings.Join(blocks, "\n\n")), 0o644); err != nil {
			return res, fmt.Errorf("write %s: %w", file, err)
		}
		log.Printf("scraper: saved %s (%d blocks)", filepath.Base(file), len(blocks))
		res.Written = append(res.Written, file)
	}
	return res, nil
}

func (s *Scraper) scrapePage(ctx context.Context, page Page) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+page.Path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return ExtractBlocks(io.LimitReader(resp.Body, MaxReadSize))
}

// ExtractBlocks parses an HTML document and returns its informative text
// blocks in document order.
func ExtractBlocks(r io.Reader) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find(removedTags).Remove()

	var blocks []string
	doc.Find(textTags).Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if utf8.RuneCountInString(text) <= MinBlockRunes {
			return
		}
		if isNoise(text) {
			return
		}
		blocks = append(blocks, text)
	})
	return blocks, nil
}

func isNoise(block string) bool {
	lower := strings.ToLower(block)
	for _, fragment := range blacklist {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}
