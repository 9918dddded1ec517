package scraper

import (
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"NewsScanner/internal/domain"
	"NewsScanner/internal/ports"
	"NewsScanner/internal/textnorm"
)

// ErrEmptyContent is returned when no article text survives extraction.
var ErrEmptyContent = errors.New("no article text extracted")

const strippedTags = "nav, footer, header, form, aside, script, style, noscript, iframe"

// Options tune the paragraph heuristic.
type Options struct {
	MinWords         int
	MaxDepth         int
	ExcludedClasses  []string
	ExcludedKeywords []string
}

// Extractor keeps the <p> blocks that do not sit inside ad, share or
// newsletter containers, and falls back to readability for thin results.
type Extractor struct {
	minWords int
	maxDepth int
	classes  map[string]struct{}
	keywords []string
}

var _ ports.TextExtractor = (*Extractor)(nil)

// NewExtractor applies defaults of 20 words and depth 3.
func NewExtractor(opts Options) *Extractor {
	if opts.MinWords <= 0 {
		opts.MinWords = 20
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 3
	}
	classes := make(map[string]struct{}, len(opts.ExcludedClasses))
	for _, c := range opts.ExcludedClasses {
		if c = strings.TrimSpace(c); c != "" {
			classes[c] = struct{}{}
		}
	}
	keywords := make([]string, 0, len(opts.ExcludedKeywords))
	for _, k := range opts.ExcludedKeywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keywords = append(keywords, k)
		}
	}
	return &Extractor{minWords: opts.MinWords, maxDepth: opts.MaxDepth, classes: classes, keywords: keywords}
}

// Extract returns normalized article text for page.
func (e *Extractor) Extract(page domain.Page) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return "", err
	}
	doc.Find(strippedTags).Remove()

	text := textnorm.Normalize(e.paragraphs(doc))
	if wordCount(text) < e.minWords {
		if fallback := e.readable(page); wordCount(fallback) > wordCount(text) {
			text = fallback
		}
	}
	if text == "" {
		return "", ErrEmptyContent
	}
	return text, nil
}

func (e *Extractor) paragraphs(doc *goquery.Document) string {
	excluded := map[*html.Node]bool{}
	var kept []string

	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		drop := false
		p.ParentsFiltered("div").EachWithBreak(func(i int, div *goquery.Selection) bool {
			if i >= e.maxDepth {
				return false
			}
			node := div.Get(0)
			bad, seen := excluded[node]
			if !seen {
				bad = e.excludedDiv(div)
				excluded[node] = bad
			}
			drop = bad
			return !bad
		})
		if drop {
			return
		}
		if t := strings.TrimSpace(p.Text()); t != "" {
			kept = append(kept, t)
		}
	})
	return strings.Join(kept, "\n")
}

func (e *Extractor) excludedDiv(div *goquery.Selection) bool {
	for _, class := range strings.Fields(div.AttrOr("class", "")) {
		if _, ok := e.classes[class]; ok {
			return true
		}
	}
	if len(e.keywords) == 0 {
		return false
	}
	text := strings.ToLower(div.Text())
	for _, k := range e.keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func (e *Extractor) readable(page domain.Page) string {
	parsed, err := url.Parse(page.URL)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(page.HTML), parsed)
	if err != nil {
		return ""
	}
	return textnorm.Normalize(article.TextContent)
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
