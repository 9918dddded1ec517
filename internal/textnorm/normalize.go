// Package textnorm cleans scraped or feed-provided markup into plain text
// suitable for display and for completion prompts.
package textnorm

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// maxPasses bounds the fixpoint loop in Normalize. Every pass after the first
// only shrinks its input, so real text converges in two or three passes.
const maxPasses = 16

const hiddenTags = "script, style, noscript, template, head, svg"

var inlineTags = map[string]struct{}{
	"a": {}, "abbr": {}, "b": {}, "bdi": {}, "cite": {}, "code": {}, "em": {},
	"font": {}, "i": {}, "mark": {}, "q": {}, "s": {}, "small": {}, "span": {},
	"strong": {}, "sub": {}, "sup": {}, "time": {}, "u": {},
}

var (
	// a '<' only opens markup when a letter, '/', '!' or '?' follows it
	tagShaped = regexp.MustCompile(`<[A-Za-z/!?][^<>]*>`)
	tagOpen   = regexp.MustCompile(`<([A-Za-z/!?])`)

	platformMention = regexp.MustCompile(
		`\b(?:Website|Facebook|LinkedIn|Twitter|YouTube|Instagram|TikTok|Github|Medium|Reddit)\s*:\s*(?:https?://\S+)?`)

	bareURL     = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S*`)
	socialLinks = regexp.MustCompile(
		`(?i)\b(?:[a-z0-9-]+\.)?(?:facebook|twitter|x|instagram|linkedin|youtube|youtu|tiktok|reddit|medium|github|t)\.(?:com|be|co)/\S*`)
)

// boilerplate is applied in order. Each entry is a pattern and its replacement.
var boilerplate = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)You can save this article by registering for free\s*here\.`), ""},
	{regexp.MustCompile(`(?i)Reviews and recommendations are unbiased and products are independently selected\.`), ""},
	{regexp.MustCompile(`(?i)Postmedia may earn an affiliate commission from purchases made through links on this page\.`), ""},
	{regexp.MustCompile(`(?i)Postmedia is committed to maintaining a lively but civil forum for discussion.`), ""},
	{regexp.MustCompile(`(?i)Written by\S*`), ""},
	{regexp.MustCompile(`(?i)Last modified:\S*`), ""},
	{regexp.MustCompile(`(?i)Please keep comments relevant and respectful\.`), ""},
	{regexp.MustCompile(`(?i)This website uses cookies.*?(By continuing)`), "$1"},
	{regexp.MustCompile(`(?i)We use cookies[^.!?]*[.!?]`), ""},
	{regexp.MustCompile(`(?i)Having trouble logging in\?`), ""},
	{regexp.MustCompile(`(?i)For more information *?click here\.`), ""},
	{regexp.MustCompile(`(?i)Click here (?:to|for) [^.!?]*[.!?]`), ""},
	{regexp.MustCompile(`(?i)Comments may take up to an hour to appear on the site\.`), ""},
	{regexp.MustCompile(`(?i)You will receive an email if there is a reply to your comment, an update to a thread you follow or if a user you follow comments\.`), ""},
	{regexp.MustCompile(`(?i)By continuing to use our site, you agree to our Terms of Use and Privacy Policy.`), ""},
	{regexp.MustCompile(`(?i)Visit our Community Guidelines`), ""},
	{regexp.MustCompile(`(?i)Share this article on (?:Facebook|Twitter|X|LinkedIn)`), ""},
	{regexp.MustCompile(`(?i)\bRead more$`), ""},
}

// Normalize strips markup, non-ASCII noise, boilerplate phrases and links
// from raw and collapses whitespace. It is pure and idempotent; empty input
// yields an empty string.
func Normalize(raw string) string {
	current := raw
	for range maxPasses {
		next := pass(current)
		if next == current {
			break
		}
		current = next
	}
	return current
}

func pass(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	text := visibleText(raw)
	text = collapse(text)
	text = asciiOnly(text)
	text = stripBoilerplate(text)
	text = stripLinks(text)
	return collapse(text)
}

// visibleText extracts text nodes from raw parsed as an HTML fragment. Block
// elements contribute a separating space; inline elements do not.
func visibleText(raw string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return residualMarkup(raw)
	}
	doc.Find(hiddenTags).Remove()

	var b strings.Builder
	var walk func(sel *goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(_ int, node *goquery.Selection) {
			name := goquery.NodeName(node)
			switch name {
			case "#text":
				b.WriteString(node.Text())
			case "#comment":
			default:
				_, inline := inlineTags[name]
				if !inline {
					b.WriteByte(' ')
				}
				walk(node)
				if !inline {
					b.WriteByte(' ')
				}
			}
		})
	}
	walk(doc.Selection)

	return residualMarkup(b.String())
}

// residualMarkup removes tag-shaped text that survived parsing (for example
// escaped markup) and decodes entities until stable. Comparison signs in
// prose are kept; a '<' that would still open a tag on a second parse is
// turned into a space.
func residualMarkup(text string) string {
	for range maxPasses {
		next := html.UnescapeString(tagShaped.ReplaceAllString(text, " "))
		if next == text {
			break
		}
		text = next
	}
	return tagOpen.ReplaceAllString(text, " $1")
}

func asciiOnly(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			b.WriteByte(' ')
		case r >= 0x20 && r < 0x7f:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func stripBoilerplate(text string) string {
	text = platformMention.ReplaceAllString(text, "")
	for _, p := range boilerplate {
		text = p.re.ReplaceAllString(text, p.repl)
	}
	return text
}

func stripLinks(text string) string {
	text = bareURL.ReplaceAllString(text, "")
	return socialLinks.ReplaceAllString(text, "")
}

func collapse(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
