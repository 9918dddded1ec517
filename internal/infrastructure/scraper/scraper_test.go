package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsScanner/internal/domain"
)

const articleHTML = `<html><head><title>Fourplexes</title><style>p{color:red}</style></head>
<body>
<nav><p>Home News Sports</p></nav>
<header><p>Site masthead</p></header>
<div class="article-body">
  <p>The city council approved a new plan on Tuesday that allows fourplexes on residential lots across every ward in the municipality.</p>
  <div class="ad promo"><p>Buy a condo today</p></div>
  <div class="shareholder"><p>Builders said the change would speed up permits.</p></div>
  <div class="ad"><div><div><div><p>Deeply nested paragraphs are kept.</p></div></div></div></div>
</div>
<div class="related"><p>Subscribe to our newsletter for more.</p></div>
<footer><p>Copyright</p></footer>
</body></html>`

func newTestExtractor() *Extractor {
	return NewExtractor(Options{
		ExcludedClasses:  []string{"ad", "ads", "sponsored", "share"},
		ExcludedKeywords: []string{"advertisement", "Subscribe", "click here"},
	})
}

func TestExtractorKeepsArticleParagraphs(t *testing.T) {
	t.Parallel()

	text, err := newTestExtractor().Extract(domain.Page{URL: "https://pub.example/a", HTML: articleHTML})
	require.NoError(t, err)
	assert.Equal(t, "The city council approved a new plan on Tuesday that allows fourplexes on residential lots "+
		"across every ward in the municipality. Builders said the change would speed up permits. "+
		"Deeply nested paragraphs are kept.", text)
}

func TestExtractorEmptyPage(t *testing.T) {
	t.Parallel()

	_, err := newTestExtractor().Extract(domain.Page{
		URL:  "https://pub.example/empty",
		HTML: `<html><head><title></title></head><body></body></html>`,
	})
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestHTTPFetcher(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/article", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, articleHTML)
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/article", http.StatusFound)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	mux.HandleFunc("/binary", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "%PDF-1.4")
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client(), "", 200*time.Millisecond)
	ctx := context.Background()

	page, err := f.Fetch(ctx, srv.URL+"/moved")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/article", page.URL)
	assert.Contains(t, page.HTML, "fourplexes")

	_, err = f.Fetch(ctx, srv.URL+"/broken")
	assert.ErrorContains(t, err, "500")

	_, err = f.Fetch(ctx, srv.URL+"/binary")
	assert.ErrorIs(t, err, ErrNotHTML)

	_, err = f.Fetch(ctx, srv.URL+"/slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHTTPFetcherRejectsOversizedPages(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		n := 64
		if r.URL.Path == "/big" {
			n = 65
		}
		fmt.Fprint(w, strings.Repeat("a", n))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client(), "", time.Second)
	f.maxBytes = 64

	page, err := f.Fetch(context.Background(), srv.URL+"/fits")
	require.NoError(t, err)
	assert.Len(t, page.HTML, 64)

	_, err = f.Fetch(context.Background(), srv.URL+"/big")
	assert.ErrorIs(t, err, ErrPageTooLarge)
}
