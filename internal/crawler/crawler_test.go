package crawler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsScanner/internal/domain"
)

type namedCrawler string

func (n namedCrawler) Name() string { return string(n) }

func (n namedCrawler) Crawl(context.Context, Request) ([]domain.RawEntry, error) {
	return nil, nil
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(namedCrawler("rss"))
	reg.Register(namedCrawler("gnews"))

	c, err := reg.Resolve("gnews")
	require.NoError(t, err)
	assert.Equal(t, "gnews", c.Name())

	_, err = reg.Resolve("bing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bing")

	assert.Equal(t, []string{"gnews", "rss"}, reg.Names())
}

func TestRequestOption(t *testing.T) {
	t.Parallel()

	req := Request{Options: map[string]string{"hl": "fr-CA", "gl": ""}}
	assert.Equal(t, "fr-CA", req.Option("hl", "en-CA"))
	assert.Equal(t, "CA", req.Option("gl", "CA"))
	assert.Equal(t, "x", req.Option("missing", "x"))
}
