package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsScanner/internal/ports"
)

const (
	defaultBaseURL   = "https://news.google.com"
	batchExecutePath = "/_/DotsSplashUi/data/batchexecute"
	maxResponseBytes = 4 << 20
)

var errNoParams = errors.New("decoding parameters not found")

// GoogleNews decodes news.google.com article links by asking Google for the
// publisher URL behind the opaque article id.
type GoogleNews struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

var _ ports.URLResolver = (*GoogleNews)(nil)

// NewGoogleNews builds a decoder. baseURL defaults to https://news.google.com.
func NewGoogleNews(client *http.Client, baseURL string, log *slog.Logger) *GoogleNews {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if log == nil {
		log = slog.Default()
	}
	return &GoogleNews{
		client:  client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  log,
	}
}

// Resolve returns the publisher URL, or rawURL unchanged when it is not a
// Google News article link or decoding fails for any reason.
func (g *GoogleNews) Resolve(ctx context.Context, rawURL string) string {
	id, ok := g.articleID(rawURL)
	if !ok {
		return rawURL
	}

	decoded, err := g.decode(ctx, id)
	if err != nil {
		g.logger.Debug("decode google news url", "url", rawURL, "error", err)
		return rawURL
	}
	return decoded
}

// articleID extracts the opaque id from .../articles/<id> or .../read/<id>.
func (g *GoogleNews) articleID(rawURL string) (string, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	if !g.isAggregatorHost(parsed.Host) {
		return "", false
	}

	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segments) < 2 {
		return "", false
	}
	switch segments[len(segments)-2] {
	case "articles", "read":
	default:
		return "", false
	}

	id := segments[len(segments)-1]
	return id, id != ""
}

func (g *GoogleNews) isAggregatorHost(host string) bool {
	if strings.EqualFold(host, "news.google.com") {
		return true
	}
	base, err := url.Parse(g.baseURL)
	return err == nil && strings.EqualFold(host, base.Host)
}

func (g *GoogleNews) decode(ctx context.Context, id string) (string, error) {
	sig, ts, err := g.decodingParams(ctx, g.baseURL+"/articles/"+id)
	if err != nil {
		sig, ts, err = g.decodingParams(ctx, g.baseURL+"/rss/articles/"+id)
		if err != nil {
			return "", err
		}
	}
	return g.batchExecute(ctx, id, sig, ts)
}

// decodingParams reads the signature and timestamp attributes from the
// article page.
func (g *GoogleNews) decodingParams(ctx context.Context, pageURL string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("build request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("request article page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("article page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", "", fmt.Errorf("parse article page: %w", err)
	}

	node := doc.Find("c-wiz > div[jscontroller]").First()
	sig, hasSig := node.Attr("data-n-a-sg")
	ts, hasTS := node.Attr("data-n-a-ts")
	if !hasSig || !hasTS || sig == "" {
		return "", "", errNoParams
	}
	if _, err := strconv.ParseInt(ts, 10, 64); err != nil {
		return "", "", fmt.Errorf("timestamp %q: %w", ts, err)
	}
	return sig, ts, nil
}

func (g *GoogleNews) batchExecute(ctx context.Context, id, sig, ts string) (string, error) {
	inner := fmt.Sprintf(
		`["garturlreq",[["X","X",["X","X"],null,null,1,1,"US:en",null,1,null,null,null,null,null,0,1],"X","X",1,[1,1,1],1,1,null,0,0,null,0],%s,%s,%s]`,
		strconv.Quote(id), ts, strconv.Quote(sig))
	freq, err := json.Marshal([][][]string{{{"Fbv4je", inner}}})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	form := url.Values{"f.req": {string(freq)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+batchExecutePath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("batchexecute: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("batchexecute returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read batchexecute: %w", err)
	}
	return parseBatchResponse(string(body))
}

// parseBatchResponse digs the URL out of the envelope:
// )]}'\n\n[["wrb.fr","Fbv4je","[\"garturlres\",\"<url>\",1]",...],...]
func parseBatchResponse(body string) (string, error) {
	parts := strings.SplitN(body, "\n\n", 3)
	if len(parts) < 2 {
		return "", errors.New("unexpected batchexecute envelope")
	}

	var envelope [][]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(parts[1])), &envelope); err != nil {
		return "", fmt.Errorf("decode envelope: %w", err)
	}
	if len(envelope) == 0 || len(envelope[0]) < 3 {
		return "", errors.New("empty batchexecute envelope")
	}

	var payload string
	if err := json.Unmarshal(envelope[0][2], &payload); err != nil {
		return "", fmt.Errorf("decode payload: %w", err)
	}

	var fields []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return "", fmt.Errorf("decode payload fields: %w", err)
	}
	if len(fields) < 2 {
		return "", errors.New("payload has no url")
	}

	var decoded string
	if err := json.Unmarshal(fields[1], &decoded); err != nil {
		return "", fmt.Errorf("decode url: %w", err)
	}
	if !strings.HasPrefix(decoded, "http") {
		return "", fmt.Errorf("decoded value %q is not a url", decoded)
	}
	return decoded, nil
}
