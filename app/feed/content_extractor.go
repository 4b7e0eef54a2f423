package feed

import (
	"context"
	"log/slog"
	"mime"
	"net/url"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/charmap"
)

const excerptLimit = 200

// ContentExtractor fetches article pages and pulls out their main content.
// One extraction runs at a time per instance.
type ContentExtractor struct {
	mu      sync.Mutex
	fetcher *Fetcher
	main    MainContentExtractor
}

func NewContentExtractor(fetcher *Fetcher) *ContentExtractor {
	if fetcher == nil {
		fetcher = NewFetcher(nil, "")
	}
	return &ContentExtractor{
		fetcher: fetcher,
		main:    heuristicExtractor{},
	}
}

func (e *ContentExtractor) Extract(ctx context.Context, pageURL string) (*ExtractedContent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	resp, err := e.fetcher.Get(ctx, pageURL, HTMLAccept)
	if err != nil {
		return nil, err
	}

	document, err := decodeHTML(resp.Body, resp.ContentType)
	if err != nil {
		return nil, err
	}

	return e.extract(document, resp.URL)
}

// ExtractFromHTML runs the extraction steps on an already decoded document.
func (e *ContentExtractor) ExtractFromHTML(document, baseURL string) (*ExtractedContent, error) {
	return e.extract(document, baseURL)
}

func (e *ContentExtractor) extract(document, baseURL string) (*ExtractedContent, error) {
	if strings.TrimSpace(document) == "" {
		return nil, newError(KindInvalidHTML, "document is empty", nil)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, newError(KindExtractionFailed, "invalid base URL", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return nil, newError(KindInvalidHTML, "failed to parse document", err)
	}
	title, author := extractMetadata(doc)

	region, err := e.main.ExtractMainContent(document)
	if err != nil {
		return nil, err
	}

	regionDoc, err := goquery.NewDocumentFromReader(strings.NewReader(region))
	if err != nil {
		return nil, newError(KindExtractionFailed, "failed to parse main content", err)
	}
	body := regionDoc.Find("body")
	rewriteURLs(body, base)
	removeEmptyBlocks(body)

	content, err := body.Html()
	if err != nil {
		return nil, newError(KindExtractionFailed, "failed to render content", err)
	}
	content = collapseWhitespace(content)
	if content == "" {
		return nil, ErrNoContentFound
	}

	text := StripTags(content)

	slog.Debug("Content extracted successfully",
		"url", baseURL,
		"title", title,
		"content_length", len(content))

	return &ExtractedContent{
		URL:         baseURL,
		Title:       title,
		Author:      author,
		Content:     content,
		TextContent: text,
		Excerpt:     makeExcerpt(text),
	}, nil
}

func extractMetadata(doc *goquery.Document) (string, string) {
	title := metaContent(doc, `meta[property="og:title"]`)
	if title == "" {
		title = collapseSpaces(doc.Find("title").First().Text())
	}

	author := metaContent(doc, `meta[name="author"]`)
	if author == "" {
		author = metaContent(doc, `meta[property="article:author"]`)
	}

	return title, author
}

func metaContent(doc *goquery.Document, selector string) string {
	v, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(v)
}

// decodeHTML honours the Content-Type charset, then tries UTF-8, then Latin-1.
func decodeHTML(body []byte, contentType string) (string, error) {
	if len(body) == 0 {
		return "", newError(KindInvalidHTML, "empty response body", nil)
	}

	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		if label := params["charset"]; label != "" {
			if enc, _ := charset.Lookup(label); enc != nil {
				decoded, err := enc.NewDecoder().Bytes(body)
				if err == nil && utf8.Valid(decoded) {
					return string(decoded), nil
				}
			}
		}
	}

	if utf8.Valid(body) {
		return string(body), nil
	}

	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(body)
	if err != nil {
		return "", newError(KindInvalidHTML, "no usable text encoding", err)
	}
	return string(decoded), nil
}

// makeExcerpt cuts at the last sentence end within the limit, else at the
// last word boundary, else hard.
func makeExcerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= excerptLimit {
		return text
	}

	cut := string(runes[:excerptLimit])
	if i := strings.LastIndex(cut, "."); i > 0 {
		return cut[:i+1]
	}
	if i := strings.LastIndex(cut, " "); i > 0 {
		return strings.TrimSpace(cut[:i]) + "…"
	}
	return string(runes[:excerptLimit-1]) + "…"
}
