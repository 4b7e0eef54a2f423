package feed

import (
	"bytes"
	"cmp"
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/atom"
	jsonfeed "github.com/mmcdole/gofeed/json"
	"github.com/mmcdole/gofeed/rss"
)

const jsonTitleFallbackLength = 50

// Parser detects RSS, Atom and JSON Feed documents and normalizes them into
// a ParsedFeed. One fetch or parse runs at a time per instance.
type Parser struct {
	mu         sync.Mutex
	fetcher    *Fetcher
	rssParser  *rss.Parser
	atomParser *atom.Parser
	jsonParser *jsonfeed.Parser
}

func NewParser(fetcher *Fetcher) *Parser {
	if fetcher == nil {
		fetcher = NewFetcher(nil, "")
	}
	return &Parser{
		fetcher:    fetcher,
		rssParser:  &rss.Parser{},
		atomParser: &atom.Parser{},
		jsonParser: &jsonfeed.Parser{},
	}
}

func (p *Parser) FetchAndParse(ctx context.Context, feedURL string) (*ParsedFeed, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	resp, err := p.fetcher.Get(ctx, feedURL, FeedAccept)
	if err != nil {
		return nil, err
	}

	return p.parse(resp.Body, feedURL)
}

// Run parses an already downloaded document. feedURL is only used for the
// host-name title fallback.
func (p *Parser) Run(data []byte, feedURL string) (*ParsedFeed, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.parse(data, feedURL)
}

func (p *Parser) parse(data []byte, feedURL string) (*ParsedFeed, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, newError(KindParsing, "empty document", nil)
	}

	var (
		parsed *ParsedFeed
		err    error
	)

	switch gofeed.DetectFeedType(bytes.NewReader(data)) {
	case gofeed.FeedTypeRSS:
		parsed, err = p.parseRSS(data, feedURL)
	case gofeed.FeedTypeAtom:
		parsed, err = p.parseAtom(data, feedURL)
	case gofeed.FeedTypeJSON:
		parsed, err = p.parseJSON(data, feedURL)
	default:
		// Valid JSON objects are already detected, so this one is broken.
		if trimmed[0] == '{' {
			return nil, newError(KindParsing, "malformed JSON document", nil)
		}
		return nil, ErrUnknownFeedType
	}
	if err != nil {
		return nil, err
	}

	slog.Debug("Feed parsed", "url", feedURL, "format", parsed.Format, "articles", len(parsed.Articles))
	return parsed, nil
}

func (p *Parser) parseRSS(data []byte, feedURL string) (*ParsedFeed, error) {
	f, err := p.rssParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, newError(KindParsing, "invalid RSS document", err)
	}

	parsed := &ParsedFeed{
		Title:       cmp.Or(strings.TrimSpace(f.Title), hostOf(feedURL)),
		Description: StripTags(f.Description),
		HomePageURL: strings.TrimSpace(f.Link),
		Format:      "rss",
		Articles:    make([]ParsedArticle, 0, len(f.Items)),
	}
	if f.Image != nil {
		parsed.ImageURL = strings.TrimSpace(f.Image.URL)
	}

	for _, item := range f.Items {
		if item == nil {
			continue
		}
		title := StripTags(item.Title)
		if title == "" {
			continue
		}

		var guid string
		if item.GUID != nil {
			guid = strings.TrimSpace(item.GUID.Value)
		}
		link := strings.TrimSpace(item.Link)

		var creator string
		if item.DublinCoreExt != nil && len(item.DublinCoreExt.Creator) > 0 {
			creator = item.DublinCoreExt.Creator[0]
		}

		parsed.Articles = append(parsed.Articles, ParsedArticle{
			ID:          cmp.Or(guid, link, uuid.NewString()),
			Title:       title,
			Summary:     StripTags(item.Description),
			ContentHTML: cmp.Or(item.Content, item.Description),
			URL:         link,
			Author:      strings.TrimSpace(cmp.Or(item.Author, creator)),
			PublishedAt: item.PubDateParsed,
		})
	}

	return parsed, nil
}

func (p *Parser) parseAtom(data []byte, feedURL string) (*ParsedFeed, error) {
	f, err := p.atomParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, newError(KindParsing, "invalid Atom document", err)
	}

	parsed := &ParsedFeed{
		Title:       cmp.Or(StripTags(f.Title), hostOf(feedURL)),
		Description: StripTags(f.Subtitle),
		HomePageURL: alternateLink(f.Links),
		ImageURL:    strings.TrimSpace(cmp.Or(f.Icon, f.Logo)),
		Format:      "atom",
		Articles:    make([]ParsedArticle, 0, len(f.Entries)),
	}

	for _, entry := range f.Entries {
		if entry == nil {
			continue
		}
		title := StripTags(entry.Title)
		if title == "" {
			continue
		}

		var firstLink string
		if len(entry.Links) > 0 && entry.Links[0] != nil {
			firstLink = strings.TrimSpace(entry.Links[0].Href)
		}

		var content string
		if entry.Content != nil {
			content = entry.Content.Value
		}

		var author string
		if len(entry.Authors) > 0 && entry.Authors[0] != nil {
			author = strings.TrimSpace(entry.Authors[0].Name)
		}

		published := entry.PublishedParsed
		if published == nil {
			published = entry.UpdatedParsed
		}

		parsed.Articles = append(parsed.Articles, ParsedArticle{
			ID:          cmp.Or(strings.TrimSpace(entry.ID), firstLink, uuid.NewString()),
			Title:       title,
			Summary:     StripTags(cmp.Or(entry.Summary, content)),
			ContentHTML: cmp.Or(content, entry.Summary),
			URL:         alternateLink(entry.Links),
			Author:      author,
			PublishedAt: published,
		})
	}

	return parsed, nil
}

// alternateLink prefers rel="alternate" (an absent rel means alternate in
// Atom) and falls back to the first link.
func alternateLink(links []*atom.Link) string {
	var first string
	for _, link := range links {
		if link == nil {
			continue
		}
		if first == "" {
			first = link.Href
		}
		if link.Rel == "" || strings.EqualFold(link.Rel, "alternate") {
			return strings.TrimSpace(link.Href)
		}
	}
	return strings.TrimSpace(first)
}

func (p *Parser) parseJSON(data []byte, feedURL string) (*ParsedFeed, error) {
	f, err := p.jsonParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, newError(KindParsing, "invalid JSON Feed document", err)
	}
	if f.Version == "" && f.Items == nil {
		return nil, ErrUnknownFeedType
	}

	parsed := &ParsedFeed{
		Title:       cmp.Or(strings.TrimSpace(f.Title), hostOf(feedURL)),
		Description: StripTags(f.Description),
		HomePageURL: strings.TrimSpace(f.HomePageURL),
		ImageURL:    strings.TrimSpace(cmp.Or(f.Icon, f.Favicon)),
		Format:      "json",
		Articles:    make([]ParsedArticle, 0, len(f.Items)),
	}

	for _, item := range f.Items {
		if item == nil {
			continue
		}
		plain := cmp.Or(strings.TrimSpace(item.ContentText), StripTags(item.ContentHTML))
		title := cmp.Or(StripTags(item.Title), truncateRunes(plain, jsonTitleFallbackLength))
		if title == "" {
			continue
		}

		var author string
		if len(item.Authors) > 0 && item.Authors[0] != nil {
			author = item.Authors[0].Name
		} else if item.Author != nil {
			author = item.Author.Name
		}

		itemURL := strings.TrimSpace(item.URL)
		parsed.Articles = append(parsed.Articles, ParsedArticle{
			ID:          cmp.Or(strings.TrimSpace(item.ID), itemURL, uuid.NewString()),
			Title:       title,
			Summary:     cmp.Or(StripTags(item.Summary), truncateRunes(plain, 500)),
			ContentHTML: cmp.Or(item.ContentHTML, item.ContentText),
			URL:         itemURL,
			Author:      strings.TrimSpace(author),
			PublishedAt: parseDate(item.DatePublished),
		})
	}

	return parsed, nil
}

func parseDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	t, err := dateparse.ParseAny(value)
	if err != nil {
		return nil
	}
	return &t
}
