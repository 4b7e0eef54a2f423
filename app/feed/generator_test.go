package feed

import (
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/rss-hoard/app/database"
)

func TestGenerateRSS(t *testing.T) {
	generator := NewGenerator()

	published := time.Date(2023, 7, 3, 10, 0, 0, 0, time.UTC)
	channel := Channel{
		Title:     "Starred",
		Link:      "http://localhost:8080/",
		SelfURL:   "http://localhost:8080/api/starred.rss",
		Generator: "RSS-Hoard/test",
	}
	articles := []database.Article{
		{
			ID:          "a1",
			ExternalID:  "item-1",
			Title:       "Item 1 & more",
			Summary:     "Summary 1",
			Content:     "<p>Feed content</p>",
			FullContent: "<p>Full content</p>",
			Author:      "Jane",
			URL:         "https://example.com/item1",
			PublishedAt: &published,
		},
		{
			ID:         "a2",
			ExternalID: "item-2",
			Title:      "Item 2",
			CreatedAt:  time.Date(2023, 7, 1, 8, 0, 0, 0, time.UTC),
		},
	}

	rss := generator.Run(channel, articles)

	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<rss version="2.0"`,
		`xmlns:content="http://purl.org/rss/1.0/modules/content/"`,
		"<title>Starred</title>",
		"<description>Starred</description>",
		`<atom:link href="http://localhost:8080/api/starred.rss" rel="self" type="application/rss+xml" />`,
		"<lastBuildDate>Mon, 03 Jul 2023 10:00:00 +0000</lastBuildDate>",
		"<generator>RSS-Hoard/test</generator>",
		`<guid isPermaLink="true">https://example.com/item1</guid>`,
		"<title>Item 1 &amp; more</title>",
		"<content:encoded><![CDATA[<p>Full content</p>]]></content:encoded>",
		"<author>Jane</author>",
		`<guid isPermaLink="false">item-2</guid>`,
		"<pubDate>Sat, 01 Jul 2023 08:00:00 +0000</pubDate>",
		"</channel>\n</rss>",
	} {
		if !strings.Contains(rss, want) {
			t.Errorf("RSS should contain %q\n%s", want, rss)
		}
	}

	if strings.Contains(rss, "Feed content") {
		t.Error("RSS should prefer the extracted full content")
	}
}

func TestGenerateEscapesCDATATerminator(t *testing.T) {
	rss := NewGenerator().Run(Channel{Title: "T"}, []database.Article{
		{ExternalID: "x", Title: "x", Content: "a]]>b"},
	})

	if strings.Contains(rss, "a]]>b") {
		t.Errorf("CDATA terminator should be split, got: %s", rss)
	}
}

func TestGenerateEmpty(t *testing.T) {
	generator := NewGenerator()
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	generator.now = func() time.Time { return fixed }

	rss := generator.Run(Channel{Title: "Empty"}, nil)

	if strings.Contains(rss, "<item>") {
		t.Error("RSS should not contain items")
	}
	if strings.Contains(rss, "atom:link href") {
		t.Error("RSS should omit the self link when unset")
	}
	if !strings.Contains(rss, "<lastBuildDate>") {
		t.Error("RSS should always carry lastBuildDate")
	}
}

func TestGeneratedRSSParses(t *testing.T) {
	published := time.Date(2023, 7, 3, 10, 0, 0, 0, time.UTC)
	rss := NewGenerator().Run(Channel{Title: "Round trip", Link: "https://example.com"}, []database.Article{
		{ExternalID: "g1", Title: "One", URL: "https://example.com/1", Summary: "S", PublishedAt: &published},
	})

	parsed, err := NewParser(nil).Run([]byte(rss), "https://example.com/starred.rss")
	if err != nil {
		t.Fatalf("Generated RSS should parse: %v", err)
	}
	if parsed.Title != "Round trip" || len(parsed.Articles) != 1 {
		t.Fatalf("Unexpected parse result: %+v", parsed)
	}
	a := parsed.Articles[0]
	if a.ID != "https://example.com/1" || a.URL != "https://example.com/1" {
		t.Errorf("Unexpected article identity: %+v", a)
	}
	if a.PublishedAt == nil || !a.PublishedAt.Equal(published) {
		t.Errorf("Expected published date to survive, got: %v", a.PublishedAt)
	}
}
