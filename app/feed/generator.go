package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/lysyi3m/rss-hoard/app/database"
)

// Channel describes the RSS document produced by Generator.
type Channel struct {
	Title       string
	Link        string
	Description string
	SelfURL     string
	Generator   string
}

// Generator renders stored articles as an RSS 2.0 document, preferring the
// extracted full content for content:encoded.
type Generator struct {
	now func() time.Time
}

func NewGenerator() *Generator {
	return &Generator{now: time.Now}
}

func (g *Generator) Run(channel Channel, articles []database.Article) string {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", channel.Title, 4)
	g.writeElement(&buf, "link", channel.Link, 4)
	g.writeElement(&buf, "description", cmp.Or(channel.Description, channel.Title), 4)

	if channel.SelfURL != "" {
		fmt.Fprintf(&buf, "    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
			html.EscapeString(channel.SelfURL))
	}

	lastBuildDate := g.now().In(time.Local)
	if len(articles) > 0 {
		lastBuildDate = articleDate(articles[0])
	}
	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", channel.Generator, 4)

	for _, article := range articles {
		g.writeItem(&buf, article)
	}

	buf.WriteString("  </channel>\n</rss>\n")

	return buf.String()
}

func (g *Generator) writeItem(buf *bytes.Buffer, article database.Article) {
	buf.WriteString("    <item>\n")

	if guid := article.DedupKey(); guid != "" {
		fmt.Fprintf(buf, "      <guid isPermaLink=\"%t\">", isURL(guid))
		xml.EscapeText(buf, []byte(guid))
		buf.WriteString("</guid>\n")
	}

	g.writeElement(buf, "title", article.Title, 6)
	g.writeElement(buf, "link", article.URL, 6)
	g.writeElement(buf, "description", article.Summary, 6)

	if content := cmp.Or(article.FullContent, article.Content); content != "" {
		buf.WriteString("      <content:encoded><![CDATA[")
		// A literal terminator inside the content would end the section early.
		buf.WriteString(strings.ReplaceAll(content, "]]>", "]]]]><![CDATA[>"))
		buf.WriteString("]]></content:encoded>\n")
	}

	g.writeElement(buf, "pubDate", articleDate(article).Format(time.RFC1123Z), 6)
	g.writeElement(buf, "author", article.Author, 6)

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	buf.WriteString(strings.Repeat(" ", indent))
	buf.WriteString("<" + tag + ">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</" + tag + ">\n")
}

func articleDate(a database.Article) time.Time {
	if a.PublishedAt != nil {
		return *a.PublishedAt
	}
	return a.CreatedAt
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
