package opml

import (
	"bytes"
	"strings"
	"time"
)

const indent = "    "

// escapeOrder puts the ampersand first so entities produced by the later
// replacements are not escaped again.
var escapeOrder = [][2]string{
	{"&", "&amp;"},
	{"<", "&lt;"},
	{">", "&gt;"},
	{`"`, "&quot;"},
	{"'", "&apos;"},
}

func Escape(s string) string {
	for _, pair := range escapeOrder {
		s = strings.ReplaceAll(s, pair[0], pair[1])
	}
	return s
}

// Generate renders a flat OPML 2.0 document with one outline per feed, in
// the order given.
func Generate(title string, feeds []FeedEntry, now time.Time) []byte {
	var buf bytes.Buffer
	writeHeader(&buf, title, now)
	for _, f := range feeds {
		writeFeed(&buf, f, 2)
	}
	writeFooter(&buf)
	return buf.Bytes()
}

// GenerateGrouped renders folders as outline groups followed by unfiled feeds.
func GenerateGrouped(title string, groups []Group, unfiled []FeedEntry, now time.Time) []byte {
	var buf bytes.Buffer
	writeHeader(&buf, title, now)
	for _, g := range groups {
		if len(g.Feeds) == 0 {
			continue
		}
		name := Escape(g.Name)
		buf.WriteString(strings.Repeat(indent, 2))
		buf.WriteString(`<outline text="` + name + `" title="` + name + `">` + "\n")
		for _, f := range g.Feeds {
			writeFeed(&buf, f, 3)
		}
		buf.WriteString(strings.Repeat(indent, 2))
		buf.WriteString("</outline>\n")
	}
	for _, f := range unfiled {
		writeFeed(&buf, f, 2)
	}
	writeFooter(&buf)
	return buf.Bytes()
}

func writeHeader(buf *bytes.Buffer, title string, now time.Time) {
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	buf.WriteString(`<opml version="2.0">` + "\n")
	buf.WriteString(indent + "<head>\n")
	buf.WriteString(indent + indent + "<title>" + Escape(title) + "</title>\n")
	buf.WriteString(indent + indent + "<dateCreated>" + now.UTC().Format(time.RFC3339) + "</dateCreated>\n")
	buf.WriteString(indent + "</head>\n")
	buf.WriteString(indent + "<body>\n")
}

func writeFeed(buf *bytes.Buffer, f FeedEntry, depth int) {
	t := Escape(f.Title)
	buf.WriteString(strings.Repeat(indent, depth))
	buf.WriteString(`<outline type="rss" text="` + t + `" title="` + t + `" xmlUrl="` + Escape(f.XMLURL) + `"`)
	if f.HTMLURL != "" {
		buf.WriteString(` htmlUrl="` + Escape(f.HTMLURL) + `"`)
	}
	buf.WriteString(" />\n")
}

func writeFooter(buf *bytes.Buffer) {
	buf.WriteString(indent + "</body>\n")
	buf.WriteString("</opml>\n")
}
