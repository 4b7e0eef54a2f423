package opml

import (
	"bufio"
	"cmp"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/araddon/dateparse"
	"golang.org/x/net/html/charset"
)

// Untitled names feed outlines that carry neither title nor text.
const Untitled = "Untitled"

// frame is one open <outline> level.
type frame struct {
	outline  Outline
	children []Outline
}

// Parse reads an OPML document. Well-formed XML that is not OPML yields an
// empty Document; malformed XML is an error.
func Parse(r io.Reader) (*Document, error) {
	br := bufio.NewReader(r)
	if _, err := br.Peek(1); err != nil {
		return nil, NewError(KindInvalidData, "empty document", nil)
	}

	decoder := xml.NewDecoder(br)
	decoder.CharsetReader = charset.NewReaderLabel

	doc := &Document{}
	var (
		path     []string
		frames   []*frame
		text     strings.Builder
		topLevel []Outline
	)

	appendOutline := func(o Outline) {
		if n := len(frames); n > 0 {
			frames[n-1].children = append(frames[n-1].children, o)
			return
		}
		topLevel = append(topLevel, o)
	}

	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, NewError(KindParsingFailed, "", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := strings.ToLower(t.Name.Local)
			if name == "outline" && inBody(path) {
				frames = append(frames, &frame{outline: outlineFromAttrs(t.Attr)})
			}
			path = append(path, name)
			text.Reset()

		case xml.CharData:
			text.Write(t)

		case xml.EndElement:
			name := strings.ToLower(t.Name.Local)
			switch {
			case matches(path, "opml", "head", "title"):
				doc.Title = strings.TrimSpace(text.String())
			case matches(path, "opml", "head", "datecreated"):
				if created, err := dateparse.ParseAny(strings.TrimSpace(text.String())); err == nil {
					doc.DateCreated = &created
				}
			}

			if len(path) > 0 {
				path = path[:len(path)-1]
			}

			if name == "outline" && inBody(path) && len(frames) > 0 {
				f := frames[len(frames)-1]
				frames = frames[:len(frames)-1]
				if f.outline.IsFeed() {
					appendOutline(f.outline)
					// Feeds should not nest; lift stray children to this level.
					for _, child := range f.children {
						appendOutline(child)
					}
					continue
				}
				f.outline.Children = f.children
				appendOutline(f.outline)
			}
		}
	}

	doc.Outlines = topLevel
	return doc, nil
}

// inBody reports whether path is <opml><body> optionally followed by outlines.
func inBody(path []string) bool {
	if len(path) < 2 || path[0] != "opml" || path[1] != "body" {
		return false
	}
	for _, p := range path[2:] {
		if p != "outline" {
			return false
		}
	}
	return true
}

func matches(path []string, want ...string) bool {
	if len(path) != len(want) {
		return false
	}
	for i := range want {
		if path[i] != want[i] {
			return false
		}
	}
	return true
}

func outlineFromAttrs(attrs []xml.Attr) Outline {
	var title, text string
	var o Outline
	for _, a := range attrs {
		switch strings.ToLower(a.Name.Local) {
		case "title":
			title = strings.TrimSpace(a.Value)
		case "text":
			text = strings.TrimSpace(a.Value)
		case "xmlurl":
			o.XMLURL = strings.TrimSpace(a.Value)
		case "htmlurl":
			o.HTMLURL = strings.TrimSpace(a.Value)
		}
	}
	o.Title = cmp.Or(title, text, Untitled)
	return o
}
