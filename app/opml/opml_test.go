package opml

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

var exportTime = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

func TestEscape(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"plain", "plain"},
		{"Tom & Jerry", "Tom &amp; Jerry"},
		{`<a href="x">`, "&lt;a href=&quot;x&quot;&gt;"},
		{"it's", "it&apos;s"},
		{"&amp;", "&amp;amp;"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Escape(tt.input); got != tt.want {
				t.Errorf("Escape(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestGenerateRoundTrip(t *testing.T) {
	feeds := []FeedEntry{
		{Title: "News & Views", XMLURL: "https://example.com/feed?a=1&b=2", HTMLURL: "https://example.com/"},
		{Title: `Quotes "here"`, XMLURL: "https://other.example.com/rss"},
	}

	out := Generate("My <Feeds>", feeds, exportTime)

	if !bytes.HasPrefix(out, []byte(`<?xml version="1.0" encoding="UTF-8"?>`)) {
		t.Errorf("Expected XML declaration, got: %s", out)
	}
	if !bytes.Contains(out, []byte("<title>My &lt;Feeds&gt;</title>")) {
		t.Errorf("Expected escaped title, got: %s", out)
	}
	if !bytes.Contains(out, []byte("<dateCreated>2024-05-06T07:08:09Z</dateCreated>")) {
		t.Errorf("Expected dateCreated, got: %s", out)
	}
	if bytes.Contains(out, []byte("htmlUrl=\"\"")) {
		t.Errorf("Expected empty htmlUrl to be omitted, got: %s", out)
	}

	doc, err := Parse(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("Failed to parse generated OPML: %v", err)
	}
	if doc.Title != "My <Feeds>" {
		t.Errorf("Expected title to round-trip, got: %q", doc.Title)
	}
	if doc.DateCreated == nil || !doc.DateCreated.Equal(exportTime) {
		t.Errorf("Expected dateCreated to round-trip, got: %v", doc.DateCreated)
	}

	got := doc.Feeds()
	if len(got) != len(feeds) {
		t.Fatalf("Expected %d feeds, got %d", len(feeds), len(got))
	}
	for i := range feeds {
		if got[i].Title != feeds[i].Title || got[i].XMLURL != feeds[i].XMLURL || got[i].HTMLURL != feeds[i].HTMLURL {
			t.Errorf("Feed %d did not round-trip: got %+v, want %+v", i, got[i], feeds[i])
		}
		if len(got[i].FolderPath) != 0 {
			t.Errorf("Expected flat export, got folder path %v", got[i].FolderPath)
		}
	}
}

func TestGenerateGrouped(t *testing.T) {
	groups := []Group{
		{Name: "Tech & Science", Feeds: []FeedEntry{
			{Title: "A", XMLURL: "https://a.example.com/rss"},
			{Title: "B", XMLURL: "https://b.example.com/rss"},
		}},
		{Name: "Empty"},
	}
	unfiled := []FeedEntry{{Title: "C", XMLURL: "https://c.example.com/rss"}}

	out := GenerateGrouped("Subscriptions", groups, unfiled, exportTime)

	if bytes.Contains(out, []byte(`text="Empty"`)) {
		t.Errorf("Expected empty folders to be skipped, got: %s", out)
	}

	doc, err := Parse(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("Failed to parse generated OPML: %v", err)
	}
	if len(doc.Outlines) != 2 {
		t.Fatalf("Expected folder plus unfiled feed at top level, got %d outlines", len(doc.Outlines))
	}
	if doc.Outlines[0].Title != "Tech & Science" || len(doc.Outlines[0].Children) != 2 {
		t.Errorf("Unexpected folder outline: %+v", doc.Outlines[0])
	}

	feeds := doc.Feeds()
	wantPaths := [][]string{{"Tech & Science"}, {"Tech & Science"}, {}}
	for i, want := range wantPaths {
		if len(feeds[i].FolderPath) != len(want) || (len(want) > 0 && feeds[i].FolderPath[0] != want[0]) {
			t.Errorf("Feed %d: expected path %v, got %v", i, want, feeds[i].FolderPath)
		}
	}
}

func TestParseNestedFolders(t *testing.T) {
	data := `<?xml version="1.0"?>
<opml version="1.0">
  <head><title>Export</title><dateCreated>Mon, 06 May 2024 07:08:09 GMT</dateCreated></head>
  <body>
    <outline text="Tech">
      <outline text="Go">
        <outline type="rss" text="Go Blog" xmlUrl="https://go.dev/blog/feed.atom"/>
      </outline>
      <outline type="rss" title="Titled" text="Texted" xmlUrl="https://tech.example.com/rss"/>
    </outline>
    <outline type="rss" xmlUrl="https://bare.example.com/rss"/>
  </body>
</opml>`

	doc, err := Parse(strings.NewReader(data))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if doc.Title != "Export" {
		t.Errorf("Expected head title, got: %q", doc.Title)
	}
	if doc.DateCreated == nil || !doc.DateCreated.Equal(exportTime) {
		t.Errorf("Expected RFC 822 dateCreated, got: %v", doc.DateCreated)
	}

	feeds := doc.Feeds()
	want := []FeedEntry{
		{FolderPath: []string{"Tech", "Go"}, Title: "Go Blog", XMLURL: "https://go.dev/blog/feed.atom"},
		{FolderPath: []string{"Tech"}, Title: "Titled", XMLURL: "https://tech.example.com/rss"},
		{FolderPath: []string{}, Title: Untitled, XMLURL: "https://bare.example.com/rss"},
	}
	if !reflect.DeepEqual(feeds, want) {
		t.Errorf("Unexpected feeds:\n got: %+v\nwant: %+v", feeds, want)
	}
}

func TestParseLiftsChildrenOfFeeds(t *testing.T) {
	data := `<opml version="2.0"><body>
  <outline type="rss" text="Parent" xmlUrl="https://p.example.com/rss">
    <outline type="rss" text="Child" xmlUrl="https://c.example.com/rss"/>
  </outline>
</body></opml>`

	doc, err := Parse(strings.NewReader(data))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(doc.Outlines) != 2 {
		t.Fatalf("Expected 2 top-level outlines, got %d", len(doc.Outlines))
	}
	for _, o := range doc.Outlines {
		if !o.IsFeed() || len(o.Children) != 0 {
			t.Errorf("Expected flat feed outline, got: %+v", o)
		}
	}
}

func TestParseIgnoresOutlinesOutsideBody(t *testing.T) {
	data := `<opml version="2.0">
<head><title>T</title><outline type="rss" text="Wrong" xmlUrl="https://wrong.example.com/rss"/></head>
<body><outline type="rss" text="Right" xmlUrl="https://right.example.com/rss"/></body>
</opml>`

	doc, err := Parse(strings.NewReader(data))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	feeds := doc.Feeds()
	if len(feeds) != 1 || feeds[0].Title != "Right" {
		t.Errorf("Expected only the body outline, got: %+v", feeds)
	}
}

func TestParseDeclaredCharset(t *testing.T) {
	data := []byte("<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n" +
		"<opml version=\"2.0\"><body><outline type=\"rss\" text=\"Caf\xe9\" xmlUrl=\"https://cafe.example.com/rss\"/></body></opml>")

	doc, err := Parse(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if feeds := doc.Feeds(); len(feeds) != 1 || feeds[0].Title != "Café" {
		t.Errorf("Expected decoded title, got: %+v", feeds)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"empty", "", ErrInvalidData},
		{"malformed", "<opml><body><outline></body>", ErrParsingFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got: %v", tt.want, err)
			}
			var opmlErr *Error
			if errors.As(err, &opmlErr) && opmlErr.Suggestion() == "" {
				t.Error("Expected a suggestion")
			}
		})
	}
}

func TestParseNonOPMLDocument(t *testing.T) {
	doc, err := Parse(strings.NewReader(`<rss version="2.0"><channel><title>x</title></channel></rss>`))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(doc.Feeds()) != 0 {
		t.Errorf("Expected no feeds, got: %+v", doc.Feeds())
	}
}

func TestGenerateEscapesReservedCharacters(t *testing.T) {
	out := string(Generate("Export", []FeedEntry{
		{Title: `Feed & <Special> "Characters"`, XMLURL: "https://example.com/rss"},
	}, exportTime))

	if !strings.Contains(out, "Feed &amp; &lt;Special&gt; &quot;Characters&quot;") {
		t.Errorf("Expected escaped title, got: %s", out)
	}
	for _, raw := range []string{"Feed & ", "<Special>", `"Characters"`} {
		if strings.Contains(out, raw) {
			t.Errorf("Expected no raw %q in output", raw)
		}
	}
}
