package feed

import (
	"errors"
	"net/url"
	"strings"
	"testing"
)

func TestResolveURL(t *testing.T) {
	base, _ := url.Parse("https://example.com/blog/posts/article.html")

	tests := []struct {
		ref  string
		want string
	}{
		{"image.jpg", "https://example.com/blog/posts/image.jpg"},
		{"../image.jpg", "https://example.com/blog/image.jpg"},
		{"/image.jpg", "https://example.com/image.jpg"},
		{"?page=2", "https://example.com/blog/posts/article.html?page=2"},
		{"#top", "https://example.com/blog/posts/article.html#top"},
		{"data:image/png;base64,AAAA", "data:image/png;base64,AAAA"},
		{"//cdn.example.com/a.js", "//cdn.example.com/a.js"},
		{"HTTPS://other.example.com/x", "HTTPS://other.example.com/x"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			if got := resolveURL(base, tt.ref); got != tt.want {
				t.Errorf("resolveURL(%q) = %q, want %q", tt.ref, got, tt.want)
			}
		})
	}
}

func TestResolveSrcset(t *testing.T) {
	base, _ := url.Parse("https://example.com/blog/")

	got := resolveSrcset(base, "small.jpg 480w,  /large.jpg 1024w")
	want := "https://example.com/blog/small.jpg 480w, https://example.com/large.jpg 1024w"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}

	inline := "data:image/png;base64,AAAA 1x"
	if got := resolveSrcset(base, inline); got != inline {
		t.Errorf("Expected inline srcset untouched, got %q", got)
	}
}

func TestExtractMainContentDropsChrome(t *testing.T) {
	document := `<html><body>
<nav>Navigation links</nav>
<article><h1>T</h1><p>body text</p></article>
<footer>Footer text</footer>
</body></html>`

	content, err := heuristicExtractor{}.ExtractMainContent(document)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	for _, want := range []string{"T", "body text"} {
		if !strings.Contains(content, want) {
			t.Errorf("Expected %q in %s", want, content)
		}
	}
	for _, unwanted := range []string{"Navigation links", "Footer text"} {
		if strings.Contains(content, unwanted) {
			t.Errorf("Expected %q to be stripped from %s", unwanted, content)
		}
	}
}

func TestExtractMainContentPrefersArticle(t *testing.T) {
	document := `<html><body>
<div class="promo">` + lorem + `</div>
<main><p>Main ` + lorem + `</p></main>
<article><p>Article ` + lorem + `</p></article>
</body></html>`

	content, err := heuristicExtractor{}.ExtractMainContent(document)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.HasPrefix(content, "<p>Article") {
		t.Errorf("Expected the article region, got: %s", content)
	}
}

func TestExtractMainContentEmptyBody(t *testing.T) {
	_, err := heuristicExtractor{}.ExtractMainContent("<html><head><title>x</title></head><body>  </body></html>")
	if !errors.Is(err, ErrNoContentFound) {
		t.Errorf("Expected no content found, got: %v", err)
	}
}

func TestRemoveEmptyBlocksKeepsMedia(t *testing.T) {
	extracted, err := NewContentExtractor(nil).ExtractFromHTML(
		`<html><body><article><p>`+lorem+`</p><div><img src="a.png"></div><div> </div></article></body></html>`,
		"https://example.com/")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(extracted.Content, `<img src="https://example.com/a.png"/>`) {
		t.Errorf("Expected image block to survive, got: %s", extracted.Content)
	}
	if strings.Contains(extracted.Content, "<div> </div>") || strings.Contains(extracted.Content, "<div></div>") {
		t.Errorf("Expected empty block to be removed, got: %s", extracted.Content)
	}
}

func TestExtractMainContentShortFirstContainerFallsBackToBody(t *testing.T) {
	document := `<html><body>
<div class="post-meta">short byline</div>
<div class="entry-body"><p>` + lorem + ` ` + lorem + `</p></div>
<p>Trailing body paragraph</p>
</body></html>`

	content, err := heuristicExtractor{}.ExtractMainContent(document)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	for _, want := range []string{"short byline", "Lorem ipsum", "Trailing body paragraph"} {
		if !strings.Contains(content, want) {
			t.Errorf("Expected body fallback to contain %q, got: %s", want, content)
		}
	}
}
