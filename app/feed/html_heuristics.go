package feed

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// MainContentExtractor locates the main readable region of a page and
// returns its inner HTML. The heuristic below can be replaced by a real
// readability implementation without touching ContentExtractor.
type MainContentExtractor interface {
	ExtractMainContent(rawHTML string) (string, error)
}

const minCandidateTextLength = 100

const strippedElements = "script, style, noscript, nav, header, footer, aside, iframe, form"

var (
	denylistPattern = regexp.MustCompile(`(?i)\b(ad|ads|advert|advertisement|social|share|comment|sidebar|nav|menu|footer|header)\b`)
	contentPattern  = regexp.MustCompile(`(?i)\b(content|post|entry|article)\b`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
)

const mediaElements = "img, picture, video, audio, svg, iframe, object, embed"

type heuristicExtractor struct{}

var _ MainContentExtractor = heuristicExtractor{}

func (heuristicExtractor) ExtractMainContent(rawHTML string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", newError(KindInvalidHTML, "failed to parse document", err)
	}

	stripBoilerplate(doc)

	region := locateMainRegion(doc)
	if region == nil {
		return "", ErrNoContentFound
	}

	content, err := region.Html()
	if err != nil {
		return "", newError(KindExtractionFailed, "failed to render content", err)
	}
	return content, nil
}

func stripBoilerplate(doc *goquery.Document) {
	for _, n := range doc.Nodes {
		removeComments(n)
	}

	doc.Find(strippedElements).Remove()

	doc.Find("[class], [id]").Each(func(_ int, s *goquery.Selection) {
		if s.Is("html, body") {
			return
		}
		if matchesAttr(s, denylistPattern) {
			s.Remove()
		}
	})
}

func removeComments(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.CommentNode {
			n.RemoveChild(c)
		} else {
			removeComments(c)
		}
		c = next
	}
}

func matchesAttr(s *goquery.Selection, pattern *regexp.Regexp) bool {
	for _, attr := range []string{"class", "id"} {
		if v, ok := s.Attr(attr); ok && pattern.MatchString(v) {
			return true
		}
	}
	return false
}

// locateMainRegion tries <article>, <main>, then the first element whose
// class or id looks like a content container, and finally <body>.
func locateMainRegion(doc *goquery.Document) *goquery.Selection {
	candidates := []*goquery.Selection{
		doc.Find("article").First(),
		doc.Find("main").First(),
	}

	patterned := doc.Find("body [class], body [id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return matchesAttr(s, contentPattern)
	}).First()
	candidates = append(candidates, patterned)

	for _, c := range candidates {
		if c.Length() > 0 && textLength(c) > minCandidateTextLength {
			return c
		}
	}

	body := doc.Find("body").First()
	if body.Length() == 0 || textLength(body) == 0 {
		return nil
	}
	return body
}

func textLength(s *goquery.Selection) int {
	return utf8.RuneCountInString(strings.TrimSpace(s.Text()))
}

// isAbsoluteRef reports whether ref must be left untouched by rewriting.
func isAbsoluteRef(ref string) bool {
	lower := strings.ToLower(ref)
	for _, prefix := range []string{"data:", "http://", "https://", "//"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func resolveURL(base *url.URL, ref string) string {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" || isAbsoluteRef(trimmed) {
		return ref
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

// resolveSrcset rewrites every candidate URL and keeps its descriptor.
func resolveSrcset(base *url.URL, srcset string) string {
	if strings.Contains(strings.ToLower(srcset), "data:") {
		return srcset
	}

	candidates := strings.Split(srcset, ",")
	rewritten := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		fields := strings.Fields(candidate)
		if len(fields) == 0 {
			continue
		}
		fields[0] = resolveURL(base, fields[0])
		rewritten = append(rewritten, strings.Join(fields, " "))
	}
	return strings.Join(rewritten, ", ")
}

func rewriteURLs(s *goquery.Selection, base *url.URL) {
	for _, attr := range []string{"src", "href"} {
		s.Find("[" + attr + "]").Each(func(_ int, el *goquery.Selection) {
			v, _ := el.Attr(attr)
			el.SetAttr(attr, resolveURL(base, v))
		})
	}
	s.Find("[srcset]").Each(func(_ int, el *goquery.Selection) {
		v, _ := el.Attr("srcset")
		el.SetAttr("srcset", resolveSrcset(base, v))
	})
}

func removeEmptyBlocks(s *goquery.Selection) {
	s.Find("p, div").Each(func(_ int, el *goquery.Selection) {
		if strings.TrimSpace(el.Text()) == "" && el.Find(mediaElements).Length() == 0 {
			el.Remove()
		}
	})
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}
