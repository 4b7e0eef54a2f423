package feed

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15"

	FeedAccept = "application/rss+xml, application/atom+xml, application/feed+json, application/json;q=0.9, application/xml;q=0.9, text/xml;q=0.9, text/html;q=0.8, */*;q=0.7"
	HTMLAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

	DefaultTimeout = 30 * time.Second

	maxBodySize = 10 << 20
)

type Response struct {
	URL         string // final URL after redirects
	ContentType string
	Body        []byte
}

// Fetcher performs the GET requests shared by the parser, the content
// extractor and icon downloads.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
}

func NewFetcher(httpClient *http.Client, userAgent string) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Fetcher{
		httpClient: httpClient,
		userAgent:  cmp.Or(userAgent, DefaultUserAgent),
	}
}

func (f *Fetcher) Get(ctx context.Context, url string, accept string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, newError(KindNetwork, "failed to create request", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", accept)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, newError(KindNetwork, "failed to fetch URL", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newError(KindNetwork, fmt.Sprintf("HTTP error: %s", resp.Status), nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, newError(KindNetwork, "failed to read response body", err)
	}
	if len(data) > maxBodySize {
		return nil, newError(KindNetwork, fmt.Sprintf("response too large (over %d bytes)", maxBodySize), nil)
	}

	finalURL := url
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Response{
		URL:         finalURL,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}
