package crisis

import (
	"bytes"
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"

	"github.com/stressease/stressease/internal/log"
)

// FetchConfig holds scraper settings for the page fetcher.
type FetchConfig struct {
	Parallelism int           // Max concurrent requests per domain
	Delay       time.Duration // Delay between requests to the same domain
	Timeout     time.Duration // Per-request timeout
}

const (
	defaultFetchParallelism = 2
	defaultFetchDelay       = time.Second
	defaultFetchTimeout     = 30 * time.Second

	fetchUserAgent = "stressease-crisis-bot/1.0"
)

// PageFetcher scrapes web pages and reduces them to readable text.
type PageFetcher struct {
	cfg    FetchConfig
	logger log.Logger
}

// NewPageFetcher creates a page fetcher. Zero config fields fall back to
// conservative defaults.
func NewPageFetcher(cfg FetchConfig, logger log.Logger) *PageFetcher {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = defaultFetchParallelism
	}
	if cfg.Delay <= 0 {
		cfg.Delay = defaultFetchDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultFetchTimeout
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &PageFetcher{cfg: cfg, logger: logger}
}

// Fetch retrieves the given URLs concurrently and returns readable text
// keyed by URL. Failed or empty pages are omitted.
func (f *PageFetcher) Fetch(ctx context.Context, urls []string) map[string]string {
	pages := make(map[string]string, len(urls))
	if len(urls) == 0 {
		return pages
	}

	c := colly.NewCollector(
		colly.Async(true),
		colly.UserAgent(fetchUserAgent),
		colly.MaxDepth(1),
	)
	c.SetRequestTimeout(f.cfg.Timeout)
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: f.cfg.Parallelism,
		Delay:       f.cfg.Delay,
	}); err != nil {
		f.logger.Warn("applying scraper limits failed", "error", err)
	}

	var mu sync.Mutex
	c.OnResponse(func(r *colly.Response) {
		text := readableText(r.Request.URL, r.Body)
		if text == "" {
			return
		}
		mu.Lock()
		pages[r.Request.URL.String()] = text
		mu.Unlock()
	})
	c.OnError(func(r *colly.Response, err error) {
		f.logger.Warn("page fetch failed", "url", r.Request.URL.String(), "error", err)
	})

	for _, u := range urls {
		if ctx.Err() != nil {
			break
		}
		if err := c.Visit(u); err != nil {
			f.logger.Warn("page visit rejected", "url", u, "error", err)
		}
	}
	c.Wait()

	f.logger.Debug("pages fetched", "requested", len(urls), "readable", len(pages))
	return pages
}

// readableText extracts the main article text from an HTML page, falling
// back to a stripped full-body extraction when readability finds nothing.
func readableText(pageURL *url.URL, body []byte) string {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err == nil {
		if text := collapseWhitespace(article.TextContent); text != "" {
			return text
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript, nav, footer").Remove()
	return collapseWhitespace(doc.Find("body").Text())
}

// collapseWhitespace normalizes runs of whitespace to single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
