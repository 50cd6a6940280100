package service

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/jmylchreest/autoreach-api/internal/models"
	"github.com/jmylchreest/autoreach-api/internal/protection"
)

// DefaultCrawlTimeout bounds each page request of an audit crawl.
const DefaultCrawlTimeout = 8 * time.Second

// Crawler walks a site breadth-first and records per-page SEO signals.
type Crawler struct {
	detector  *protection.Detector
	userAgent string
	timeout   time.Duration
	logger    *slog.Logger
}

// CrawlerConfig holds configuration for creating a Crawler.
type CrawlerConfig struct {
	UserAgent string
	Timeout   time.Duration
	Logger    *slog.Logger
}

// NewCrawler creates a new audit crawler.
func NewCrawler(cfg CrawlerConfig) *Crawler {
	c := &Crawler{
		detector:  protection.NewDetector(),
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
		logger:    cfg.Logger,
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	if c.timeout <= 0 {
		c.timeout = DefaultCrawlTimeout
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "crawler")
	return c
}

// Crawl visits up to maxPages pages on the start URL's host in BFS order.
// Unreachable pages are recorded with status 0 and an error rather than
// aborting the crawl. Only context cancellation returns an error.
func (c *Crawler) Crawl(ctx context.Context, startURL string, maxPages int) ([]models.CrawledPage, error) {
	start, err := NormalizeURL(startURL)
	if err != nil {
		return nil, err
	}
	if maxPages <= 0 {
		maxPages = 1
	}
	host := strings.ToLower(start.Host)

	col := colly.NewCollector(
		colly.UserAgent(c.userAgent),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
		colly.StdlibContext(ctx),
	)
	col.SetRequestTimeout(c.timeout)

	// The collector is synchronous, so callbacks for a visit run before
	// Visit returns and may write to the page being crawled.
	var current *models.CrawledPage

	col.OnResponse(func(r *colly.Response) {
		current.Status = r.StatusCode
		current.OK = r.StatusCode >= 200 && r.StatusCode < 300
		if !current.OK {
			return
		}
		var headers http.Header
		if r.Headers != nil {
			headers = *r.Headers
		}
		if result := c.detector.Check(r.StatusCode, headers, r.Body); result.Blocked {
			current.Error = "blocked: " + string(result.Signal)
		}
	})

	col.OnHTML("html", func(e *colly.HTMLElement) {
		current.Title = e.ChildText("head title")
		current.MetaDescription = strings.TrimSpace(e.ChildAttr(`meta[name="description"]`, "content"))
		current.H1 = append(current.H1, e.ChildTexts("h1")...)
		current.H2 = append(current.H2, e.ChildTexts("h2")...)
		current.Canonical = strings.TrimSpace(e.ChildAttr(`link[rel="canonical"]`, "href"))
		current.WordCount = len(strings.Fields(e.ChildText("body")))

		for _, href := range e.ChildAttrs("a[href]", "href") {
			abs := e.Request.AbsoluteURL(strings.TrimSpace(href))
			if abs == "" {
				continue
			}
			if u, err := url.Parse(abs); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
				current.Links = append(current.Links, abs)
			}
		}
	})

	col.OnError(func(r *colly.Response, err error) {
		if r != nil {
			current.Status = r.StatusCode
		}
		current.Error = err.Error()
	})

	queue := []string{normalizeCrawlURL(start.String())}
	seen := map[string]bool{}
	var pages []models.CrawledPage

	for len(queue) > 0 && len(pages) < maxPages {
		if err := ctx.Err(); err != nil {
			return pages, err
		}

		next := queue[0]
		queue = queue[1:]
		if seen[next] {
			continue
		}
		seen[next] = true

		page := models.CrawledPage{URL: next, H1: []string{}, H2: []string{}, Links: []string{}}
		current = &page

		started := time.Now()
		if err := col.Visit(next); err != nil && page.Error == "" {
			page.Error = err.Error()
		}
		page.TimeMs = time.Since(started).Milliseconds()
		current = nil

		if err := ctx.Err(); err != nil {
			return pages, err
		}

		c.logger.Debug("page crawled",
			"url", page.URL,
			"status", page.Status,
			"time_ms", page.TimeMs,
			"words", page.WordCount,
			"links", len(page.Links),
		)
		pages = append(pages, page)

		for _, link := range page.Links {
			u, err := url.Parse(link)
			if err != nil || !strings.EqualFold(u.Host, host) {
				continue
			}
			if n := normalizeCrawlURL(link); !seen[n] {
				queue = append(queue, n)
			}
		}
	}

	c.logger.Info("crawl completed", "start_url", start.String(), "pages", len(pages), "max_pages", maxPages)
	return pages, nil
}

// normalizeCrawlURL normalizes a URL for deduplication.
func normalizeCrawlURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	parsed.Fragment = ""
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)

	// Keep "/" so the root and an empty path collapse to one entry.
	if parsed.Path == "" {
		parsed.Path = "/"
	}
	if parsed.Path != "/" {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	}

	return parsed.String()
}
