package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/jmylchreest/autoreach-api/internal/protection"
)

// DefaultUserAgent is sent on every scrape and crawl request.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ErrPageBlocked is returned when the fetched page is a challenge or block page.
var ErrPageBlocked = errors.New("page blocked by bot protection")

// FetchedPage is a single fetched HTML document with its head metadata.
type FetchedPage struct {
	URL         string
	StatusCode  int
	Headers     http.Header
	Body        []byte
	Title       string
	Description string
	Keywords    []string
	OGImage     string
	Favicon     string
	FetchedAt   time.Time
}

// ProtectionAwareFetcher fetches pages with Colly and rejects block pages.
type ProtectionAwareFetcher struct {
	detector  *protection.Detector
	userAgent string
	timeout   time.Duration
	logger    *slog.Logger
}

// ProtectionAwareFetcherConfig holds configuration for creating a ProtectionAwareFetcher.
type ProtectionAwareFetcherConfig struct {
	UserAgent string
	Timeout   time.Duration
	Logger    *slog.Logger
}

// NewProtectionAwareFetcher creates a new fetcher that detects bot protection.
func NewProtectionAwareFetcher(cfg ProtectionAwareFetcherConfig) *ProtectionAwareFetcher {
	f := &ProtectionAwareFetcher{
		detector:  protection.NewDetector(),
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
		logger:    cfg.Logger,
	}
	if f.userAgent == "" {
		f.userAgent = DefaultUserAgent
	}
	if f.timeout <= 0 {
		f.timeout = 15 * time.Second
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// Fetch retrieves a page and its head metadata. It returns ErrPageBlocked
// wrapped with the detected signal when the response looks like a challenge.
func (f *ProtectionAwareFetcher) Fetch(ctx context.Context, url string) (*FetchedPage, error) {
	page := &FetchedPage{URL: url}

	c := colly.NewCollector(
		colly.UserAgent(f.userAgent),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(f.timeout)

	c.OnResponse(func(r *colly.Response) {
		page.URL = r.Request.URL.String()
		page.StatusCode = r.StatusCode
		page.Headers = http.Header{}
		if r.Headers != nil {
			page.Headers = r.Headers.Clone()
		}
		page.Body = r.Body
		page.FetchedAt = time.Now()
	})

	c.OnHTML("head title", func(e *colly.HTMLElement) {
		if page.Title == "" {
			page.Title = strings.TrimSpace(e.Text)
		}
	})
	c.OnHTML(`meta[name="description"]`, func(e *colly.HTMLElement) {
		page.Description = strings.TrimSpace(e.Attr("content"))
	})
	c.OnHTML(`meta[name="keywords"]`, func(e *colly.HTMLElement) {
		for _, k := range strings.Split(e.Attr("content"), ",") {
			if k = strings.TrimSpace(k); k != "" {
				page.Keywords = append(page.Keywords, k)
			}
		}
	})
	c.OnHTML(`meta[property="og:image"]`, func(e *colly.HTMLElement) {
		page.OGImage = e.Request.AbsoluteURL(strings.TrimSpace(e.Attr("content")))
	})
	c.OnHTML(`link[rel~="icon"]`, func(e *colly.HTMLElement) {
		if page.Favicon == "" {
			page.Favicon = e.Request.AbsoluteURL(e.Attr("href"))
		}
	})

	if err := c.Visit(url); err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}

	if result := f.detector.Check(page.StatusCode, page.Headers, page.Body); result.Blocked {
		f.logger.Info("bot protection detected",
			"url", url,
			"signal", result.Signal,
			"confidence", result.Confidence,
		)
		return page, fmt.Errorf("%w: %s (%s)", ErrPageBlocked, result.Signal, result.Reason)
	}
	return page, nil
}
