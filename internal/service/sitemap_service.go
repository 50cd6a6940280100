package service

import (
	"bufio"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// MaxSitemapURLs caps the URLs collected across all sitemaps of a site.
	MaxSitemapURLs = 1000
	// SitemapFetchTimeout bounds a whole sitemap discovery run.
	SitemapFetchTimeout = 20 * time.Second

	maxSitemapBytes = 10 << 20
	maxSitemapDepth = 2
)

// fallbackSitemapPaths are tried when robots.txt names no sitemap.
var fallbackSitemapPaths = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/sitemap-index.xml",
	"/sitemap-pages.xml",
}

// SitemapService discovers a site's catalogued URLs from robots.txt and sitemap files.
type SitemapService struct {
	logger    *slog.Logger
	client    *http.Client
	userAgent string
}

// NewSitemapService creates a new sitemap service. A nil client gets a
// client with SitemapFetchTimeout.
func NewSitemapService(client *http.Client, logger *slog.Logger) *SitemapService {
	if client == nil {
		client = &http.Client{Timeout: SitemapFetchTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SitemapService{
		logger:    logger.With("component", "sitemap"),
		client:    client,
		userAgent: DefaultUserAgent,
	}
}

// SitemapURL represents a URL entry from a sitemap.
type SitemapURL struct {
	Loc        string  `xml:"loc"`
	LastMod    string  `xml:"lastmod,omitempty"`
	ChangeFreq string  `xml:"changefreq,omitempty"`
	Priority   float64 `xml:"priority,omitempty"`
}

// Sitemap represents a parsed sitemap.xml file.
type Sitemap struct {
	XMLName xml.Name     `xml:"urlset"`
	URLs    []SitemapURL `xml:"url"`
}

// SitemapIndex represents a sitemap index file.
type SitemapIndex struct {
	XMLName  xml.Name       `xml:"sitemapindex"`
	Sitemaps []SitemapEntry `xml:"sitemap"`
}

// SitemapEntry represents an entry in a sitemap index.
type SitemapEntry struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// Discover returns the deduplicated URLs listed by the site's sitemaps.
// Sitemaps named in robots.txt win; otherwise the common sitemap paths are
// tried and combined. An empty result with a nil error means no sitemap.
func (s *SitemapService) Discover(ctx context.Context, baseURL string) ([]string, error) {
	base, err := NormalizeURL(baseURL)
	if err != nil {
		return nil, err
	}
	origin := base.Scheme + "://" + base.Host

	ctx, cancel := context.WithTimeout(ctx, SitemapFetchTimeout)
	defer cancel()

	candidates := s.robotsSitemaps(ctx, origin)
	if len(candidates) == 0 {
		for _, p := range fallbackSitemapPaths {
			candidates = append(candidates, origin+p)
		}
	}

	seen := map[string]bool{}
	var urls []string
	for _, candidate := range candidates {
		if len(urls) >= MaxSitemapURLs {
			break
		}
		if err := ctx.Err(); err != nil {
			return urls, err
		}
		found, err := s.fetchSitemap(ctx, candidate, 0)
		if err != nil {
			s.logger.Debug("sitemap unavailable", "url", candidate, "error", err)
			continue
		}
		for _, u := range found {
			if len(urls) >= MaxSitemapURLs {
				s.logger.Warn("reached max sitemap URLs limit", "limit", MaxSitemapURLs)
				break
			}
			if n := normalizeCrawlURL(u); !seen[n] {
				seen[n] = true
				urls = append(urls, u)
			}
		}
	}

	s.logger.Info("sitemap discovery completed",
		"base_url", origin,
		"candidates", len(candidates),
		"url_count", len(urls),
	)
	return urls, nil
}

// robotsSitemaps returns the Sitemap: entries of origin/robots.txt.
func (s *SitemapService) robotsSitemaps(ctx context.Context, origin string) []string {
	body, err := s.get(ctx, origin+"/robots.txt", "text/plain, */*")
	if err != nil {
		s.logger.Debug("robots.txt unavailable", "origin", origin, "error", err)
		return nil
	}

	var out []string
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		key, value, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "sitemap") {
			continue
		}
		value = strings.TrimSpace(value)
		if u, err := url.Parse(value); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
			out = append(out, value)
		}
	}
	return out
}

// fetchSitemap fetches and parses a sitemap, handling both regular sitemaps and indexes.
func (s *SitemapService) fetchSitemap(ctx context.Context, sitemapURL string, depth int) ([]string, error) {
	if depth > maxSitemapDepth {
		s.logger.Warn("sitemap recursion depth exceeded", "url", sitemapURL, "depth", depth)
		return nil, nil
	}

	body, err := s.get(ctx, sitemapURL, "application/xml, text/xml, */*")
	if err != nil {
		return nil, err
	}

	var index SitemapIndex
	if err := xml.Unmarshal(body, &index); err == nil && len(index.Sitemaps) > 0 {
		var all []string
		for _, entry := range index.Sitemaps {
			if len(all) >= MaxSitemapURLs {
				break
			}
			loc := strings.TrimSpace(entry.Loc)
			if loc == "" {
				continue
			}
			urls, err := s.fetchSitemap(ctx, loc, depth+1)
			if err != nil {
				s.logger.Warn("failed to fetch nested sitemap", "url", loc, "error", err)
				continue
			}
			all = append(all, urls...)
		}
		return all, nil
	}

	var sitemap Sitemap
	if err := xml.Unmarshal(body, &sitemap); err != nil {
		return nil, fmt.Errorf("failed to parse sitemap XML: %w", err)
	}
	out := make([]string, 0, len(sitemap.URLs))
	for _, u := range sitemap.URLs {
		if loc := strings.TrimSpace(u.Loc); loc != "" {
			out = append(out, loc)
		}
	}
	return out, nil
}

func (s *SitemapService) get(ctx context.Context, target, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", accept)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", target, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSitemapBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", target, err)
	}
	return body, nil
}

// UncataloguedPages returns the successfully crawled pages whose URL is not
// listed in the sitemap.
func UncataloguedPages(pages []string, sitemapURLs []string) []string {
	listed := make(map[string]bool, len(sitemapURLs))
	for _, u := range sitemapURLs {
		listed[normalizeCrawlURL(u)] = true
	}
	out := []string{}
	for _, p := range pages {
		if !listed[normalizeCrawlURL(p)] {
			out = append(out, p)
		}
	}
	return out
}
