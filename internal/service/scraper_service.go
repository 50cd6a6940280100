package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	readability "github.com/go-shiori/go-readability"
	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/autoreach-api/internal/llm"
	"github.com/jmylchreest/autoreach-api/internal/models"
)

// MaxScrapedContent caps the main text kept from a scraped page.
const MaxScrapedContent = 10000

// ErrInvalidURL is returned when a scrape target cannot be parsed.
var ErrInvalidURL = errors.New("invalid url")

// PageFetcher fetches a single page. *ProtectionAwareFetcher implements it.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*FetchedPage, error)
}

// ScraperService builds a Company profile from a website.
type ScraperService struct {
	fetcher     PageFetcher
	gateway     llm.JSONCaller
	competitors CompetitorIdentifier
	logger      *slog.Logger
}

// ScraperServiceConfig wires a ScraperService. Competitors is optional and
// is used when extraction returns no competitors.
type ScraperServiceConfig struct {
	Fetcher     PageFetcher
	Gateway     llm.JSONCaller
	Competitors CompetitorIdentifier
	Logger      *slog.Logger
}

// NewScraperService creates a scraper service.
func NewScraperService(cfg ScraperServiceConfig) *ScraperService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fetcher := cfg.Fetcher
	if fetcher == nil {
		fetcher = NewProtectionAwareFetcher(ProtectionAwareFetcherConfig{Logger: logger})
	}
	return &ScraperService{
		fetcher:     fetcher,
		gateway:     cfg.Gateway,
		competitors: cfg.Competitors,
		logger:      logger.With("component", "scraper"),
	}
}

// companyExtraction is the JSON shape requested from the gateway.
type companyExtraction struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Keywords     []string `json:"keywords"`
	Industry     string   `json:"industry"`
	MainProducts []string `json:"mainProducts"`
	Competitors  []string `json:"competitors"`
}

// ScrapeCompany fetches rawURL and extracts a company profile. Fetch and
// extraction failures yield the fallback company; only an unparseable URL
// is an error.
func (s *ScraperService) ScrapeCompany(ctx context.Context, rawURL string) (*models.Company, error) {
	target, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	company, err := s.scrape(ctx, target)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.logger.Warn("scrape failed, using fallback company", "url", target.String(), "error", err)
		return FallbackCompany(target), nil
	}
	return company, nil
}

func (s *ScraperService) scrape(ctx context.Context, target *url.URL) (*models.Company, error) {
	page, err := s.fetcher.Fetch(ctx, target.String())
	if err != nil {
		return nil, err
	}

	content := mainText(page, target)
	s.logger.Debug("page fetched", "url", page.URL, "status", page.StatusCode, "content_chars", len(content))

	res := s.gateway.CallJSON(ctx, companyExtractionPrompt(target.String(), page, content), "")
	if !res.OK {
		return nil, fmt.Errorf("company extraction failed: %s", res.Error)
	}
	var ex companyExtraction
	if err := llm.ParseJSON(res.Content, &ex); err != nil {
		return nil, fmt.Errorf("failed to parse company extraction: %w", err)
	}
	if strings.TrimSpace(ex.Name) == "" {
		return nil, fmt.Errorf("%w: extraction returned no company name", llm.ErrParse)
	}

	favicon := page.Favicon
	if favicon == "" {
		favicon = target.Scheme + "://" + target.Host + "/favicon.ico"
	}
	keywords := ex.Keywords
	if len(keywords) == 0 {
		keywords = page.Keywords
	}

	company := &models.Company{
		ID:          ulid.Make().String(),
		URL:         target.String(),
		Name:        strings.TrimSpace(ex.Name),
		Description: strings.TrimSpace(ex.Description),
		Industry:    strings.TrimSpace(ex.Industry),
		Logo:        page.OGImage,
		Favicon:     favicon,
		Scraped:     true,
		ScrapedData: &models.ScrapedData{
			Title:        page.Title,
			Description:  strings.TrimSpace(ex.Description),
			Keywords:     keywords,
			MainContent:  content,
			MainProducts: ex.MainProducts,
			Competitors:  ex.Competitors,
			OGImage:      page.OGImage,
			Favicon:      favicon,
		},
	}
	if company.ScrapedData.Title == "" {
		company.ScrapedData.Title = company.Name
	}

	if len(company.ScrapedData.Competitors) == 0 && s.competitors != nil {
		found, err := s.competitors.Identify(ctx, *company, nil)
		if err != nil {
			s.logger.Warn("competitor identification failed", "company", company.Name, "error", err)
		} else {
			company.ScrapedData.Competitors = CompetitorNames(found)
		}
	}
	return company, nil
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// mainText extracts readable text from the page body, capped at MaxScrapedContent runes.
func mainText(page *FetchedPage, target *url.URL) string {
	pageURL := target
	if u, err := url.Parse(page.URL); err == nil {
		pageURL = u
	}
	text := ""
	if article, err := readability.FromReader(bytes.NewReader(page.Body), pageURL); err == nil {
		text = article.TextContent
	}
	if strings.TrimSpace(text) == "" {
		text = page.Description
	}
	text = strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
	return truncateRunes(text, MaxScrapedContent)
}

// NormalizeURL trims raw, adds https:// when no scheme is given and requires a host.
func NormalizeURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return u, nil
}

// FallbackCompany derives a minimal unscraped company from the URL host.
func FallbackCompany(target *url.URL) *models.Company {
	name := CustomerNameFromURL(target)
	return &models.Company{
		ID:          ulid.Make().String(),
		URL:         target.String(),
		Name:        name,
		Description: "Information about " + name,
		Industry:    "technology",
		Scraped:     false,
	}
}

func capitalize(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func companyExtractionPrompt(target string, page *FetchedPage, content string) string {
	return fmt.Sprintf(`Extract company information from this website content:

URL: %s
Title: %s
Meta description: %s
Content: %s

Extract the company name, a brief description, relevant keywords, and identify the PRIMARY industry category.

Industry detection rules:
- Outdoor gear: coolers, drinkware, outdoor equipment, camping gear, fishing, hiking.
- Web scraping: scraping, crawling, data extraction, HTML parsing, bots, proxies.
- AI/ML: AI, machine learning, deep learning, computer vision, NLP, LLM, generative AI.
- Cloud/Deployment: hosting, deployment, cloud infrastructure, servers, DevOps, Kubernetes.
- E-commerce platforms: online store builder, marketplace builder, storefront SaaS.
- Direct-to-consumer brand (D2C): sells physical products directly to consumers.
- Apparel & Fashion: clothing, footwear, luxury fashion, jewelry, eyewear.
- Developer Tools: APIs, SDKs, frameworks, developer platforms, testing tools, CI/CD.
- Marketplace: aggregator, multi-vendor platform, gig platforms, service exchanges.
- SaaS (B2B software): CRM, HR, payroll, analytics, workflow, marketing automation.
- Consumer Goods: food, beverages, skincare, wellness, household items.
- Fintech: payments, lending, wallets, neobanks, investments, insurance tech.
- Healthtech: telemedicine, digital health, diagnostics, fitness apps.
- Edtech: online learning, upskilling, tutoring.
- Mobility/Transportation: ride-hailing, EV, logistics, fleet management.
- Hardware/IoT: electronics, devices, robotics, sensors, smart home.
- Media/Entertainment: streaming, gaming, content platforms, social media.
- GreenTech/CleanTech: renewable energy, EV charging, recycling, sustainability.
- Real Estate/PropTech: housing platforms, rental apps, construction tech.

IMPORTANT:
1. For mainProducts, list the ACTUAL PRODUCTS (e.g., "coolers", "tumblers") not product categories
2. For competitors, extract FULL COMPANY NAMES (e.g., "RTIC", "IGLOO", "Coleman") not initials
3. Focus on what the company MAKES/SELLS, not what goes IN their products

Return ONLY JSON in this exact format:
{"name": "", "description": "", "keywords": [], "industry": "", "mainProducts": [], "competitors": []}`,
		target, page.Title, page.Description, content)
}
