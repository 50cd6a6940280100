package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/jmylchreest/autoreach-api/internal/llm"
	"github.com/jmylchreest/autoreach-api/internal/models"
)

// MaxIdentifiedCompetitors caps the AI-identified competitor list.
const MaxIdentifiedCompetitors = 8

// competitorDomains maps well-known competitor names to their sites.
var competitorDomains = map[string]string{
	// Web scraping
	"apify":          "apify.com",
	"scrapy":         "scrapy.org",
	"octoparse":      "octoparse.com",
	"parsehub":       "parsehub.com",
	"diffbot":        "diffbot.com",
	"import.io":      "import.io",
	"bright data":    "brightdata.com",
	"zyte":           "zyte.com",
	"puppeteer":      "pptr.dev",
	"playwright":     "playwright.dev",
	"selenium":       "selenium.dev",
	"beautiful soup": "pypi.org/project/beautifulsoup4",
	"scrapfly":       "scrapfly.io",
	"crawlbase":      "crawlbase.com",
	"webharvy":       "webharvy.com",

	// AI
	"openai":          "openai.com",
	"anthropic":       "anthropic.com",
	"google ai":       "ai.google",
	"microsoft azure": "azure.microsoft.com",
	"ibm watson":      "ibm.com/watson",
	"amazon aws":      "aws.amazon.com",
	"perplexity":      "perplexity.ai",
	"claude":          "anthropic.com",
	"chatgpt":         "openai.com",
	"gemini":          "gemini.google.com",

	// SaaS
	"salesforce": "salesforce.com",
	"hubspot":    "hubspot.com",
	"zendesk":    "zendesk.com",
	"slack":      "slack.com",
	"atlassian":  "atlassian.com",
	"monday.com": "monday.com",
	"notion":     "notion.so",
	"airtable":   "airtable.com",

	// E-commerce
	"shopify":     "shopify.com",
	"woocommerce": "woocommerce.com",
	"magento":     "magento.com",
	"bigcommerce": "bigcommerce.com",
	"squarespace": "squarespace.com",
	"wix":         "wix.com",

	// Cloud/hosting
	"vercel":       "vercel.com",
	"netlify":      "netlify.com",
	"aws":          "aws.amazon.com",
	"google cloud": "cloud.google.com",
	"azure":        "azure.microsoft.com",
	"heroku":       "heroku.com",
	"digitalocean": "digitalocean.com",
	"cloudflare":   "cloudflare.com",
}

// competitorAliases folds common variants onto one canonical key.
var competitorAliases = map[string]string{
	"amazon web services":         "aws",
	"amazon web services (aws)":   "aws",
	"amazon aws":                  "aws",
	"microsoft azure":             "azure",
	"google cloud platform":       "google cloud",
	"google cloud platform (gcp)": "google cloud",
	"gcp":                         "google cloud",
	"digital ocean":               "digitalocean",
	"beautiful soup":              "beautifulsoup",
	"bright data":                 "brightdata",
}

var (
	corporateSuffixes = regexp.MustCompile(`\b(the|inc|llc|ltd|co|corp|company|corporation)\b`)
	nonAlphanumeric   = regexp.MustCompile(`[^a-z0-9\s]`)
	multiSpace        = regexp.MustCompile(`\s+`)
)

// CompetitorService identifies the competitors of a company.
type CompetitorService struct {
	gateway llm.JSONCaller
	logger  *slog.Logger
}

// NewCompetitorService creates a competitor service over the JSON gateway.
func NewCompetitorService(gateway llm.JSONCaller, logger *slog.Logger) *CompetitorService {
	return &CompetitorService{
		gateway: gateway,
		logger:  logger.With("component", "competitors"),
	}
}

// Identify asks the gateway for direct competitors of company and falls back
// to generic placeholders derived from the service type. It emits one
// competitor-found event per entry; the only error it returns is a sink failure.
func (s *CompetitorService) Identify(ctx context.Context, company models.Company, sink EventSink) ([]models.CompetitorDetail, error) {
	competitors, err := s.identifyWithAI(ctx, company)
	if err != nil {
		s.logger.Warn("AI competitor detection failed, using fallback", "company", company.Name, "error", err)
		competitors = FallbackCompetitors(DetectServiceType(company))
	}

	em := newEmitter(sink, nil)
	if err := emitCompetitorsFound(ctx, em, competitors); err != nil {
		return nil, err
	}
	return competitors, nil
}

func (s *CompetitorService) identifyWithAI(ctx context.Context, company models.Company) ([]models.CompetitorDetail, error) {
	res := s.gateway.CallJSON(ctx, competitorDetectionPrompt(company), "")
	if !res.OK {
		return nil, fmt.Errorf("gateway call failed: %s", res.Error)
	}

	var raw []json.RawMessage
	if err := llm.ParseJSONList(res.Content, &raw); err != nil {
		return nil, err
	}

	brand := strings.ToLower(strings.TrimSpace(company.Name))
	seen := make(map[string]bool)
	var out []models.CompetitorDetail

	for _, item := range raw {
		name, rawURL := decodeCompetitor(item)
		name = strings.TrimSpace(name)
		key := strings.ToLower(name)
		if name == "" || key == brand || seen[key] {
			continue
		}
		seen[key] = true

		detail := models.CompetitorDetail{Name: name}
		if rawURL != "" {
			detail.URL = ValidateCompetitorURL(rawURL)
		}
		if detail.URL == "" {
			detail.URL = AssignURL(name)
		}
		out = append(out, detail)

		if len(out) == MaxIdentifiedCompetitors {
			break
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no competitors in response", llm.ErrParse)
	}
	return out, nil
}

// decodeCompetitor accepts either {"name","url"} objects or bare strings.
func decodeCompetitor(item json.RawMessage) (name, rawURL string) {
	var obj struct {
		Name    string `json:"name"`
		URL     string `json:"url"`
		Website string `json:"website"`
	}
	if err := json.Unmarshal(item, &obj); err == nil {
		if obj.URL == "" {
			obj.URL = obj.Website
		}
		return obj.Name, obj.URL
	}
	var s string
	if err := json.Unmarshal(item, &s); err == nil {
		return s, ""
	}
	return "", ""
}

func emitCompetitorsFound(ctx context.Context, em *emitter, competitors []models.CompetitorDetail) error {
	for i, c := range competitors {
		err := em.emit(ctx, models.EventCompetitorFound, models.StageIdentifyingCompetitors, models.CompetitorFoundData{
			Competitor: c.Name,
			Index:      i + 1,
			Total:      len(competitors),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// SanitizeCompetitors trims names and URLs, drops empty names and removes
// case-insensitive duplicates, keeping the first occurrence.
func SanitizeCompetitors(list []models.CompetitorDetail) []models.CompetitorDetail {
	seen := make(map[string]bool, len(list))
	out := make([]models.CompetitorDetail, 0, len(list))
	for _, c := range list {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, models.CompetitorDetail{Name: name, URL: strings.TrimSpace(c.URL)})
	}
	return out
}

// CompetitorNames returns the names of a competitor list.
func CompetitorNames(list []models.CompetitorDetail) []string {
	names := make([]string, len(list))
	for i, c := range list {
		names[i] = c.Name
	}
	return names
}

// NormalizeCompetitorName lowercases a name and folds known aliases.
func NormalizeCompetitorName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := competitorAliases[n]; ok {
		return alias
	}
	return n
}

// AssignURL returns a known or derived domain for a competitor name, or ""
// when no plausible domain can be derived.
func AssignURL(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return ""
	}
	if d, ok := competitorDomains[n]; ok {
		return d
	}

	cleaned := strings.ReplaceAll(n, "&", " and ")
	cleaned = corporateSuffixes.ReplaceAllString(cleaned, " ")
	cleaned = nonAlphanumeric.ReplaceAllString(cleaned, " ")
	compact := multiSpace.ReplaceAllString(strings.TrimSpace(cleaned), "")

	if len(compact) < 3 {
		return ""
	}
	return compact + ".com"
}

// ValidateCompetitorURL normalizes a competitor URL to host plus path,
// without scheme, "www." or trailing slash. It returns "" when raw is not a URL.
func ValidateCompetitorURL(raw string) string {
	clean := strings.TrimRight(strings.TrimSpace(raw), "/")
	if clean == "" {
		return ""
	}
	if !strings.HasPrefix(clean, "http://") && !strings.HasPrefix(clean, "https://") {
		clean = "https://" + clean
	}

	u, err := url.Parse(clean)
	if err != nil || u.Hostname() == "" || strings.ContainsAny(u.Hostname(), " \t") {
		return ""
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if !strings.Contains(host, ".") {
		return ""
	}
	if u.Path != "" && u.Path != "/" {
		return host + u.Path
	}
	return host
}

// DetectServiceType classifies a company by keyword matching over its
// description, industry, name and scraped content.
func DetectServiceType(company models.Company) string {
	desc := strings.ToLower(company.Description + " " + company.Industry)
	name := strings.ToLower(company.Name)
	content := ""
	if company.ScrapedData != nil {
		content = strings.ToLower(company.ScrapedData.MainContent)
	}

	in := func(s string, words ...string) bool {
		for _, w := range words {
			if strings.Contains(s, w) {
				return true
			}
		}
		return false
	}

	switch {
	case in(desc, "beverage", "drink", "cola", "soda") || in(content, "beverage", "refreshment") || in(name, "coca", "pepsi"):
		return "beverage brand"
	case in(desc, "restaurant", "food", "dining") || in(content, "menu", "restaurant"):
		return "restaurant"
	case in(desc, "retail", "store", "shopping") || in(content, "retail", "shopping"):
		return "retailer"
	case in(desc, "bank", "financial", "finance") || in(content, "banking", "financial services"):
		return "financial service"
	case in(desc, "scraping", "crawl", "extract") || in(content, "web scraping", "data extraction"):
		return "web scraper"
	case in(desc, "ai", "artificial intelligence", "llm") || in(content, "machine learning", "ai-powered"):
		return "AI tool"
	case in(desc, "hosting", "deploy", "cloud") || in(content, "deployment", "infrastructure"):
		return "hosting platform"
	case in(desc, "e-commerce", "online store", "marketplace"):
		return "e-commerce platform"
	case in(desc, "software", "saas", "platform"):
		return "software"
	}
	return "brand"
}

// FallbackCompetitors returns generic placeholders for a service type.
func FallbackCompetitors(serviceType string) []models.CompetitorDetail {
	prefixes := []string{"Leading", "Popular", "Enterprise", "Emerging", "Alternative"}
	out := make([]models.CompetitorDetail, len(prefixes))
	for i, p := range prefixes {
		out[i] = models.CompetitorDetail{Name: p + " " + serviceType}
	}
	return out
}

func competitorDetectionPrompt(company models.Company) string {
	content := "Not available"
	if company.ScrapedData != nil && company.ScrapedData.MainContent != "" {
		content = truncateRunes(company.ScrapedData.MainContent, 1000)
	}
	description := company.Description
	if description == "" {
		description = "Not provided"
	}

	var b strings.Builder
	b.WriteString("Based on the following company information, identify 10-15 direct competitors in the same industry/market segment.\n\n")
	fmt.Fprintf(&b, "Company Name: %s\nDescription: %s\n", company.Name, description)
	if company.Industry != "" {
		fmt.Fprintf(&b, "Industry: %s\n", company.Industry)
	}
	if company.ScrapedData != nil && len(company.ScrapedData.Keywords) > 0 {
		fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(company.ScrapedData.Keywords, ", "))
	}
	fmt.Fprintf(&b, "Website Content: %s\n\n", content)
	b.WriteString(`Requirements:
- Focus on DIRECT competitors offering similar products/services to the same target market
- Offer the SAME type of products/services, not retailers or marketplaces that merely sell them
- Have a SIMILAR business model and target the SAME customer segment
- Include well-known industry leaders and emerging players
- Only include companies you are confident actually exist
- Provide the most common/official domain for each competitor (e.g., "shopify.com", not full URLs)

Return ONLY a JSON array in this exact format with no additional text:
[
  {"name": "Competitor Name", "url": "domain.com"},
  {"name": "Another Competitor", "url": "example.com"}
]`)
	return b.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
