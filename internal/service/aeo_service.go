package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/autoreach-api/internal/llm"
	"github.com/jmylchreest/autoreach-api/internal/models"
)

// MaxAEOPages is the hard upper bound on pages crawled per audit.
const MaxAEOPages = 5

var (
	// ErrAuditorFailed is returned when no provider could answer the auditor prompt.
	ErrAuditorFailed = errors.New("aeo auditor failed")
	// ErrAuditorParse is returned when the auditor output is not a page report.
	ErrAuditorParse = errors.New("aeo auditor output could not be parsed")
	// ErrSchemaAuditFailed is returned when no provider could answer the schema audit prompt.
	ErrSchemaAuditFailed = errors.New("schema auditor failed")
	// ErrSchemaAuditParse is returned when the schema auditor output has neither schema nor findings.
	ErrSchemaAuditParse = errors.New("schema auditor output could not be parsed")
	// ErrReportNotFound is returned when a report does not exist or belongs to another user.
	ErrReportNotFound = errors.New("aeo report not found")
	// ErrReportsUnavailable is returned by report reads when nothing is persisted.
	ErrReportsUnavailable = errors.New("aeo reports are not persisted")
)

// SiteCrawler crawls a site. *Crawler implements it.
type SiteCrawler interface {
	Crawl(ctx context.Context, startURL string, maxPages int) ([]models.CrawledPage, error)
}

// SitemapDiscoverer lists the URLs a site catalogues. *SitemapService implements it.
type SitemapDiscoverer interface {
	Discover(ctx context.Context, baseURL string) ([]string, error)
}

// AEOReportStore persists finished audits. repository.AEOReportRepository implements it.
type AEOReportStore interface {
	Create(ctx context.Context, report *models.AEOReport) error
	GetByID(ctx context.Context, id string) (*models.AEOReport, error)
	GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.AEOReport, error)
	SetHTML(ctx context.Context, id, html string) (bool, error)
}

// AEOReportArchiver copies finished audits to object storage and returns the key.
type AEOReportArchiver interface {
	ArchiveAEOReport(ctx context.Context, report *models.AEOReport) (string, error)
}

// AuditService runs AEO audits: crawl, summarize, audit with the LLM, store.
type AuditService struct {
	crawler         SiteCrawler
	sitemaps        SitemapDiscoverer
	gateway         llm.JSONCaller
	reports         AEOReportStore
	archive         AEOReportArchiver
	notifier        Notifier
	defaultMaxPages int
	now             func() time.Time
	logger          *slog.Logger
}

// AuditServiceConfig wires an AuditService. Sitemaps, Reports, Archive and
// Notifier are optional.
type AuditServiceConfig struct {
	Crawler         SiteCrawler
	Sitemaps        SitemapDiscoverer
	Gateway         llm.JSONCaller
	Reports         AEOReportStore
	Archive         AEOReportArchiver
	Notifier        Notifier
	DefaultMaxPages int
	Logger          *slog.Logger
}

// NewAuditService creates an AEO audit service.
func NewAuditService(cfg AuditServiceConfig) *AuditService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	crawler := cfg.Crawler
	if crawler == nil {
		crawler = NewCrawler(CrawlerConfig{Logger: logger})
	}
	return &AuditService{
		crawler:         crawler,
		sitemaps:        cfg.Sitemaps,
		gateway:         cfg.Gateway,
		reports:         cfg.Reports,
		archive:         cfg.Archive,
		notifier:        cfg.Notifier,
		defaultMaxPages: cfg.DefaultMaxPages,
		now:             time.Now,
		logger:          logger.With("component", "aeo"),
	}
}

// Run audits req.URL for userID and returns the stored report.
func (s *AuditService) Run(ctx context.Context, userID string, req models.AEORequest) (*models.AEOReport, error) {
	target, err := NormalizeURL(req.URL)
	if err != nil {
		return nil, err
	}
	customer := strings.TrimSpace(req.CustomerName)
	if customer == "" {
		customer = CustomerNameFromURL(target)
	}
	maxPages := ClampAEOPages(req.MaxPages, s.defaultMaxPages)

	log := s.logger.With("url", target.String(), "customer", customer)
	log.Info("aeo audit started", "max_pages", maxPages)

	pages, err := s.crawler.Crawl(ctx, target.String(), maxPages)
	if err != nil {
		return nil, fmt.Errorf("failed to crawl site: %w", err)
	}

	bundle := BuildAuditBundle(target.String(), pages)
	bundleJSON, err := json.Marshal(bundle)
	if err != nil {
		return nil, fmt.Errorf("failed to encode audit bundle: %w", err)
	}

	res := s.gateway.CallJSON(ctx, auditorPrompt+"\n\nDATA:\n"+string(bundleJSON), "")
	if !res.OK {
		log.Warn("aeo auditor failed", "error", res.Error)
		return nil, fmt.Errorf("%w: %s", ErrAuditorFailed, res.Error)
	}
	reports, err := ParseAuditorOutput(res.Content)
	if err != nil {
		log.Warn("aeo auditor output unparseable", "provider", res.Provider, "error", err)
		return nil, err
	}

	schemaAudit, err := s.auditSchema(ctx, bundleJSON)
	if err != nil {
		log.Warn("schema audit failed", "error", err)
		return nil, err
	}

	summary := Summarize(pages)
	if s.sitemaps != nil {
		sitemapURLs, err := s.sitemaps.Discover(ctx, target.String())
		if err != nil {
			log.Warn("sitemap discovery failed", "error", err)
		} else {
			ApplySitemap(&summary, pages, sitemapURLs)
		}
	}
	report := &models.AEOReport{
		ID:           ulid.Make().String(),
		UserID:       userID,
		URL:          target.String(),
		CustomerName: customer,
		Pages:        reports,
		Summary:      &summary,
		SchemaAudit:  schemaAudit,
		CreatedAt:    s.now().UTC(),
	}

	if s.archive != nil {
		key, err := s.archive.ArchiveAEOReport(ctx, report)
		if err != nil {
			log.Warn("failed to archive aeo report", "report_id", report.ID, "error", err)
		} else {
			report.StorageKey = key
		}
	}

	if s.reports != nil {
		if err := s.reports.Create(ctx, report); err != nil {
			return nil, fmt.Errorf("failed to save aeo report: %w", err)
		}
	}

	if s.notifier != nil {
		payload := map[string]any{
			"reportId":     report.ID,
			"url":          report.URL,
			"customerName": report.CustomerName,
			"pages":        len(report.Pages),
			"schemaHealth": schemaAudit.Metrics.HealthScore,
		}
		if err := s.notifier.Notify(ctx, models.WebhookEventAEOCompleted, report.ID, payload); err != nil {
			log.Warn("aeo webhook failed", "report_id", report.ID, "error", err)
		}
	}

	log.Info("aeo audit completed",
		"report_id", report.ID,
		"pages_crawled", len(pages),
		"pages_reported", len(reports),
		"insights", len(summary.Insights),
	)
	return report, nil
}

// auditSchema runs the second auditor pass, which reviews structured data
// across the whole bundle.
func (s *AuditService) auditSchema(ctx context.Context, bundleJSON []byte) (*models.SchemaAudit, error) {
	res := s.gateway.CallJSON(ctx, strings.Replace(schemaAuditPrompt, "{{AUDIT_JSON}}", string(bundleJSON), 1), "")
	if !res.OK {
		return nil, fmt.Errorf("%w: %s", ErrSchemaAuditFailed, res.Error)
	}
	return ParseSchemaAudit(res.Content)
}

// Get returns a stored report owned by userID.
func (s *AuditService) Get(ctx context.Context, userID, id string) (*models.AEOReport, error) {
	if s.reports == nil {
		return nil, ErrReportsUnavailable
	}
	report, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get aeo report: %w", err)
	}
	if report == nil || report.UserID != userID {
		return nil, ErrReportNotFound
	}
	return report, nil
}

// List returns the newest reports of userID.
func (s *AuditService) List(ctx context.Context, userID string, limit, offset int) ([]*models.AEOReport, error) {
	if s.reports == nil {
		return nil, ErrReportsUnavailable
	}
	limit, offset = ClampPage(limit, offset)
	reports, err := s.reports.GetByUserID(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list aeo reports: %w", err)
	}
	return reports, nil
}

// AttachHTML stores the rendered report delivered by the report callback.
func (s *AuditService) AttachHTML(ctx context.Context, reportID, html string) error {
	if s.reports == nil {
		return ErrReportsUnavailable
	}
	ok, err := s.reports.SetHTML(ctx, reportID, html)
	if err != nil {
		return fmt.Errorf("failed to attach aeo report html: %w", err)
	}
	if !ok {
		return ErrReportNotFound
	}
	s.logger.Info("aeo report html attached", "report_id", reportID, "bytes", len(html))
	return nil
}

// ClampAEOPages applies the default to a non-positive request and bounds it to 1..MaxAEOPages.
func ClampAEOPages(requested, fallback int) int {
	n := requested
	if n <= 0 {
		n = fallback
	}
	if n <= 0 {
		n = MaxAEOPages
	}
	return max(1, min(n, MaxAEOPages))
}

// CustomerNameFromURL derives a display name from the first host label.
func CustomerNameFromURL(u *url.URL) string {
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	label, _, _ := strings.Cut(host, ".")
	if label == "" {
		return "Client"
	}
	return capitalize(label)
}

// ParseAuditorOutput decodes the auditor response, which is either a single
// page report or an array of them.
func ParseAuditorOutput(content string) ([]models.AEOPageReport, error) {
	var raw json.RawMessage
	if err := llm.ParseJSON(content, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuditorParse, err)
	}

	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var list []models.AEOPageReport
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAuditorParse, err)
		}
		return list, nil
	}

	var one models.AEOPageReport
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuditorParse, err)
	}
	return []models.AEOPageReport{one}, nil
}

// ParseSchemaAudit decodes the schema auditor response and derives its
// metrics. The response must carry optimizedSchema or auditReport.
func ParseSchemaAudit(content string) (*models.SchemaAudit, error) {
	var raw struct {
		OptimizedSchema any                         `json:"optimizedSchema"`
		AuditReport     *models.SchemaAuditSections `json:"auditReport"`
	}
	if err := llm.ParseJSON(content, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaAuditParse, err)
	}
	if raw.OptimizedSchema == nil && raw.AuditReport == nil {
		return nil, fmt.Errorf("%w: no optimizedSchema or auditReport", ErrSchemaAuditParse)
	}

	audit := &models.SchemaAudit{OptimizedSchema: raw.OptimizedSchema}
	if audit.OptimizedSchema == nil {
		audit.OptimizedSchema = map[string]any{}
	}
	if raw.AuditReport != nil {
		r := raw.AuditReport
		audit.AuditReport = models.SchemaAuditSections{
			MissingElements:      compactFindings(r.MissingElements),
			OutdatedElements:     compactFindings(r.OutdatedElements),
			Enhancements:         compactFindings(r.Enhancements),
			VisibilityGains:      compactFindings(r.VisibilityGains),
			FinalRecommendations: compactFindings(r.FinalRecommendations),
		}
	} else {
		audit.AuditReport = models.SchemaAuditSections{
			MissingElements:      []models.SchemaFinding{},
			OutdatedElements:     []models.SchemaFinding{},
			Enhancements:         []models.SchemaFinding{},
			VisibilityGains:      []models.SchemaFinding{},
			FinalRecommendations: []models.SchemaFinding{},
		}
	}
	audit.Metrics = SchemaAuditMetrics(audit.AuditReport)
	return audit, nil
}

// compactFindings drops empty findings and never returns nil.
func compactFindings(in []models.SchemaFinding) []models.SchemaFinding {
	out := make([]models.SchemaFinding, 0, len(in))
	for _, f := range in {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// SchemaAuditMetrics scores a schema audit from its finding counts.
func SchemaAuditMetrics(r models.SchemaAuditSections) models.SchemaAuditMetrics {
	missing := len(r.MissingElements)
	outdated := len(r.OutdatedElements)
	return models.SchemaAuditMetrics{
		HealthScore:   max(100-(missing*5+outdated*3), 0),
		Missing:       missing,
		Outdated:      outdated,
		Enhancements:  len(r.Enhancements),
		PotentialGain: min(100, len(r.VisibilityGains)*10),
	}
}

// BuildAuditBundle reduces crawl output to the bundle sent to the auditor.
func BuildAuditBundle(startURL string, pages []models.CrawledPage) models.AuditBundle {
	bundle := models.AuditBundle{
		URL:   startURL,
		Pages: make([]models.AuditPage, 0, len(pages)),
		Summary: models.CrawlSummary{
			TotalPages:    len(pages),
			StatusBuckets: statusBuckets(pages),
		},
	}

	words := 0
	for _, p := range pages {
		bundle.Pages = append(bundle.Pages, models.AuditPage{
			URL:             p.URL,
			Status:          p.Status,
			Title:           p.Title,
			MetaDescription: p.MetaDescription,
			H1:              p.H1,
			Canonical:       p.Canonical,
			WordCount:       p.WordCount,
		})
		if p.Title == "" {
			bundle.Summary.MissingTitles++
		}
		if p.MetaDescription == "" {
			bundle.Summary.MissingMeta++
		}
		words += p.WordCount
	}
	if len(pages) > 0 {
		bundle.Summary.AvgWordCount = roundDiv(int64(words), len(pages))
	}
	return bundle
}

// Summarize computes crawl metrics and rule-based insights.
func Summarize(pages []models.CrawledPage) models.AEOSummary {
	m := models.AEOMetrics{
		TotalPages:    len(pages),
		StatusBuckets: statusBuckets(pages),
	}

	var totalMs int64
	words := 0
	for _, p := range pages {
		if p.OK {
			m.OKPages++
		} else {
			m.ErrorPages++
		}
		if p.Title == "" {
			m.MissingTitles++
		}
		if p.MetaDescription == "" {
			m.MissingMeta++
		}
		totalMs += p.TimeMs
		words += p.WordCount
	}
	if len(pages) > 0 {
		m.AvgResponseMs = int64(roundDiv(totalMs, len(pages)))
		m.AvgWordCount = roundDiv(int64(words), len(pages))
	}

	pct := func(n int) int {
		if m.TotalPages == 0 {
			return 0
		}
		return int(math.Round(float64(n) / float64(m.TotalPages) * 100))
	}

	insights := []models.AEOInsight{}
	if p := pct(m.MissingTitles); p > 10 {
		insights = append(insights, models.AEOInsight{
			ID:             "missing-titles",
			Severity:       models.SeverityHigh,
			Title:          "Missing or empty <title> tags",
			Description:    fmt.Sprintf("%d pages (%d%%) lack titles, reducing relevance and CTR.", m.MissingTitles, p),
			Recommendation: "Add concise, keyword-rich titles unique to each page (50-60 chars).",
		})
	}
	if p := pct(m.MissingMeta); p > 20 {
		insights = append(insights, models.AEOInsight{
			ID:             "missing-meta",
			Severity:       models.SeverityMedium,
			Title:          "Missing meta descriptions",
			Description:    fmt.Sprintf("%d pages (%d%%) have no meta description.", m.MissingMeta, p),
			Recommendation: "Provide compelling 140-160 char descriptions to improve SERP CTR.",
		})
	}
	if m.AvgResponseMs > 1500 {
		insights = append(insights, models.AEOInsight{
			ID:             "slow-response",
			Severity:       models.SeverityMedium,
			Title:          "High average response time",
			Description:    fmt.Sprintf("Average TTFB ~%dms across pages.", m.AvgResponseMs),
			Recommendation: "Enable caching or a CDN, optimize server rendering and compress assets.",
		})
	}
	if m.AvgWordCount < 250 {
		insights = append(insights, models.AEOInsight{
			ID:             "thin-content",
			Severity:       models.SeverityLow,
			Title:          "Low average word count",
			Description:    fmt.Sprintf("Avg word count is %d.", m.AvgWordCount),
			Recommendation: "Enrich content to better cover topics and match user intent.",
		})
	}

	return models.AEOSummary{Metrics: m, Insights: insights}
}

// ApplySitemap records sitemap coverage on summary and adds the matching
// insights. An empty sitemapURLs means the site publishes no sitemap.
func ApplySitemap(summary *models.AEOSummary, pages []models.CrawledPage, sitemapURLs []string) {
	m := &summary.Metrics
	m.SitemapFound = len(sitemapURLs) > 0
	m.SitemapURLs = len(sitemapURLs)

	if !m.SitemapFound {
		summary.Insights = append(summary.Insights, models.AEOInsight{
			ID:             "missing-sitemap",
			Severity:       models.SeverityMedium,
			Title:          "No XML sitemap found",
			Description:    "Neither robots.txt nor the common sitemap locations list any URLs.",
			Recommendation: "Publish a sitemap.xml and reference it from robots.txt so crawlers and answer engines can find every page.",
		})
		return
	}

	var crawled []string
	for _, p := range pages {
		if p.OK {
			crawled = append(crawled, p.URL)
		}
	}
	missing := UncataloguedPages(crawled, sitemapURLs)
	m.UncataloguedPages = len(missing)
	if len(missing) > 0 {
		summary.Insights = append(summary.Insights, models.AEOInsight{
			ID:             "uncatalogued-pages",
			Severity:       models.SeverityLow,
			Title:          "Pages missing from the sitemap",
			Description:    fmt.Sprintf("%d crawled pages are not listed in the sitemap, e.g. %s.", len(missing), missing[0]),
			Recommendation: "Add every indexable page to the sitemap and keep lastmod current.",
		})
	}
}

// statusBuckets counts pages per HTTP status; failed requests land in "NA".
func statusBuckets(pages []models.CrawledPage) map[string]int {
	buckets := map[string]int{}
	for _, p := range pages {
		key := "NA"
		if p.Status > 0 {
			key = strconv.Itoa(p.Status)
		}
		buckets[key]++
	}
	return buckets
}

func roundDiv(total int64, n int) int {
	return int(math.Round(float64(total) / float64(n)))
}

const auditorPrompt = `You are an expert AEO (Answer Engine Optimization) auditor assistant. I will provide the extracted content of one or more webpages, including:
- Headings, paragraphs, lists
- Images with alt text or captions
- Structured data (JSON-LD, Microdata, RDFa)
- Optional: metadata like title, meta description
Your task is to produce a comprehensive, human-readable, structured JSON report per page that is easy for a non-technical person to understand.
FOR EACH PAGE, OUTPUT:
{
  "url": "...",
  "structuredContent": [
    {
      "type": "FAQPage|HowTo|Article|Product|Service|Review|Person|Organization|Breadcrumb",
      "textOrSummary": "...",
      "status": "valid|missing|incorrect",
      "issues": ["..."],
      "recommendedChanges": "..."
    }
  ],
  "unstructuredContent": [
    {
      "contentType": "paragraph|heading|list|image",
      "textOrAlt": "...",
      "suggestedAeoType": "FAQPage|HowTo|Article|Product|Service|Review|Person|Organization|Breadcrumb",
      "reasonItIsImportant": "...",
      "recommendation": "markup it with JSON-LD / optimize for AEO/GEO"
    }
  ],
  "optimizationSuggestions": [
    {
      "existingContent": "...",
      "problem": "too generic / missing schema / poor snippet / missing alt text",
      "suggestedFix": "..."
    }
  ],
  "newContentRecommendations": [
    {
      "contentType": "paragraph|heading|list|image",
      "suggestedTopicOrText": "...",
      "aeoType": "FAQPage|HowTo|Article|Product|Service|Review|Person|Organization|Breadcrumb",
      "reasonForAdding": "..."
    }
  ],
  "summaryScore": {
      "structuredCoverage": 0-100,
      "unstructuredCoverage": 0-100,
      "optimizationOpportunities": 0-100,
      "overallAEOReadiness": 0-100
  }
}
RULES:
1. Do NOT invent facts. Use placeholders like COMPANY_NAME, SERVICE_NAME if information is missing.
2. Identify all content relevant for AEO, whether structured or unstructured.
3. Clearly separate already structured content, unstructured but AEO-relevant content, content that needs optimization, and suggested new content.
4. Provide concise explanations for each recommendation so a non-technical person can understand.
5. Include JSON-LD validation hints for each structured block (e.g., "validate with Google Rich Results Test").
6. Keep output strictly valid JSON, no extra text, commentary, or formatting outside the JSON.`

const schemaAuditPrompt = `You are a structured data (schema.org JSON-LD) auditor for answer engines and search engines.

Below is an SEO audit of a website: the pages crawled, their titles, meta descriptions, headings, canonicals and word counts.

SEO AUDIT JSON:
{{AUDIT_JSON}}

Tasks:
1. Identify schema.org types the site should publish but likely does not (Organization, WebSite, FAQPage, Product, BreadcrumbList, Article, HowTo, LocalBusiness).
2. Identify outdated or weak elements: vague titles, missing descriptions, missing canonicals, duplicate headings.
3. Suggest enhancements that make the content easier for answer engines to quote.
4. Estimate visibility gains from each enhancement.
5. Produce one optimized JSON-LD document for the site using an @graph of the recommended types, filled with values from the audit where known.

Return ONLY JSON in this exact format:
{
  "optimizedSchema": { "@context": "https://schema.org", "@graph": [] },
  "auditReport": {
    "missingElements": [{ "element": "", "description": "" }],
    "outdatedElements": [{ "element": "", "description": "" }],
    "enhancements": [{ "improvement": "", "description": "" }],
    "visibilityGains": [{ "gain": "", "description": "" }],
    "finalRecommendations": [""]
  }
}`
