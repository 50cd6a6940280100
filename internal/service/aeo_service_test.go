package service

import (
	"context"
	"errors"
	"net/url"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jmylchreest/autoreach-api/internal/llm"
	"github.com/jmylchreest/autoreach-api/internal/models"
)

type stubCrawler struct {
	pages    []models.CrawledPage
	err      error
	gotURL   string
	gotPages int
}

func (c *stubCrawler) Crawl(_ context.Context, startURL string, maxPages int) ([]models.CrawledPage, error) {
	c.gotURL = startURL
	c.gotPages = maxPages
	return c.pages, c.err
}

type memoryReportStore struct {
	saved []*models.AEOReport
	err   error
}

func (m *memoryReportStore) Create(_ context.Context, r *models.AEOReport) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, r)
	return nil
}

func (m *memoryReportStore) GetByID(_ context.Context, id string) (*models.AEOReport, error) {
	for _, r := range m.saved {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

func (m *memoryReportStore) SetHTML(_ context.Context, id, html string) (bool, error) {
	for _, r := range m.saved {
		if r.ID == id {
			r.HTML = html
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryReportStore) GetByUserID(_ context.Context, userID string, limit, offset int) ([]*models.AEOReport, error) {
	var out []*models.AEOReport
	for _, r := range m.saved {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type stubArchiver struct {
	err error
}

func (a stubArchiver) ArchiveAEOReport(_ context.Context, r *models.AEOReport) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	return "aeo/" + r.ID + ".json", nil
}

func crawledFixture() []models.CrawledPage {
	return []models.CrawledPage{
		{URL: "https://acme.com/", Status: 200, OK: true, TimeMs: 1200, Title: "Acme", MetaDescription: "Scraping", WordCount: 300},
		{URL: "https://acme.com/about", Status: 200, OK: true, TimeMs: 2400, Title: "", MetaDescription: "", WordCount: 100},
		{URL: "https://acme.com/missing", Status: 404, OK: false, TimeMs: 900, Title: "Not found", WordCount: 20},
		{URL: "https://acme.com/down", Status: 0, OK: false, TimeMs: 3500, Error: "connection reset"},
	}
}

const auditorAnswer = "```json\n" + `[{"url":"https://acme.com/","structuredContent":[{"type":"Organization","status":"valid","issues":[]}],` +
	`"unstructuredContent":[{"contentType":"paragraph","textOrAlt":"We scrape","suggestedAeoType":"FAQPage"}],` +
	`"optimizationSuggestions":[{"problem":"missing schema","suggestedFix":"add FAQPage"}],` +
	`"newContentRecommendations":[],"summaryScore":{"structuredCoverage":"60","unstructuredCoverage":40,"optimizationOpportunities":70,"overallAEOReadiness":55}}]` + "\n```"

const schemaAnswer = `{"optimizedSchema":{"@context":"https://schema.org","@type":"Organization","name":"Acme"},` +
	`"auditReport":{"missingElements":[{"element":"FAQPage","description":"no FAQ markup"},"BreadcrumbList",""],` +
	`"outdatedElements":[{"element":"WebSite","description":"no SearchAction"}],` +
	`"enhancements":[{"improvement":"sameAs","description":"link social profiles"}],` +
	`"visibilityGains":[{"gain":"FAQ rich results","description":"answers quoted directly"}],` +
	`"finalRecommendations":["Add FAQPage markup"]}}`

// auditAnswers answers the schema audit prompt with schema and every other prompt with auditor.
func auditAnswers(auditor, schema string) func(string) llm.Result {
	return func(prompt string) llm.Result {
		content := auditor
		if strings.Contains(prompt, "SEO AUDIT JSON:") {
			content = schema
		}
		return llm.Result{OK: true, Content: content, Provider: "google"}
	}
}

// ========================================
// Bundle and summary
// ========================================

func TestBuildAuditBundle(t *testing.T) {
	b := BuildAuditBundle("https://acme.com", crawledFixture())

	if b.URL != "https://acme.com" || len(b.Pages) != 4 {
		t.Fatalf("bundle = %+v", b)
	}
	s := b.Summary
	if s.TotalPages != 4 || s.MissingTitles != 2 || s.MissingMeta != 3 {
		t.Errorf("summary = %+v", s)
	}
	// (300+100+20+0)/4 = 105
	if s.AvgWordCount != 105 {
		t.Errorf("AvgWordCount = %d, want 105", s.AvgWordCount)
	}
	want := map[string]int{"200": 2, "404": 1, "NA": 1}
	for k, v := range want {
		if s.StatusBuckets[k] != v {
			t.Errorf("StatusBuckets[%s] = %d, want %d", k, s.StatusBuckets[k], v)
		}
	}
}

func TestBuildAuditBundle_Empty(t *testing.T) {
	b := BuildAuditBundle("https://acme.com", nil)
	if b.Summary.TotalPages != 0 || b.Summary.AvgWordCount != 0 || b.Pages == nil {
		t.Errorf("bundle = %+v", b)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(crawledFixture())
	m := s.Metrics

	if m.TotalPages != 4 || m.OKPages != 2 || m.ErrorPages != 2 {
		t.Errorf("page counts = %+v", m)
	}
	// (1200+2400+900+3500)/4 = 2000
	if m.AvgResponseMs != 2000 {
		t.Errorf("AvgResponseMs = %d, want 2000", m.AvgResponseMs)
	}

	got := map[string]models.InsightSeverity{}
	for _, in := range s.Insights {
		got[in.ID] = in.Severity
	}
	want := map[string]models.InsightSeverity{
		"missing-titles": models.SeverityHigh,
		"missing-meta":   models.SeverityMedium,
		"slow-response":  models.SeverityMedium,
		"thin-content":   models.SeverityLow,
	}
	if len(got) != len(want) {
		t.Errorf("insights = %v, want %v", got, want)
	}
	for id, sev := range want {
		if got[id] != sev {
			t.Errorf("insight %s severity = %q, want %q", id, got[id], sev)
		}
	}
}

func TestSummarize_Thresholds(t *testing.T) {
	healthy := func(n int) []models.CrawledPage {
		pages := make([]models.CrawledPage, n)
		for i := range pages {
			pages[i] = models.CrawledPage{Status: 200, OK: true, TimeMs: 300, Title: "T", MetaDescription: "M", WordCount: 400}
		}
		return pages
	}

	tests := []struct {
		name   string
		pages  func() []models.CrawledPage
		wantID string // empty means no insights
	}{
		{"healthy site", func() []models.CrawledPage { return healthy(10) }, ""},
		{"one of ten missing title is 10%", func() []models.CrawledPage {
			p := healthy(10)
			p[0].Title = ""
			return p
		}, ""},
		{"two of ten missing title", func() []models.CrawledPage {
			p := healthy(10)
			p[0].Title, p[1].Title = "", ""
			return p
		}, "missing-titles"},
		{"two of ten missing meta is 20%", func() []models.CrawledPage {
			p := healthy(10)
			p[0].MetaDescription, p[1].MetaDescription = "", ""
			return p
		}, ""},
		{"three of ten missing meta", func() []models.CrawledPage {
			p := healthy(10)
			p[0].MetaDescription, p[1].MetaDescription, p[2].MetaDescription = "", "", ""
			return p
		}, "missing-meta"},
		{"slow", func() []models.CrawledPage {
			p := healthy(2)
			p[0].TimeMs, p[1].TimeMs = 1500, 1600
			return p
		}, "slow-response"},
		{"thin", func() []models.CrawledPage {
			p := healthy(2)
			p[0].WordCount, p[1].WordCount = 100, 200
			return p
		}, "thin-content"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Summarize(tt.pages())
			if tt.wantID == "" {
				if len(s.Insights) != 0 {
					t.Errorf("Insights = %+v, want none", s.Insights)
				}
				return
			}
			if len(s.Insights) != 1 || s.Insights[0].ID != tt.wantID {
				t.Errorf("Insights = %+v, want only %s", s.Insights, tt.wantID)
			}
		})
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	if s.Metrics.TotalPages != 0 || s.Metrics.AvgResponseMs != 0 {
		t.Errorf("Metrics = %+v", s.Metrics)
	}
	// An empty crawl still reports thin content (0 words).
	if len(s.Insights) != 1 || s.Insights[0].ID != "thin-content" {
		t.Errorf("Insights = %+v", s.Insights)
	}
}

// ========================================
// Auditor output
// ========================================

func TestParseAuditorOutput(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantPages int
		wantErr   bool
	}{
		{"fenced array", auditorAnswer, 1, false},
		{"single object", `Here you go: {"url":"https://acme.com/","summaryScore":{"overallAEOReadiness":80}}`, 1, false},
		{"two pages", `[{"url":"a"},{"url":"b"}]`, 2, false},
		{"prose", "I could not audit this page.", 0, true},
		{"scalar", `"done"`, 0, true},
		{"truncated", `[{"url":"a"`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAuditorOutput(tt.content)
			if tt.wantErr {
				if !errors.Is(err, ErrAuditorParse) {
					t.Errorf("ParseAuditorOutput() error = %v, want ErrAuditorParse", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAuditorOutput() error = %v", err)
			}
			if len(got) != tt.wantPages {
				t.Errorf("len = %d, want %d", len(got), tt.wantPages)
			}
		})
	}
}

func TestParseAuditorOutput_Fields(t *testing.T) {
	got, err := ParseAuditorOutput(auditorAnswer)
	if err != nil {
		t.Fatalf("ParseAuditorOutput() error = %v", err)
	}
	p := got[0]
	if p.SummaryScore.StructuredCoverage.Int() != 60 || p.SummaryScore.OverallAEOReadiness.Int() != 55 {
		t.Errorf("SummaryScore = %+v", p.SummaryScore)
	}
	if len(p.StructuredContent) != 1 || p.StructuredContent[0].Status != "valid" {
		t.Errorf("StructuredContent = %+v", p.StructuredContent)
	}
	if len(p.UnstructuredContent) != 1 || p.UnstructuredContent[0].SuggestedAEOType != "FAQPage" {
		t.Errorf("UnstructuredContent = %+v", p.UnstructuredContent)
	}
}

func TestClampAEOPages(t *testing.T) {
	tests := []struct {
		requested, fallback, want int
	}{
		{0, 0, 5},
		{0, 3, 3},
		{-2, 3, 3},
		{1, 3, 1},
		{4, 3, 4},
		{50, 3, 5},
		{0, 20, 5},
	}
	for _, tt := range tests {
		if got := ClampAEOPages(tt.requested, tt.fallback); got != tt.want {
			t.Errorf("ClampAEOPages(%d, %d) = %d, want %d", tt.requested, tt.fallback, got, tt.want)
		}
	}
}

func TestCustomerNameFromURL(t *testing.T) {
	tests := map[string]string{
		"https://www.acme.com/pricing": "Acme",
		"https://firecrawl.dev":        "Firecrawl",
		"http://localhost:8080":        "Localhost",
	}
	for in, want := range tests {
		u, _ := url.Parse(in)
		if got := CustomerNameFromURL(u); got != want {
			t.Errorf("CustomerNameFromURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestApplySitemap(t *testing.T) {
	tests := []struct {
		name             string
		sitemap          []string
		wantFound        bool
		wantUncatalogued int
		wantInsight      string
	}{
		{
			name:        "no sitemap",
			wantInsight: "missing-sitemap",
		},
		{
			name:             "ok page missing",
			sitemap:          []string{"https://acme.com/", "https://acme.com/pricing"},
			wantFound:        true,
			wantUncatalogued: 1,
			wantInsight:      "uncatalogued-pages",
		},
		{
			name:      "fully catalogued",
			sitemap:   []string{"https://acme.com", "https://acme.com/about/"},
			wantFound: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary := models.AEOSummary{Insights: []models.AEOInsight{}}
			ApplySitemap(&summary, crawledFixture(), tt.sitemap)

			m := summary.Metrics
			if m.SitemapFound != tt.wantFound || m.SitemapURLs != len(tt.sitemap) || m.UncataloguedPages != tt.wantUncatalogued {
				t.Errorf("metrics = %+v", m)
			}
			if tt.wantInsight == "" {
				if len(summary.Insights) != 0 {
					t.Errorf("insights = %+v, want none", summary.Insights)
				}
				return
			}
			if len(summary.Insights) != 1 || summary.Insights[0].ID != tt.wantInsight {
				t.Errorf("insights = %+v, want %s", summary.Insights, tt.wantInsight)
			}
		})
	}
}

// ========================================
// Schema audit
// ========================================

func TestParseSchemaAudit(t *testing.T) {
	got, err := ParseSchemaAudit("Here is the audit:\n```json\n" + schemaAnswer + "\n```")
	if err != nil {
		t.Fatalf("ParseSchemaAudit() error = %v", err)
	}
	want := []models.SchemaFinding{"FAQPage: no FAQ markup", "BreadcrumbList"}
	if !reflect.DeepEqual(got.AuditReport.MissingElements, want) {
		t.Errorf("MissingElements = %v, want %v", got.AuditReport.MissingElements, want)
	}
	if got.AuditReport.Enhancements[0] != "sameAs: link social profiles" {
		t.Errorf("Enhancements = %v", got.AuditReport.Enhancements)
	}
	wantMetrics := models.SchemaAuditMetrics{HealthScore: 87, Missing: 2, Outdated: 1, Enhancements: 1, PotentialGain: 10}
	if got.Metrics != wantMetrics {
		t.Errorf("Metrics = %+v, want %+v", got.Metrics, wantMetrics)
	}
	if schema, ok := got.OptimizedSchema.(map[string]any); !ok || schema["@type"] != "Organization" {
		t.Errorf("OptimizedSchema = %#v", got.OptimizedSchema)
	}
}

func TestParseSchemaAudit_SchemaOnly(t *testing.T) {
	got, err := ParseSchemaAudit(`{"optimizedSchema":{"@type":"WebSite"}}`)
	if err != nil {
		t.Fatalf("ParseSchemaAudit() error = %v", err)
	}
	if got.AuditReport.MissingElements == nil || got.Metrics.HealthScore != 100 {
		t.Errorf("audit = %+v", got)
	}
}

func TestParseSchemaAudit_Errors(t *testing.T) {
	for _, content := range []string{"no json", `{"other":1}`, `[{"optimizedSchema":{}}]`} {
		if _, err := ParseSchemaAudit(content); !errors.Is(err, ErrSchemaAuditParse) {
			t.Errorf("ParseSchemaAudit(%q) error = %v, want ErrSchemaAuditParse", content, err)
		}
	}
}

func TestSchemaAuditMetrics_Bounds(t *testing.T) {
	many := make([]models.SchemaFinding, 25)
	m := SchemaAuditMetrics(models.SchemaAuditSections{MissingElements: many, VisibilityGains: many})
	if m.HealthScore != 0 || m.PotentialGain != 100 {
		t.Errorf("metrics = %+v, want health 0 and gain 100", m)
	}
}

// ========================================
// Run
// ========================================

func TestAuditService_Run(t *testing.T) {
	crawler := &stubCrawler{pages: crawledFixture()}
	gw := &stubGateway{answer: auditAnswers(auditorAnswer, schemaAnswer)}
	store := &memoryReportStore{}
	notifier := &recordingNotifier{}
	svc := NewAuditService(AuditServiceConfig{
		Crawler:         crawler,
		Gateway:         gw,
		Reports:         store,
		Archive:         stubArchiver{},
		Notifier:        notifier,
		DefaultMaxPages: 3,
		Logger:          testLogger(),
	})
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	report, err := svc.Run(context.Background(), "user_1", models.AEORequest{URL: "www.acme.com", MaxPages: 50})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if crawler.gotURL != "https://www.acme.com" || crawler.gotPages != MaxAEOPages {
		t.Errorf("crawl(%q, %d), want (https://www.acme.com, %d)", crawler.gotURL, crawler.gotPages, MaxAEOPages)
	}
	if report.CustomerName != "Acme" || report.UserID != "user_1" || report.ID == "" {
		t.Errorf("report = %+v", report)
	}
	if !report.CreatedAt.Equal(fixed) {
		t.Errorf("CreatedAt = %v, want %v", report.CreatedAt, fixed)
	}
	if len(report.Pages) != 1 || report.Summary == nil || len(report.Summary.Insights) != 4 {
		t.Errorf("pages/summary = %d/%+v", len(report.Pages), report.Summary)
	}
	if report.StorageKey != "aeo/"+report.ID+".json" {
		t.Errorf("StorageKey = %q", report.StorageKey)
	}
	if len(store.saved) != 1 || store.saved[0].StorageKey == "" {
		t.Errorf("saved = %+v, want one report with a storage key", store.saved)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].event != models.WebhookEventAEOCompleted || notifier.sent[0].subjectID != report.ID {
		t.Errorf("notifications = %+v", notifier.sent)
	}

	prompt := gw.prompts[0]
	if !strings.Contains(prompt, "AEO (Answer Engine Optimization) auditor") || !strings.Contains(prompt, `"missingTitles":2`) {
		t.Errorf("auditor prompt missing bundle data")
	}
	if gw.calls() != 2 || !strings.Contains(gw.prompts[1], `"missingTitles":2`) || strings.Contains(gw.prompts[1], "{{AUDIT_JSON}}") {
		t.Errorf("schema audit prompt not built from the bundle")
	}
	sa := report.SchemaAudit
	if sa == nil || sa.Metrics.HealthScore != 87 || len(store.saved[0].SchemaAudit.AuditReport.MissingElements) != 2 {
		t.Errorf("SchemaAudit = %+v", sa)
	}
}

func TestAuditService_RunCustomerAndDefaults(t *testing.T) {
	crawler := &stubCrawler{pages: crawledFixture()[:1]}
	svc := NewAuditService(AuditServiceConfig{
		Crawler: crawler,
		Gateway: &stubGateway{answer: auditAnswers(`{"url":"https://acme.com/"}`, schemaAnswer)},
		Logger:  testLogger(),
	})

	report, err := svc.Run(context.Background(), "local", models.AEORequest{URL: "https://acme.com", CustomerName: " Acme Corp "})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.CustomerName != "Acme Corp" || report.StorageKey != "" {
		t.Errorf("report = %+v", report)
	}
	if crawler.gotPages != MaxAEOPages {
		t.Errorf("maxPages = %d, want %d", crawler.gotPages, MaxAEOPages)
	}
}

type stubSitemaps struct {
	urls []string
	err  error
}

func (s stubSitemaps) Discover(context.Context, string) ([]string, error) {
	return s.urls, s.err
}

func TestAuditService_RunSitemapCoverage(t *testing.T) {
	tests := []struct {
		name      string
		sitemaps  stubSitemaps
		wantFound bool
		wantCount int
	}{
		{"listed", stubSitemaps{urls: []string{"https://acme.com/", "https://acme.com/about"}}, true, 4},
		{"discovery error", stubSitemaps{err: errors.New("timeout")}, false, 4},
		{"none published", stubSitemaps{}, false, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewAuditService(AuditServiceConfig{
				Crawler:  &stubCrawler{pages: crawledFixture()},
				Sitemaps: tt.sitemaps,
				Gateway:  &stubGateway{answer: auditAnswers(auditorAnswer, schemaAnswer)},
				Logger:   testLogger(),
			})
			report, err := svc.Run(context.Background(), "u", models.AEORequest{URL: "https://acme.com"})
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			m := report.Summary.Metrics
			if m.SitemapFound != tt.wantFound || m.UncataloguedPages != 0 {
				t.Errorf("metrics = %+v", m)
			}
			if len(report.Summary.Insights) != tt.wantCount {
				t.Errorf("insights = %d, want %d", len(report.Summary.Insights), tt.wantCount)
			}
		})
	}
}

func TestAuditService_RunErrors(t *testing.T) {
	tests := []struct {
		name    string
		req     models.AEORequest
		crawler *stubCrawler
		gw      *stubGateway
		store   *memoryReportStore
		archive AEOReportArchiver
		wantErr error
	}{
		{
			name:    "invalid url",
			req:     models.AEORequest{URL: "  "},
			crawler: &stubCrawler{},
			gw:      &stubGateway{},
			wantErr: ErrInvalidURL,
		},
		{
			name:    "crawl cancelled",
			req:     models.AEORequest{URL: "acme.com"},
			crawler: &stubCrawler{err: context.Canceled},
			gw:      &stubGateway{},
			wantErr: context.Canceled,
		},
		{
			name:    "auditor failed",
			req:     models.AEORequest{URL: "acme.com"},
			crawler: &stubCrawler{pages: crawledFixture()},
			gw:      &stubGateway{},
			wantErr: ErrAuditorFailed,
		},
		{
			name:    "auditor parse",
			req:     models.AEORequest{URL: "acme.com"},
			crawler: &stubCrawler{pages: crawledFixture()},
			gw:      &stubGateway{answer: okJSON("no json here")},
			wantErr: ErrAuditorParse,
		},
		{
			name:    "schema auditor failed",
			req:     models.AEORequest{URL: "acme.com"},
			crawler: &stubCrawler{pages: crawledFixture()},
			gw: &stubGateway{answer: func(prompt string) llm.Result {
				if strings.Contains(prompt, "SEO AUDIT JSON:") {
					return llm.Result{OK: false, Error: "All providers failed"}
				}
				return llm.Result{OK: true, Content: auditorAnswer}
			}},
			wantErr: ErrSchemaAuditFailed,
		},
		{
			name:    "schema auditor parse",
			req:     models.AEORequest{URL: "acme.com"},
			crawler: &stubCrawler{pages: crawledFixture()},
			gw:      &stubGateway{answer: auditAnswers(auditorAnswer, `{"note":"nothing to report"}`)},
			wantErr: ErrSchemaAuditParse,
		},
		{
			name:    "store failure",
			req:     models.AEORequest{URL: "acme.com"},
			crawler: &stubCrawler{pages: crawledFixture()},
			gw:      &stubGateway{answer: auditAnswers(auditorAnswer, schemaAnswer)},
			store:   &memoryReportStore{err: errDiskFull},
			wantErr: errDiskFull,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := AuditServiceConfig{Crawler: tt.crawler, Gateway: tt.gw, Archive: tt.archive, Logger: testLogger()}
			if tt.store != nil {
				cfg.Reports = tt.store
			}
			_, err := NewAuditService(cfg).Run(context.Background(), "u", tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Run() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

var errDiskFull = errors.New("disk full")

func TestAuditService_ArchiveFailureIsNotFatal(t *testing.T) {
	store := &memoryReportStore{}
	svc := NewAuditService(AuditServiceConfig{
		Crawler: &stubCrawler{pages: crawledFixture()},
		Gateway: &stubGateway{answer: auditAnswers(auditorAnswer, schemaAnswer)},
		Reports: store,
		Archive: stubArchiver{err: errors.New("bucket missing")},
		Logger:  testLogger(),
	})

	report, err := svc.Run(context.Background(), "u", models.AEORequest{URL: "acme.com"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.StorageKey != "" || len(store.saved) != 1 {
		t.Errorf("StorageKey = %q, saved = %d", report.StorageKey, len(store.saved))
	}
}

func TestAuditService_GetAndList(t *testing.T) {
	store := &memoryReportStore{saved: []*models.AEOReport{
		{ID: "r1", UserID: "user_1"},
		{ID: "r2", UserID: "user_2"},
		{ID: "r3", UserID: "user_1"},
	}}
	svc := NewAuditService(AuditServiceConfig{Gateway: &stubGateway{}, Reports: store, Logger: testLogger()})
	ctx := context.Background()

	got, err := svc.Get(ctx, "user_1", "r3")
	if err != nil || got.ID != "r3" {
		t.Fatalf("Get() = %v, %v", got, err)
	}
	if _, err := svc.Get(ctx, "user_1", "r2"); !errors.Is(err, ErrReportNotFound) {
		t.Errorf("Get(other user) error = %v, want ErrReportNotFound", err)
	}
	if _, err := svc.Get(ctx, "user_1", "missing"); !errors.Is(err, ErrReportNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrReportNotFound", err)
	}

	list, err := svc.List(ctx, "user_1", 0, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 {
		t.Errorf("List() returned %d reports, want 2", len(list))
	}
}

func TestAuditService_ReadsWithoutStore(t *testing.T) {
	svc := NewAuditService(AuditServiceConfig{Gateway: &stubGateway{}, Logger: testLogger()})
	if _, err := svc.Get(context.Background(), "u", "r"); !errors.Is(err, ErrReportsUnavailable) {
		t.Errorf("Get() error = %v, want ErrReportsUnavailable", err)
	}
	if _, err := svc.List(context.Background(), "u", 10, 0); !errors.Is(err, ErrReportsUnavailable) {
		t.Errorf("List() error = %v, want ErrReportsUnavailable", err)
	}
}

func TestAuditService_AttachHTML(t *testing.T) {
	store := &memoryReportStore{saved: []*models.AEOReport{{ID: "r1", UserID: "user_1"}}}
	svc := NewAuditService(AuditServiceConfig{Gateway: &stubGateway{}, Reports: store, Logger: testLogger()})

	if err := svc.AttachHTML(context.Background(), "r1", "<p>ok</p>"); err != nil {
		t.Fatalf("AttachHTML() error = %v", err)
	}
	if store.saved[0].HTML != "<p>ok</p>" {
		t.Errorf("HTML = %q", store.saved[0].HTML)
	}
	if err := svc.AttachHTML(context.Background(), "nope", "x"); !errors.Is(err, ErrReportNotFound) {
		t.Errorf("AttachHTML(missing) error = %v, want ErrReportNotFound", err)
	}
}
