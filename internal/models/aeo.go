package models

// CrawledPage is the per-page record produced by the AEO crawler.
type CrawledPage struct {
	URL             string   `json:"url"`
	Status          int      `json:"status"`
	OK              bool     `json:"ok"`
	TimeMs          int64    `json:"timeMs"`
	Title           string   `json:"title,omitempty"`
	MetaDescription string   `json:"metaDescription,omitempty"`
	H1              []string `json:"h1"`
	H2              []string `json:"h2"`
	Canonical       string   `json:"canonical,omitempty"`
	WordCount       int      `json:"wordCount"`
	Links           []string `json:"links"`
	Error           string   `json:"error,omitempty"`
}

// AuditPage is the trimmed page view sent to the auditor.
type AuditPage struct {
	URL             string   `json:"url"`
	Status          int      `json:"status"`
	Title           string   `json:"title,omitempty"`
	MetaDescription string   `json:"metaDescription,omitempty"`
	H1              []string `json:"h1"`
	Canonical       string   `json:"canonical,omitempty"`
	WordCount       int      `json:"wordCount"`
}

// CrawlSummary is the bundle-level rollup sent to the auditor.
type CrawlSummary struct {
	TotalPages    int            `json:"totalPages"`
	StatusBuckets map[string]int `json:"statusBuckets"`
	MissingTitles int            `json:"missingTitles"`
	MissingMeta   int            `json:"missingMeta"`
	AvgWordCount  int            `json:"avgWordCount"`
}

// AuditBundle is the crawl output handed to the auditor prompt.
type AuditBundle struct {
	URL     string       `json:"url"`
	Pages   []AuditPage  `json:"pages"`
	Summary CrawlSummary `json:"summary"`
}

// InsightSeverity ranks an AEO insight.
type InsightSeverity string

const (
	SeverityHigh   InsightSeverity = "high"
	SeverityMedium InsightSeverity = "medium"
	SeverityLow    InsightSeverity = "low"
)

// AEOInsight is one finding derived from crawl metrics.
type AEOInsight struct {
	ID             string          `json:"id"`
	Severity       InsightSeverity `json:"severity"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Recommendation string          `json:"recommendation"`
}

// AEOMetrics are the aggregated crawl metrics.
type AEOMetrics struct {
	TotalPages    int            `json:"totalPages"`
	OKPages       int            `json:"okPages"`
	ErrorPages    int            `json:"errorPages"`
	AvgResponseMs int64          `json:"avgResponseMs"`
	MissingTitles int            `json:"missingTitles"`
	MissingMeta   int            `json:"missingMeta"`
	AvgWordCount  int            `json:"avgWordCount"`
	StatusBuckets map[string]int `json:"statusBuckets"`
	// Sitemap coverage; zero when the audit ran without sitemap discovery.
	SitemapFound      bool `json:"sitemapFound"`
	SitemapURLs       int  `json:"sitemapUrls"`
	UncataloguedPages int  `json:"uncataloguedPages"`
}

// AEOSummary is the metrics plus insights attached to a stored report.
type AEOSummary struct {
	Metrics  AEOMetrics   `json:"metrics"`
	Insights []AEOInsight `json:"insights"`
}

// AEOScore is the auditor's per-page scoring block.
type AEOScore struct {
	StructuredCoverage        FlexInt `json:"structuredCoverage"`
	UnstructuredCoverage      FlexInt `json:"unstructuredCoverage"`
	OptimizationOpportunities FlexInt `json:"optimizationOpportunities"`
	OverallAEOReadiness       FlexInt `json:"overallAEOReadiness"`
}

// StructuredBlock is existing schema markup found on a page.
type StructuredBlock struct {
	Type               string   `json:"type"`
	TextOrSummary      string   `json:"textOrSummary,omitempty"`
	Status             string   `json:"status"` // valid, missing or incorrect
	Issues             []string `json:"issues,omitempty"`
	RecommendedChanges string   `json:"recommendedChanges,omitempty"`
}

// UnstructuredBlock is AEO-relevant content that has no markup yet.
type UnstructuredBlock struct {
	ContentType         string `json:"contentType"`
	TextOrAlt           string `json:"textOrAlt,omitempty"`
	SuggestedAEOType    string `json:"suggestedAeoType,omitempty"`
	ReasonItIsImportant string `json:"reasonItIsImportant,omitempty"`
	Recommendation      string `json:"recommendation,omitempty"`
}

// OptimizationSuggestion is a fix for existing content.
type OptimizationSuggestion struct {
	ExistingContent string `json:"existingContent,omitempty"`
	Problem         string `json:"problem"`
	SuggestedFix    string `json:"suggestedFix"`
}

// ContentRecommendation is suggested new content.
type ContentRecommendation struct {
	ContentType          string `json:"contentType"`
	SuggestedTopicOrText string `json:"suggestedTopicOrText"`
	AEOType              string `json:"aeoType,omitempty"`
	ReasonForAdding      string `json:"reasonForAdding,omitempty"`
}

// AEOPageReport is the auditor's JSON output for one page.
type AEOPageReport struct {
	URL                       string                   `json:"url"`
	StructuredContent         []StructuredBlock        `json:"structuredContent"`
	UnstructuredContent       []UnstructuredBlock      `json:"unstructuredContent"`
	OptimizationSuggestions   []OptimizationSuggestion `json:"optimizationSuggestions"`
	NewContentRecommendations []ContentRecommendation  `json:"newContentRecommendations"`
	SummaryScore              AEOScore                 `json:"summaryScore"`
}

// AEORequest is the input of an AEO audit run.
type AEORequest struct {
	URL          string `json:"url"`
	CustomerName string `json:"customerName,omitempty"`
	MaxPages     int    `json:"maxPages,omitempty"`
}

// SchemaAuditSections are the schema auditor's findings by kind.
type SchemaAuditSections struct {
	MissingElements      []SchemaFinding `json:"missingElements"`
	OutdatedElements     []SchemaFinding `json:"outdatedElements"`
	Enhancements         []SchemaFinding `json:"enhancements"`
	VisibilityGains      []SchemaFinding `json:"visibilityGains"`
	FinalRecommendations []SchemaFinding `json:"finalRecommendations"`
}

// SchemaAuditMetrics are derived from the finding counts.
type SchemaAuditMetrics struct {
	HealthScore   int `json:"healthScore"`   // 100 - (5 per missing + 3 per outdated), floor 0
	Missing       int `json:"missing"`
	Outdated      int `json:"outdated"`
	Enhancements  int `json:"enhancements"`
	PotentialGain int `json:"potentialGain"` // 10 per visibility gain, cap 100
}

// SchemaAudit is the schema auditor's output: a proposed JSON-LD document
// and the findings that led to it.
type SchemaAudit struct {
	OptimizedSchema any                 `json:"optimizedSchema"`
	AuditReport     SchemaAuditSections `json:"auditReport"`
	Metrics         SchemaAuditMetrics  `json:"metrics"`
}
