package models

import "time"

// Company is the analysed brand, produced by the scraper or supplied by the caller.
type Company struct {
	ID          string       `json:"id"`
	URL         string       `json:"url"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Industry    string       `json:"industry,omitempty"`
	Logo        string       `json:"logo,omitempty"`
	Favicon     string       `json:"favicon,omitempty"`
	Scraped     bool         `json:"scraped"`
	ScrapedData *ScrapedData `json:"scrapedData,omitempty"`
}

// ScrapedData holds the structured content extracted from the company site.
type ScrapedData struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Keywords     []string `json:"keywords"`
	MainContent  string   `json:"mainContent"`
	MainProducts []string `json:"mainProducts"`
	Competitors  []string `json:"competitors,omitempty"`
	OGImage      string   `json:"ogImage,omitempty"`
	Favicon      string   `json:"favicon,omitempty"`
}

// CompetitorDetail is a competitor name with an optional site URL.
type CompetitorDetail struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// PromptCategory classifies a BrandPrompt.
type PromptCategory string

const (
	CategoryRanking         PromptCategory = "ranking"
	CategoryComparison      PromptCategory = "comparison"
	CategoryAlternatives    PromptCategory = "alternatives"
	CategoryRecommendations PromptCategory = "recommendations"
	CategoryCustom          PromptCategory = "custom"
)

// GeneratedCategories are the categories requested from prompt generation, in order.
var GeneratedCategories = []PromptCategory{
	CategoryRanking,
	CategoryComparison,
	CategoryAlternatives,
	CategoryRecommendations,
}

// BrandPrompt is a natural-language query sent to every provider.
type BrandPrompt struct {
	ID       string         `json:"id"`
	Prompt   string         `json:"prompt"`
	Category PromptCategory `json:"category"`
}

// Sentiment is a qualitative sentiment label.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// CompetitorMention is a competitor found in a provider response.
type CompetitorMention struct {
	Name      string    `json:"name"`
	Position  *int      `json:"position,omitempty"`
	Sentiment Sentiment `json:"sentiment"`
}

// AIResponse is one provider's answer to one prompt, with detection results.
type AIResponse struct {
	Provider           string              `json:"provider"`
	PromptID           string              `json:"promptId"`
	Prompt             string              `json:"prompt"`
	Response           string              `json:"response"`
	BrandMentioned     bool                `json:"brandMentioned"`
	BrandPosition      *int                `json:"brandPosition,omitempty"`
	Sentiment          Sentiment           `json:"sentiment"`
	Confidence         float64             `json:"confidence"`
	CompetitorMentions []CompetitorMention `json:"competitorMentions"`
	WebSearchUsed      bool                `json:"webSearchUsed,omitempty"`
	Timestamp          time.Time           `json:"timestamp"`
}

// CompetitorRanking is the aggregate visibility of one competitor or the brand itself.
type CompetitorRanking struct {
	Name            string    `json:"name"`
	URL             string    `json:"url,omitempty"`
	Mentions        int       `json:"mentions"`
	AveragePosition float64   `json:"averagePosition"`
	Sentiment       Sentiment `json:"sentiment"`
	SentimentScore  float64   `json:"sentimentScore"`
	ShareOfVoice    float64   `json:"shareOfVoice"`
	VisibilityScore float64   `json:"visibilityScore"`
	WeeklyChange    *float64  `json:"weeklyChange,omitempty"`
	IsOwn           bool      `json:"isOwn"`
}

// ProviderRanking is a per-provider leaderboard.
type ProviderRanking struct {
	Provider    string              `json:"provider"`
	Competitors []CompetitorRanking `json:"competitors"`
}

// ProviderMetric is one cell of the provider comparison matrix.
type ProviderMetric struct {
	VisibilityScore float64   `json:"visibilityScore"`
	Position        float64   `json:"position"`
	Mentions        int       `json:"mentions"`
	Sentiment       Sentiment `json:"sentiment"`
}

// ProviderComparisonRow is one competitor's metrics across providers.
type ProviderComparisonRow struct {
	Competitor string                    `json:"competitor"`
	IsOwn      bool                      `json:"isOwn"`
	Providers  map[string]ProviderMetric `json:"providers"`
}

// BrandScores are the headline scores for the analysed brand.
type BrandScores struct {
	VisibilityScore float64 `json:"visibilityScore"`
	SentimentScore  float64 `json:"sentimentScore"`
	ShareOfVoice    float64 `json:"shareOfVoice"`
	OverallScore    float64 `json:"overallScore"`
	AveragePosition float64 `json:"averagePosition"`
}

// AnalysisResult is the terminal output of a brand analysis run.
type AnalysisResult struct {
	Company            Company                 `json:"company"`
	KnownCompetitors   []string                `json:"knownCompetitors"`
	Prompts            []BrandPrompt           `json:"prompts"`
	Responses          []AIResponse            `json:"responses"`
	Scores             BrandScores             `json:"scores"`
	Competitors        []CompetitorRanking     `json:"competitors"`
	ProviderRankings   []ProviderRanking       `json:"providerRankings"`
	ProviderComparison []ProviderComparisonRow `json:"providerComparison"`
	Errors             []string                `json:"errors,omitempty"`
	WebSearchUsed      bool                    `json:"webSearchUsed"`
}

// DetectionContext carries URL hints used to disambiguate brand and competitor mentions.
type DetectionContext struct {
	BrandURLs      []string            `json:"brandUrls"`
	CompetitorURLs map[string][]string `json:"competitorUrls"` // keyed by lowercase competitor name
}
