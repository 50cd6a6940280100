package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"time"

	"github.com/jmylchreest/autoreach-api/internal/llm"
	"github.com/jmylchreest/autoreach-api/internal/models"
)

// AssistantSystemPrompt frames the provider answering an analysis prompt.
const AssistantSystemPrompt = `You are an AI assistant analyzing brand visibility and rankings.

When responding to prompts about tools, platforms, or services:
1. Provide rankings with specific positions (1st, 2nd, etc.)
2. Focus on the companies mentioned in the prompt
3. Be objective and factual
4. Explain briefly why each tool is ranked where it is
5. If you don't have enough information about a specific company, you can mention that`

// GeneratorSource resolves provider generators. *llm.Clients implements it.
type GeneratorSource interface {
	Get(id string) (llm.Generator, error)
}

// AnalyzeOptions controls a single prompt analysis.
type AnalyzeOptions struct {
	UseWebSearch bool
	MockMode     bool
	Detection    models.DetectionContext
}

// AnalyzerService asks one provider one prompt and extracts brand visibility from the answer.
type AnalyzerService struct {
	clients GeneratorSource
	gateway llm.JSONCaller
	logger  *slog.Logger
	now     func() time.Time
}

// NewAnalyzerService creates an analyzer over provider generators and the JSON gateway.
func NewAnalyzerService(clients GeneratorSource, gateway llm.JSONCaller, logger *slog.Logger) *AnalyzerService {
	return &AnalyzerService{
		clients: clients,
		gateway: gateway,
		logger:  logger.With("component", "analyzer"),
		now:     time.Now,
	}
}

// AnalyzePrompt runs prompt against provider. It returns (nil, nil) when the
// provider is not configured, a response on success, and an error carrying
// the provider failure otherwise.
func (s *AnalyzerService) AnalyzePrompt(ctx context.Context, prompt models.BrandPrompt, provider *llm.Provider, brand string, competitors []string, opts AnalyzeOptions) (*models.AIResponse, error) {
	if provider == nil {
		return nil, nil
	}
	if opts.MockMode {
		return s.mockResponse(prompt, provider.Name, brand, competitors, opts), nil
	}
	if !provider.IsConfigured() {
		return nil, nil
	}

	gen, err := s.clients.Get(provider.ID)
	if errors.Is(err, llm.ErrNotConfigured) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", provider.ID, err)
	}

	text, err := gen.Generate(ctx, llm.GenerateRequest{
		System:    AssistantSystemPrompt,
		Prompt:    userPrompt(prompt.Prompt, brand, competitors, opts),
		WebSearch: opts.UseWebSearch,
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, &llm.ProviderError{Provider: provider.ID, Kind: llm.KindUnknown, Err: llm.ErrEmptyResponse}
	}

	detection := s.analyzeResponse(ctx, text, brand, competitors, opts.Detection)

	return &models.AIResponse{
		Provider:           provider.Name,
		PromptID:           prompt.ID,
		Prompt:             prompt.Prompt,
		Response:           text,
		BrandMentioned:     detection.BrandMentioned,
		BrandPosition:      detection.BrandPosition,
		Sentiment:          detection.Sentiment,
		Confidence:         detection.confidence,
		CompetitorMentions: detection.CompetitorMentions,
		WebSearchUsed:      opts.UseWebSearch,
		Timestamp:          s.now().UTC(),
	}, nil
}

type scoredDetection struct {
	Detection
	confidence float64
}

// responseAnalysis is the JSON shape requested from the gateway.
type responseAnalysis struct {
	Rankings []struct {
		Position  models.FlexInt `json:"position"`
		Company   string         `json:"company"`
		Reason    string         `json:"reason"`
		Sentiment string         `json:"sentiment"`
	} `json:"rankings"`
	Analysis struct {
		BrandMentioned   models.FlexBool  `json:"brandMentioned"`
		BrandPosition    *models.FlexInt  `json:"brandPosition"`
		Competitors      []string         `json:"competitors"`
		OverallSentiment string           `json:"overallSentiment"`
		Confidence       models.FlexFloat `json:"confidence"`
	} `json:"analysis"`
}

// analyzeResponse asks the gateway for a structured reading of text and
// merges it with the heuristic detector. The heuristic alone is used when
// the gateway call or parse fails.
func (s *AnalyzerService) analyzeResponse(ctx context.Context, text, brand string, competitors []string, dc models.DetectionContext) scoredDetection {
	heuristic := DetectMentions(text, brand, competitors, dc)

	res := s.gateway.CallJSON(ctx, responseAnalysisPrompt(text, brand, competitors), "")
	if !res.OK {
		s.logger.Debug("response analysis failed, using heuristic detector", "error", res.Error)
		return scoredDetection{Detection: heuristic, confidence: 0.5}
	}

	var ra responseAnalysis
	if err := llm.ParseJSON(res.Content, &ra); err != nil {
		s.logger.Debug("response analysis unparseable, using heuristic detector", "error", err)
		return scoredDetection{Detection: heuristic, confidence: 0.5}
	}

	return scoredDetection{
		Detection:  mergeDetection(ra, heuristic, brand, competitors),
		confidence: clamp(ra.Analysis.Confidence.Float(), 0, 1),
	}
}

func mergeDetection(ra responseAnalysis, h Detection, brand string, competitors []string) Detection {
	d := Detection{
		BrandMentioned: bool(ra.Analysis.BrandMentioned) || h.BrandMentioned,
		Sentiment:      h.Sentiment,
	}
	if ra.Analysis.OverallSentiment != "" {
		d.Sentiment = normalizeSentiment(ra.Analysis.OverallSentiment)
	}

	positions := make(map[string]int)
	sentiments := make(map[string]models.Sentiment)
	for _, r := range ra.Rankings {
		key := strings.ToLower(strings.TrimSpace(r.Company))
		if key == "" {
			continue
		}
		if r.Position.Int() > 0 {
			if _, ok := positions[key]; !ok {
				positions[key] = r.Position.Int()
			}
		}
		if r.Sentiment != "" {
			sentiments[key] = normalizeSentiment(r.Sentiment)
		}
	}

	if d.BrandMentioned {
		switch {
		case ra.Analysis.BrandPosition != nil && ra.Analysis.BrandPosition.Int() > 0:
			p := ra.Analysis.BrandPosition.Int()
			d.BrandPosition = &p
		case rankedPosition(positions, brand) > 0:
			p := rankedPosition(positions, brand)
			d.BrandPosition = &p
		default:
			d.BrandPosition = h.BrandPosition
		}
	}

	named := make(map[string]bool)
	for _, c := range ra.Analysis.Competitors {
		named[strings.ToLower(strings.TrimSpace(c))] = true
	}
	heuristicByName := make(map[string]models.CompetitorMention)
	for _, m := range h.CompetitorMentions {
		heuristicByName[strings.ToLower(m.Name)] = m
	}

	for _, c := range competitors {
		key := strings.ToLower(c)
		if strings.EqualFold(c, brand) {
			continue
		}
		hm, inHeuristic := heuristicByName[key]
		_, ranked := positions[key]
		if !named[key] && !inHeuristic && !ranked {
			continue
		}

		m := models.CompetitorMention{Name: c, Sentiment: models.SentimentNeutral}
		if p := rankedPosition(positions, c); p > 0 {
			m.Position = &p
		} else if inHeuristic {
			m.Position = hm.Position
		}
		if sent, ok := sentiments[key]; ok {
			m.Sentiment = sent
		} else if inHeuristic {
			m.Sentiment = hm.Sentiment
		}
		d.CompetitorMentions = append(d.CompetitorMentions, m)
	}
	return d
}

// rankedPosition finds name in the rankings, tolerating suffixes such as "Inc".
func rankedPosition(positions map[string]int, name string) int {
	key := strings.ToLower(strings.TrimSpace(name))
	if p, ok := positions[key]; ok {
		return p
	}
	for company, p := range positions {
		if MentionsName(company, name) {
			return p
		}
	}
	return 0
}

func userPrompt(prompt, brand string, competitors []string, opts AnalyzeOptions) string {
	if !opts.UseWebSearch {
		return prompt
	}

	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\nUse current information from the web where possible.")

	if len(opts.Detection.BrandURLs) > 0 {
		fmt.Fprintf(&b, "\n%s is found at %s.", brand, strings.Join(opts.Detection.BrandURLs, ", "))
	}
	for _, c := range competitors {
		if urls := opts.Detection.CompetitorURLs[strings.ToLower(c)]; len(urls) > 0 {
			fmt.Fprintf(&b, "\n%s is found at %s.", c, strings.Join(urls, ", "))
		}
	}
	return b.String()
}

func responseAnalysisPrompt(text, brand string, competitors []string) string {
	compact := strings.ReplaceAll(brand, " ", "")
	return fmt.Sprintf(`Analyze this AI response about %[1]s and its competitors:

Response: %[2]q

Your task:
1. Look for ANY mention of %[1]s anywhere in the response, including:
   - Direct mentions (exact name)
   - Variations (with or without spaces, punctuation, e.g. "%[3]s")
   - With suffixes (Inc, LLC, Corp, etc.)
   - In possessive form (%[1]s's)
2. Look for ANY mention of these competitors: %[4]s
3. For each mentioned company, determine if it has a specific ranking position
4. Identify the sentiment towards each mentioned company
5. Rate your confidence in this analysis (0-1)

A company is "mentioned" if it appears ANYWHERE in the response text, even without a specific ranking.

Return ONLY JSON in this exact format:
{
  "rankings": [{"position": 1, "company": "Name", "reason": "why", "sentiment": "positive|neutral|negative"}],
  "analysis": {
    "brandMentioned": true,
    "brandPosition": 1,
    "competitors": ["Names of mentioned competitors"],
    "overallSentiment": "positive|neutral|negative",
    "confidence": 0.9
  }
}`, brand, text, compact, strings.Join(competitors, ", "))
}

// mockResponse derives a deterministic fake response from prompt and provider.
func (s *AnalyzerService) mockResponse(prompt models.BrandPrompt, providerName, brand string, competitors []string, opts AnalyzeOptions) *models.AIResponse {
	h := fnv.New64a()
	_, _ = h.Write([]byte(prompt.Prompt + "|" + providerName))
	seed := h.Sum64()

	resp := &models.AIResponse{
		Provider:      providerName,
		PromptID:      prompt.ID,
		Prompt:        prompt.Prompt,
		Sentiment:     []models.Sentiment{models.SentimentPositive, models.SentimentNeutral, models.SentimentNegative}[seed%3],
		Confidence:    0.8,
		WebSearchUsed: opts.UseWebSearch,
		Timestamp:     s.now().UTC(),
	}

	var lines []string
	pos := 1
	if seed%100 < 70 {
		p := int(seed>>8)%3 + 1
		resp.BrandMentioned = true
		resp.BrandPosition = &p
	}
	for i, c := range competitors {
		if pos == ptrValue(resp.BrandPosition) {
			lines = append(lines, fmt.Sprintf("%d. %s", pos, brand))
			pos++
		}
		if (seed>>uint(16+i%40))&1 == 0 {
			continue
		}
		p := pos
		resp.CompetitorMentions = append(resp.CompetitorMentions, models.CompetitorMention{
			Name:      c,
			Position:  &p,
			Sentiment: models.SentimentNeutral,
		})
		lines = append(lines, fmt.Sprintf("%d. %s", pos, c))
		pos++
	}
	if resp.BrandMentioned && ptrValue(resp.BrandPosition) >= pos {
		p := pos
		resp.BrandPosition = &p
		lines = append(lines, fmt.Sprintf("%d. %s", pos, brand))
	}

	resp.Response = fmt.Sprintf("Mock response from %s for %q:\n%s", providerName, prompt.Prompt, strings.Join(lines, "\n"))
	return resp
}

func ptrValue(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
