package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/autoreach-api/internal/llm"
	"github.com/jmylchreest/autoreach-api/internal/logging"
	"github.com/jmylchreest/autoreach-api/internal/models"
)

// DefaultBatchSize is the number of prompts analysed concurrently.
const DefaultBatchSize = 3

// ProviderSource lists the providers to fan out to. *llm.Registry implements it.
type ProviderSource interface {
	ConfiguredProviders() []*llm.Provider
	EnabledProviders() []*llm.Provider
}

// CompetitorIdentifier produces the competitor list when the caller gives none.
type CompetitorIdentifier interface {
	Identify(ctx context.Context, company models.Company, sink EventSink) ([]models.CompetitorDetail, error)
}

// PromptBuilder produces the analysis prompts.
type PromptBuilder interface {
	Build(ctx context.Context, company models.Company, competitors []string, custom []string) []models.BrandPrompt
}

// PromptAnalyzer analyses one (prompt, provider) pair.
type PromptAnalyzer interface {
	AnalyzePrompt(ctx context.Context, prompt models.BrandPrompt, provider *llm.Provider, brand string, competitors []string, opts AnalyzeOptions) (*models.AIResponse, error)
}

// AnalysisServiceConfig wires an AnalysisService.
type AnalysisServiceConfig struct {
	Providers   ProviderSource
	Competitors CompetitorIdentifier
	Prompts     PromptBuilder
	Analyzer    PromptAnalyzer
	BatchSize   int
	Cooldown    CooldownPolicy
	Sleep       Sleeper
	MockMode    bool
	Logger      *slog.Logger
	Now         func() time.Time
}

// AnalysisService runs the brand visibility pipeline.
type AnalysisService struct {
	providers   ProviderSource
	competitors CompetitorIdentifier
	prompts     PromptBuilder
	analyzer    PromptAnalyzer
	batchSize   int
	cooldown    CooldownPolicy
	sleep       Sleeper
	mockMode    bool
	logger      *slog.Logger
	now         func() time.Time
}

// NewAnalysisService creates an analysis service.
func NewAnalysisService(cfg AnalysisServiceConfig) *AnalysisService {
	s := &AnalysisService{
		providers:   cfg.Providers,
		competitors: cfg.Competitors,
		prompts:     cfg.Prompts,
		analyzer:    cfg.Analyzer,
		batchSize:   cfg.BatchSize,
		cooldown:    cfg.Cooldown,
		sleep:       cfg.Sleep,
		mockMode:    cfg.MockMode,
		logger:      cfg.Logger,
		now:         cfg.Now,
	}
	if s.batchSize < 1 {
		s.batchSize = DefaultBatchSize
	}
	if s.cooldown == nil {
		s.cooldown = FixedCooldown(30 * time.Second)
	}
	if s.sleep == nil {
		s.sleep = SleepContext
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.logger = s.logger.With("component", "analysis")
	return s
}

// PerformAnalysis identifies competitors, generates prompts, fans the
// prompts out to every configured provider in batches and scores the
// answers, streaming progress to sink. Per-pair failures are collected in
// the result; a sink error or context cancellation aborts the run.
func (s *AnalysisService) PerformAnalysis(ctx context.Context, req models.AnalysisRequest, sink EventSink) (*models.AnalysisResult, error) {
	logger := logging.FromContext(ctx, s.logger)
	company := req.Company
	em := newEmitter(&lockedSink{sink: sink}, s.now)

	withSearch := ""
	if req.UseWebSearch {
		withSearch = " with web search"
	}

	err := em.emit(ctx, models.EventStart, models.StageInitializing, models.ProgressData{
		Message: fmt.Sprintf("Starting analysis for %s%s", company.Name, withSearch),
	})
	if err != nil {
		return nil, err
	}

	// Competitors
	if err := em.stage(ctx, models.StageIdentifyingCompetitors, 0, "Identifying competitors..."); err != nil {
		return nil, err
	}
	details := SanitizeCompetitors(req.UserSelectedCompetitors)
	userSelected := len(details) > 0
	if userSelected {
		logger.Info("using user-selected competitors", "count", len(details))
		if err := emitCompetitorsFound(ctx, em, details); err != nil {
			return nil, err
		}
	} else {
		details, err = s.competitors.Identify(ctx, company, em.sink)
		if err != nil {
			return nil, err
		}
	}
	competitors := CompetitorNames(details)
	detection := buildDetectionContext(company, details)

	// Prompts
	if err := em.stage(ctx, models.StageGeneratingPrompts, 0, "Generating analysis prompts..."); err != nil {
		return nil, err
	}
	prompts := s.prompts.Build(ctx, company, competitors, req.CustomPrompts)
	for i, p := range prompts {
		err := em.emit(ctx, models.EventPromptGenerated, models.StageGeneratingPrompts, models.PromptGeneratedData{
			Prompt:   p.Prompt,
			Category: p.Category,
			Index:    i + 1,
			Total:    len(prompts),
		})
		if err != nil {
			return nil, err
		}
	}

	// Provider fan-out
	if err := em.stage(ctx, models.StageAnalyzingPrompts, 0, fmt.Sprintf("Starting AI analysis%s...", withSearch)); err != nil {
		return nil, err
	}

	providers := s.providers.ConfiguredProviders()
	mock := s.mockMode || len(providers) == 0
	if mock && len(providers) == 0 {
		providers = s.providers.EnabledProviders()
	}
	logger.Info("analyzing prompts",
		"prompts", len(prompts),
		"providers", len(providers),
		"mock_mode", mock,
		"web_search", req.UseWebSearch,
	)

	run := &fanOut{
		svc:         s,
		em:          em,
		logger:      logger,
		prompts:     prompts,
		providers:   providers,
		brand:       company.Name,
		competitors: competitors,
		opts:        AnalyzeOptions{UseWebSearch: req.UseWebSearch, MockMode: mock, Detection: detection},
		total:       len(prompts) * len(providers),
	}
	if err := run.execute(ctx); err != nil {
		return nil, err
	}

	// Scoring
	if err := em.stage(ctx, models.StageCalculatingScores, 0, "Calculating brand visibility scores..."); err != nil {
		return nil, err
	}

	rankings := AnalyzeCompetitors(company, run.responses, competitors)
	if userSelected {
		rankings = SeedUserCompetitors(rankings, details)
	}
	AttachCompetitorURLs(rankings, details)

	for i, r := range rankings {
		err := em.emit(ctx, models.EventScoringStart, models.StageCalculatingScores, models.ScoringProgressData{
			Competitor: r.Name,
			Score:      r.VisibilityScore,
			Index:      i + 1,
			Total:      len(rankings),
		})
		if err != nil {
			return nil, err
		}
	}

	providerRankings, comparison := AnalyzeByProvider(company, run.responses, competitors)
	scores := CalculateBrandScores(run.responses, company.Name, rankings)

	err = em.emit(ctx, models.EventProgress, models.StageCalculatingScores, models.ProgressData{
		Stage:    models.StageCalculatingScores,
		Progress: 100,
		Message:  "Scoring complete",
	})
	if err != nil {
		return nil, err
	}

	if err := em.stage(ctx, models.StageFinalizing, 100, "Analysis complete!"); err != nil {
		return nil, err
	}

	result := &models.AnalysisResult{
		Company:            company,
		KnownCompetitors:   competitors,
		Prompts:            prompts,
		Responses:          run.responses,
		Scores:             scores,
		Competitors:        rankings,
		ProviderRankings:   providerRankings,
		ProviderComparison: comparison,
		WebSearchUsed:      req.UseWebSearch,
	}
	if len(run.errors) > 0 {
		result.Errors = run.errors
	}

	logger.Info("analysis complete",
		"responses", len(run.responses),
		"errors", len(run.errors),
		"overall_score", scores.OverallScore,
	)
	return result, nil
}

// fanOut holds the shared state of the analyzing-prompts stage.
type fanOut struct {
	svc         *AnalysisService
	em          *emitter
	logger      *slog.Logger
	prompts     []models.BrandPrompt
	providers   []*llm.Provider
	brand       string
	competitors []string
	opts        AnalyzeOptions
	total       int

	mu        sync.Mutex
	completed int
	responses []models.AIResponse
	errors    []string
}

func (f *fanOut) execute(ctx context.Context) error {
	batchSize := f.svc.batchSize
	for start, batch := 0, 0; start < len(f.prompts); start, batch = start+batchSize, batch+1 {
		end := min(start+batchSize, len(f.prompts))

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			for pi, p := range f.providers {
				g.Go(func() error {
					return f.analyzePair(gctx, i, pi, p)
				})
			}
		}
		if err := g.Wait(); err != nil {
			return err
		}

		if end < len(f.prompts) {
			if d := f.svc.cooldown.Delay(batch); d > 0 {
				f.logger.Info("cooldown before next batch", "batch", batch+1, "delay", d)
				if err := f.svc.sleep(ctx, d); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (f *fanOut) analyzePair(ctx context.Context, promptIndex, providerIndex int, provider *llm.Provider) error {
	prompt := f.prompts[promptIndex]
	pair := models.AnalysisProgressData{
		Provider:       provider.Name,
		Prompt:         prompt.Prompt,
		PromptIndex:    promptIndex + 1,
		TotalPrompts:   len(f.prompts),
		ProviderIndex:  providerIndex + 1,
		TotalProviders: len(f.providers),
		Status:         models.PairStarted,
	}
	if err := f.em.emit(ctx, models.EventAnalysisStart, models.StageAnalyzingPrompts, pair); err != nil {
		return err
	}

	resp, err := f.svc.analyzer.AnalyzePrompt(ctx, prompt, provider, f.brand, f.competitors, f.opts)
	switch {
	case err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		f.logger.Warn("prompt analysis failed",
			"provider", provider.ID,
			"prompt_id", prompt.ID,
			"kind", llm.KindOf(err),
			"error", err,
		)
		f.recordError(fmt.Sprintf("%s: %s", provider.Name, errorMessage(err)))
		pair.Status = models.PairFailed
	case resp == nil:
		f.logger.Debug("provider not configured, skipping", "provider", provider.ID)
		pair.Status = models.PairFailed
	default:
		f.recordResponse(*resp)
		err := f.em.emit(ctx, models.EventPartialResult, models.StageAnalyzingPrompts, models.PartialResultData{
			Provider: provider.Name,
			Prompt:   prompt.Prompt,
			Response: models.PartialResponse{
				Provider:       resp.Provider,
				BrandMentioned: resp.BrandMentioned,
				BrandPosition:  resp.BrandPosition,
				Sentiment:      resp.Sentiment,
			},
		})
		if err != nil {
			return err
		}
		pair.Status = models.PairCompleted
	}

	if err := f.em.emit(ctx, models.EventAnalysisComplete, models.StageAnalyzingPrompts, pair); err != nil {
		return err
	}
	return f.advance(ctx)
}

// advance bumps the completed counter and emits progress under the same
// lock so emitted values never decrease.
func (f *fanOut) advance(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.completed++
	progress := int(math.Round(float64(f.completed) / float64(f.total) * 100))
	return f.em.emit(ctx, models.EventProgress, models.StageAnalyzingPrompts, models.ProgressData{
		Stage:    models.StageAnalyzingPrompts,
		Progress: progress,
		Message:  fmt.Sprintf("Completed %d of %d analyses", f.completed, f.total),
	})
}

func (f *fanOut) recordResponse(r models.AIResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, r)
}

func (f *fanOut) recordError(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, msg)
}

func buildDetectionContext(company models.Company, details []models.CompetitorDetail) models.DetectionContext {
	dc := models.DetectionContext{CompetitorURLs: make(map[string][]string)}
	if u := strings.TrimSpace(company.URL); u != "" {
		dc.BrandURLs = []string{u}
	}
	for _, d := range details {
		u := strings.TrimSpace(d.URL)
		if u == "" {
			continue
		}
		key := strings.ToLower(d.Name)
		exists := false
		for _, e := range dc.CompetitorURLs[key] {
			if e == u {
				exists = true
				break
			}
		}
		if !exists {
			dc.CompetitorURLs[key] = append(dc.CompetitorURLs[key], u)
		}
	}
	return dc
}

func errorMessage(err error) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "Unknown error"
}

// lockedSink serializes concurrent sends to a sink.
type lockedSink struct {
	mu   sync.Mutex
	sink EventSink
}

func (l *lockedSink) Send(ctx context.Context, event models.SSEEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sink == nil {
		return nil
	}
	return l.sink.Send(ctx, event)
}
