package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/autoreach-api/internal/models"
	"github.com/jmylchreest/autoreach-api/internal/service"
	"github.com/jmylchreest/autoreach-api/internal/sse"
)

var (
	analyzeURL         string
	analyzeName        string
	analyzeIndustry    string
	analyzePrompts     []string
	analyzeCompetitors []string
	analyzeWebSearch   bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run a brand analysis and print progress as SSE frames",
	Long: `Runs the full analysis pipeline in-process. Progress events are written
to stdout in the same "event: ...\ndata: ...\n\n" framing the stream endpoint uses,
ending with a complete or error event.`,
	Example: `  autoreach analyze --url firecrawl.dev
  autoreach analyze --name Acme --prompt "best scraping api?" --competitor Apify`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(analyzeURL) == "" && strings.TrimSpace(analyzeName) == "" {
			return errors.New("one of --url or --name is required")
		}
		_, svcs, err := loadServices()
		if err != nil {
			return err
		}

		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		req, err := buildAnalysisRequest(ctx, svcs.Scraper)
		if err != nil {
			return err
		}
		return runAnalysis(ctx, cmd.OutOrStdout(), svcs.Analysis, req)
	},
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVar(&analyzeURL, "url", "", "Company website to scrape")
	f.StringVar(&analyzeName, "name", "", "Company name, used instead of scraping")
	f.StringVar(&analyzeIndustry, "industry", "", "Industry, used with --name")
	f.StringArrayVar(&analyzePrompts, "prompt", nil, "Custom prompt (repeatable)")
	f.StringArrayVar(&analyzeCompetitors, "competitor", nil, "Competitor to track (repeatable)")
	f.BoolVar(&analyzeWebSearch, "web-search", false, "Ask for web-search style answers")
}

type companyScraper interface {
	ScrapeCompany(ctx context.Context, rawURL string) (*models.Company, error)
}

func buildAnalysisRequest(ctx context.Context, scraper companyScraper) (models.AnalysisRequest, error) {
	competitors := make([]models.CompetitorDetail, 0, len(analyzeCompetitors))
	for _, c := range analyzeCompetitors {
		competitors = append(competitors, models.CompetitorDetail{Name: c})
	}
	req := models.AnalysisRequest{
		CustomPrompts:           analyzePrompts,
		UserSelectedCompetitors: service.SanitizeCompetitors(competitors),
		UseWebSearch:            analyzeWebSearch,
	}

	if name := strings.TrimSpace(analyzeName); name != "" {
		req.Company = models.Company{
			ID:       ulid.Make().String(),
			Name:     name,
			URL:      strings.TrimSpace(analyzeURL),
			Industry: analyzeIndustry,
		}
		return req, nil
	}

	company, err := scraper.ScrapeCompany(ctx, analyzeURL)
	if err != nil {
		return req, fmt.Errorf("failed to scrape company: %w", err)
	}
	req.Company = *company
	return req, nil
}

type analysisRunner interface {
	PerformAnalysis(ctx context.Context, req models.AnalysisRequest, sink service.EventSink) (*models.AnalysisResult, error)
}

// runAnalysis streams events to w and finishes with a complete or error frame.
func runAnalysis(ctx context.Context, w io.Writer, runner analysisRunner, req models.AnalysisRequest) error {
	sink := service.EventSinkFunc(func(_ context.Context, event models.SSEEvent) error {
		_, err := w.Write(sse.FormatSSE(event))
		return err
	})

	result, err := runner.PerformAnalysis(ctx, req, sink)
	if err != nil {
		_, _ = w.Write(sse.FormatSSE(models.SSEEvent{
			Type:      models.EventError,
			Data:      models.ErrorData{Message: err.Error()},
			Timestamp: time.Now().UTC(),
		}))
		return fmt.Errorf("analysis failed: %w", err)
	}

	_, err = w.Write(sse.FormatSSE(models.SSEEvent{
		Type:      models.EventComplete,
		Stage:     models.StageFinalizing,
		Data:      models.CompleteData{Analysis: result},
		Timestamp: time.Now().UTC(),
	}))
	return err
}
