package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humasse "github.com/danielgtaylor/huma/v2/sse"

	"github.com/jmylchreest/autoreach-api/internal/http/mw"
	"github.com/jmylchreest/autoreach-api/internal/models"
	"github.com/jmylchreest/autoreach-api/internal/service"
	"github.com/jmylchreest/autoreach-api/internal/sse"
)

// AnalysisRunner runs the full analysis pipeline. *service.AnalysisService implements it.
type AnalysisRunner interface {
	PerformAnalysis(ctx context.Context, req models.AnalysisRequest, sink service.EventSink) (*models.AnalysisResult, error)
}

// CompletedSaver persists a finished synchronous run. *service.JobService implements it.
type CompletedSaver interface {
	SaveCompleted(ctx context.Context, userID string, req models.AnalysisRequest, result *models.AnalysisResult) (*models.Analysis, error)
}

// StreamHandler serves synchronous analyses as SSE streams.
type StreamHandler struct {
	runner    AnalysisRunner
	scraper   CompanyScraper
	saver     CompletedSaver
	heartbeat time.Duration
	logger    *slog.Logger
}

// StreamHandlerConfig wires a StreamHandler. Saver is optional; without it
// completed runs are not persisted.
type StreamHandlerConfig struct {
	Runner    AnalysisRunner
	Scraper   CompanyScraper
	Saver     CompletedSaver
	Heartbeat time.Duration
	Logger    *slog.Logger
}

// NewStreamHandler creates a stream handler.
func NewStreamHandler(cfg StreamHandlerConfig) *StreamHandler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	heartbeat := cfg.Heartbeat
	if heartbeat <= 0 {
		heartbeat = sse.DefaultHeartbeat
	}
	return &StreamHandler{
		runner:    cfg.Runner,
		scraper:   cfg.Scraper,
		saver:     cfg.Saver,
		heartbeat: heartbeat,
		logger:    logger.With("component", "stream"),
	}
}

// StreamAnalysis runs an analysis and streams its progress events.
// This is a raw HTTP handler (not Huma) so events can be flushed as they happen.
func (h *StreamHandler) StreamAnalysis(w http.ResponseWriter, r *http.Request) {
	claims := mw.GetUserClaims(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
		return
	}

	var body AnalysisRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return
	}
	req, err := resolveAnalysisRequest(r.Context(), h.scraper, body)
	if err != nil {
		status := http.StatusBadRequest
		if !errors.Is(err, service.ErrInvalidAnalysisRequest) && !errors.Is(err, service.ErrInvalidURL) {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, map[string]any{"error": err.Error()})
		return
	}

	writer, err := sse.NewWriter(w)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "streaming not supported"})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		writer.KeepAlive(ctx, h.heartbeat)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	log := h.logger.With("user_id", claims.UserID, "company", req.Company.Name)
	log.Info("stream analysis started", "custom_prompts", len(req.CustomPrompts), "competitors", len(req.Competitors))

	tracker := &stageTracker{sink: writer, stage: models.StageInitializing}
	result, err := h.runner.PerformAnalysis(ctx, req, tracker)
	if err != nil {
		if ctx.Err() != nil {
			log.Info("stream analysis cancelled", "error", err)
			return
		}
		log.Warn("stream analysis failed", "error", err)
		_ = writer.Send(ctx, models.SSEEvent{
			Type:      models.EventError,
			Stage:     tracker.current(),
			Data:      models.ErrorData{Message: err.Error()},
			Timestamp: time.Now().UTC(),
		})
		return
	}

	complete := models.CompleteData{Analysis: result}
	if h.saver != nil {
		saved, err := h.saver.SaveCompleted(ctx, claims.UserID, req, result)
		if err != nil {
			log.Warn("failed to save streamed analysis", "error", err)
		} else {
			complete.AnalysisID = saved.ID
		}
	}

	if err := writer.Send(ctx, models.SSEEvent{
		Type:      models.EventComplete,
		Stage:     models.StageFinalizing,
		Data:      complete,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		log.Info("client went away before completion", "error", err)
		return
	}
	log.Info("stream analysis completed", "analysis_id", complete.AnalysisID)
}

// stageTracker forwards events and remembers the last stage seen, so a
// failure can be reported against it.
type stageTracker struct {
	sink  service.EventSink
	mu    sync.Mutex
	stage models.Stage
}

func (t *stageTracker) Send(ctx context.Context, event models.SSEEvent) error {
	if event.Stage != "" {
		t.mu.Lock()
		t.stage = event.Stage
		t.mu.Unlock()
	}
	return t.sink.Send(ctx, event)
}

func (t *stageTracker) current() models.Stage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stage
}

// StreamInput documents the stream request body.
type StreamInput struct {
	Body AnalysisRequestBody
}

// ReportCallbackInput documents the report callback request.
type ReportCallbackInput struct {
	SvixID        string `header:"svix-id" required:"true"`
	SvixTimestamp string `header:"svix-timestamp" required:"true"`
	SvixSignature string `header:"svix-signature" required:"true"`
	Body          struct {
		ReportID string `json:"reportId" doc:"AEO report ID"`
		HTML     string `json:"html" doc:"Rendered report"`
	}
}

// ReportCallbackOutput documents the report callback response.
type ReportCallbackOutput struct {
	Body struct {
		Success bool `json:"success"`
	}
}

// RegisterRawEndpoints registers raw HTTP endpoints (SSE, signed callbacks) with Huma for
// OpenAPI documentation. The actual handlers are mounted on the chi router.
func RegisterRawEndpoints(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "aeoReportCallback",
		Method:      http.MethodPost,
		Path:        "/api/v1/aeo-reports/callback",
		Summary:     "Receive a rendered AEO report",
		Description: "Stores the rendered html on a report. Requests must carry valid svix signature headers.",
		Tags:        []string{"Webhooks"},
	}, func(ctx context.Context, input *ReportCallbackInput) (*ReportCallbackOutput, error) {
		return nil, nil
	})

	humasse.Register(api, huma.Operation{
		OperationID: "streamAnalysis",
		Method:      http.MethodPost,
		Path:        "/api/v1/analyze/stream",
		Summary:     "Run an analysis and stream progress via SSE",
		Description: `Server-Sent Events stream for a synchronous brand analysis.

Events sent, in order:
- **start**, **stage**: pipeline progress
- **competitor-found**, **prompt-generated**: discovery
- **analysis-start**, **partial-result**, **analysis-complete**, **progress**: per prompt and provider
- **scoring-start**: per competitor score
- **complete**: the final analysis
- **error**: the run failed

The stream sends heartbeat comments every 15 seconds to keep connections alive through proxies.`,
		Tags:     []string{"Analysis"},
		Security: []map[string][]string{{mw.SecurityScheme: {}}},
	}, map[string]any{
		string(models.EventStart):            models.ProgressData{},
		string(models.EventStage):            models.ProgressData{},
		string(models.EventCompetitorFound):  models.CompetitorFoundData{},
		string(models.EventPromptGenerated):  models.PromptGeneratedData{},
		string(models.EventAnalysisStart):    models.AnalysisProgressData{},
		string(models.EventPartialResult):    models.PartialResultData{},
		string(models.EventAnalysisComplete): models.AnalysisProgressData{},
		string(models.EventProgress):         models.ProgressData{},
		string(models.EventScoringStart):     models.ScoringProgressData{},
		string(models.EventComplete):         models.CompleteData{},
		string(models.EventError):            models.ErrorData{},
	}, func(ctx context.Context, input *StreamInput, send humasse.Sender) {
		// Placeholder handler; the chi route serves the stream.
		<-ctx.Done()
	})
}
