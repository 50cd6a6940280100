package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jmylchreest/autoreach-api/internal/models"
	"github.com/jmylchreest/autoreach-api/internal/service"
)

// Auditor runs and reads AEO audits. *service.AuditService implements it.
type Auditor interface {
	Run(ctx context.Context, userID string, req models.AEORequest) (*models.AEOReport, error)
	Get(ctx context.Context, userID, id string) (*models.AEOReport, error)
	List(ctx context.Context, userID string, limit, offset int) ([]*models.AEOReport, error)
	AttachHTML(ctx context.Context, reportID, html string) error
}

// AEOHandler handles AEO audit endpoints.
type AEOHandler struct {
	auditor Auditor
}

// NewAEOHandler creates an AEO handler.
func NewAEOHandler(auditor Auditor) *AEOHandler {
	return &AEOHandler{auditor: auditor}
}

// RunAEOInput requests an audit.
type RunAEOInput struct {
	Body struct {
		URL          string `json:"url" minLength:"1" doc:"Site to audit"`
		CustomerName string `json:"customerName,omitempty" doc:"Display name, derived from the host when empty"`
		MaxPages     int    `json:"maxPages,omitempty" minimum:"0" maximum:"5" doc:"Pages to crawl (default 5)"`
	}
}

// AEOReportOutput is a stored audit report.
type AEOReportOutput struct {
	Body *models.AEOReport
}

// RunAEO crawls the site, audits it and returns the stored report.
func (h *AEOHandler) RunAEO(ctx context.Context, input *RunAEOInput) (*AEOReportOutput, error) {
	userID, err := requireUserID(ctx)
	if err != nil {
		return nil, err
	}
	report, err := h.auditor.Run(ctx, userID, models.AEORequest{
		URL:          input.Body.URL,
		CustomerName: input.Body.CustomerName,
		MaxPages:     input.Body.MaxPages,
	})
	if err != nil {
		return nil, serviceError("run aeo audit", err)
	}
	return &AEOReportOutput{Body: report}, nil
}

// ListAEOReportsInput pages through the caller's reports.
type ListAEOReportsInput struct {
	Limit  int `query:"limit" minimum:"0" maximum:"100" default:"20" doc:"Maximum number of reports"`
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Number of reports to skip"`
}

// AEOReportSummary is a report without page detail.
type AEOReportSummary struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	CustomerName string    `json:"customer_name"`
	Pages        int       `json:"pages"`
	Insights     int       `json:"insights"`
	HasHTML      bool      `json:"has_html"`
	CreatedAt    time.Time `json:"created_at"`
}

// ListAEOReportsOutput is a page of reports, newest first.
type ListAEOReportsOutput struct {
	Body struct {
		Reports []AEOReportSummary `json:"reports"`
		Limit   int                `json:"limit"`
		Offset  int                `json:"offset"`
	}
}

// ListAEOReports returns the caller's reports, newest first.
func (h *AEOHandler) ListAEOReports(ctx context.Context, input *ListAEOReportsInput) (*ListAEOReportsOutput, error) {
	userID, err := requireUserID(ctx)
	if err != nil {
		return nil, err
	}

	limit, offset := service.ClampPage(input.Limit, input.Offset)
	reports, err := h.auditor.List(ctx, userID, limit, offset)
	if err != nil {
		return nil, serviceError("list aeo reports", err)
	}

	out := &ListAEOReportsOutput{}
	out.Body.Limit = limit
	out.Body.Offset = offset
	out.Body.Reports = make([]AEOReportSummary, 0, len(reports))
	for _, r := range reports {
		s := AEOReportSummary{
			ID:           r.ID,
			URL:          r.URL,
			CustomerName: r.CustomerName,
			Pages:        len(r.Pages),
			HasHTML:      r.HTML != "",
			CreatedAt:    r.CreatedAt,
		}
		if r.Summary != nil {
			s.Insights = len(r.Summary.Insights)
		}
		out.Body.Reports = append(out.Body.Reports, s)
	}
	return out, nil
}

// AEOReportIDInput names one report.
type AEOReportIDInput struct {
	ID string `path:"id" doc:"Report ID"`
}

// GetAEOReport returns one of the caller's reports.
func (h *AEOHandler) GetAEOReport(ctx context.Context, input *AEOReportIDInput) (*AEOReportOutput, error) {
	userID, err := requireUserID(ctx)
	if err != nil {
		return nil, err
	}
	report, err := h.auditor.Get(ctx, userID, input.ID)
	if err != nil {
		return nil, serviceError("get aeo report", err)
	}
	return &AEOReportOutput{Body: report}, nil
}

// CallbackVerifier checks svix signature headers. *service.WebhookService implements it.
type CallbackVerifier interface {
	VerifyCallback(payload []byte, headers http.Header) error
}

// ReportCallbackHandler receives rendered reports from the report pipeline.
type ReportCallbackHandler struct {
	auditor  Auditor
	verifier CallbackVerifier
	logger   *slog.Logger
}

// NewReportCallbackHandler creates a report callback handler.
func NewReportCallbackHandler(auditor Auditor, verifier CallbackVerifier, logger *slog.Logger) *ReportCallbackHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportCallbackHandler{
		auditor:  auditor,
		verifier: verifier,
		logger:   logger.With("component", "report_callback"),
	}
}

type reportCallback struct {
	ReportID string `json:"reportId"`
	HTML     string `json:"html"`
}

// HandleCallback verifies the svix signature and stores the rendered html on the report.
func (h *ReportCallbackHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	const maxBodySize = 5 << 20

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "failed to read body"})
		return
	}

	headers := http.Header{}
	headers.Set("svix-id", r.Header.Get("svix-id"))
	headers.Set("svix-timestamp", r.Header.Get("svix-timestamp"))
	headers.Set("svix-signature", r.Header.Get("svix-signature"))

	if err := h.verifier.VerifyCallback(payload, headers); err != nil {
		h.logger.Warn("failed to verify report callback", "error", err)
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid signature"})
		return
	}

	var cb reportCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	if strings.TrimSpace(cb.ReportID) == "" || cb.HTML == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing reportId or html"})
		return
	}

	if err := h.auditor.AttachHTML(r.Context(), cb.ReportID, cb.HTML); err != nil {
		status := http.StatusInternalServerError
		msg := "failed to store report"
		switch {
		case errors.Is(err, service.ErrReportNotFound):
			status, msg = http.StatusNotFound, "report not found"
		case errors.Is(err, service.ErrReportsUnavailable):
			status, msg = http.StatusServiceUnavailable, "reports are not persisted"
		default:
			h.logger.Error("failed to attach report html", "report_id", cb.ReportID, "error", err)
		}
		writeJSON(w, status, map[string]any{"error": msg})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
