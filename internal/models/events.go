package models

import "time"

// EventType is the SSE event name.
type EventType string

const (
	EventStart            EventType = "start"
	EventStage            EventType = "stage"
	EventCompetitorFound  EventType = "competitor-found"
	EventPromptGenerated  EventType = "prompt-generated"
	EventAnalysisStart    EventType = "analysis-start"
	EventPartialResult    EventType = "partial-result"
	EventAnalysisComplete EventType = "analysis-complete"
	EventProgress         EventType = "progress"
	EventScoringStart     EventType = "scoring-start"
	EventComplete         EventType = "complete"
	EventError            EventType = "error"
)

// Stage is a step of the analysis state machine.
type Stage string

const (
	StageInitializing           Stage = "initializing"
	StageIdentifyingCompetitors Stage = "identifying-competitors"
	StageGeneratingPrompts      Stage = "generating-prompts"
	StageAnalyzingPrompts       Stage = "analyzing-prompts"
	StageCalculatingScores      Stage = "calculating-scores"
	StageFinalizing             Stage = "finalizing"
)

// AnalysisStatus values carried by analysis-start and analysis-complete events.
const (
	PairStarted   = "started"
	PairCompleted = "completed"
	PairFailed    = "failed"
)

// SSEEvent is one progress event streamed to the client.
type SSEEvent struct {
	Type      EventType `json:"type"`
	Stage     Stage     `json:"stage"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// ProgressData is the payload of start, stage and progress events.
type ProgressData struct {
	Stage    Stage  `json:"stage,omitempty"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
}

// CompetitorFoundData is the payload of competitor-found events.
type CompetitorFoundData struct {
	Competitor string `json:"competitor"`
	Index      int    `json:"index"`
	Total      int    `json:"total"`
}

// PromptGeneratedData is the payload of prompt-generated events.
type PromptGeneratedData struct {
	Prompt   string         `json:"prompt"`
	Category PromptCategory `json:"category"`
	Index    int            `json:"index"`
	Total    int            `json:"total"`
}

// AnalysisProgressData is the payload of analysis-start and analysis-complete events.
type AnalysisProgressData struct {
	Provider       string `json:"provider"`
	Prompt         string `json:"prompt"`
	PromptIndex    int    `json:"promptIndex"`
	TotalPrompts   int    `json:"totalPrompts"`
	ProviderIndex  int    `json:"providerIndex"`
	TotalProviders int    `json:"totalProviders"`
	Status         string `json:"status"`
}

// PartialResponse is the condensed AIResponse sent with partial-result events.
type PartialResponse struct {
	Provider       string    `json:"provider"`
	BrandMentioned bool      `json:"brandMentioned"`
	BrandPosition  *int      `json:"brandPosition,omitempty"`
	Sentiment      Sentiment `json:"sentiment"`
}

// PartialResultData is the payload of partial-result events.
type PartialResultData struct {
	Provider string          `json:"provider"`
	Prompt   string          `json:"prompt"`
	Response PartialResponse `json:"response"`
}

// ScoringProgressData is the payload of scoring-start events.
type ScoringProgressData struct {
	Competitor string  `json:"competitor"`
	Score      float64 `json:"score"`
	Index      int     `json:"index"`
	Total      int     `json:"total"`
}

// CompleteData is the payload of the terminal complete event.
type CompleteData struct {
	AnalysisID string          `json:"analysisId,omitempty"`
	Analysis   *AnalysisResult `json:"analysis"`
}

// ErrorData is the payload of error events.
type ErrorData struct {
	Message string `json:"message"`
}
