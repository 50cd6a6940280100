package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

// ========================================
// FlexInt Tests
// ========================================

func TestFlexInt_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  FlexInt
	}{
		{"number", `42`, 42},
		{"string", `"123"`, 123},
		{"empty string", `""`, 0},
		{"invalid string", `"first"`, 0},
		{"null", `null`, 0},
		{"negative", `-5`, -5},
		{"negative string", `"-7"`, -7},
		{"hash prefixed", `"#3"`, 3},
		{"float", `2.0`, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f FlexInt
			if err := json.Unmarshal([]byte(tt.input), &f); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if f != tt.want {
				t.Errorf("FlexInt = %d, want %d", f, tt.want)
			}
		})
	}
}

func TestFlexInt_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(FlexInt(99))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "99" {
		t.Errorf("MarshalJSON() = %s, want 99", data)
	}
}

func TestFlexInt_InStruct(t *testing.T) {
	var s AEOScore
	data := `{"structuredCoverage":"70","unstructuredCoverage":40,"optimizationOpportunities":null,"overallAEOReadiness":"55"}`
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.StructuredCoverage.Int() != 70 || s.UnstructuredCoverage.Int() != 40 || s.OptimizationOpportunities.Int() != 0 || s.OverallAEOReadiness.Int() != 55 {
		t.Errorf("AEOScore = %+v", s)
	}
}

// ========================================
// FlexFloat / FlexBool Tests
// ========================================

func TestFlexFloat_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{`0.85`, 0.85},
		{`"0.5"`, 0.5},
		{`"80%"`, 80},
		{`"high"`, 0},
		{`null`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var f FlexFloat
			if err := json.Unmarshal([]byte(tt.input), &f); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if f.Float() != tt.want {
				t.Errorf("FlexFloat = %v, want %v", f.Float(), tt.want)
			}
		})
	}
}

func TestFlexBool_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		input string
		want  FlexBool
	}{
		{`true`, true},
		{`false`, false},
		{`"yes"`, true},
		{`"True"`, true},
		{`"no"`, false},
		{`1`, true},
		{`0`, false},
		{`null`, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var b FlexBool
			if err := json.Unmarshal([]byte(tt.input), &b); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if b != tt.want {
				t.Errorf("FlexBool = %v, want %v", b, tt.want)
			}
		})
	}
}

// ========================================
// Wire Shape Tests
// ========================================

func TestSSEEvent_MarshalJSON(t *testing.T) {
	ev := SSEEvent{
		Type:      EventProgress,
		Stage:     StageAnalyzingPrompts,
		Data:      ProgressData{Stage: StageAnalyzingPrompts, Progress: 50, Message: "Completed 2 of 4 analyses"},
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := string(data)
	for _, want := range []string{
		`"type":"progress"`,
		`"stage":"analyzing-prompts"`,
		`"progress":50`,
		`"timestamp":"2026-01-02T03:04:05Z"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("SSEEvent JSON = %s, missing %s", got, want)
		}
	}
}

func TestAnalysisResult_OmitsEmptyErrors(t *testing.T) {
	data, err := json.Marshal(AnalysisResult{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(string(data), `"errors"`) {
		t.Errorf("empty errors should be omitted, got %s", data)
	}

	data, _ = json.Marshal(AnalysisResult{Errors: []string{"openai: boom"}})
	if !strings.Contains(string(data), `"errors":["openai: boom"]`) {
		t.Errorf("errors should be present, got %s", data)
	}
}

func TestAnalysisProgressData_FieldNames(t *testing.T) {
	data, _ := json.Marshal(AnalysisProgressData{Provider: "openai", Prompt: "p", PromptIndex: 1, TotalPrompts: 4, TotalProviders: 2, Status: PairStarted})
	want := `{"provider":"openai","prompt":"p","promptIndex":1,"totalPrompts":4,"providerIndex":0,"totalProviders":2,"status":"started"}`
	if string(data) != want {
		t.Errorf("AnalysisProgressData JSON = %s, want %s", data, want)
	}
}

// ========================================
// Constants Tests
// ========================================

func TestJobStatus_Constants(t *testing.T) {
	tests := []struct {
		status JobStatus
		want   string
	}{
		{JobStatusPending, "pending"},
		{JobStatusRunning, "running"},
		{JobStatusCompleted, "completed"},
		{JobStatusFailed, "failed"},
	}

	for _, tt := range tests {
		if string(tt.status) != tt.want {
			t.Errorf("JobStatus = %q, want %q", tt.status, tt.want)
		}
	}
}

func TestGeneratedCategories(t *testing.T) {
	want := []PromptCategory{CategoryRanking, CategoryComparison, CategoryAlternatives, CategoryRecommendations}
	if len(GeneratedCategories) != len(want) {
		t.Fatalf("GeneratedCategories = %v, want %v", GeneratedCategories, want)
	}
	for i := range want {
		if GeneratedCategories[i] != want[i] {
			t.Errorf("GeneratedCategories[%d] = %q, want %q", i, GeneratedCategories[i], want[i])
		}
	}
}
