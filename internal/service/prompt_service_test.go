package service

import (
	"context"
	"strings"
	"testing"

	"github.com/jmylchreest/autoreach-api/internal/models"
)

func TestCustomPrompts(t *testing.T) {
	got := CustomPrompts([]string{" first ", "", "  ", "second"})
	if len(got) != 2 {
		t.Fatalf("CustomPrompts() returned %d prompts, want 2", len(got))
	}
	if got[0].ID != "custom-0" || got[0].Prompt != "first" || got[0].Category != models.CategoryCustom {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[1].ID != "custom-1" || got[1].Prompt != "second" {
		t.Errorf("got[1] = %+v", got[1])
	}
}

func TestValidatePrompts(t *testing.T) {
	candidates := []models.BrandPrompt{
		{Prompt: "Best web scrapers?", Category: models.CategoryRanking},
		{Prompt: "Is Acme any good?", Category: models.CategoryRanking},
		{Prompt: "best web scrapers?", Category: models.CategoryRanking},
		{Prompt: "Scraper for startups", Category: models.CategoryRecommendations},
		{Prompt: "Top APIs", Category: "bogus"},
		{Prompt: "   ", Category: models.CategoryComparison},
		{Prompt: "Top scraping APIs ranked", Category: models.CategoryRanking},
	}

	got := ValidatePrompts(candidates, "ACME")
	want := []models.BrandPrompt{
		{ID: "ranking-1", Prompt: "Best web scrapers?", Category: models.CategoryRanking},
		{ID: "recommendations-1", Prompt: "Scraper for startups", Category: models.CategoryRecommendations},
		{ID: "ranking-2", Prompt: "Top scraping APIs ranked", Category: models.CategoryRanking},
	}
	if len(got) != len(want) {
		t.Fatalf("ValidatePrompts() = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ValidatePrompts()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestTemplatePrompts(t *testing.T) {
	company := models.Company{
		Name:        "Acme",
		Industry:    "web scraping",
		ScrapedData: &models.ScrapedData{MainProducts: []string{"scraping API"}},
	}

	got := TemplatePrompts(company, []string{"acme", "Apify"})
	if len(got) != 4 {
		t.Fatalf("TemplatePrompts() returned %d prompts, want 4", len(got))
	}

	seen := make(map[models.PromptCategory]bool)
	for _, p := range got {
		seen[p.Category] = true
		if strings.Contains(strings.ToLower(p.Prompt), "acme") {
			t.Errorf("prompt %q names the brand", p.Prompt)
		}
		if p.ID != string(p.Category)+"-1" {
			t.Errorf("prompt ID = %q, want %s-1", p.ID, p.Category)
		}
	}
	for _, c := range models.GeneratedCategories {
		if !seen[c] {
			t.Errorf("missing category %q", c)
		}
	}
	if !strings.Contains(got[2].Prompt, "Apify") {
		t.Errorf("alternatives prompt = %q, want it to name the rival", got[2].Prompt)
	}
	if !strings.Contains(got[0].Prompt, "scraping API") {
		t.Errorf("ranking prompt = %q, want main product", got[0].Prompt)
	}
}

func TestTemplatePrompts_Deterministic(t *testing.T) {
	company := models.Company{Name: "Acme", Description: "SaaS for teams"}
	a := TemplatePrompts(company, nil)
	b := TemplatePrompts(company, nil)
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("TemplatePrompts() not deterministic at %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestPromptService_Build(t *testing.T) {
	generated := `[
		{"prompt": "Top scraping tools", "category": "ranking"},
		{"prompt": "Scrapers compared", "category": "Comparison"},
		{"prompt": "Apify alternatives", "category": "alternatives"},
		{"prompt": "Recommend a scraper", "category": "recommendations"},
		{"prompt": "Scraper for agencies", "category": "recommendations"}
	]`

	tests := []struct {
		name      string
		answer    string
		cap       int
		custom    []string
		wantCount int
		wantCalls int
		wantFirst string
	}{
		{name: "custom wins", answer: generated, cap: 1, custom: []string{"a", "b", "c"}, wantCount: 3, wantCalls: 0, wantFirst: "custom-0"},
		{name: "generated capped", answer: generated, cap: 3, wantCount: 3, wantCalls: 1, wantFirst: "ranking-1"},
		{name: "generated uncapped", answer: generated, cap: 0, wantCount: 5, wantCalls: 1, wantFirst: "ranking-1"},
		{name: "template fallback", answer: "sorry", cap: 10, wantCount: 4, wantCalls: 1, wantFirst: "ranking-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &stubGateway{answer: okJSON(tt.answer)}
			svc := NewPromptService(gw, tt.cap, testLogger())

			got := svc.Build(context.Background(), models.Company{Name: "Acme"}, []string{"Apify"}, tt.custom)
			if len(got) != tt.wantCount {
				t.Errorf("Build() returned %d prompts, want %d", len(got), tt.wantCount)
			}
			if gw.calls() != tt.wantCalls {
				t.Errorf("gateway calls = %d, want %d", gw.calls(), tt.wantCalls)
			}
			if len(got) > 0 && got[0].ID != tt.wantFirst {
				t.Errorf("first prompt ID = %q, want %q", got[0].ID, tt.wantFirst)
			}
		})
	}
}

func TestPromptService_Generate_ObjectWrapped(t *testing.T) {
	gw := &stubGateway{answer: okJSON(`{"prompts":[{"prompt":"best scraping tools","category":"ranking"}]}`)}
	svc := NewPromptService(gw, 0, testLogger())

	got := svc.Generate(context.Background(), models.Company{Name: "Acme"}, []string{"Apify"})
	if len(got) != 1 {
		t.Fatalf("Generate() returned %d prompts, want 1", len(got))
	}
	if got[0].Prompt != "best scraping tools" || got[0].ID != "ranking-1" {
		t.Errorf("Generate()[0] = %+v", got[0])
	}
}

func TestPromptService_Generate_GatewayFailure(t *testing.T) {
	svc := NewPromptService(&stubGateway{}, 0, testLogger())

	got := svc.Generate(context.Background(), models.Company{Name: "Acme", Industry: "CRM"}, nil)
	if len(got) != 4 {
		t.Fatalf("Generate() returned %d prompts, want 4 template prompts", len(got))
	}
	if !strings.Contains(got[0].Prompt, "CRM") {
		t.Errorf("Generate()[0] = %q, want industry in template", got[0].Prompt)
	}
}
