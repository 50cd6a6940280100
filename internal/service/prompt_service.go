package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmylchreest/autoreach-api/internal/llm"
	"github.com/jmylchreest/autoreach-api/internal/models"
)

// PromptsPerCategory is the number of prompts requested per category.
const PromptsPerCategory = 3

// PromptService builds the analysis prompts for a company.
type PromptService struct {
	gateway llm.JSONCaller
	cap     int
	logger  *slog.Logger
}

// NewPromptService creates a prompt service. Generated prompts are truncated
// to promptCap; a non-positive cap keeps all of them.
func NewPromptService(gateway llm.JSONCaller, promptCap int, logger *slog.Logger) *PromptService {
	return &PromptService{
		gateway: gateway,
		cap:     promptCap,
		logger:  logger.With("component", "prompts"),
	}
}

// Build returns the custom prompts when any are given, and generated ones otherwise.
func (s *PromptService) Build(ctx context.Context, company models.Company, competitors []string, custom []string) []models.BrandPrompt {
	if prompts := CustomPrompts(custom); len(prompts) > 0 {
		return prompts
	}
	prompts := s.Generate(ctx, company, competitors)
	if s.cap > 0 && len(prompts) > s.cap {
		prompts = prompts[:s.cap]
	}
	return prompts
}

// CustomPrompts wraps caller-supplied prompts as custom-0..N-1, dropping blanks.
func CustomPrompts(custom []string) []models.BrandPrompt {
	var out []models.BrandPrompt
	for _, p := range custom {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, models.BrandPrompt{
			ID:       fmt.Sprintf("custom-%d", len(out)),
			Prompt:   p,
			Category: models.CategoryCustom,
		})
	}
	return out
}

// Generate asks the gateway for categorized prompts and falls back to
// templates when generation fails or yields nothing usable.
func (s *PromptService) Generate(ctx context.Context, company models.Company, competitors []string) []models.BrandPrompt {
	res := s.gateway.CallJSON(ctx, promptGenerationPrompt(company, competitors), "")
	if !res.OK {
		s.logger.Warn("prompt generation failed, using templates", "company", company.Name, "error", res.Error)
		return TemplatePrompts(company, competitors)
	}

	var raw []struct {
		Prompt   string `json:"prompt"`
		Category string `json:"category"`
	}
	if err := llm.ParseJSONList(res.Content, &raw); err != nil {
		s.logger.Warn("prompt generation returned invalid JSON, using templates", "company", company.Name, "error", err)
		return TemplatePrompts(company, competitors)
	}

	candidates := make([]models.BrandPrompt, 0, len(raw))
	for _, r := range raw {
		candidates = append(candidates, models.BrandPrompt{
			Prompt:   r.Prompt,
			Category: models.PromptCategory(strings.ToLower(strings.TrimSpace(r.Category))),
		})
	}

	prompts := ValidatePrompts(candidates, company.Name)
	if len(prompts) == 0 {
		s.logger.Warn("prompt generation produced no valid prompts, using templates", "company", company.Name)
		return TemplatePrompts(company, competitors)
	}
	return prompts
}

// ValidatePrompts drops prompts with unknown categories, prompts naming the
// brand and duplicates, then assigns {category}-{n} IDs.
func ValidatePrompts(candidates []models.BrandPrompt, brand string) []models.BrandPrompt {
	known := make(map[models.PromptCategory]bool, len(models.GeneratedCategories))
	for _, c := range models.GeneratedCategories {
		known[c] = true
	}

	brandKey := strings.ToLower(strings.TrimSpace(brand))
	seen := make(map[string]bool)
	counts := make(map[models.PromptCategory]int)
	var out []models.BrandPrompt

	for _, c := range candidates {
		text := strings.TrimSpace(c.Prompt)
		if text == "" || !known[c.Category] {
			continue
		}
		key := strings.ToLower(text)
		if brandKey != "" && strings.Contains(key, brandKey) {
			continue
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		counts[c.Category]++
		out = append(out, models.BrandPrompt{
			ID:       fmt.Sprintf("%s-%d", c.Category, counts[c.Category]),
			Prompt:   text,
			Category: c.Category,
		})
	}
	return out
}

// TemplatePrompts builds one deterministic prompt per category.
func TemplatePrompts(company models.Company, competitors []string) []models.BrandPrompt {
	industry := strings.TrimSpace(company.Industry)
	if industry == "" {
		industry = DetectServiceType(company)
	}

	subject := industry
	if company.ScrapedData != nil && len(company.ScrapedData.MainProducts) > 0 {
		if p := strings.TrimSpace(company.ScrapedData.MainProducts[0]); p != "" {
			subject = p
		}
	}

	rival := ""
	for _, c := range competitors {
		if !strings.EqualFold(c, company.Name) && strings.TrimSpace(c) != "" {
			rival = strings.TrimSpace(c)
			break
		}
	}

	alternatives := fmt.Sprintf("What are some good alternatives to the most popular %s providers?", industry)
	comparison := fmt.Sprintf("How do the leading %s providers compare on features and pricing?", industry)
	if rival != "" {
		alternatives = fmt.Sprintf("What are the best alternatives to %s?", rival)
		comparison = fmt.Sprintf("How does %s compare to other %s providers?", rival, industry)
	}

	candidates := []models.BrandPrompt{
		{Category: models.CategoryRanking, Prompt: fmt.Sprintf("What are the top %s options available right now?", subject)},
		{Category: models.CategoryComparison, Prompt: comparison},
		{Category: models.CategoryAlternatives, Prompt: alternatives},
		{Category: models.CategoryRecommendations, Prompt: fmt.Sprintf("Which %s would you recommend for a growing business?", subject)},
	}
	return ValidatePrompts(candidates, company.Name)
}

func promptGenerationPrompt(company models.Company, competitors []string) string {
	var keywords, products []string
	if company.ScrapedData != nil {
		keywords = company.ScrapedData.Keywords
		products = company.ScrapedData.MainProducts
	}

	return fmt.Sprintf(`You are a marketing prompt generator that creates AEO (AI Engine Optimization)
and GEO (Generative Engine Optimization) prompts for brands.

Given a company's data, generate natural search-style queries that people
might use to find or compare this brand.

Create %d prompts for each of these categories:
- ranking
- comparison
- alternatives
- recommendations

Rules:
- DO NOT USE THE NAME OF THE BRAND IN THE PROMPTS YOU WILL BE GENERATING
- Focus on the company's main products, industry, keywords, and competitors
- Make prompts relevant to the brand's specific market and offerings
- Use natural language people would actually search for
- Avoid generic terms like "best company" or "top brand"
- Do not compare competitors against each other, only against the brand

Company Info:
Name: %s
Industry: %s
Main Products: %s
Keywords: %s
Description: %s
Competitors: %s

Return ONLY a JSON array of objects in this exact format:
[{"prompt": "query text", "category": "ranking"}]`,
		PromptsPerCategory,
		company.Name,
		company.Industry,
		strings.Join(products, ", "),
		strings.Join(keywords, ", "),
		company.Description,
		strings.Join(competitors, ", "),
	)
}
