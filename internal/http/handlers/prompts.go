package handlers

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/autoreach-api/internal/models"
)

// PromptGenerator drafts analysis prompts for a company. *service.PromptService implements it.
type PromptGenerator interface {
	Generate(ctx context.Context, company models.Company, competitors []string) []models.BrandPrompt
}

// PromptsHandler exposes prompt generation on its own, so clients can review
// and edit prompts before starting an analysis with customPrompts.
type PromptsHandler struct {
	generator PromptGenerator
}

// NewPromptsHandler creates a prompts handler.
func NewPromptsHandler(generator PromptGenerator) *PromptsHandler {
	return &PromptsHandler{generator: generator}
}

// CompetitorRef is a competitor given either as a bare name or as an object with a name.
type CompetitorRef string

// UnmarshalJSON implements json.Unmarshaler for CompetitorRef.
func (c *CompetitorRef) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*c = CompetitorRef(name)
		return nil
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*c = CompetitorRef(obj.Name)
	return nil
}

// Schema implements huma.SchemaProvider so both accepted shapes validate.
func (CompetitorRef) Schema(huma.Registry) *huma.Schema {
	return &huma.Schema{
		Description: "Competitor name, or an object with a name",
		OneOf: []*huma.Schema{
			{Type: huma.TypeString},
			{
				Type:                 huma.TypeObject,
				Properties:           map[string]*huma.Schema{"name": {Type: huma.TypeString}},
				AdditionalProperties: true,
			},
		},
	}
}

// competitorNames trims refs and drops blanks.
func competitorNames(refs []CompetitorRef) []string {
	names := make([]string, 0, len(refs))
	for _, r := range refs {
		if name := strings.TrimSpace(string(r)); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// GeneratePromptsInput is the prompt generation request.
type GeneratePromptsInput struct {
	Body struct {
		Company     CompanyInput    `json:"company" doc:"Company the prompts are written for"`
		Competitors []CompetitorRef `json:"competitors,omitempty" doc:"Competitors to mention; names or {name} objects"`
	}
}

// GeneratePromptsOutput carries the generated prompts.
type GeneratePromptsOutput struct {
	Body struct {
		Prompts []models.BrandPrompt `json:"prompts"`
	}
}

// GeneratePrompts drafts categorized prompts for the company. Generation
// failures fall back to template prompts, so it only fails on bad input.
func (h *PromptsHandler) GeneratePrompts(ctx context.Context, input *GeneratePromptsInput) (*GeneratePromptsOutput, error) {
	if _, err := requireUserID(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Body.Company.Name) == "" {
		return nil, huma.Error400BadRequest("company name is required")
	}

	out := &GeneratePromptsOutput{}
	out.Body.Prompts = h.generator.Generate(ctx, input.Body.Company.toModel(), competitorNames(input.Body.Competitors))
	if out.Body.Prompts == nil {
		out.Body.Prompts = []models.BrandPrompt{}
	}
	return out, nil
}
