package handlers

import (
	"context"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/autoreach-api/internal/models"
	"github.com/jmylchreest/autoreach-api/internal/service"
)

// CompanyInput is a company profile supplied by the client, usually the
// output of POST /api/v1/scrape.
type CompanyInput struct {
	ID          string              `json:"id,omitempty" doc:"Company ID; generated when omitted"`
	URL         string              `json:"url,omitempty" doc:"Company website"`
	Name        string              `json:"name" minLength:"1" doc:"Brand name searched for in AI answers"`
	Description string              `json:"description,omitempty"`
	Industry    string              `json:"industry,omitempty"`
	Logo        string              `json:"logo,omitempty"`
	Favicon     string              `json:"favicon,omitempty"`
	Scraped     bool                `json:"scraped,omitempty"`
	ScrapedData *models.ScrapedData `json:"scrapedData,omitempty"`
}

func (c *CompanyInput) toModel() models.Company {
	id := c.ID
	if id == "" {
		id = ulid.Make().String()
	}
	return models.Company{
		ID:          id,
		URL:         strings.TrimSpace(c.URL),
		Name:        strings.TrimSpace(c.Name),
		Description: c.Description,
		Industry:    c.Industry,
		Logo:        c.Logo,
		Favicon:     c.Favicon,
		Scraped:     c.Scraped,
		ScrapedData: c.ScrapedData,
	}
}

// AnalysisRequestBody starts a brand analysis. Either company or url is required.
type AnalysisRequestBody struct {
	Company       *CompanyInput             `json:"company,omitempty" doc:"Company to analyze; takes precedence over url"`
	URL           string                    `json:"url,omitempty" doc:"Company website to scrape when company is omitted"`
	CustomPrompts []string                  `json:"customPrompts,omitempty" doc:"Prompts to ask instead of generated ones"`
	Competitors   []models.CompetitorDetail `json:"competitors,omitempty" doc:"Competitors to track in addition to detected ones"`
	UseWebSearch  bool                      `json:"useWebSearch,omitempty" doc:"Ask providers with URL hints for web-search style answers"`
}

// resolveAnalysisRequest turns a request body into an AnalysisRequest,
// scraping the company when only a URL is given.
func resolveAnalysisRequest(ctx context.Context, scraper CompanyScraper, body AnalysisRequestBody) (models.AnalysisRequest, error) {
	req := models.AnalysisRequest{
		CustomPrompts:           body.CustomPrompts,
		UserSelectedCompetitors: service.SanitizeCompetitors(body.Competitors),
		UseWebSearch:            body.UseWebSearch,
	}

	switch {
	case body.Company != nil && strings.TrimSpace(body.Company.Name) != "":
		req.Company = body.Company.toModel()
	case strings.TrimSpace(body.URL) != "" && scraper != nil:
		company, err := scraper.ScrapeCompany(ctx, body.URL)
		if err != nil {
			return req, err
		}
		req.Company = *company
	default:
		return req, service.ErrInvalidAnalysisRequest
	}
	return req, nil
}
