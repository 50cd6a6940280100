package handlers

import (
	"context"

	"github.com/jmylchreest/autoreach-api/internal/models"
)

// CompanyScraper builds a company profile from a URL. *service.ScraperService implements it.
type CompanyScraper interface {
	ScrapeCompany(ctx context.Context, rawURL string) (*models.Company, error)
}

// ScrapeHandler handles company scraping.
type ScrapeHandler struct {
	scraper CompanyScraper
}

// NewScrapeHandler creates a scrape handler.
func NewScrapeHandler(scraper CompanyScraper) *ScrapeHandler {
	return &ScrapeHandler{scraper: scraper}
}

// ScrapeInput is the scrape request.
type ScrapeInput struct {
	Body struct {
		URL string `json:"url" minLength:"1" doc:"Company website; https:// is assumed when no scheme is given"`
	}
}

// ScrapeOutput is the scraped company.
type ScrapeOutput struct {
	Body *models.Company
}

// Scrape fetches the site and extracts a company profile. Unreachable or
// blocked sites yield a fallback profile with scraped=false.
func (h *ScrapeHandler) Scrape(ctx context.Context, input *ScrapeInput) (*ScrapeOutput, error) {
	if _, err := requireUserID(ctx); err != nil {
		return nil, err
	}
	company, err := h.scraper.ScrapeCompany(ctx, input.Body.URL)
	if err != nil {
		return nil, serviceError("scrape company", err)
	}
	return &ScrapeOutput{Body: company}, nil
}
