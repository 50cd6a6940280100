// Package service contains the business logic layer.
// UserID arguments hold the JWT subject of the caller, or "local" when auth is disabled.
package service

import (
	"fmt"
	"log/slog"

	"github.com/jmylchreest/autoreach-api/internal/config"
	"github.com/jmylchreest/autoreach-api/internal/llm"
	"github.com/jmylchreest/autoreach-api/internal/repository"
)

// Services holds all service instances.
type Services struct {
	Registry    *llm.Registry
	Clients     *llm.Clients
	Gateway     *llm.Gateway
	Scraper     *ScraperService
	Competitors *CompetitorService
	Prompts     *PromptService
	Analyzer    *AnalyzerService
	Analysis    *AnalysisService
	Audit       *AuditService
	Storage     *StorageService
	Webhook     *WebhookService

	// Nil when NewServices is given no repositories.
	Job     *JobService
	Cleanup *CleanupService
}

// NewServices creates all service instances. repos may be nil for local
// runs that do not persist anything, in which case Job and Cleanup are nil
// and audits are not stored.
func NewServices(cfg *config.Config, repos *repository.Repositories, logger *slog.Logger) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}

	registry := llm.NewRegistry(cfg.Providers)
	clients := llm.NewClients(registry)
	gateway := llm.NewGateway(clients, cfg.Providers, logger)

	storageSvc, err := NewStorageService(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage service: %w", err)
	}

	webhookCfg := WebhookServiceConfig{
		URL:    cfg.WebhookURL,
		Secret: cfg.WebhookSecret,
		Logger: logger,
	}
	if repos != nil {
		webhookCfg.Deliveries = repos.WebhookDelivery
	}
	webhookSvc, err := NewWebhookService(webhookCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook service: %w", err)
	}

	competitorSvc := NewCompetitorService(gateway, logger)
	promptSvc := NewPromptService(gateway, cfg.Analysis.PromptCap, logger)
	analyzerSvc := NewAnalyzerService(clients, gateway, logger)

	analysisSvc := NewAnalysisService(AnalysisServiceConfig{
		Providers:   registry,
		Competitors: competitorSvc,
		Prompts:     promptSvc,
		Analyzer:    analyzerSvc,
		BatchSize:   cfg.Analysis.BatchSize,
		Cooldown:    NewCooldownPolicy(cfg.Analysis),
		MockMode:    cfg.Analysis.MockMode,
		Logger:      logger,
	})

	scraperSvc := NewScraperService(ScraperServiceConfig{
		Gateway:     gateway,
		Competitors: competitorSvc,
		Logger:      logger,
	})

	auditCfg := AuditServiceConfig{
		Sitemaps:        NewSitemapService(nil, logger),
		Gateway:         gateway,
		Archive:         storageSvc,
		Notifier:        webhookSvc,
		DefaultMaxPages: cfg.Analysis.AEOMaxPages,
		Logger:          logger,
	}
	if repos != nil {
		auditCfg.Reports = repos.AEOReport
	}

	svcs := &Services{
		Registry:    registry,
		Clients:     clients,
		Gateway:     gateway,
		Scraper:     scraperSvc,
		Competitors: competitorSvc,
		Prompts:     promptSvc,
		Analyzer:    analyzerSvc,
		Analysis:    analysisSvc,
		Audit:       NewAuditService(auditCfg),
		Storage:     storageSvc,
		Webhook:     webhookSvc,
	}

	if repos != nil {
		svcs.Job = NewJobService(cfg, repos, logger)
		svcs.Job.SetCompletionHooks(storageSvc, webhookSvc)
		svcs.Cleanup = NewCleanupService(CleanupServiceConfig{
			Repos:     repos,
			Archive:   storageSvc,
			Retention: cfg.Retention,
			Logger:    logger,
		})
	}

	return svcs, nil
}
