package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/vialcheck/vialcheck-cli/internal/crawler"
	"github.com/vialcheck/vialcheck-cli/internal/extract"
	"github.com/vialcheck/vialcheck-cli/internal/fetcher"
	"github.com/vialcheck/vialcheck-cli/internal/pipeline"
	"github.com/vialcheck/vialcheck-cli/internal/store"
)

// initStore opens and migrates the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initCrawler builds the crawler on a shared rate-limited fetcher.
func initCrawler() *crawler.Crawler {
	fetch := fetcher.New(fetcher.Options{
		UserAgent:       cfg.Crawl.UserAgent,
		MaxRetries:      cfg.Crawl.MaxRetries,
		RequestInterval: cfg.Crawl.RequestInterval(),
	})
	return crawler.New(fetch, crawler.Options{
		BaseURL:       cfg.Crawl.BaseURL,
		MaxPages:      cfg.Crawl.MaxPages,
		MaxItems:      cfg.Crawl.MaxItems,
		ImageDir:      cfg.Crawl.ImageDir,
		MaxConcurrent: cfg.Crawl.MaxConcurrent,
	})
}

// initExtractor builds the configured vision backend behind an rpm-limited
// orchestrator.
func initExtractor(ctx context.Context) (*extract.Orchestrator, error) {
	backend, err := extract.New(ctx, extract.Config{
		Provider:        cfg.Extract.Provider,
		Model:           cfg.Extract.Model,
		OpenAIAPIKey:    cfg.Extract.OpenAIAPIKey,
		AnthropicAPIKey: cfg.Extract.AnthropicAPIKey,
		GoogleAPIKey:    cfg.Extract.GoogleAPIKey,
		OllamaBaseURL:   cfg.Extract.OllamaBaseURL,
	})
	if err != nil {
		return nil, eris.Wrap(err, "init extraction backend")
	}
	return extract.NewOrchestrator(backend, cfg.Extract.RPM, cfg.Extract.MaxConcurrent), nil
}

// pipelineEnv holds the store and pipeline shared by run and serve.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline sets up the store, crawler, and extraction backend, and
// builds the Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	orch, err := initExtractor(ctx)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &pipelineEnv{
		Store:    st,
		Pipeline: pipeline.New(initCrawler(), orch, st, cfg.Score.RecentWindowDays),
	}, nil
}
