package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/whr-oam/coco-cli/internal/config"
	"github.com/whr-oam/coco-cli/internal/fetcher"
	"github.com/whr-oam/coco-cli/internal/model"
	"github.com/whr-oam/coco-cli/internal/pipeline"
	"github.com/whr-oam/coco-cli/internal/resilience"
	"github.com/whr-oam/coco-cli/internal/store"
	"github.com/whr-oam/coco-cli/internal/workbook"
	"github.com/whr-oam/coco-cli/pkg/coco"
)

// appEnv holds the schema, client, store and pipeline shared by commands.
type appEnv struct {
	Schema   *model.Schema
	Client   coco.Client // nil when the engine is disabled
	Store    store.Store // nil when run history is disabled
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv builds the environment from cfg. Callers should defer env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	schema, err := model.LoadSchema(cfg.Schema.File)
	if err != nil {
		return nil, err
	}

	env := &appEnv{Schema: schema}
	if !cfg.Engine.Disabled {
		env.Client = newEngineClient(cfg.Engine)
	}
	if !cfg.Store.Disabled {
		st, err := initStore(ctx)
		if err != nil {
			return nil, err
		}
		env.Store = st
	}
	env.Pipeline = pipeline.New(schema, env.Client, env.Store)
	return env, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	return st, nil
}

func newEngineClient(ec config.EngineConfig) coco.Client {
	return coco.NewClient(
		coco.WithFormURL(ec.FormURL),
		coco.WithEngineURL(ec.EngineURL),
		coco.WithUserAgent(ec.UserAgent),
		coco.WithTimeout(ec.Timeout()),
		coco.WithRetry(resilience.FromRetryConfig(ec.MaxAttempts, ec.RetryDelayMs)),
		coco.WithHealthAttempts(ec.HealthAttempts),
		coco.WithRateLimit(ec.RatePerSec),
		coco.WithStair(ec.Stair),
		coco.WithModel(ec.Model),
		coco.WithButtonLabel(ec.ButtonLabel),
		coco.WithParseThreshold(ec.MinParseRatio, ec.MinParseRows),
	)
}

// loadDataset reads a workbook from a local path or an http(s) URL.
func loadDataset(ctx context.Context, schema *model.Schema, src string) (*workbook.Dataset, error) {
	if !fetcher.IsRemote(src) {
		return workbook.Load(schema, src)
	}
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent: cfg.Engine.UserAgent,
		Timeout:   cfg.Engine.Timeout(),
		Retry:     resilience.FromRetryConfig(cfg.Engine.MaxAttempts, cfg.Engine.RetryDelayMs),
	})
	return workbook.LoadRemote(ctx, f, schema, src)
}
