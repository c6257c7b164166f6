package main

import (
	"fmt"
	"time"

	"github.com/rowanhealth/clinsight/internal/config"
	"github.com/rowanhealth/clinsight/internal/history"
	"github.com/rowanhealth/clinsight/internal/pipeline"
	"github.com/rowanhealth/clinsight/internal/reasoning"
	"github.com/rowanhealth/clinsight/internal/retry"
	"github.com/rowanhealth/clinsight/internal/store"
)

// loadConfig loads .clinsight.yaml from the working directory upward and
// applies CLI flag overrides.
func loadConfig(dbOverride, endpointOverride string, localOverride bool) (*config.Config, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, err
	}
	if dbOverride != "" {
		cfg.Database.Path = dbOverride
	}
	if endpointOverride != "" {
		cfg.Reasoning.Endpoint = endpointOverride
	}
	if localOverride {
		t := true
		cfg.Reasoning.Local = &t
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", cfg.Database.Path, err)
	}
	return st, nil
}

func buildClient(cfg *config.Config) reasoning.Client {
	if cfg.Reasoning.Local != nil && *cfg.Reasoning.Local {
		return reasoning.NewLocalClient()
	}
	return reasoning.NewHTTPClient(cfg.Reasoning.Endpoint,
		reasoning.WithHTTPTimeout(time.Duration(cfg.Reasoning.Timeout)*time.Second))
}

func buildRunner(cfg *config.Config, st store.Store, client reasoning.Client) *pipeline.Runner {
	exec := retry.NewExecutor(retry.Policy{
		MaxTries:  cfg.Retry.MaxTries,
		BaseDelay: time.Duration(cfg.Retry.BaseDelay) * time.Second,
	}, st, nil)

	assembler := history.New(st,
		history.WithMaxPriorSessions(cfg.History.MaxPriorSessions),
		history.WithTrendWindow(time.Duration(cfg.History.TrendWindowDays)*24*time.Hour))

	return pipeline.NewRunner(st, client, exec, assembler,
		pipeline.WithStageTimeout(time.Duration(cfg.Pipeline.StageTimeout)*time.Second),
		pipeline.WithRunBudget(time.Duration(cfg.Pipeline.RunBudget)*time.Second))
}
