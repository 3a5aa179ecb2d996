// Package modelfactory selects and constructs a judge model.Client from
// config, wiring together the anthropicmodel and openaimodel adapters. It
// lives apart from package model to avoid a model -> adapter -> model
// import cycle.
package modelfactory

import (
	"fmt"
	"os"

	"github.com/agentruntime/core/config"
	"github.com/agentruntime/core/model"
	"github.com/agentruntime/core/model/anthropicmodel"
	"github.com/agentruntime/core/model/openaimodel"
)

// New selects and constructs the judge Client named by cfg, reading the
// backend's API key from its conventional environment variable (spec.md
// §4.5 Extraction judge; SPEC_FULL.md §6 `model.judge.backend`).
func New(cfg config.Model) (model.Client, error) {
	switch cfg.JudgeBackend {
	case "", "anthropic":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		modelID := cfg.JudgeModel
		if modelID == "" {
			modelID = "claude-3-5-haiku-latest"
		}
		return anthropicmodel.NewFromAPIKey(apiKey, modelID)
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		modelID := cfg.JudgeModel
		if modelID == "" {
			modelID = "gpt-4o-mini"
		}
		return openaimodel.NewFromAPIKey(apiKey, modelID)
	default:
		return nil, fmt.Errorf("modelfactory: unknown judge backend %q", cfg.JudgeBackend)
	}
}
