package modelconfig

import (
	"github.com/wonny/labfolio/backend/internal/contracts"
	"github.com/wonny/labfolio/backend/pkg/config"
)

// Config is the factor model presets file
// ⭐ SSOT: presets and per-analysis defaults come from this YAML only
type Config struct {
	Version   int                  `yaml:"version" json:"version"`
	Defaults  Defaults             `yaml:"defaults" json:"defaults"`
	Presets   []Preset             `yaml:"presets" json:"presets"`
	Scenarios []contracts.Scenario `yaml:"scenarios" json:"scenarios,omitempty"`
}

// Defaults applies to requests that omit the corresponding field
type Defaults struct {
	LookbackDays    int     `yaml:"lookback_days" json:"lookback_days"`
	Weighting       string  `yaml:"weighting" json:"weighting"`
	MinObservations int     `yaml:"min_observations" json:"min_observations"`
	VaRConfidence   float64 `yaml:"var_confidence" json:"var_confidence"`
}

// Preset is a named factor model
type Preset struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	FactorIDs   []string `yaml:"factor_ids" json:"factor_ids"`
}

// Default returns the built-in configuration used when no file is present
func Default() *Config {
	return &Config{
		Version: 1,
		Defaults: Defaults{
			LookbackDays:  365,
			Weighting:     "value",
			VaRConfidence: 0.95,
		},
	}
}

// FromEnv builds a preset-less configuration from the process settings
func FromEnv(cfg *config.Config) *Config {
	return &Config{
		Version: 1,
		Defaults: Defaults{
			LookbackDays:    cfg.Analysis.LookbackDays,
			Weighting:       cfg.Analysis.Weighting,
			MinObservations: cfg.Analysis.MinObservations,
			VaRConfidence:   0.95,
		},
	}
}

// Preset looks up a preset by id
func (c *Config) Preset(id string) (Preset, bool) {
	for _, p := range c.Presets {
		if p.ID == id {
			return p, true
		}
	}
	return Preset{}, false
}
