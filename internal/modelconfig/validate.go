package modelconfig

import (
	"fmt"
	"regexp"

	"github.com/wonny/labfolio/backend/internal/contracts"
)

// ValidationError reports the first offending field
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var presetID = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Validate checks all required constraints
func Validate(cfg *Config) error {
	if cfg.Version < 1 {
		return ValidationError{"version", "must be >= 1"}
	}

	// === Defaults ===
	if cfg.Defaults.LookbackDays <= 0 {
		return ValidationError{"defaults.lookback_days", "must be > 0"}
	}
	if cfg.Defaults.Weighting != "value" && cfg.Defaults.Weighting != "fixed" {
		return ValidationError{"defaults.weighting", "must be one of: value, fixed"}
	}
	if cfg.Defaults.MinObservations < 0 {
		return ValidationError{"defaults.min_observations", "must be >= 0"}
	}
	if cfg.Defaults.VaRConfidence <= 0 || cfg.Defaults.VaRConfidence >= 1 {
		return ValidationError{"defaults.var_confidence", "must be in (0, 1)"}
	}

	// === Presets ===
	seen := make(map[string]struct{}, len(cfg.Presets))
	for i, p := range cfg.Presets {
		field := fmt.Sprintf("presets[%d]", i)
		if !presetID.MatchString(p.ID) {
			return ValidationError{field + ".id", fmt.Sprintf("%q must match %s", p.ID, presetID)}
		}
		if _, dup := seen[p.ID]; dup {
			return ValidationError{field + ".id", fmt.Sprintf("%q is defined twice", p.ID)}
		}
		seen[p.ID] = struct{}{}

		if _, err := contracts.NewFactorModelSpec(p.FactorIDs); err != nil {
			return ValidationError{field + ".factor_ids", err.Error()}
		}
	}

	// === Stress scenarios ===
	names := make(map[string]struct{}, len(cfg.Scenarios))
	for i, sc := range cfg.Scenarios {
		field := fmt.Sprintf("scenarios[%d]", i)
		if sc.Name == "" {
			return ValidationError{field + ".name", "is required"}
		}
		if _, dup := names[sc.Name]; dup {
			return ValidationError{field + ".name", fmt.Sprintf("%q is defined twice", sc.Name)}
		}
		names[sc.Name] = struct{}{}
		if len(sc.Shocks) == 0 {
			return ValidationError{field + ".shocks", "must name at least one factor"}
		}
	}

	return nil
}
