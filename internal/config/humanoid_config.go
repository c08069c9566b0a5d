// File: internal/config/humanoid_config.go
package config

import "github.com/spf13/viper"

// HumanoidConfig holds the tunable parameters for cursor motion in the
// browser backend. Movement follows a Bezier path whose duration is derived
// from Fitts's law.
type HumanoidConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Fitts's law coefficients, in milliseconds.
	FittsA float64 `mapstructure:"fitts_a" yaml:"fitts_a"`
	FittsB float64 `mapstructure:"fitts_b" yaml:"fitts_b"`
	// Lateral deviation of the control points as a fraction of distance.
	Curvature float64 `mapstructure:"curvature" yaml:"curvature"`
	// Number of intermediate pointer events per movement.
	Steps int `mapstructure:"steps" yaml:"steps"`
	// Extra duration jitter, as a fraction (0.15 = +/-15%).
	Jitter float64 `mapstructure:"jitter" yaml:"jitter"`
}

func setHumanoidDefaults(v *viper.Viper) {
	v.SetDefault("backend.browser.humanoid.enabled", true)
	v.SetDefault("backend.browser.humanoid.fitts_a", 100.0)
	v.SetDefault("backend.browser.humanoid.fitts_b", 150.0)
	v.SetDefault("backend.browser.humanoid.curvature", 0.15)
	v.SetDefault("backend.browser.humanoid.steps", 24)
	v.SetDefault("backend.browser.humanoid.jitter", 0.15)
}
