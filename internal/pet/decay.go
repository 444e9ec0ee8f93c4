// Time-based gauge decay: pure conversion of elapsed wall-clock time into
// attribute drift. Satiety, energy and mood fall; boredom climbs.
package pet

import (
	"fmt"
	"time"
)

// DecayConfig sets per-hour drift rates and the largest change one decay
// application may make to a single gauge. The cap keeps a long-closed app
// from zeroing a gauge in a single catch-up tick.
type DecayConfig struct {
	SatietyPerHour    float64 `json:"satiety_per_hour"`
	EnergyPerHour     float64 `json:"energy_per_hour"`
	MoodPerHour       float64 `json:"mood_per_hour"`
	BoredomPerHour    float64 `json:"boredom_per_hour"`
	MaxPerApplication float64 `json:"max_per_application"`
}

// Decay presets. Easy halves the normal rates, hard runs half again as fast.
// Preset selection is config data, not branching logic.
var decayPresets = map[string]DecayConfig{
	"normal": {
		SatietyPerHour:    4,
		EnergyPerHour:     3,
		MoodPerHour:       2,
		BoredomPerHour:    5,
		MaxPerApplication: 30,
	},
	"easy": {
		SatietyPerHour:    2,
		EnergyPerHour:     1.5,
		MoodPerHour:       1,
		BoredomPerHour:    2.5,
		MaxPerApplication: 20,
	},
	"hard": {
		SatietyPerHour:    6,
		EnergyPerHour:     4.5,
		MoodPerHour:       3,
		BoredomPerHour:    7.5,
		MaxPerApplication: 40,
	},
}

// DecayPreset returns the named preset config.
func DecayPreset(name string) (DecayConfig, error) {
	cfg, ok := decayPresets[name]
	if !ok {
		return DecayConfig{}, fmt.Errorf("unknown decay preset %q", name)
	}
	return cfg, nil
}

// Validate rejects configs that would misbehave at runtime.
func (c DecayConfig) Validate() error {
	for name, v := range map[string]float64{
		"satiety_per_hour":    c.SatietyPerHour,
		"energy_per_hour":     c.EnergyPerHour,
		"mood_per_hour":       c.MoodPerHour,
		"boredom_per_hour":    c.BoredomPerHour,
		"max_per_application": c.MaxPerApplication,
	} {
		if v < 0 {
			return fmt.Errorf("decay %s must not be negative", name)
		}
	}
	return nil
}

// ApplyDecay returns the attributes after elapsed wall-clock time.
// Per gauge the change is min(MaxPerApplication, hours * rate); satiety,
// energy and mood lose it, boredom gains it. Negative elapsed time is a
// no-op so clock skew never rewards or punishes the pet. Pure: the input
// value is not modified.
func ApplyDecay(a Attributes, elapsed time.Duration, cfg DecayConfig) Attributes {
	if elapsed <= 0 {
		return a
	}
	hours := elapsed.Hours()

	a.Satiety -= decayAmount(hours, cfg.SatietyPerHour, cfg.MaxPerApplication)
	a.Energy -= decayAmount(hours, cfg.EnergyPerHour, cfg.MaxPerApplication)
	a.Mood -= decayAmount(hours, cfg.MoodPerHour, cfg.MaxPerApplication)
	a.Boredom += decayAmount(hours, cfg.BoredomPerHour, cfg.MaxPerApplication)
	a.clamp()
	return a
}

func decayAmount(hours, perHour, cap float64) float64 {
	amount := hours * perHour
	if cap > 0 && amount > cap {
		return cap
	}
	return amount
}
