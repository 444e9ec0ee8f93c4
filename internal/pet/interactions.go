package pet

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnknownInteraction = errors.New("unknown interaction kind")
	ErrCooldown           = errors.New("interaction is on cooldown")
)

// InteractionSpec defines one care action: its gauge effects, per-kind
// cooldown and the experience it grants.
type InteractionSpec struct {
	Kind       string        `json:"kind"`
	Cooldown   time.Duration `json:"cooldown"`
	Effects    Effects       `json:"effects"`
	Experience int64         `json:"experience"`
}

// DefaultInteractions returns the built-in care actions keyed by kind.
func DefaultInteractions() map[string]InteractionSpec {
	return map[string]InteractionSpec{
		"feed": {
			Kind:       "feed",
			Cooldown:   5 * time.Minute,
			Effects:    Effects{Satiety: 30, Mood: 5},
			Experience: 10,
		},
		"play": {
			Kind:       "play",
			Cooldown:   10 * time.Minute,
			Effects:    Effects{Mood: 20, Boredom: -30, Energy: -15, Hygiene: -10},
			Experience: 15,
		},
		"wash": {
			Kind:       "wash",
			Cooldown:   30 * time.Minute,
			Effects:    Effects{Hygiene: 40, Mood: 5},
			Experience: 10,
		},
		"stroke": {
			Kind:       "stroke",
			Cooldown:   2 * time.Minute,
			Effects:    Effects{Mood: 10, Boredom: -10},
			Experience: 5,
		},
		"rest": {
			Kind:       "rest",
			Cooldown:   45 * time.Minute,
			Effects:    Effects{Energy: 35, Mood: 5},
			Experience: 5,
		},
	}
}

// ValidateInteractions rejects tables with empty kinds, mismatched keys or
// negative cooldowns.
func ValidateInteractions(table map[string]InteractionSpec) error {
	if len(table) == 0 {
		return fmt.Errorf("interaction table is empty")
	}
	for key, spec := range table {
		if spec.Kind == "" {
			return fmt.Errorf("interaction %q has an empty kind", key)
		}
		if spec.Kind != key {
			return fmt.Errorf("interaction key %q does not match kind %q", key, spec.Kind)
		}
		if spec.Cooldown < 0 {
			return fmt.Errorf("interaction %q cooldown must not be negative", key)
		}
		if spec.Experience < 0 {
			return fmt.Errorf("interaction %q experience must not be negative", key)
		}
	}
	return nil
}
