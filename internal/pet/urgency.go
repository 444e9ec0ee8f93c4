// Urgency scoring and proactive-request policy: how much the pet needs
// attention right now, and when it is allowed to say so.
package pet

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/tamasan/deskpet/internal/entropy"
)

// Proactive contact is suppressed entirely below this urgency.
const urgencyFloor = 20.0

// UrgencyWeights weight each gauge's deficit in the urgency sum. The
// defaults sum to 1.0, but that is convention, not a requirement.
type UrgencyWeights struct {
	Energy  float64 `json:"energy"`
	Satiety float64 `json:"satiety"`
	Boredom float64 `json:"boredom"`
	Mood    float64 `json:"mood"`
}

// DefaultUrgencyWeights returns the standard weighting: energy dominates,
// mood matters least.
func DefaultUrgencyWeights() UrgencyWeights {
	return UrgencyWeights{Energy: 0.4, Satiety: 0.3, Boredom: 0.2, Mood: 0.1}
}

// ProactiveConfig controls when the pet may initiate contact.
type ProactiveConfig struct {
	Enabled        bool           `json:"enabled"`
	BaseInterval   time.Duration  `json:"base_interval"`
	MinInterval    time.Duration  `json:"min_interval"`
	MaxInterval    time.Duration  `json:"max_interval"`
	DeclinePenalty float64        `json:"decline_penalty"`
	Weights        UrgencyWeights `json:"weights"`
}

// DefaultProactiveConfig returns the standard request policy.
func DefaultProactiveConfig() ProactiveConfig {
	return ProactiveConfig{
		Enabled:        true,
		BaseInterval:   30 * time.Minute,
		MinInterval:    10 * time.Minute,
		MaxInterval:    3 * time.Hour,
		DeclinePenalty: 1.5,
		Weights:        DefaultUrgencyWeights(),
	}
}

// Validate rejects configs that would misbehave at runtime.
func (c ProactiveConfig) Validate() error {
	if c.BaseInterval <= 0 {
		return fmt.Errorf("proactive base interval must be positive")
	}
	if c.MinInterval < 0 || c.MaxInterval < 0 {
		return fmt.Errorf("proactive intervals must not be negative")
	}
	if c.MinInterval > c.MaxInterval {
		return fmt.Errorf("proactive min interval exceeds max interval")
	}
	if c.DeclinePenalty < 1 {
		return fmt.Errorf("decline penalty must be >= 1")
	}
	for name, w := range map[string]float64{
		"energy": c.Weights.Energy, "satiety": c.Weights.Satiety,
		"boredom": c.Weights.Boredom, "mood": c.Weights.Mood,
	} {
		if w < 0 {
			return fmt.Errorf("urgency weight %s must not be negative", name)
		}
	}
	return nil
}

// deficit is how far a higher-is-better gauge sits below full.
func deficit(v float64) float64 {
	return math.Max(0, GaugeMax-v)
}

// UrgencyScore summarizes the gauges into one 0-100 "needs attention" value:
// the weighted sum of deficits, with boredom's raw value serving as its own
// deficit. Rounded and clamped. Total for all numeric inputs.
func UrgencyScore(a Attributes, w UrgencyWeights) float64 {
	score := deficit(a.Energy)*w.Energy +
		deficit(a.Satiety)*w.Satiety +
		a.Boredom*w.Boredom +
		deficit(a.Mood)*w.Mood
	return clampGauge(math.Round(score))
}

// NextRequestInterval computes how long after the previous request the next
// one may fire. Higher urgency shortens the wait (base / max(1, urgency/50));
// each decline multiplies it by the penalty factor. Always clamped to
// [MinInterval, MaxInterval].
func NextRequestInterval(urgency float64, cfg ProactiveConfig, declineCount int) time.Duration {
	div := urgency / 50
	if div < 1 {
		div = 1
	}
	if declineCount < 0 {
		declineCount = 0
	}
	penalty := math.Pow(cfg.DeclinePenalty, float64(declineCount))

	interval := time.Duration(float64(cfg.BaseInterval) / div * penalty)
	if interval < cfg.MinInterval {
		interval = cfg.MinInterval
	}
	if interval > cfg.MaxInterval {
		interval = cfg.MaxInterval
	}
	return interval
}

// CanTriggerRequest decides whether a proactive request may fire now, and if
// not, why: the feature is disabled, the back-off interval has not elapsed,
// or urgency sits below the contact floor.
func CanTriggerRequest(a Attributes, lastRequest time.Time, cfg ProactiveConfig, declineCount int, now time.Time) (bool, string) {
	if !cfg.Enabled {
		return false, "disabled"
	}
	urgency := UrgencyScore(a, cfg.Weights)
	if !lastRequest.IsZero() && now.Sub(lastRequest) < NextRequestInterval(urgency, cfg, declineCount) {
		return false, "interval not elapsed"
	}
	if urgency < urgencyFloor {
		return false, "urgency below floor"
	}
	return true, "ok"
}

// RequestType classifies what the pet is asking for.
type RequestType string

const (
	RequestNeedAttention RequestType = "need_attention"
	RequestHungry        RequestType = "hungry"
	RequestBored         RequestType = "bored"
)

// SelectRequestType picks the request type whose named priority score is
// highest: need_attention from the worse of the energy and mood deficits,
// hungry from the satiety deficit, bored from raw boredom. Ties resolve in
// declaration order. This score map is the sole selection mechanism, so
// exactly one type always wins.
func SelectRequestType(a Attributes) RequestType {
	scores := []struct {
		t RequestType
		v float64
	}{
		{RequestNeedAttention, math.Max(deficit(a.Energy), deficit(a.Mood))},
		{RequestHungry, deficit(a.Satiety)},
		{RequestBored, a.Boredom},
	}

	best := scores[0]
	for _, s := range scores[1:] {
		if s.v > best.v {
			best = s
		}
	}
	return best.t
}

// ProactiveRequest is a transient value handed to the UI layer; the engine
// keeps only the id of the most recent one so responses can be matched.
type ProactiveRequest struct {
	ID                   string      `json:"id"`
	Type                 RequestType `json:"type"`
	Urgency              float64     `json:"urgency"`
	Message              string      `json:"message"`
	SuggestedInteraction string      `json:"suggested_interaction"`
	Timestamp            time.Time   `json:"timestamp"`
	Responded            bool        `json:"responded"`
}

var requestMessages = map[RequestType][]string{
	RequestNeedAttention: {
		"Hey... do you have a minute for me?",
		"I miss you. Come say hi?",
		"It's been a while... I could use some company.",
	},
	RequestHungry: {
		"Is it snack time yet? My tummy says yes.",
		"I keep thinking about food... feed me?",
	},
	RequestBored: {
		"I'm bored out of my mind. Let's do something!",
		"Sooo... wanna play a game?",
	},
}

var requestSuggestions = map[RequestType]string{
	RequestNeedAttention: "stroke",
	RequestHungry:        "feed",
	RequestBored:         "play",
}

// NewProactiveRequest builds a request of the given type, picking one of the
// canned message variants through the entropy source.
func NewProactiveRequest(t RequestType, urgency float64, now time.Time, src entropy.Source) ProactiveRequest {
	variants := requestMessages[t]
	msg := ""
	if len(variants) > 0 {
		msg = variants[src.Intn(len(variants))]
	}
	return ProactiveRequest{
		ID:                   uuid.NewString(),
		Type:                 t,
		Urgency:              urgency,
		Message:              msg,
		SuggestedInteraction: requestSuggestions[t],
		Timestamp:            now,
	}
}
