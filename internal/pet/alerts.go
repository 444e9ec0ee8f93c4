// Threshold alerts: a fixed rule table evaluated against the gauges, with
// per-rule cooldowns and priority arbitration picking a single winner.
package pet

import (
	"fmt"
	"time"
)

// Comparator is the comparison a threshold rule applies.
type Comparator string

const (
	CmpLess      Comparator = "<"
	CmpGreater   Comparator = ">"
	CmpLessEq    Comparator = "<="
	CmpGreaterEq Comparator = ">="
)

// Compare applies the comparator to (value, threshold). Unknown comparators
// never match; Validate rejects them before the table is used.
func (c Comparator) Compare(v, threshold float64) bool {
	switch c {
	case CmpLess:
		return v < threshold
	case CmpGreater:
		return v > threshold
	case CmpLessEq:
		return v <= threshold
	case CmpGreaterEq:
		return v >= threshold
	}
	return false
}

// AlertPayload is what the UI layer receives when a rule wins arbitration.
// Duration zero means the alert persists until the condition is resolved;
// such alerts are not dismissible.
type AlertPayload struct {
	RuleID      string        `json:"rule_id"`
	Priority    int           `json:"priority"`
	Message     string        `json:"message"`
	Emotion     string        `json:"emotion"`
	Actions     []string      `json:"actions,omitempty"`
	Duration    time.Duration `json:"duration"`
	Dismissible bool          `json:"dismissible"`
}

// ThresholdRule is one immutable entry of the alert table. ID is globally
// unique and doubles as the cooldown key.
type ThresholdRule struct {
	ID       string        `json:"id"`
	Attr     Gauge         `json:"attribute"`
	Cmp      Comparator    `json:"comparator"`
	Value    float64       `json:"value"`
	Cooldown time.Duration `json:"cooldown"`
	Alert    AlertPayload  `json:"alert"`
}

// Matches reports whether the rule's condition holds for the attributes.
func (r ThresholdRule) Matches(a Attributes) bool {
	return r.Cmp.Compare(a.Value(r.Attr), r.Value)
}

// ValidateRules checks a rule table at startup: unique non-empty ids, known
// gauges and comparators, non-negative cooldowns.
func ValidateRules(rules []ThresholdRule) error {
	known := map[Gauge]bool{
		GaugeSatiety: true, GaugeEnergy: true, GaugeHygiene: true,
		GaugeMood: true, GaugeBoredom: true, GaugeSick: true,
	}
	seen := make(map[string]bool, len(rules))
	for i, r := range rules {
		if r.ID == "" {
			return fmt.Errorf("rule %d: empty id", i)
		}
		if seen[r.ID] {
			return fmt.Errorf("rule %q: duplicate id", r.ID)
		}
		seen[r.ID] = true
		if !known[r.Attr] {
			return fmt.Errorf("rule %q: unknown attribute %q", r.ID, r.Attr)
		}
		switch r.Cmp {
		case CmpLess, CmpGreater, CmpLessEq, CmpGreaterEq:
		default:
			return fmt.Errorf("rule %q: unknown comparator %q", r.ID, r.Cmp)
		}
		if r.Cooldown < 0 {
			return fmt.Errorf("rule %q: negative cooldown", r.ID)
		}
	}
	return nil
}

// EvaluateAlerts scans the table, keeps rules that both match and are off
// cooldown, and returns the highest-priority candidate. Ties go to table
// order, which runs most to least severe. Only the winner's cooldown is
// recorded; a losing rule stays eligible for the next tick. Returns nil
// when nothing fires.
func EvaluateAlerts(a Attributes, rules []ThresholdRule, gate *CooldownGate, now time.Time) *AlertPayload {
	best := -1
	for i, r := range rules {
		if !r.Matches(a) {
			continue
		}
		if !gate.Ready(r.ID, now, r.Cooldown) {
			continue
		}
		if best < 0 || r.Alert.Priority > rules[best].Alert.Priority {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	gate.Record(rules[best].ID, now)
	payload := rules[best].Alert
	payload.RuleID = rules[best].ID
	return &payload
}

// DefaultRules is the built-in alert table, ordered most to least severe.
// Satiety and mood carry both a low and a critical band; critical alerts
// persist (Duration 0) and cannot be dismissed.
func DefaultRules() []ThresholdRule {
	return []ThresholdRule{
		{
			ID: "satiety_critical", Attr: GaugeSatiety, Cmp: CmpLess, Value: 15,
			Cooldown: 10 * time.Minute,
			Alert: AlertPayload{
				Priority: 100, Emotion: "desperate",
				Message: "I'm starving... please, I need food right now!",
				Actions: []string{"feed"},
			},
		},
		{
			ID: "sick", Attr: GaugeSick, Cmp: CmpGreaterEq, Value: 1,
			Cooldown: 30 * time.Minute,
			Alert: AlertPayload{
				Priority: 95, Emotion: "sick",
				Message: "I don't feel well at all... I think I'm getting sick.",
				Actions: []string{"feed", "rest", "wash"},
			},
		},
		{
			ID: "mood_critical", Attr: GaugeMood, Cmp: CmpLess, Value: 15,
			Cooldown: 15 * time.Minute,
			Alert: AlertPayload{
				Priority: 90, Emotion: "miserable",
				Message: "I'm so unhappy... does anyone even remember I'm here?",
				Actions: []string{"play", "stroke"},
			},
		},
		{
			ID: "satiety_low", Attr: GaugeSatiety, Cmp: CmpLess, Value: 30,
			Cooldown: 30 * time.Minute,
			Alert: AlertPayload{
				Priority: 70, Emotion: "hungry",
				Message: "My stomach is rumbling. Could I have something to eat?",
				Actions: []string{"feed"}, Duration: 8 * time.Second, Dismissible: true,
			},
		},
		{
			ID: "energy_low", Attr: GaugeEnergy, Cmp: CmpLess, Value: 25,
			Cooldown: 30 * time.Minute,
			Alert: AlertPayload{
				Priority: 65, Emotion: "tired",
				Message: "I can barely keep my eyes open... I need a nap.",
				Actions: []string{"rest"}, Duration: 8 * time.Second, Dismissible: true,
			},
		},
		{
			ID: "mood_low", Attr: GaugeMood, Cmp: CmpLess, Value: 30,
			Cooldown: 45 * time.Minute,
			Alert: AlertPayload{
				Priority: 60, Emotion: "sad",
				Message: "I'm feeling a little down today...",
				Actions: []string{"play", "stroke"}, Duration: 8 * time.Second, Dismissible: true,
			},
		},
		{
			ID: "hygiene_low", Attr: GaugeHygiene, Cmp: CmpLess, Value: 30,
			Cooldown: time.Hour,
			Alert: AlertPayload{
				Priority: 55, Emotion: "dirty",
				Message: "I'm getting awfully scruffy. Bath time, maybe?",
				Actions: []string{"wash"}, Duration: 8 * time.Second, Dismissible: true,
			},
		},
		{
			ID: "boredom_high", Attr: GaugeBoredom, Cmp: CmpGreater, Value: 80,
			Cooldown: 45 * time.Minute,
			Alert: AlertPayload{
				Priority: 50, Emotion: "bored",
				Message: "There's nothing to dooo... play with me?",
				Actions: []string{"play"}, Duration: 8 * time.Second, Dismissible: true,
			},
		},
	}
}
