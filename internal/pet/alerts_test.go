package pet

import (
	"testing"
	"time"
)

func TestComparatorCompare(t *testing.T) {
	tests := []struct {
		cmp  Comparator
		v    float64
		th   float64
		want bool
	}{
		{CmpLess, 10, 15, true},
		{CmpLess, 15, 15, false},
		{CmpGreater, 85, 80, true},
		{CmpGreater, 80, 80, false},
		{CmpLessEq, 15, 15, true},
		{CmpGreaterEq, 1, 1, true},
		{CmpGreaterEq, 0, 1, false},
		{Comparator("!="), 1, 2, false},
	}
	for _, tt := range tests {
		if got := tt.cmp.Compare(tt.v, tt.th); got != tt.want {
			t.Errorf("Compare(%q, %v, %v) = %v, want %v", tt.cmp, tt.v, tt.th, got, tt.want)
		}
	}
}

func TestEvaluateAlertsHighestPriorityWins(t *testing.T) {
	rules := DefaultRules()
	gate := NewCooldownGate()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	a := NewAttributes()
	a.Satiety = 10 // matches both satiety_critical and satiety_low

	alert := EvaluateAlerts(a, rules, gate, now)
	if alert == nil {
		t.Fatal("expected an alert")
	}
	if alert.RuleID != "satiety_critical" {
		t.Errorf("winner = %q, want satiety_critical", alert.RuleID)
	}
	if alert.Dismissible {
		t.Error("critical alert must not be dismissible")
	}
	if alert.Duration != 0 {
		t.Errorf("critical alert duration = %v, want 0 (persistent)", alert.Duration)
	}

	// Only the winner was put on cooldown: raise satiety so just the low
	// band matches and it must fire immediately.
	a.Satiety = 25
	alert = EvaluateAlerts(a, rules, gate, now.Add(time.Second))
	if alert == nil {
		t.Fatal("losing rule should not have been put on cooldown")
	}
	if alert.RuleID != "satiety_low" {
		t.Errorf("winner = %q, want satiety_low", alert.RuleID)
	}
}

func TestEvaluateAlertsCooldownSuppresses(t *testing.T) {
	rules := DefaultRules()
	gate := NewCooldownGate()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	a := NewAttributes()
	a.Energy = 20

	if alert := EvaluateAlerts(a, rules, gate, t0); alert == nil || alert.RuleID != "energy_low" {
		t.Fatalf("first pass = %+v, want energy_low", alert)
	}
	if alert := EvaluateAlerts(a, rules, gate, t0.Add(time.Minute)); alert != nil {
		t.Errorf("within cooldown fired %q, want nothing", alert.RuleID)
	}
	if alert := EvaluateAlerts(a, rules, gate, t0.Add(30*time.Minute)); alert == nil {
		t.Error("after cooldown the rule should fire again")
	}
}

func TestEvaluateAlertsSickOutranksMoodCritical(t *testing.T) {
	rules := DefaultRules()
	gate := NewCooldownGate()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	a := NewAttributes()
	a.Energy = 10
	a.Mood = 10 // two gauges below 20: sick, and mood_critical also matches

	alert := EvaluateAlerts(a, rules, gate, now)
	if alert == nil {
		t.Fatal("expected an alert")
	}
	if alert.RuleID != "sick" {
		t.Errorf("winner = %q, want sick", alert.RuleID)
	}
}

func TestEvaluateAlertsTieGoesToTableOrder(t *testing.T) {
	rules := []ThresholdRule{
		{ID: "first", Attr: GaugeMood, Cmp: CmpLess, Value: 50, Alert: AlertPayload{Priority: 80}},
		{ID: "second", Attr: GaugeEnergy, Cmp: CmpLess, Value: 50, Alert: AlertPayload{Priority: 80}},
	}
	gate := NewCooldownGate()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	a := NewAttributes()
	a.Mood = 40
	a.Energy = 40

	alert := EvaluateAlerts(a, rules, gate, now)
	if alert == nil || alert.RuleID != "first" {
		t.Fatalf("tie winner = %+v, want first", alert)
	}
}

func TestEvaluateAlertsNoMatch(t *testing.T) {
	gate := NewCooldownGate()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if alert := EvaluateAlerts(NewAttributes(), DefaultRules(), gate, now); alert != nil {
		t.Errorf("healthy pet fired %q, want nothing", alert.RuleID)
	}
}

func TestDefaultRulesValid(t *testing.T) {
	rules := DefaultRules()
	if err := ValidateRules(rules); err != nil {
		t.Fatalf("default rules invalid: %v", err)
	}
	// Table order must run most to least severe so ties resolve correctly.
	for i := 1; i < len(rules); i++ {
		if rules[i].Alert.Priority > rules[i-1].Alert.Priority {
			t.Errorf("rule %q (p%d) outranks preceding %q (p%d)",
				rules[i].ID, rules[i].Alert.Priority, rules[i-1].ID, rules[i-1].Alert.Priority)
		}
	}
}

func TestValidateRulesRejects(t *testing.T) {
	base := ThresholdRule{ID: "ok", Attr: GaugeMood, Cmp: CmpLess, Value: 30}

	tests := []struct {
		name  string
		rules []ThresholdRule
	}{
		{"empty id", []ThresholdRule{{Attr: GaugeMood, Cmp: CmpLess}}},
		{"duplicate id", []ThresholdRule{base, base}},
		{"unknown attribute", []ThresholdRule{{ID: "x", Attr: Gauge("luck"), Cmp: CmpLess}}},
		{"unknown comparator", []ThresholdRule{{ID: "x", Attr: GaugeMood, Cmp: Comparator("~")}}},
		{"negative cooldown", []ThresholdRule{{ID: "x", Attr: GaugeMood, Cmp: CmpLess, Cooldown: -time.Second}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateRules(tt.rules); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}
