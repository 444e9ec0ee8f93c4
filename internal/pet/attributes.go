// Package pet implements the care simulation and engagement engine:
// bounded attribute gauges aged by wall-clock decay, per-action cooldowns,
// threshold alert arbitration, proactive-request scoring, and the
// single-flight auto-work scheduler.
package pet

import "time"

// Gauge bounds and the threshold below which a gauge counts toward sickness.
const (
	GaugeMin      = 0.0
	GaugeMax      = 100.0
	SickThreshold = 20.0
)

// Gauge names an attribute for threshold rules and urgency math.
// GaugeSick is a pseudo-gauge that reads as 1 (sick) or 0 (healthy).
type Gauge string

const (
	GaugeSatiety Gauge = "satiety"
	GaugeEnergy  Gauge = "energy"
	GaugeHygiene Gauge = "hygiene"
	GaugeMood    Gauge = "mood"
	GaugeBoredom Gauge = "boredom"
	GaugeSick    Gauge = "sick"
)

// Attributes holds the five care gauges, each clamped to [0, 100].
// Boredom is inverted: it rises toward 100 as the pet grows restless.
// LastAction is display metadata only and carries no invariant.
type Attributes struct {
	Satiety float64 `json:"satiety" db:"satiety"`
	Energy  float64 `json:"energy" db:"energy"`
	Hygiene float64 `json:"hygiene" db:"hygiene"`
	Mood    float64 `json:"mood" db:"mood"`
	Boredom float64 `json:"boredom" db:"boredom"`

	LastAction   string    `json:"last_action,omitempty" db:"last_action"`
	LastActionAt time.Time `json:"last_action_at,omitempty" db:"last_action_at"`
}

// NewAttributes returns a freshly adopted pet: full gauges, nothing to complain about.
func NewAttributes() Attributes {
	return Attributes{
		Satiety: GaugeMax,
		Energy:  GaugeMax,
		Hygiene: GaugeMax,
		Mood:    GaugeMax,
		Boredom: GaugeMin,
	}
}

// Value reads a gauge by name. GaugeSick coerces the derived sick flag to 1/0
// so threshold comparators can treat it like any other attribute.
// Unknown gauges read as 0.
func (a Attributes) Value(g Gauge) float64 {
	switch g {
	case GaugeSatiety:
		return a.Satiety
	case GaugeEnergy:
		return a.Energy
	case GaugeHygiene:
		return a.Hygiene
	case GaugeMood:
		return a.Mood
	case GaugeBoredom:
		return a.Boredom
	case GaugeSick:
		if a.Sick() {
			return 1
		}
		return 0
	}
	return 0
}

// Sick reports whether two or more gauges are critically low. Boredom counts
// in deficit space: it contributes once it has climbed past 100-SickThreshold.
// Derived on read, never stored.
func (a Attributes) Sick() bool {
	low := 0
	if a.Satiety < SickThreshold {
		low++
	}
	if a.Energy < SickThreshold {
		low++
	}
	if a.Hygiene < SickThreshold {
		low++
	}
	if a.Mood < SickThreshold {
		low++
	}
	if GaugeMax-a.Boredom < SickThreshold {
		low++
	}
	return low >= 2
}

// Effects is a set of signed gauge deltas, applied through the clamping path.
// Interaction specs and auto-work costs are both expressed this way.
type Effects struct {
	Satiety float64 `json:"satiety,omitempty"`
	Energy  float64 `json:"energy,omitempty"`
	Hygiene float64 `json:"hygiene,omitempty"`
	Mood    float64 `json:"mood,omitempty"`
	Boredom float64 `json:"boredom,omitempty"`
}

// IsZero reports whether the effect set changes nothing.
func (e Effects) IsZero() bool {
	return e == Effects{}
}

// Apply adds the deltas to the gauges and clamps the result.
func (a Attributes) Apply(e Effects) Attributes {
	a.Satiety += e.Satiety
	a.Energy += e.Energy
	a.Hygiene += e.Hygiene
	a.Mood += e.Mood
	a.Boredom += e.Boredom
	a.clamp()
	return a
}

// InBounds reports whether every gauge sits inside [0, 100]. Mutation paths
// clamp, so a false result signals a programming error.
func (a Attributes) InBounds() bool {
	for _, v := range []float64{a.Satiety, a.Energy, a.Hygiene, a.Mood, a.Boredom} {
		if v < GaugeMin || v > GaugeMax {
			return false
		}
	}
	return true
}

func (a *Attributes) clamp() {
	a.Satiety = clampGauge(a.Satiety)
	a.Energy = clampGauge(a.Energy)
	a.Hygiene = clampGauge(a.Hygiene)
	a.Mood = clampGauge(a.Mood)
	a.Boredom = clampGauge(a.Boredom)
}

func clampGauge(v float64) float64 {
	if v < GaugeMin {
		return GaugeMin
	}
	if v > GaugeMax {
		return GaugeMax
	}
	return v
}
