// Package policy implements spec.md §4.5's Risk Policy: the pure mapping
// from a risk score and a set of thresholds to a level, a decision, and the
// two booleans (requires_2fa, should_block) the caller acts on. It never
// touches the network, a database, or a clock; everything it needs is
// passed in, mirroring the teacher's small, table-driven decision helpers
// in internal/services/adaptive_auth_service.go (determineRiskLevel,
// requiresStepUp).
package policy

import (
	"math"

	"authrisk/internal/riskengine"
)

// Decision is the outcome of policy evaluation for one login attempt.
type Decision struct {
	Level       riskengine.RiskLevel
	Decision    riskengine.Decision
	Requires2FA bool
	ShouldBlock bool
	Confidence  float64
}

// significantFactorThreshold is spec.md §4.5's cutoff for counting a factor
// toward the confidence score.
const significantFactorThreshold = 0.1

// Evaluate implements the pure (risk, thresholds) → level, decision,
// requires_2fa, should_block mapping of spec.md §4.5. Adaptive thresholds,
// when non-nil, replace the defaults entirely rather than merging field by
// field.
func Evaluate(risk float64, factors riskengine.RiskFactors, thresholds riskengine.RiskThresholds) Decision {
	level := thresholds.Level(risk)

	d := Decision{
		Level:      level,
		Decision:   riskengine.DecisionAllow,
		Confidence: confidenceScore(factors),
	}

	switch level {
	case riskengine.RiskCritical:
		d.Decision = riskengine.DecisionBlock
		d.ShouldBlock = true
	case riskengine.RiskHigh:
		d.Decision = riskengine.DecisionRequire2FA
		d.Requires2FA = true
	case riskengine.RiskMedium, riskengine.RiskLow:
		d.Decision = riskengine.DecisionAllow
	}

	return d
}

// EffectiveThresholds picks the user's adaptive thresholds when set,
// falling back to the supplied defaults otherwise, per spec.md §4.5's "if a
// user's adaptive_thresholds exist, they replace defaults" rule.
func EffectiveThresholds(adaptive *riskengine.RiskThresholds, defaults riskengine.RiskThresholds) riskengine.RiskThresholds {
	if adaptive != nil {
		return *adaptive
	}
	return defaults
}

// confidenceScore implements spec.md §4.5's confidence formula: the count
// of significant (>0.1) factors, normalized to the 8-factor breadth of
// RiskFactors, scaled by 0.7 + 0.3*(1 - variance of the significant
// factors), floored at 0.1.
func confidenceScore(f riskengine.RiskFactors) float64 {
	values := []float64{f.NLP, f.Embedding, f.Behavioral, f.Temporal, f.Geolocation, f.Device, f.ThreatIntel, f.Frequency}

	var significant []float64
	for _, v := range values {
		if v > significantFactorThreshold {
			significant = append(significant, v)
		}
	}

	if len(significant) == 0 {
		return 0.1
	}

	breadth := float64(len(significant)) / float64(len(values))
	scale := 0.7 + 0.3*(1-variance(significant))
	score := breadth * scale
	return math.Max(0.1, math.Min(1, score))
}

// variance is the population variance of xs (0 for a single element).
func variance(xs []float64) float64 {
	if len(xs) <= 1 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))

	var sqDiff float64
	for _, x := range xs {
		d := x - mean
		sqDiff += d * d
	}
	return sqDiff / float64(len(xs))
}
