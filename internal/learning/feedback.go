package learning

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"authrisk/internal/riskengine"
)

// FeedbackSource is who labeled the feedback, per spec.md §3/§6.
type FeedbackSource string

const (
	SourceSystem FeedbackSource = "system"
	SourceUser   FeedbackSource = "user"
	SourceAdmin  FeedbackSource = "admin"
)

// AuthFeedback is spec.md §3's AuthFeedback: exactly one of
// {IsFalsePositive, IsFalseNegative, IsCorrect} must be true.
type AuthFeedback struct {
	UserID            string          `json:"user_id"`
	RequestID         uuid.UUID       `json:"request_id"`
	Timestamp         time.Time       `json:"timestamp"`
	OriginalRiskScore float64         `json:"original_risk_score"`
	OriginalDecision  riskengine.Decision `json:"original_decision"`
	IsFalsePositive   bool            `json:"is_false_positive"`
	IsFalseNegative   bool            `json:"is_false_negative"`
	IsCorrect         bool            `json:"is_correct"`
	Confidence        float64         `json:"confidence"`
	Source            FeedbackSource  `json:"source"`
	ActualOutcome     string          `json:"actual_outcome,omitempty"`
}

// Validate enforces the exactly-one-of invariant and range checks.
func (f AuthFeedback) Validate() error {
	count := 0
	if f.IsFalsePositive {
		count++
	}
	if f.IsFalseNegative {
		count++
	}
	if f.IsCorrect {
		count++
	}
	if count != 1 {
		return fmt.Errorf("feedback: exactly one of {false_positive, false_negative, correct} must be true, got %d", count)
	}
	if f.Confidence < 0 || f.Confidence > 1 {
		return fmt.Errorf("feedback: confidence %v out of [0,1]", f.Confidence)
	}
	switch f.Source {
	case SourceSystem, SourceUser, SourceAdmin:
	default:
		return fmt.Errorf("feedback: unknown source %q", f.Source)
	}
	return nil
}

// SourceWeight returns the configured weight for a feedback source
// (admin 2.0, user 1.0, system 0.5 by default, spec.md §6). The Engine
// does not call it: every applied label moves thresholds by the same
// ThresholdAdjustmentStep, whatever its source.
func (f AuthFeedback) SourceWeight(admin, user, system float64) float64 {
	switch f.Source {
	case SourceAdmin:
		return admin
	case SourceUser:
		return user
	default:
		return system
	}
}

// thresholdAdjustmentMinima are the fixed minimum band gaps spec.md §4.4
// requires: low+0.1 ≤ medium; medium+0.1 ≤ high; high+0.05 ≤ critical.
const (
	minLowMediumGap    = 0.1
	minMediumHighGap   = 0.1
	minHighCriticalGap = 0.05
)

// AdjustThresholds mutates (or creates) profile.AdaptiveThresholds by one
// step in the direction raise indicates, per spec.md §4.4's
// adjust_thresholds: step size, per-band clamps, and ordering minima.
// maxAdjustment caps the *cumulative* drift of each band away from
// spec.md §6's default thresholds (max_threshold_adjustment); once a band
// has already moved that far from its default, further steps in the same
// direction are absorbed rather than applied.
// It is a package-level function (not a Profile method) because it needs
// the tunable step/clamp values from config, which profiles don't carry.
func AdjustThresholds(profile *UserAdaptiveProfile, raise bool, step, minVal, maxVal, maxAdjustment float64, reason string, now time.Time) {
	profile.mu.Lock()
	defer profile.mu.Unlock()

	before := profile.AdaptiveThresholds
	var current riskengine.RiskThresholds
	if before != nil {
		current = *before
	} else {
		current = riskengine.DefaultRiskThresholds()
	}
	prior := current
	baseline := riskengine.DefaultRiskThresholds()

	delta := step
	if !raise {
		delta = -step
	}

	current.Low = capDrift(current.Low, baseline.Low, delta, minVal, maxVal, maxAdjustment)
	current.Medium = capDrift(current.Medium, baseline.Medium, delta, minVal, maxVal, maxAdjustment)
	current.High = capDrift(current.High, baseline.High, delta, minVal, maxVal, maxAdjustment)
	current.Critical = capDrift(current.Critical, baseline.Critical, delta, 0.6, 1.0, maxAdjustment)

	enforceOrdering(&current, minVal, maxVal)

	profile.AdaptiveThresholds = &current
	profile.ThresholdHistory = append(profile.ThresholdHistory, ThresholdAdjustment{
		Timestamp: now,
		Raise:     raise,
		Before:    prior,
		After:     current,
		Reason:    reason,
	})
	if over := len(profile.ThresholdHistory) - maxThresholdAdjustHistory; over > 0 {
		profile.ThresholdHistory = append(profile.ThresholdHistory[:0], profile.ThresholdHistory[over:]...)
	}
}

// enforceOrdering pushes Medium/High/Critical up as needed to satisfy the
// minimum band gaps, then re-clamps to range.
func enforceOrdering(t *riskengine.RiskThresholds, minVal, maxVal float64) {
	if t.Medium < t.Low+minLowMediumGap {
		t.Medium = t.Low + minLowMediumGap
	}
	if t.High < t.Medium+minMediumHighGap {
		t.High = t.Medium + minMediumHighGap
	}
	if t.Critical < t.High+minHighCriticalGap {
		t.Critical = t.High + minHighCriticalGap
	}

	t.Low = clamp(t.Low, minVal, maxVal)
	t.Medium = clamp(t.Medium, minVal, maxVal)
	t.High = clamp(t.High, minVal, maxVal)
	t.Critical = clamp(t.Critical, 0.6, 1.0)
}

// capDrift applies delta to v, then clamps the result so it never strays
// more than maxAdjustment away from baseline, in addition to the ordinary
// [lo,hi] range clamp.
func capDrift(v, baseline, delta, lo, hi, maxAdjustment float64) float64 {
	next := v + delta
	if next-baseline > maxAdjustment {
		next = baseline + maxAdjustment
	}
	if baseline-next > maxAdjustment {
		next = baseline - maxAdjustment
	}
	return clamp(next, lo, hi)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
