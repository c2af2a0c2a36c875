package learning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"authrisk/internal/riskengine"
)

func TestAuthFeedback_Validate_ExactlyOne(t *testing.T) {
	base := AuthFeedback{Confidence: 1.0, Source: SourceAdmin}

	none := base
	assert.Error(t, none.Validate())

	both := base
	both.IsFalsePositive = true
	both.IsCorrect = true
	assert.Error(t, both.Validate())

	justOne := base
	justOne.IsFalsePositive = true
	assert.NoError(t, justOne.Validate())
}

func TestAuthFeedback_Validate_ConfidenceRange(t *testing.T) {
	f := AuthFeedback{IsCorrect: true, Source: SourceUser, Confidence: 1.5}
	assert.Error(t, f.Validate())
}

// S5 - a false-negative feedback with confidence 1.0 must lower every
// adaptive threshold by exactly one step while preserving ordering.
func TestAdjustThresholds_S5_FalseNegativeLowersThresholds(t *testing.T) {
	now := time.Date(2026, 1, 6, 12, 0, 0, 0, time.UTC)
	p := NewUserAdaptiveProfile("fn-user@example.com", now)

	AdjustThresholds(p, false, 0.05, 0.1, 0.95, 0.3, "false_negative_feedback", now)

	require := p.AdaptiveThresholds
	defaults := riskengine.DefaultRiskThresholds()

	assert.InDelta(t, defaults.Low-0.05, require.Low, 1e-9)
	assert.InDelta(t, defaults.Medium-0.05, require.Medium, 1e-9)
	assert.InDelta(t, defaults.High-0.05, require.High, 1e-9)
	assert.InDelta(t, defaults.Critical-0.05, require.Critical, 1e-9)
	assert.NoError(t, require.Validate())
}

// Property 4 - adaptation direction: after a FP, thresholds move up (or
// stay at the cap); after a FN, thresholds move down (or stay at the
// floor).
func TestAdjustThresholds_AdaptationDirection(t *testing.T) {
	now := time.Now()

	fp := NewUserAdaptiveProfile("fp@example.com", now)
	before := riskengine.DefaultRiskThresholds()
	AdjustThresholds(fp, true, 0.05, 0.1, 0.95, 0.3, "false_positive_feedback", now)
	after := *fp.AdaptiveThresholds
	assert.GreaterOrEqual(t, after.Low, before.Low)
	assert.GreaterOrEqual(t, after.Medium, before.Medium)
	assert.GreaterOrEqual(t, after.High, before.High)
	assert.GreaterOrEqual(t, after.Critical, before.Critical)

	fn := NewUserAdaptiveProfile("fn2@example.com", now)
	AdjustThresholds(fn, false, 0.05, 0.1, 0.95, 0.3, "false_negative_feedback", now)
	afterFN := *fn.AdaptiveThresholds
	assert.LessOrEqual(t, afterFN.Low, before.Low)
	assert.LessOrEqual(t, afterFN.Medium, before.Medium)
	assert.LessOrEqual(t, afterFN.High, before.High)
	assert.LessOrEqual(t, afterFN.Critical, before.Critical)
}

func TestAdjustThresholds_RespectsOrderingAtRepeatedAdjustments(t *testing.T) {
	now := time.Now()
	p := NewUserAdaptiveProfile("repeat@example.com", now)

	for i := 0; i < 30; i++ {
		AdjustThresholds(p, true, 0.05, 0.1, 0.95, 0.3, "false_positive_feedback", now)
		require := p.AdaptiveThresholds
		assert.NoError(t, require.Validate())
	}
}

func TestAdjustThresholds_ClampsWithinBounds(t *testing.T) {
	now := time.Now()
	p := NewUserAdaptiveProfile("clamp@example.com", now)

	for i := 0; i < 100; i++ {
		AdjustThresholds(p, false, 0.05, 0.1, 0.95, 0.3, "false_negative_feedback", now)
	}
	t2 := p.AdaptiveThresholds
	assert.GreaterOrEqual(t, t2.Low, 0.1)
	assert.LessOrEqual(t, t2.Critical, 1.0)
	assert.NoError(t, t2.Validate())
}

func TestThresholdHistory_Bounded(t *testing.T) {
	now := time.Now()
	p := NewUserAdaptiveProfile("history@example.com", now)

	for i := 0; i < maxThresholdAdjustHistory+20; i++ {
		AdjustThresholds(p, i%2 == 0, 0.05, 0.1, 0.95, 0.3, "toggle", now)
	}
	assert.LessOrEqual(t, len(p.ThresholdHistory), maxThresholdAdjustHistory)
}
