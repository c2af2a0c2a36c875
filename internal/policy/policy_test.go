package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"authrisk/internal/riskengine"
)

func TestEvaluate_CriticalBlocks(t *testing.T) {
	d := Evaluate(0.95, riskengine.RiskFactors{NLP: 0.9}, riskengine.DefaultRiskThresholds())
	assert.Equal(t, riskengine.RiskCritical, d.Level)
	assert.Equal(t, riskengine.DecisionBlock, d.Decision)
	assert.True(t, d.ShouldBlock)
	assert.False(t, d.Requires2FA)
}

func TestEvaluate_HighRequires2FA(t *testing.T) {
	d := Evaluate(0.8, riskengine.RiskFactors{NLP: 0.5}, riskengine.DefaultRiskThresholds())
	assert.Equal(t, riskengine.RiskHigh, d.Level)
	assert.Equal(t, riskengine.DecisionRequire2FA, d.Decision)
	assert.True(t, d.Requires2FA)
	assert.False(t, d.ShouldBlock)
}

func TestEvaluate_MediumAndLowAllow(t *testing.T) {
	medium := Evaluate(0.6, riskengine.RiskFactors{}, riskengine.DefaultRiskThresholds())
	assert.Equal(t, riskengine.RiskMedium, medium.Level)
	assert.Equal(t, riskengine.DecisionAllow, medium.Decision)

	low := Evaluate(0.05, riskengine.RiskFactors{}, riskengine.DefaultRiskThresholds())
	assert.Equal(t, riskengine.RiskLow, low.Level)
	assert.Equal(t, riskengine.DecisionAllow, low.Decision)
}

func TestEvaluate_AdaptiveThresholdsReplaceDefaults(t *testing.T) {
	raised := riskengine.RiskThresholds{Low: 0.3, Medium: 0.5, High: 0.95, Critical: 0.99}
	th := EffectiveThresholds(&raised, riskengine.DefaultRiskThresholds())
	d := Evaluate(0.8, riskengine.RiskFactors{}, th)
	// Under defaults 0.8 would be "high"; under the raised profile it's merely "medium".
	assert.Equal(t, riskengine.RiskMedium, d.Level)
	assert.Equal(t, riskengine.DecisionAllow, d.Decision)
}

func TestEffectiveThresholds_NilFallsBackToDefaults(t *testing.T) {
	defaults := riskengine.DefaultRiskThresholds()
	got := EffectiveThresholds(nil, defaults)
	assert.Equal(t, defaults, got)
}

func TestConfidenceScore_NoSignificantFactorsFloorsAtPointOne(t *testing.T) {
	d := Evaluate(0.02, riskengine.RiskFactors{NLP: 0.05, Embedding: 0.0}, riskengine.DefaultRiskThresholds())
	assert.InDelta(t, 0.1, d.Confidence, 1e-9)
}

func TestConfidenceScore_MoreSignificantFactorsRaisesConfidence(t *testing.T) {
	few := confidenceScore(riskengine.RiskFactors{NLP: 0.5})
	many := confidenceScore(riskengine.RiskFactors{
		NLP: 0.5, Embedding: 0.5, Behavioral: 0.5, Temporal: 0.5,
		Geolocation: 0.5, Device: 0.5, ThreatIntel: 0.5, Frequency: 0.5,
	})
	assert.Greater(t, many, few)
	assert.LessOrEqual(t, many, 1.0)
}

func TestConfidenceScore_LowVarianceScoresHigherThanHighVariance(t *testing.T) {
	uniform := confidenceScore(riskengine.RiskFactors{
		NLP: 0.5, Embedding: 0.5, Behavioral: 0.5, Temporal: 0.5,
	})
	skewed := confidenceScore(riskengine.RiskFactors{
		NLP: 0.9, Embedding: 0.9, Behavioral: 0.11, Temporal: 0.11,
	})
	assert.Greater(t, uniform, skewed)
}

func TestVariance_SingleElementIsZero(t *testing.T) {
	assert.Equal(t, 0.0, variance([]float64{0.7}))
}
