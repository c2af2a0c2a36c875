package riskengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultWeights_SumToOne(t *testing.T) {
	assert.True(t, DefaultWeights().Valid())
}

func TestCombine_CleanLogin(t *testing.T) {
	f := RiskFactors{
		NLP:         0.0,
		Embedding:   0.02,
		Behavioral:  0.0,
		Temporal:    0.0,
		Geolocation: 0.0,
		Device:      0.0,
		ThreatIntel: 0.0,
		Frequency:   0.0,
	}
	raw := Combine(f, DefaultWeights())
	assert.InDelta(t, 0.005, raw, 0.01)
}

func TestCombine_FrequencyAmplifiesAboveHalf(t *testing.T) {
	base := RiskFactors{NLP: 0.5, Embedding: 0.5, Behavioral: 0.5, Temporal: 0.5, Geolocation: 0.5, Device: 0.5, ThreatIntel: 0.5}
	low := base
	low.Frequency = 0.4
	high := base
	high.Frequency = 1.0

	w := DefaultWeights()
	assert.InDelta(t, Combine(low, w), 0.5, 0.001)
	assert.Greater(t, Combine(high, w), Combine(low, w))
}

func TestCombine_MonotonicInThreatIntel(t *testing.T) {
	w := DefaultWeights()
	base := RiskFactors{NLP: 0.1, Embedding: 0.1, Behavioral: 0.1, Temporal: 0.1, Geolocation: 0.1, Device: 0.1}
	low := base
	low.ThreatIntel = 0.1
	high := base
	high.ThreatIntel = 0.9

	assert.LessOrEqual(t, Combine(low, w), Combine(high, w))
}

func TestCombine_ClampsToOne(t *testing.T) {
	w := DefaultWeights()
	f := RiskFactors{NLP: 1, Embedding: 1, Behavioral: 1, Temporal: 1, Geolocation: 1, Device: 1, ThreatIntel: 1, Frequency: 1}
	assert.Equal(t, 1.0, Combine(f, w))
}
