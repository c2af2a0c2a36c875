package riskengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNLPRisk_CleanCredentials(t *testing.T) {
	f := NLPFeatures{
		EmailFeatures:        TextFeatures{EntropyScore: 3.0},
		PasswordFeatures:     TextFeatures{},
		CredentialSimilarity: 0.0,
		LanguageConsistency:  true,
	}
	assert.InDelta(t, 0.0, nlpRisk(f), 0.001)
}

func TestNLPRisk_SuspiciousEverything(t *testing.T) {
	f := NLPFeatures{
		EmailFeatures:        TextFeatures{EntropyScore: 0.0},
		PasswordFeatures:     TextFeatures{ContainsSuspiciousPatterns: true},
		CredentialSimilarity: 1.0,
		LanguageConsistency:  false,
		SuspiciousPatterns:   []string{"a", "b", "c", "d", "e"},
	}
	assert.InDelta(t, 1.0, nlpRisk(f), 0.001)
}

func TestEmbeddingRisk(t *testing.T) {
	cases := []struct {
		name     string
		e        EmbeddingAnalysis
		expected float64
	}{
		{"familiar profile, no attack signal", EmbeddingAnalysis{SimilarityToUserProfile: 0.9, SimilarityToAttackPatterns: 0.0, OutlierScore: 0.1}, 0.02},
		{"unfamiliar and attack-like", EmbeddingAnalysis{SimilarityToUserProfile: 0.0, SimilarityToAttackPatterns: 1.0, OutlierScore: 1.0}, 1.0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.InDelta(t, c.expected, embeddingRisk(c.e), 0.01)
		})
	}
}

func TestTemporalRisk_OddHour(t *testing.T) {
	ctx := AuthContext{Timestamp: time.Date(2026, 1, 6, 3, 0, 0, 0, time.UTC)} // Tuesday 03:00
	assert.InDelta(t, 0.3, temporalRisk(ctx), 0.001)
}

func TestTemporalRisk_Weekday14(t *testing.T) {
	ctx := AuthContext{Timestamp: time.Date(2026, 1, 6, 14, 0, 0, 0, time.UTC)} // Tuesday 14:00
	assert.InDelta(t, 0.0, temporalRisk(ctx), 0.001)
}

func TestTemporalRisk_RapidRelogin(t *testing.T) {
	d := 30 * time.Second
	ctx := AuthContext{
		Timestamp:          time.Date(2026, 1, 6, 14, 0, 0, 0, time.UTC),
		TimeSinceLastLogin: &d,
	}
	assert.InDelta(t, 0.4, temporalRisk(ctx), 0.001)
}

func TestGeolocationRisk(t *testing.T) {
	assert.InDelta(t, 0.1, geolocationRisk(AuthContext{}), 0.001)
	assert.InDelta(t, 0.0, geolocationRisk(AuthContext{Geolocation: &GeoInfo{IsUsualLocation: true}}), 0.001)
	assert.InDelta(t, 0.5, geolocationRisk(AuthContext{Geolocation: &GeoInfo{IsUsualLocation: false}}), 0.001)
}

func TestDeviceRisk_TorPlusUnknownDevicePlusBot(t *testing.T) {
	ctx := AuthContext{IsTorExitNode: true, UserAgent: "curl/8.0"}
	assert.InDelta(t, 0.9, deviceRisk(ctx), 0.001) // 0.6 tor + 0.1 no fingerprint + 0.2 suspicious UA
}

func TestFrequencyRisk(t *testing.T) {
	assert.InDelta(t, 0.0, frequencyRisk(5, 2, 0), 0.001)
	assert.InDelta(t, 1.0, frequencyRisk(30, 15, 4), 0.001)
}

func TestIsSuspiciousUserAgent(t *testing.T) {
	assert.True(t, isSuspiciousUserAgent("curl/8.0"))
	assert.True(t, isSuspiciousUserAgent("Mozilla/5.0 (compatible; Googlebot/2.1)"))
	assert.False(t, isSuspiciousUserAgent("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"))
}

func TestBehavioralRiskFromDeviations(t *testing.T) {
	assert.InDelta(t, 0.2, behavioralRiskFromDeviations(0.0, 0.3, 0.3), 0.001)
}
