package riskengine

import (
	"math"
	"strings"
	"time"
)

// suspiciousUserAgentPatterns mirrors the teacher's bot/CLI/scraper substring
// list used to flag non-browser clients.
var suspiciousUserAgentPatterns = []string{
	"bot", "crawler", "spider", "scraper",
	"curl", "wget", "python", "automation",
}

// isSuspiciousUserAgent reports whether ua looks like a bot, CLI tool, or
// scripted client rather than a browser.
func isSuspiciousUserAgent(ua string) bool {
	lower := strings.ToLower(ua)
	for _, p := range suspiciousUserAgentPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// nlpRisk implements spec.md §4.1's NLP risk calculator. Total: never
// panics, clamps to [0,1].
func nlpRisk(f NLPFeatures) (risk float64) {
	defer func() {
		if recover() != nil {
			risk = 0
		}
	}()

	risk += 0.4 * math.Min(float64(len(f.SuspiciousPatterns))*0.2, 1)
	risk += 0.3 * math.Max(0, (f.CredentialSimilarity-0.7)/0.3)
	if !f.LanguageConsistency {
		risk += 0.2
	}
	risk += 0.1 * math.Max(0, (2.0-f.EmailFeatures.EntropyScore)/2.0)
	if f.PasswordFeatures.ContainsSuspiciousPatterns {
		risk += 0.3
	}

	return clamp01(risk)
}

// embeddingRisk implements spec.md §4.1's embedding risk calculator.
func embeddingRisk(e EmbeddingAnalysis) (risk float64) {
	defer func() {
		if recover() != nil {
			risk = 0
		}
	}()

	risk = 0.5*math.Max(0, (0.5-e.SimilarityToUserProfile)/0.5) +
		0.3*e.SimilarityToAttackPatterns +
		0.2*e.OutlierScore

	return clamp01(risk)
}

// temporalRisk implements spec.md §4.1's temporal risk calculator.
func temporalRisk(ctx AuthContext) (risk float64) {
	defer func() {
		if recover() != nil {
			risk = 0
		}
	}()

	hour := ctx.Timestamp.Hour()
	if hour < 6 || hour > 22 {
		risk += 0.3
	}

	switch ctx.Timestamp.Weekday() {
	case 0, 6: // Sunday, Saturday
		risk += 0.1
	}

	if ctx.TimeSinceLastLogin != nil {
		d := *ctx.TimeSinceLastLogin
		if d < time.Minute {
			risk += 0.4
		} else if d > 30*24*time.Hour {
			risk += 0.2
		}
	}

	return clamp01(risk)
}

// geolocationRisk implements spec.md §4.1's geolocation risk calculator.
func geolocationRisk(ctx AuthContext) (risk float64) {
	defer func() {
		if recover() != nil {
			risk = 0
		}
	}()

	if ctx.Geolocation == nil {
		return 0.1
	}
	if !ctx.Geolocation.IsUsualLocation {
		risk += 0.5
	}

	return clamp01(risk)
}

// deviceRisk implements spec.md §4.1's device risk calculator.
func deviceRisk(ctx AuthContext) (risk float64) {
	defer func() {
		if recover() != nil {
			risk = 0
		}
	}()

	if ctx.IsTorExitNode {
		risk += 0.6
	}
	if ctx.IsVPN {
		risk += 0.3
	}
	if ctx.DeviceFingerprint == "" {
		risk += 0.1
	}
	if isSuspiciousUserAgent(ctx.UserAgent) {
		risk += 0.2
	}

	return clamp01(risk)
}

// threatIntelRisk implements spec.md §4.1's threat-intel risk calculator: a
// pure pass-through of the externally supplied score.
func threatIntelRisk(ctx AuthContext) (risk float64) {
	defer func() {
		if recover() != nil {
			risk = 0
		}
	}()

	return clamp01(ctx.ThreatIntelScore)
}

// frequencyRisk implements spec.md §4.1's frequency risk calculator, given
// the counts of prior attempts observed in the sliding window for this IP
// and this user.
func frequencyRisk(attemptsFromIP, attemptsForUser, previousFailedAttempts int) (risk float64) {
	defer func() {
		if recover() != nil {
			risk = 0
		}
	}()

	if attemptsFromIP > 10 {
		risk += math.Min(float64(attemptsFromIP-10)/20, 1) * 0.6
	}
	if attemptsForUser > 5 {
		risk += math.Min(float64(attemptsForUser-5)/10, 1) * 0.4
	}
	if previousFailedAttempts > 0 {
		risk += math.Min(float64(previousFailedAttempts)/10, 1) * 0.3
	}

	return clamp01(risk)
}

// behavioralRiskFromDeviations derives the behavioral risk factor as the
// average of the three deviation scores the Detector has already computed
// from the temporal, geolocation, and device factors (spec.md §3/§4.1: the
// behavioral factor is "computed downstream from the three deviation
// scores"; this package resolves that to a straight average).
func behavioralRiskFromDeviations(timeDeviation, locationDeviation, deviceDeviation float64) float64 {
	return clamp01((timeDeviation + locationDeviation + deviceDeviation) / 3)
}
