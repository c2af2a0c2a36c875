package riskengine

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
)

// ProfileView is the read-only slice of a UserAdaptiveProfile the Detector
// needs: adaptive thresholds (if any) and the counters that bias the score.
// It breaks the cyclic ownership between the Detector and the Learning
// Engine (spec.md §9): the Detector never touches the profile store
// directly, only this narrow view.
type ProfileView struct {
	AdaptiveThresholds    *RiskThresholds
	FPCount               int
	FNCount               int
	SuccessRateLast30Days float64 // negative means "unavailable"
}

// ThresholdsProvider is the read-only half of the Detector/Learning Engine
// interface split described in spec.md §9.
type ThresholdsProvider interface {
	Profile(email string) ProfileView
}

// Observation is what the Detector reports to the Learning Engine after
// each Detect call: enough to update rolling risk history and behavioral
// patterns, never blocking the request path.
type Observation struct {
	Email      string
	RequestID  uuid.UUID
	Timestamp  time.Time
	Factors    RiskFactors
	Behavioral BehavioralAnalysis
}

// ObservationSink is the write-only half of the Detector/Learning Engine
// interface split. Implementations must not block: spec.md §4.3 requires
// Detect to never block the request path on persistence.
type ObservationSink interface {
	Observe(Observation)
}

// Config carries the Detector's tunable knobs, all sourced from
// internal/config per spec.md §6.
type Config struct {
	Weights            Weights
	DefaultThresholds  RiskThresholds
	MaxProcessingTime  time.Duration
	CacheTTL           time.Duration
	CacheSize          int
}

// DefaultConfig returns the spec-mandated defaults.
func DefaultConfig() Config {
	return Config{
		Weights:           DefaultWeights(),
		DefaultThresholds: DefaultRiskThresholds(),
		MaxProcessingTime: 5 * time.Second,
		CacheTTL:          2500 * time.Millisecond,
		CacheSize:         10000,
	}
}

// Detector is the Anomaly Detector of spec.md §4.3: it orchestrates the
// per-factor calculators, the combiner, the sliding window, and the score
// cache, and exposes the three literal operations detect/score/level plus
// an additive Factors helper the facade can call for the full breakdown.
type Detector struct {
	cfg        Config
	window     *Window
	cache      *ScoreCache
	thresholds ThresholdsProvider
	sink       ObservationSink
}

// NewDetector builds a Detector. thresholds and sink may be nil during
// bring-up/tests; a nil thresholds falls back to defaults and a 0.95
// success rate, a nil sink silently drops observations.
func NewDetector(cfg Config, thresholds ThresholdsProvider, sink ObservationSink) *Detector {
	return &Detector{
		cfg:        cfg,
		window:     NewWindow(),
		cache:      NewScoreCache(cfg.CacheTTL, cfg.CacheSize),
		thresholds: thresholds,
		sink:       sink,
	}
}

// Detect implements spec.md §4.3 operation 1: records the attempt in the
// sliding window, computes all factors, derives BehavioralAnalysis, and
// fires an observation at the Learning Engine. It never blocks past
// cfg.MaxProcessingTime; on deadline it returns a neutral result.
func (d *Detector) Detect(ctx context.Context, actx AuthContext, nlp NLPFeatures, embedding EmbeddingAnalysis) BehavioralAnalysis {
	type result struct{ b BehavioralAnalysis }
	out := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("⚠️  riskengine: Detect panicked, returning neutral result: %v", r)
				out <- result{b: neutralBehavioral()}
			}
		}()
		out <- result{b: d.detectInternal(actx, nlp, embedding)}
	}()

	select {
	case r := <-out:
		return r.b
	case <-time.After(d.cfg.MaxProcessingTime):
		log.Printf("⏱️  riskengine: Detect exceeded max_processing_time for request %s", actx.RequestID)
		return neutralBehavioral()
	case <-ctx.Done():
		return neutralBehavioral()
	}
}

func (d *Detector) detectInternal(actx AuthContext, nlp NLPFeatures, embedding EmbeddingAnalysis) BehavioralAnalysis {
	ipCount, userCount := d.window.Record(actx.ClientIP, actx.Email, actx.Timestamp)
	factors := d.computeFactors(actx, nlp, embedding, ipCount, userCount)

	behavior := BehavioralAnalysis{
		IsUsualTime:            factors.Temporal < 0.3,
		IsUsualLocation:        factors.Geolocation < 0.3,
		IsKnownDevice:          factors.Device < 0.3,
		TimeDeviationScore:     factors.Temporal,
		LocationDeviationScore: factors.Geolocation,
		DeviceDeviationScore:   factors.Device,
		LoginFrequencyAnomaly:  factors.Frequency,
		SuccessRateLast30Days:  d.successRate(actx.Email),
		FailedAttemptsPattern:  map[string]int{"previous_failed": actx.PreviousFailedAttempts},
	}

	if d.sink != nil {
		d.sink.Observe(Observation{
			Email:      actx.Email,
			RequestID:  actx.RequestID,
			Timestamp:  actx.Timestamp,
			Factors:    factors,
			Behavioral: behavior,
		})
	}

	return behavior
}

// Score implements spec.md §4.3 operation 2: a memoized, per-user-adjusted
// raw risk score in [0,1].
func (d *Detector) Score(ctx context.Context, actx AuthContext, nlp NLPFeatures, embedding EmbeddingAnalysis, behavior BehavioralAnalysis) float64 {
	type result struct{ risk float64 }
	out := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("⚠️  riskengine: Score panicked, returning fallback risk: %v", r)
				out <- result{risk: 0.5}
			}
		}()
		out <- result{risk: d.scoreInternal(actx, nlp, embedding)}
	}()

	select {
	case r := <-out:
		return r.risk
	case <-time.After(d.cfg.MaxProcessingTime):
		log.Printf("⏱️  riskengine: Score exceeded max_processing_time for request %s", actx.RequestID)
		return 0.5
	case <-ctx.Done():
		return 0.5
	}
}

func (d *Detector) scoreInternal(actx AuthContext, nlp NLPFeatures, embedding EmbeddingAnalysis) float64 {
	key := scoreCacheKey(actx, nlp, embedding)
	if cached, ok := d.cache.Get(key, actx.Timestamp); ok {
		return cached
	}

	ipCount, userCount := d.window.Peek(actx.ClientIP, actx.Email, actx.Timestamp)
	factors := d.computeFactors(actx, nlp, embedding, ipCount, userCount)
	raw := Combine(factors, d.cfg.Weights)

	view := d.profileView(actx.Email)
	adjusted := raw
	if view.AdaptiveThresholds != nil {
		adjusted += 0.5 * (d.cfg.DefaultThresholds.High - view.AdaptiveThresholds.High)
	}
	if view.FPCount > 5 {
		adjusted -= math.Min(float64(view.FPCount)/50, 0.2)
	}
	if view.FNCount > 2 {
		adjusted += math.Min(float64(view.FNCount)/20, 0.1)
	}
	adjusted = clamp01(adjusted)

	d.cache.Set(key, adjusted, actx.Timestamp)
	return adjusted
}

// Level implements spec.md §4.3 operation 3: classifies risk using the
// user's adaptive thresholds if set, else the configured defaults.
func (d *Detector) Level(email string, risk float64) RiskLevel {
	view := d.profileView(email)
	if view.AdaptiveThresholds != nil {
		return view.AdaptiveThresholds.Level(risk)
	}
	return d.cfg.DefaultThresholds.Level(risk)
}

// Factors recomputes the full RiskFactors breakdown for a login attempt.
// It is additive to the literal spec.md §4.3 API: safe to call any number
// of times (it reads the sliding window through Peek and never records an
// attempt), used by callers that need the per-factor detail behind a risk
// score (the service puts it in AuthAnalysisResult.Factors, which the
// audit log stores).
func (d *Detector) Factors(actx AuthContext, nlp NLPFeatures, embedding EmbeddingAnalysis) RiskFactors {
	ipCount, userCount := d.window.Peek(actx.ClientIP, actx.Email, actx.Timestamp)
	return d.computeFactors(actx, nlp, embedding, ipCount, userCount)
}

func (d *Detector) computeFactors(actx AuthContext, nlp NLPFeatures, embedding EmbeddingAnalysis, ipCount, userCount int) RiskFactors {
	var f RiskFactors
	f.NLP = safeFactor("nlp", func() float64 { return nlpRisk(nlp) })
	f.Embedding = safeFactor("embedding", func() float64 { return embeddingRisk(embedding) })
	f.Temporal = safeFactor("temporal", func() float64 { return temporalRisk(actx) })
	f.Geolocation = safeFactor("geolocation", func() float64 { return geolocationRisk(actx) })
	f.Device = safeFactor("device", func() float64 { return deviceRisk(actx) })
	f.ThreatIntel = safeFactor("threat_intel", func() float64 { return threatIntelRisk(actx) })
	f.Frequency = safeFactor("frequency", func() float64 {
		return frequencyRisk(ipCount, userCount, actx.PreviousFailedAttempts)
	})
	f.Behavioral = behavioralRiskFromDeviations(f.Temporal, f.Geolocation, f.Device)
	return f
}

// safeFactor runs a calculator and substitutes 0 if it panics, per spec.md
// §4.1/§7: calculators are total and a CalculatorFailure is locally
// recovered, never surfaced as a Go error on the request path.
func safeFactor(name string, calc func() float64) (risk float64) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("⚠️  riskengine: %s calculator panicked, substituting 0: %v", name, r)
			risk = 0
		}
	}()
	return calc()
}

func (d *Detector) profileView(email string) ProfileView {
	if d.thresholds == nil {
		return ProfileView{SuccessRateLast30Days: -1}
	}
	return d.thresholds.Profile(email)
}

func (d *Detector) successRate(email string) float64 {
	v := d.profileView(email)
	if v.SuccessRateLast30Days < 0 {
		return 0.95
	}
	return v.SuccessRateLast30Days
}

// neutralBehavioral is the fallback result for a timed-out or fully-failed
// Detect call, per spec.md §4.3/§7.
func neutralBehavioral() BehavioralAnalysis {
	return BehavioralAnalysis{
		IsUsualTime:           true,
		IsUsualLocation:       true,
		IsKnownDevice:         true,
		SuccessRateLast30Days: 0.95,
		FailedAttemptsPattern: map[string]int{},
	}
}
