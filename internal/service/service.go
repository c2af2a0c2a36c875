// Package service is the composition root for the risk engine's external
// operations (spec.md §6): it wires the Anomaly Detector
// (internal/riskengine), the Adaptive Learning Engine
// (internal/learning), and the Risk Policy (internal/policy) into the
// five operations a transport layer calls, the way the teacher's
// internal/services packages sit between internal/handlers and the raw
// building blocks.
package service

import (
	"context"
	"log"
	"time"

	"authrisk/internal/learning"
	"authrisk/internal/policy"
	"authrisk/internal/riskengine"
)

// AuditRecorder is the subset of *learning.AuditLog the service depends on,
// kept as an interface so tests can swap in a no-op.
type AuditRecorder interface {
	Record(ctx riskengine.AuthContext, result riskengine.AuthAnalysisResult) error
}

// DeviceKnower is the subset of *learning.DeviceRegistry the service needs.
type DeviceKnower interface {
	IsKnown(email, fingerprint string) (bool, error)
	Register(email, fingerprint string, at time.Time) error
}

// RiskService is the single entry point a transport (internal/httpapi or
// any other) calls to exercise the full analyze → learn → decide pipeline.
type RiskService struct {
	detector *riskengine.Detector
	engine   *learning.Engine
	audit    AuditRecorder
	devices  DeviceKnower
}

// New builds a RiskService. audit and devices may be nil: durability is a
// supplemented feature, not required for the core operations to be total.
func New(detector *riskengine.Detector, engine *learning.Engine, audit AuditRecorder, devices DeviceKnower) *RiskService {
	return &RiskService{detector: detector, engine: engine, audit: audit, devices: devices}
}

// AnalyzeLoginAttempt implements spec.md §6's analyze_login_attempt: total,
// never throws. Internal panics are recovered into a neutral, low-confidence
// result rather than propagated, per §7's "request path is never fatal".
func (s *RiskService) AnalyzeLoginAttempt(ctx context.Context, actx riskengine.AuthContext, nlp riskengine.NLPFeatures, embedding riskengine.EmbeddingAnalysis) (result riskengine.AuthAnalysisResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("⚠️  service: analyze_login_attempt panicked, returning neutral result: %v", r)
			result = neutralResult(start)
		}
	}()

	behavior := s.detector.Detect(ctx, actx, nlp, embedding)
	risk := s.detector.Score(ctx, actx, nlp, embedding, behavior)
	factors := s.detector.Factors(actx, nlp, embedding)

	thresholds := riskengine.DefaultRiskThresholds()
	if s.engine != nil {
		view := s.engine.Profile(actx.Email)
		thresholds = policy.EffectiveThresholds(view.AdaptiveThresholds, riskengine.DefaultRiskThresholds())
	}

	decision := policy.Evaluate(risk, factors, thresholds)

	var warnings []string
	if s.devices != nil && actx.DeviceFingerprint != "" {
		known, err := s.devices.IsKnown(actx.Email, actx.DeviceFingerprint)
		if err != nil {
			log.Printf("⚠️  service: device lookup failed for %s: %v", actx.Email, err)
		} else if !known {
			warnings = append(warnings, "new_device")
		}
		if err := s.devices.Register(actx.Email, actx.DeviceFingerprint, actx.Timestamp); err != nil {
			log.Printf("⚠️  service: device registration failed for %s: %v", actx.Email, err)
		}
	}

	result = riskengine.AuthAnalysisResult{
		RiskScore:         risk,
		RiskLevel:         decision.Level,
		Decision:          decision.Decision,
		Confidence:        decision.Confidence,
		RequiresTwoFactor: decision.Requires2FA,
		ShouldBlock:       decision.ShouldBlock,
		Factors:           factors,
		ProcessingTime:    time.Since(start),
		Warnings:          warnings,
	}

	if s.engine != nil && decision.Decision == riskengine.DecisionAllow {
		s.engine.RecordSuccess(actx.Email, actx.Timestamp.Hour(), loginLocation(actx), actx.DeviceFingerprint, actx.Timestamp)
	}

	if s.audit != nil {
		if err := s.audit.Record(actx, result); err != nil {
			log.Printf("⚠️  service: audit record failed for %s: %v", actx.Email, err)
		}
	}

	return result
}

// loginLocation derives the typical_locations key from the resolved
// geolocation. An unresolved location yields "", which RecordSuccess treats
// as "unknown" and skips.
func loginLocation(actx riskengine.AuthContext) string {
	if actx.Geolocation == nil {
		return ""
	}
	return actx.Geolocation.Country
}

// neutralResult is returned when analysis fails outright, per spec.md §7:
// confidence is capped at 0.5 and the decision defaults to the safest
// non-blocking option so a transient failure never locks a user out.
func neutralResult(start time.Time) riskengine.AuthAnalysisResult {
	return riskengine.AuthAnalysisResult{
		RiskScore:      0.5,
		RiskLevel:      riskengine.RiskMedium,
		Decision:       riskengine.DecisionRequire2FA,
		Confidence:     0.5,
		ProcessingTime: time.Since(start),
		Warnings:       []string{"internal_error"},
	}
}

// ProvideFeedback implements spec.md §6's provide_feedback: accepts,
// erroring only for a malformed payload.
func (s *RiskService) ProvideFeedback(f learning.AuthFeedback) error {
	return s.engine.Submit(f)
}

// GetAdaptiveThresholds implements spec.md §6's get_adaptive_thresholds.
func (s *RiskService) GetAdaptiveThresholds(email string) riskengine.RiskThresholds {
	return s.engine.GetAdaptiveThresholds(email)
}

// GetPerformanceMetrics implements spec.md §6's get_performance_metrics.
func (s *RiskService) GetPerformanceMetrics() learning.PerformanceSnapshot {
	return s.engine.PerformanceMetricsSnapshot()
}

// RollbackModel implements spec.md §6's rollback_model.
func (s *RiskService) RollbackModel(modelType learning.ModelType, targetVersionID, reason string) bool {
	return s.engine.RollbackModel(modelType, targetVersionID, reason)
}
