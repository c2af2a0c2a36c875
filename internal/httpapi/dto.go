package httpapi

import (
	"time"

	"github.com/google/uuid"

	"authrisk/internal/learning"
	"authrisk/internal/riskengine"
)

// AnalyzeLoginRequest is the wire shape of analyze_login_attempt's three
// inputs (spec.md §6), generalized from the teacher's
// EvaluateAuthenticationRequest to the spec's AuthContext/NLPFeatures/
// EmbeddingAnalysis triple.
type AnalyzeLoginRequest struct {
	Email                  string            `json:"email" binding:"required"`
	DeviceFingerprint      string            `json:"device_fingerprint"`
	Geolocation            *GeoLocationDTO   `json:"geolocation,omitempty"`
	IsTorExitNode          bool              `json:"is_tor_exit_node"`
	IsVPN                  bool              `json:"is_vpn"`
	ThreatIntelScore       float64           `json:"threat_intel_score"`
	PreviousFailedAttempts int               `json:"previous_failed_attempts"`
	TimeSinceLastLoginSec  *int64            `json:"time_since_last_login_seconds,omitempty"`

	NLP       NLPFeaturesDTO      `json:"nlp"`
	Embedding EmbeddingAnalysisDTO `json:"embedding"`
}

// GeoLocationDTO mirrors riskengine.GeoInfo for wire transport.
type GeoLocationDTO struct {
	Country         string `json:"country"`
	City            string `json:"city"`
	IsUsualLocation bool   `json:"is_usual_location"`
}

// NLPFeaturesDTO mirrors riskengine.NLPFeatures for wire transport.
type NLPFeaturesDTO struct {
	EmailEntropy               float64  `json:"email_entropy_score"`
	EmailSuspicious            bool     `json:"email_contains_suspicious_patterns"`
	PasswordEntropy            float64  `json:"password_entropy_score"`
	PasswordSuspicious         bool     `json:"password_contains_suspicious_patterns"`
	CredentialSimilarity       float64  `json:"credential_similarity"`
	LanguageConsistency        bool     `json:"language_consistency"`
	SuspiciousPatterns         []string `json:"suspicious_patterns"`
}

// EmbeddingAnalysisDTO mirrors riskengine.EmbeddingAnalysis for wire transport.
type EmbeddingAnalysisDTO struct {
	SimilarityToUserProfile    float64 `json:"similarity_to_user_profile"`
	SimilarityToAttackPatterns float64 `json:"similarity_to_attack_patterns"`
	OutlierScore               float64 `json:"outlier_score"`
}

// ToDomain converts the wire request into the riskengine/learning domain
// types the service layer operates on. clientIP/userAgent/requestID come
// from the transport (gin.Context), not the JSON body.
func (r AnalyzeLoginRequest) ToDomain(clientIP, userAgent string, requestID uuid.UUID, now time.Time) (riskengine.AuthContext, riskengine.NLPFeatures, riskengine.EmbeddingAnalysis) {
	var geo *riskengine.GeoInfo
	if r.Geolocation != nil {
		geo = &riskengine.GeoInfo{
			Country:         r.Geolocation.Country,
			City:            r.Geolocation.City,
			IsUsualLocation: r.Geolocation.IsUsualLocation,
		}
	}

	var sinceLast *time.Duration
	if r.TimeSinceLastLoginSec != nil {
		d := time.Duration(*r.TimeSinceLastLoginSec) * time.Second
		sinceLast = &d
	}

	actx := riskengine.AuthContext{
		Email:                  r.Email,
		ClientIP:               clientIP,
		UserAgent:              userAgent,
		Timestamp:              now,
		RequestID:              requestID,
		Geolocation:            geo,
		DeviceFingerprint:      r.DeviceFingerprint,
		IsTorExitNode:          r.IsTorExitNode,
		IsVPN:                  r.IsVPN,
		ThreatIntelScore:       r.ThreatIntelScore,
		PreviousFailedAttempts: r.PreviousFailedAttempts,
		TimeSinceLastLogin:     sinceLast,
	}

	nlp := riskengine.NLPFeatures{
		EmailFeatures:        riskengine.TextFeatures{EntropyScore: r.NLP.EmailEntropy, ContainsSuspiciousPatterns: r.NLP.EmailSuspicious},
		PasswordFeatures:     riskengine.TextFeatures{EntropyScore: r.NLP.PasswordEntropy, ContainsSuspiciousPatterns: r.NLP.PasswordSuspicious},
		CredentialSimilarity: r.NLP.CredentialSimilarity,
		LanguageConsistency:  r.NLP.LanguageConsistency,
		SuspiciousPatterns:   r.NLP.SuspiciousPatterns,
	}

	embedding := riskengine.EmbeddingAnalysis{
		SimilarityToUserProfile:    r.Embedding.SimilarityToUserProfile,
		SimilarityToAttackPatterns: r.Embedding.SimilarityToAttackPatterns,
		OutlierScore:               r.Embedding.OutlierScore,
	}

	return actx, nlp, embedding
}

// AnalyzeLoginResponse is the wire shape of AuthAnalysisResult.
type AnalyzeLoginResponse struct {
	RiskScore      float64             `json:"risk_score"`
	RiskLevel      riskengine.RiskLevel `json:"risk_level"`
	Decision       riskengine.Decision  `json:"decision"`
	Confidence     float64             `json:"confidence"`
	Requires2FA    bool                `json:"requires_2fa"`
	ShouldBlock    bool                `json:"should_block"`
	Factors        riskengine.RiskFactors `json:"factors"`
	ProcessingTime string              `json:"processing_time"`
	Warnings       []string            `json:"warnings,omitempty"`
}

// FromDomain converts an AuthAnalysisResult into its wire response.
func FromDomain(result riskengine.AuthAnalysisResult) AnalyzeLoginResponse {
	return AnalyzeLoginResponse{
		RiskScore:      result.RiskScore,
		RiskLevel:      result.RiskLevel,
		Decision:       result.Decision,
		Confidence:     result.Confidence,
		Requires2FA:    result.RequiresTwoFactor,
		ShouldBlock:    result.ShouldBlock,
		Factors:        result.Factors,
		ProcessingTime: result.ProcessingTime.String(),
		Warnings:       result.Warnings,
	}
}

// FeedbackRequest is the wire shape of provide_feedback's AuthFeedback.
type FeedbackRequest struct {
	UserID            string  `json:"user_id" binding:"required"`
	RequestID         string  `json:"request_id"`
	OriginalRiskScore float64 `json:"original_risk_score"`
	OriginalDecision  string  `json:"original_decision"`
	IsFalsePositive   bool    `json:"is_false_positive"`
	IsFalseNegative   bool    `json:"is_false_negative"`
	IsCorrect         bool    `json:"is_correct"`
	Confidence        float64 `json:"confidence"`
	Source            string  `json:"source" binding:"required"`
	ActualOutcome     string  `json:"actual_outcome,omitempty"`
}

// ToDomain converts a FeedbackRequest into learning.AuthFeedback. A
// malformed request_id is treated as absent rather than rejected outright;
// Validate() is what decides whether the feedback itself is acceptable.
func (r FeedbackRequest) ToDomain(now time.Time) learning.AuthFeedback {
	var reqID uuid.UUID
	if parsed, err := uuid.Parse(r.RequestID); err == nil {
		reqID = parsed
	}

	return learning.AuthFeedback{
		UserID:            r.UserID,
		RequestID:         reqID,
		Timestamp:         now,
		OriginalRiskScore: r.OriginalRiskScore,
		OriginalDecision:  riskengine.Decision(r.OriginalDecision),
		IsFalsePositive:   r.IsFalsePositive,
		IsFalseNegative:   r.IsFalseNegative,
		IsCorrect:         r.IsCorrect,
		Confidence:        r.Confidence,
		Source:            learning.FeedbackSource(r.Source),
		ActualOutcome:     r.ActualOutcome,
	}
}

// RollbackRequest is the wire shape of rollback_model.
type RollbackRequest struct {
	ModelType       string `json:"model_type" binding:"required"`
	TargetVersionID string `json:"target_version_id,omitempty"`
	Reason          string `json:"reason" binding:"required"`
}
