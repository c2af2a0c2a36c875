// Package learning implements the Adaptive Learning Engine of spec.md §4.4:
// per-user behavioral profiles, labeled-feedback ingestion, threshold
// adaptation, model versioning with auto-rollback, and the background
// workers that drive all of it. It owns the profiles and model-version
// state the Detector only reads through the riskengine.ThresholdsProvider
// and riskengine.ObservationSink interfaces.
package learning

import (
	"encoding/json"
	"sync"
	"time"

	"authrisk/internal/riskengine"
)

const (
	maxRiskHistory       = 500
	maxFeedbackHistory   = 1000
	maxTypicalHours      = 50
	maxTypicalLocations  = 20
	maxTypicalDevices    = 10
	maxThresholdAdjustHistory = 100
)

// RiskHistoryEntry is one rolling observation recorded by the Detector.
type RiskHistoryEntry struct {
	Timestamp time.Time         `json:"timestamp"`
	RiskScore float64           `json:"risk_score"`
	RiskLevel riskengine.RiskLevel `json:"risk_level"`
}

// ThresholdAdjustment records one adjust_thresholds mutation, for audit
// and for the bounded history spec.md §4.4 requires.
type ThresholdAdjustment struct {
	Timestamp time.Time                `json:"timestamp"`
	Raise     bool                     `json:"raise"`
	Before    riskengine.RiskThresholds `json:"before"`
	After     riskengine.RiskThresholds `json:"after"`
	Reason    string                   `json:"reason"`
}

// UserAdaptiveProfile is spec.md §3's UserAdaptiveProfile: per-email state
// accumulated across logins and feedback, with bounded collections
// throughout (spec.md §5 memory bounds, property 5 in §8).
type UserAdaptiveProfile struct {
	mu *sync.Mutex

	UserID      string    `json:"user_id"`
	BaselineRisk float64  `json:"baseline_risk"`

	RiskHistory     []RiskHistoryEntry `json:"risk_history"`
	FeedbackHistory []AuthFeedback     `json:"feedback_history"`

	FPCount      int `json:"fp_count"`
	FNCount      int `json:"fn_count"`
	CorrectCount int `json:"correct_count"`

	AdaptiveThresholds *riskengine.RiskThresholds `json:"adaptive_thresholds,omitempty"`
	ThresholdHistory   []ThresholdAdjustment      `json:"threshold_history"`

	TypicalLoginHours []int      `json:"typical_login_hours"`
	TypicalLocations  []string   `json:"typical_locations"`
	TypicalDevices    []string   `json:"typical_devices"`

	CreatedAt        time.Time `json:"created_at"`
	LastActivityAt   time.Time `json:"last_activity_at"`
	LastFeedbackAt   time.Time `json:"last_feedback_at"`

	// Unknown carries forward-compatible JSON fields the current schema
	// doesn't know about, per spec.md §9 ("dynamic dicts... unknown JSON
	// fields preserved in a side map").
	Unknown map[string]interface{} `json:"-"`
}

// NewUserAdaptiveProfile creates an empty profile for userID (an email),
// created on first observation per spec.md §3's lifecycle note.
func NewUserAdaptiveProfile(userID string, now time.Time) *UserAdaptiveProfile {
	return &UserAdaptiveProfile{
		mu:             &sync.Mutex{},
		UserID:         userID,
		RiskHistory:    make([]RiskHistoryEntry, 0, 16),
		FeedbackHistory: make([]AuthFeedback, 0, 16),
		ThresholdHistory: make([]ThresholdAdjustment, 0, 4),
		TypicalLoginHours: make([]int, 0, 8),
		TypicalLocations:  make([]string, 0, 4),
		TypicalDevices:    make([]string, 0, 4),
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

// RecordObservation appends a risk-history entry, bounded to
// maxRiskHistory with FIFO eviction of the oldest entry.
func (p *UserAdaptiveProfile) RecordObservation(entry RiskHistoryEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.RiskHistory = append(p.RiskHistory, entry)
	if over := len(p.RiskHistory) - maxRiskHistory; over > 0 {
		p.RiskHistory = append(p.RiskHistory[:0], p.RiskHistory[over:]...)
	}
	p.LastActivityAt = entry.Timestamp
}

// RecordSuccessPattern unions a successful login's hour/location/device
// into the typical_* sets, per spec.md §4.4's update_behavioral_model,
// enforcing bounded sizes with FIFO eviction.
func (p *UserAdaptiveProfile) RecordSuccessPattern(hour int, location, device string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.TypicalLoginHours = unionIntBounded(p.TypicalLoginHours, hour, maxTypicalHours)
	if location != "" {
		p.TypicalLocations = unionStringBounded(p.TypicalLocations, location, maxTypicalLocations)
	}
	if device != "" {
		p.TypicalDevices = unionStringBounded(p.TypicalDevices, device, maxTypicalDevices)
	}
}

func unionIntBounded(set []int, v int, max int) []int {
	for _, e := range set {
		if e == v {
			return set
		}
	}
	set = append(set, v)
	if over := len(set) - max; over > 0 {
		set = append(set[:0], set[over:]...)
	}
	return set
}

func unionStringBounded(set []string, v string, max int) []string {
	for _, e := range set {
		if e == v {
			return set
		}
	}
	set = append(set, v)
	if over := len(set) - max; over > 0 {
		set = append(set[:0], set[over:]...)
	}
	return set
}

// IsUsualHour reports whether hour is among the profile's typical hours.
// An empty set (no history yet) is treated as "no information": callers
// should not penalize it.
func (p *UserAdaptiveProfile) IsUsualHour(hour int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range p.TypicalLoginHours {
		if h == hour {
			return true
		}
	}
	return len(p.TypicalLoginHours) == 0
}

// Metrics are the derived accuracy/precision/recall/f1 spec.md §3 requires.
// Precision/recall treat the correct counter as a proxy for true positives
// (documented in DESIGN.md: spec.md's three-counter model doesn't carry a
// separate true-negative count).
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// DeriveMetrics computes the profile's current accuracy/precision/recall/f1.
func (p *UserAdaptiveProfile) DeriveMetrics() Metrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return computeMetrics(p.CorrectCount, p.FPCount, p.FNCount)
}

func computeMetrics(correct, fp, fn int) Metrics {
	total := correct + fp + fn
	if total == 0 {
		return Metrics{}
	}

	m := Metrics{Accuracy: float64(correct) / float64(total)}

	if correct+fp > 0 {
		m.Precision = float64(correct) / float64(correct+fp)
	}
	if correct+fn > 0 {
		m.Recall = float64(correct) / float64(correct+fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

var profileKnownFields = map[string]bool{
	"user_id": true, "baseline_risk": true, "risk_history": true,
	"feedback_history": true, "fp_count": true, "fn_count": true,
	"correct_count": true, "adaptive_thresholds": true, "threshold_history": true,
	"typical_login_hours": true, "typical_locations": true, "typical_devices": true,
	"created_at": true, "last_activity_at": true, "last_feedback_at": true,
}

// MarshalJSON re-merges Unknown fields into the output object, so a
// round-tripped profile preserves keys this schema version doesn't know
// about, per spec.md §9.
func (p *UserAdaptiveProfile) MarshalJSON() ([]byte, error) {
	if p.mu != nil {
		p.mu.Lock()
		defer p.mu.Unlock()
	}

	type alias UserAdaptiveProfile
	base, err := json.Marshal((*alias)(p))
	if err != nil {
		return nil, err
	}
	if len(p.Unknown) == 0 {
		return base, nil
	}

	var m map[string]interface{}
	if err := json.Unmarshal(base, &m); err != nil {
		return nil, err
	}
	for k, v := range p.Unknown {
		if _, exists := m[k]; !exists {
			m[k] = v
		}
	}
	return json.Marshal(m)
}

// UnmarshalJSON loads known fields normally and stashes any remaining keys
// into Unknown for forward-compatible round-tripping.
func (p *UserAdaptiveProfile) UnmarshalJSON(data []byte) error {
	type alias UserAdaptiveProfile
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*p = UserAdaptiveProfile(a)
	p.mu = &sync.Mutex{}

	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	unknown := make(map[string]interface{})
	for k, v := range m {
		if !profileKnownFields[k] {
			unknown[k] = v
		}
	}
	p.Unknown = unknown
	return nil
}

// EligibleForGC reports whether the profile has had no feedback and no
// activity in the given retention window, per spec.md §3's lifecycle note
// and §4.4's profile GC worker.
func (p *UserAdaptiveProfile) EligibleForGC(now time.Time, retention time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.FeedbackHistory) > 0 {
		return false
	}
	return now.Sub(p.LastActivityAt) > retention
}
