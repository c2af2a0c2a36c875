package learning

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"authrisk/internal/riskengine"
)

// EngineConfig carries the tunables spec.md §6 lists for the Learning
// Engine: threshold adjustment, auto-rollback, feedback processing, and
// profile retention.
type EngineConfig struct {
	ThresholdAdjustmentStep     float64
	MaxThresholdAdjustment      float64
	MinSamplesForAdaptation     int
	MinThresholdValue           float64
	MaxThresholdValue           float64
	FeedbackConfidenceThreshold float64
	FeedbackWeightAdmin         float64
	FeedbackWeightUser          float64
	FeedbackWeightSystem        float64
	MaxModelVersions            int
	AutoRollbackThreshold       float64
	FeedbackQueueCapacity       int
	FeedbackBatchSize           int
	FeedbackProcessInterval     time.Duration
	ModelOptimizeInterval       time.Duration
	ProfileRetention            time.Duration
	FeedbackRetention           time.Duration
}

// DefaultEngineConfig returns spec.md §6's default knobs.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ThresholdAdjustmentStep:     0.05,
		MaxThresholdAdjustment:      0.3,
		MinSamplesForAdaptation:     10,
		MinThresholdValue:           0.1,
		MaxThresholdValue:           0.95,
		FeedbackConfidenceThreshold: 0.7,
		FeedbackWeightAdmin:         2.0,
		FeedbackWeightUser:          1.0,
		FeedbackWeightSystem:        0.5,
		MaxModelVersions:            10,
		AutoRollbackThreshold:       0.10,
		FeedbackQueueCapacity:       10000,
		FeedbackBatchSize:           100,
		FeedbackProcessInterval:     10 * time.Second,
		ModelOptimizeInterval:       time.Hour,
		ProfileRetention:            90 * 24 * time.Hour,
		FeedbackRetention:           90 * 24 * time.Hour,
	}
}

// metrics holds the engine's counters. FeedbackQueueDrops is incremented
// whenever a feedback item or an observation is dropped because its queue
// is full (spec.md §7's QueueOverflow error kind: metric only, never
// surfaced to the caller).
type metrics struct {
	mu                 sync.Mutex
	FeedbackQueueDrops int64
	TimeoutCount       int64
}

// Engine is the Adaptive Learning Engine of spec.md §4.4. It owns the
// profiles map and the model-version store, implements
// riskengine.ThresholdsProvider (read path) and riskengine.ObservationSink
// (write path) so the Detector never imports this package, and runs the
// feedback-processor and model-optimizer background workers.
type Engine struct {
	cfg EngineConfig

	profilesMu sync.Mutex
	profiles   map[string]*UserAdaptiveProfile

	versions *VersionStore

	feedbackQueue chan AuthFeedback
	observeQueue  chan riskengine.Observation

	metrics metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine constructs an Engine with empty state. Call ImportProfiles and
// ImportVersions (or store.SnapshotStore.LoadIntoEngine) afterward to
// restore persisted profiles/versions, and Start to launch the background
// workers.
func NewEngine(cfg EngineConfig) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:           cfg,
		profiles:      make(map[string]*UserAdaptiveProfile),
		versions:      NewVersionStore(cfg.MaxModelVersions),
		feedbackQueue: make(chan AuthFeedback, cfg.FeedbackQueueCapacity),
		observeQueue:  make(chan riskengine.Observation, cfg.FeedbackQueueCapacity),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start launches the background workers: the feedback processor and the
// hourly model optimizer, plus the observation drainer that applies
// Detect's fire-and-forget writes. Mirrors the teacher's
// NewSecurityMonitoringService's "construct then go func() worker()"
// shape.
func (e *Engine) Start() {
	e.wg.Add(3)
	go e.observationDrainer()
	go e.feedbackProcessor()
	go e.modelOptimizer()
	log.Println("✅ Adaptive learning engine workers started")
}

// Shutdown signals all background workers to flush and exit, then waits
// (bounded by the caller's context) for them to finish.
func (e *Engine) Shutdown(ctx context.Context) {
	e.cancel()
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Println("✅ Adaptive learning engine workers stopped cleanly")
	case <-ctx.Done():
		log.Println("⚠️ Adaptive learning engine shutdown deadline exceeded")
	}
}

// --- riskengine.ThresholdsProvider ---

// Profile implements riskengine.ThresholdsProvider: a read-only snapshot
// of the fields the Detector needs.
func (e *Engine) Profile(email string) riskengine.ProfileView {
	p := e.getOrCreateProfile(email, time.Now())

	p.mu.Lock()
	defer p.mu.Unlock()

	view := riskengine.ProfileView{
		AdaptiveThresholds:    p.AdaptiveThresholds,
		FPCount:               p.FPCount,
		FNCount:               p.FNCount,
		SuccessRateLast30Days: -1,
	}
	if n := len(p.RiskHistory); n > 0 {
		view.SuccessRateLast30Days = successRateFromHistory(p.RiskHistory, time.Now())
	}
	return view
}

func successRateFromHistory(history []RiskHistoryEntry, now time.Time) float64 {
	cutoff := now.Add(-30 * 24 * time.Hour)
	total, low := 0, 0
	for _, h := range history {
		if h.Timestamp.Before(cutoff) {
			continue
		}
		total++
		if h.RiskLevel == riskengine.RiskLow || h.RiskLevel == riskengine.RiskMedium {
			low++
		}
	}
	if total == 0 {
		return -1
	}
	return float64(low) / float64(total)
}

// --- riskengine.ObservationSink ---

// Observe implements riskengine.ObservationSink: a non-blocking,
// fire-and-forget enqueue. If the queue is full the observation is
// dropped and a metric is incremented (spec.md §7 QueueOverflow).
func (e *Engine) Observe(o riskengine.Observation) {
	select {
	case e.observeQueue <- o:
	default:
		e.metrics.mu.Lock()
		e.metrics.FeedbackQueueDrops++
		e.metrics.mu.Unlock()
		log.Printf("⚠️ observation queue full, dropping observation for request %s", o.RequestID)
	}
}

func (e *Engine) observationDrainer() {
	defer e.wg.Done()
	for {
		select {
		case o := <-e.observeQueue:
			e.applyObservation(o)
		case <-e.ctx.Done():
			e.drainObservationsOnShutdown()
			return
		}
	}
}

func (e *Engine) drainObservationsOnShutdown() {
	for {
		select {
		case o := <-e.observeQueue:
			e.applyObservation(o)
		default:
			return
		}
	}
}

func (e *Engine) applyObservation(o riskengine.Observation) {
	p := e.getOrCreateProfile(o.Email, o.Timestamp)
	level := riskengine.DefaultRiskThresholds().Level(combinedFromFactors(o.Factors))
	p.RecordObservation(RiskHistoryEntry{
		Timestamp: o.Timestamp,
		RiskScore: combinedFromFactors(o.Factors),
		RiskLevel: level,
	})
}

// combinedFromFactors recombines a stored factor breakdown with default
// weights, used only to label rolling history; the authoritative score for
// the request itself was already computed by Detector.Score.
func combinedFromFactors(f riskengine.RiskFactors) float64 {
	return riskengine.Combine(f, riskengine.DefaultWeights())
}

// --- Feedback ingestion (spec.md §4.4) ---

// Submit implements submit(feedback): validates, enqueues, and applies
// synchronously when confidence clears the configured threshold.
func (e *Engine) Submit(f AuthFeedback) error {
	if err := f.Validate(); err != nil {
		return err
	}

	select {
	case e.feedbackQueue <- f:
	default:
		e.metrics.mu.Lock()
		e.metrics.FeedbackQueueDrops++
		e.metrics.mu.Unlock()
		log.Printf("⚠️ feedback queue full, dropping feedback for request %s", f.RequestID)
		return nil
	}

	if f.Confidence >= e.cfg.FeedbackConfidenceThreshold {
		e.applyOne(f)
	}
	return nil
}

// applyOne implements apply(feedback, profile): append to history, adjust
// counters, and call adjust_thresholds.
func (e *Engine) applyOne(f AuthFeedback) {
	p := e.getOrCreateProfile(f.UserID, f.Timestamp)

	p.mu.Lock()
	p.FeedbackHistory = append(p.FeedbackHistory, f)
	if over := len(p.FeedbackHistory) - maxFeedbackHistory; over > 0 {
		p.FeedbackHistory = append(p.FeedbackHistory[:0], p.FeedbackHistory[over:]...)
	}
	switch {
	case f.IsFalsePositive:
		p.FPCount++
	case f.IsFalseNegative:
		p.FNCount++
	case f.IsCorrect:
		p.CorrectCount++
	}
	p.LastFeedbackAt = f.Timestamp
	samples := p.FPCount + p.FNCount + p.CorrectCount
	p.mu.Unlock()

	// min_samples_for_adaptation (spec.md §6): a profile needs a minimum
	// amount of feedback before its thresholds are allowed to drift, so a
	// single early label can't swing a brand-new profile's decisions.
	if samples < e.cfg.MinSamplesForAdaptation {
		return
	}

	if f.IsFalsePositive {
		AdjustThresholds(p, true, e.cfg.ThresholdAdjustmentStep, e.cfg.MinThresholdValue, e.cfg.MaxThresholdValue,
			e.cfg.MaxThresholdAdjustment, "false_positive_feedback", f.Timestamp)
	} else if f.IsFalseNegative {
		AdjustThresholds(p, false, e.cfg.ThresholdAdjustmentStep, e.cfg.MinThresholdValue, e.cfg.MaxThresholdValue,
			e.cfg.MaxThresholdAdjustment, "false_negative_feedback", f.Timestamp)
	}
}

// feedbackProcessor drains up to FeedbackBatchSize queued feedback items
// every FeedbackProcessInterval and applies them, per spec.md §4.4's
// background worker 1. This picks up anything Submit didn't apply
// synchronously (confidence below threshold).
func (e *Engine) feedbackProcessor() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.FeedbackProcessInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.drainFeedbackBatch()
		case <-e.ctx.Done():
			e.drainFeedbackBatch()
			return
		}
	}
}

func (e *Engine) drainFeedbackBatch() {
	for i := 0; i < e.cfg.FeedbackBatchSize; i++ {
		select {
		case f := <-e.feedbackQueue:
			if f.Confidence < e.cfg.FeedbackConfidenceThreshold {
				e.applyOne(f)
			}
		default:
			return
		}
	}
}

// --- Model optimizer (spec.md §4.4's hourly background worker 2) ---

func (e *Engine) modelOptimizer() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.ModelOptimizeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.runAutoRollback()
			e.runProfileGC()
		case <-e.ctx.Done():
			return
		}
	}
}

// runAutoRollback checks every model_type's active version against its
// predecessor and rolls back if f1 regressed by at least
// AutoRollbackThreshold, per spec.md §4.4/§8 property 7.
func (e *Engine) runAutoRollback() {
	for _, mt := range []ModelType{ModelThresholds, ModelWeights, ModelBehavioralModel} {
		active, ok := e.versions.Active(mt)
		if !ok {
			continue
		}
		previous, ok := e.versions.Previous(mt)
		if !ok {
			continue
		}
		if previous.PerformanceMetrics.F1-active.PerformanceMetrics.F1 >= e.cfg.AutoRollbackThreshold {
			reason := autoRollbackReason(previous.PerformanceMetrics.F1, active.PerformanceMetrics.F1)
			if _, err := e.versions.Rollback(mt, previous.VersionID, reason); err != nil {
				log.Printf("⚠️ auto-rollback for %s failed: %v", mt, err)
				continue
			}
			log.Printf("🔁 auto-rollback triggered for %s: %s", mt, reason)
		}
	}
}

func autoRollbackReason(previousF1, currentF1 float64) string {
	return fmt.Sprintf("auto_rollback_perf_drop_%.3f_to_%.3f", previousF1, currentF1)
}

// runProfileGC prunes feedback older than FeedbackRetention and drops
// profiles inactive (and feedback-free) for longer than ProfileRetention,
// per spec.md §4.4. Derived metrics are not stored on profiles;
// DeriveMetrics and PerformanceMetricsSnapshot compute them from the
// counters on read.
func (e *Engine) runProfileGC() {
	now := time.Now()

	e.profilesMu.Lock()
	defer e.profilesMu.Unlock()

	for id, p := range e.profiles {
		p.mu.Lock()
		cutoff := now.Add(-e.cfg.FeedbackRetention)
		kept := p.FeedbackHistory[:0:0]
		for _, f := range p.FeedbackHistory {
			if f.Timestamp.After(cutoff) {
				kept = append(kept, f)
			}
		}
		p.FeedbackHistory = kept
		p.mu.Unlock()

		if p.EligibleForGC(now, e.cfg.ProfileRetention) {
			delete(e.profiles, id)
			log.Printf("🧹 garbage-collected inactive profile %s", id)
		}
	}
}

// --- Persistence (spec.md §6's whole-file JSON snapshots) ---

// ExportProfiles returns a snapshot of the profiles map for persistence.
// The returned map is safe to marshal directly: UserAdaptiveProfile's own
// MarshalJSON handles the per-profile mutex and Unknown side-map.
func (e *Engine) ExportProfiles() map[string]*UserAdaptiveProfile {
	e.profilesMu.Lock()
	defer e.profilesMu.Unlock()

	out := make(map[string]*UserAdaptiveProfile, len(e.profiles))
	for k, v := range e.profiles {
		out[k] = v
	}
	return out
}

// ImportProfiles replaces the in-memory profiles map wholesale, used when
// restoring from a snapshot at startup.
func (e *Engine) ImportProfiles(profiles map[string]*UserAdaptiveProfile) {
	e.profilesMu.Lock()
	defer e.profilesMu.Unlock()
	e.profiles = profiles
}

// ExportVersions returns a snapshot of the version store for persistence.
func (e *Engine) ExportVersions() map[ModelType][]*ModelVersion {
	return e.versions.Snapshot()
}

// ImportVersions replaces the version store's contents wholesale, used when
// restoring from a snapshot at startup.
func (e *Engine) ImportVersions(data map[ModelType][]*ModelVersion) {
	e.versions.Restore(data)
}

// --- Profile access ---

func (e *Engine) getOrCreateProfile(email string, now time.Time) *UserAdaptiveProfile {
	e.profilesMu.Lock()
	defer e.profilesMu.Unlock()

	p, ok := e.profiles[email]
	if !ok {
		p = NewUserAdaptiveProfile(email, now)
		e.profiles[email] = p
	}
	return p
}

// RecordSuccess implements update_behavioral_model(user, context, success)
// for the success=true case (spec.md §4.4): it unions the login's hour,
// location, and device into the profile's typical_* sets. location/device
// of "" are treated as "unknown" and skipped, per RecordSuccessPattern.
func (e *Engine) RecordSuccess(email string, hour int, location, device string, now time.Time) {
	p := e.getOrCreateProfile(email, now)
	p.RecordSuccessPattern(hour, location, device)
}

// GetAdaptiveThresholds implements get_adaptive_thresholds(user_id), per
// spec.md §6: defaults if the user has none set.
func (e *Engine) GetAdaptiveThresholds(email string) riskengine.RiskThresholds {
	p := e.getOrCreateProfile(email, time.Now())
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.AdaptiveThresholds != nil {
		return *p.AdaptiveThresholds
	}
	return riskengine.DefaultRiskThresholds()
}

// CreateModelVersion implements create_model_version, returning the new
// version's id.
func (e *Engine) CreateModelVersion(modelType ModelType, data map[string]interface{}, metrics PerformanceMetrics) string {
	id := e.versions.Create(modelType, data, metrics, time.Now())
	return id.String()
}

// RollbackModel implements rollback_model(model_type, target_version_id?,
// reason), per spec.md §6. An empty targetVersionID rolls back to the
// previous version.
func (e *Engine) RollbackModel(modelType ModelType, targetVersionID, reason string) bool {
	id := uuid.Nil
	if targetVersionID != "" {
		parsed, err := uuid.Parse(targetVersionID)
		if err != nil {
			log.Printf("⚠️ rollback_model: invalid target version id %q: %v", targetVersionID, err)
			return false
		}
		id = parsed
	}

	_, err := e.versions.Rollback(modelType, id, reason)
	if err != nil {
		log.Printf("⚠️ rollback_model failed: %v", err)
		return false
	}
	return true
}

// PerformanceSnapshot implements get_performance_metrics(), per
// spec.md §6: a cheap global/per-user/model-versions snapshot.
type PerformanceSnapshot struct {
	Global   Metrics
	PerUser  map[string]Metrics
	Versions map[ModelType][]*ModelVersion
}

// PerformanceMetricsSnapshot returns the current metrics snapshot.
func (e *Engine) PerformanceMetricsSnapshot() PerformanceSnapshot {
	e.profilesMu.Lock()
	perUser := make(map[string]Metrics, len(e.profiles))
	var globalCorrect, globalFP, globalFN int
	for email, p := range e.profiles {
		p.mu.Lock()
		m := computeMetrics(p.CorrectCount, p.FPCount, p.FNCount)
		globalCorrect += p.CorrectCount
		globalFP += p.FPCount
		globalFN += p.FNCount
		p.mu.Unlock()
		perUser[email] = m
	}
	e.profilesMu.Unlock()

	versions := make(map[ModelType][]*ModelVersion)
	for _, mt := range []ModelType{ModelThresholds, ModelWeights, ModelBehavioralModel} {
		versions[mt] = e.versions.List(mt)
	}

	return PerformanceSnapshot{
		Global:   computeMetrics(globalCorrect, globalFP, globalFN),
		PerUser:  perUser,
		Versions: versions,
	}
}
