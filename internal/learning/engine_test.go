package learning

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"authrisk/internal/riskengine"
)

func TestEngine_Profile_DefaultsWhenUnknown(t *testing.T) {
	e := NewEngine(DefaultEngineConfig())
	view := e.Profile("nobody@example.com")
	assert.Nil(t, view.AdaptiveThresholds)
	assert.Equal(t, 0, view.FPCount)
	assert.Equal(t, 0, view.FNCount)
	assert.Equal(t, -1.0, view.SuccessRateLast30Days)
}

func TestEngine_Submit_HighConfidenceAppliesSynchronously(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.MinSamplesForAdaptation = 1
	e := NewEngine(cfg)
	f := AuthFeedback{
		UserID:            "sync@example.com",
		RequestID:         uuid.New(),
		Timestamp:         time.Now(),
		OriginalRiskScore: 0.9,
		OriginalDecision:  riskengine.DecisionBlock,
		IsFalsePositive:   true,
		Confidence:        0.95,
		Source:            SourceAdmin,
	}
	err := e.Submit(f)
	assert.NoError(t, err)

	view := e.Profile("sync@example.com")
	assert.Equal(t, 1, view.FPCount)
	assert.NotNil(t, view.AdaptiveThresholds)
	assert.Greater(t, view.AdaptiveThresholds.Low, riskengine.DefaultRiskThresholds().Low)
}

func TestEngine_Submit_LowConfidenceDeferred(t *testing.T) {
	e := NewEngine(DefaultEngineConfig())
	f := AuthFeedback{
		UserID:          "deferred@example.com",
		RequestID:       uuid.New(),
		Timestamp:       time.Now(),
		IsFalsePositive: true,
		Confidence:      0.2,
		Source:          SourceSystem,
	}
	err := e.Submit(f)
	assert.NoError(t, err)

	// Not applied synchronously: no profile side effects yet.
	view := e.Profile("deferred@example.com")
	assert.Equal(t, 0, view.FPCount)

	// The batch drain (normally ticker-driven) picks it up.
	e.drainFeedbackBatch()
	view = e.Profile("deferred@example.com")
	assert.Equal(t, 1, view.FPCount)
}

func TestEngine_Submit_InvalidFeedbackRejected(t *testing.T) {
	e := NewEngine(DefaultEngineConfig())
	err := e.Submit(AuthFeedback{UserID: "bad@example.com", Confidence: 2.0, Source: SourceUser, IsCorrect: true})
	assert.Error(t, err)
}

func TestEngine_Submit_QueueOverflowDropsWithoutError(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.FeedbackQueueCapacity = 1
	e := NewEngine(cfg)

	// Fill the queue without draining (low confidence, so Submit only
	// enqueues; it does not apply synchronously).
	low := AuthFeedback{UserID: "overflow@example.com", Confidence: 0.1, Source: SourceSystem, IsCorrect: true}
	assert.NoError(t, e.Submit(low))
	assert.NoError(t, e.Submit(low))
	assert.NoError(t, e.Submit(low))

	e.metrics.mu.Lock()
	drops := e.metrics.FeedbackQueueDrops
	e.metrics.mu.Unlock()
	assert.Greater(t, drops, int64(0))
}

func TestEngine_Observe_AppliedByDrainer(t *testing.T) {
	e := NewEngine(DefaultEngineConfig())
	e.Observe(riskengine.Observation{
		Email:     "observed@example.com",
		RequestID: uuid.New(),
		Timestamp: time.Now(),
		Factors:   riskengine.RiskFactors{NLP: 0.1},
	})
	e.applyObservation(<-e.observeQueue)

	view := e.Profile("observed@example.com")
	assert.Equal(t, 1.0, view.SuccessRateLast30Days, "one low-risk history entry inside the 30-day window gives a success rate of 1")
}

func TestEngine_GetAdaptiveThresholds_DefaultsWhenUnset(t *testing.T) {
	e := NewEngine(DefaultEngineConfig())
	th := e.GetAdaptiveThresholds("fresh@example.com")
	assert.Equal(t, riskengine.DefaultRiskThresholds(), th)
}

func TestEngine_CreateAndRollbackModel(t *testing.T) {
	e := NewEngine(DefaultEngineConfig())
	id1 := e.CreateModelVersion(ModelWeights, map[string]interface{}{"nlp": 0.15}, PerformanceMetrics{F1: 0.7})
	_ = e.CreateModelVersion(ModelWeights, map[string]interface{}{"nlp": 0.3}, PerformanceMetrics{F1: 0.4})

	ok := e.RollbackModel(ModelWeights, id1, "manual_rollback_bad_reweight")
	assert.True(t, ok)

	active, found := e.versions.Active(ModelWeights)
	assert.True(t, found)
	assert.Equal(t, id1, active.VersionID.String())
}

func TestEngine_RollbackModel_InvalidIDFails(t *testing.T) {
	e := NewEngine(DefaultEngineConfig())
	_ = e.CreateModelVersion(ModelWeights, nil, PerformanceMetrics{F1: 0.7})
	ok := e.RollbackModel(ModelWeights, "not-a-uuid", "bad")
	assert.False(t, ok)
}

func TestEngine_PerformanceMetricsSnapshot(t *testing.T) {
	e := NewEngine(DefaultEngineConfig())
	err := e.Submit(AuthFeedback{
		UserID: "metrics@example.com", RequestID: uuid.New(), Timestamp: time.Now(),
		IsCorrect: true, Confidence: 1.0, Source: SourceSystem,
	})
	assert.NoError(t, err)

	_ = e.CreateModelVersion(ModelThresholds, nil, PerformanceMetrics{F1: 0.8})

	snap := e.PerformanceMetricsSnapshot()
	assert.Contains(t, snap.PerUser, "metrics@example.com")
	assert.Len(t, snap.Versions[ModelThresholds], 1)
}

func TestEngine_StartShutdown_DrainsQueues(t *testing.T) {
	e := NewEngine(DefaultEngineConfig())
	e.Start()

	e.Observe(riskengine.Observation{
		Email: "shutdown@example.com", RequestID: uuid.New(), Timestamp: time.Now(),
		Factors: riskengine.RiskFactors{NLP: 0.2},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	e.Shutdown(ctx)

	// The drainer should have applied the observation on the way out.
	view := e.Profile("shutdown@example.com")
	assert.Equal(t, 1.0, view.SuccessRateLast30Days)
}
