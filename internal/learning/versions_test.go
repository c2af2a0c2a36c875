package learning

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestVersionStore_CreateActivatesOnlyOne(t *testing.T) {
	s := NewVersionStore(10)
	id1 := s.Create(ModelThresholds, map[string]interface{}{"v": 1}, PerformanceMetrics{F1: 0.7}, time.Now())
	id2 := s.Create(ModelThresholds, map[string]interface{}{"v": 2}, PerformanceMetrics{F1: 0.75}, time.Now())

	list := s.List(ModelThresholds)
	active := 0
	var activeID uuid.UUID
	for _, v := range list {
		if v.IsActive {
			active++
			activeID = v.VersionID
		}
	}
	assert.Equal(t, 1, active)
	assert.Equal(t, id2, activeID)
	assert.NotEqual(t, id1, id2)
}

func TestVersionStore_MaxVersionsEvictsOldest(t *testing.T) {
	s := NewVersionStore(3)
	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		ids = append(ids, s.Create(ModelWeights, nil, PerformanceMetrics{}, time.Now()))
	}
	list := s.List(ModelWeights)
	assert.Len(t, list, 3)
	assert.Equal(t, ids[2], list[0].VersionID)
	assert.Equal(t, ids[4], list[2].VersionID)
}

// Property 6 - after rollback, exactly one version is active and its id
// equals the target.
func TestVersionStore_Rollback_ActivatesTarget(t *testing.T) {
	s := NewVersionStore(10)
	v1 := s.Create(ModelThresholds, nil, PerformanceMetrics{F1: 0.8}, time.Now())
	_ = s.Create(ModelThresholds, nil, PerformanceMetrics{F1: 0.5}, time.Now())

	activated, err := s.Rollback(ModelThresholds, v1, "manual_rollback")
	assert.NoError(t, err)
	assert.Equal(t, v1, activated)

	active, ok := s.Active(ModelThresholds)
	assert.True(t, ok)
	assert.Equal(t, v1, active.VersionID)

	list := s.List(ModelThresholds)
	activeCount := 0
	for _, v := range list {
		if v.IsActive {
			activeCount++
		}
	}
	assert.Equal(t, 1, activeCount)
	assert.NotEmpty(t, list[1].RollbackReason)
}

func TestVersionStore_Rollback_DefaultsToPrevious(t *testing.T) {
	s := NewVersionStore(10)
	v1 := s.Create(ModelThresholds, nil, PerformanceMetrics{F1: 0.8}, time.Now())
	_ = s.Create(ModelThresholds, nil, PerformanceMetrics{F1: 0.5}, time.Now())

	activated, err := s.Rollback(ModelThresholds, uuid.Nil, "auto_rollback_perf_drop_0.800_to_0.500")
	assert.NoError(t, err)
	assert.Equal(t, v1, activated)
}

// S6 - auto-rollback trigger: the reason must contain both f1 values.
func TestEngine_S6_AutoRollbackTrigger(t *testing.T) {
	cfg := DefaultEngineConfig()
	e := NewEngine(cfg)

	_ = e.versions.Create(ModelThresholds, nil, PerformanceMetrics{F1: 0.75}, time.Now())
	_ = e.versions.Create(ModelThresholds, nil, PerformanceMetrics{F1: 0.60}, time.Now())

	e.runAutoRollback()

	active, ok := e.versions.Active(ModelThresholds)
	assert.True(t, ok)
	assert.InDelta(t, 0.75, active.PerformanceMetrics.F1, 0.001)

	list := e.versions.List(ModelThresholds)
	assert.Contains(t, list[1].RollbackReason, "0.750")
	assert.Contains(t, list[1].RollbackReason, "0.600")
}
