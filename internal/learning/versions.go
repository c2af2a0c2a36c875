package learning

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ModelType distinguishes what a ModelVersion snapshots, per spec.md §3.
type ModelType string

const (
	ModelThresholds      ModelType = "thresholds"
	ModelWeights         ModelType = "weights"
	ModelBehavioralModel ModelType = "behavioral_model"
)

// PerformanceMetrics mirrors the Metrics shape computed for profiles, at
// model-version granularity, per spec.md §3/§4.4's auto-rollback rule.
type PerformanceMetrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// ModelVersion is spec.md §3's ModelVersion: a snapshot of learned
// parameters with performance metrics, enabling rollback.
type ModelVersion struct {
	VersionID          uuid.UUID              `json:"version_id"`
	CreatedAt          time.Time              `json:"created_at"`
	ModelType          ModelType              `json:"model_type"`
	ModelData          map[string]interface{} `json:"model_data"`
	PerformanceMetrics PerformanceMetrics     `json:"performance_metrics"`
	IsActive           bool                   `json:"is_active"`
	RollbackReason     string                 `json:"rollback_reason,omitempty"`
}

const maxVersionsPerType = 10

// VersionStore holds, per model_type, an ordered (oldest-first) list of
// versions with at most one active at a time. Mutated only by the
// Learning Engine, per spec.md §5's ordering guarantees.
type VersionStore struct {
	mu       sync.Mutex
	byType   map[ModelType][]*ModelVersion
	maxTypes int
}

// NewVersionStore returns an empty store bounded to maxPerType versions
// per model_type (spec.md §6's max_model_versions, default 10).
func NewVersionStore(maxPerType int) *VersionStore {
	if maxPerType <= 0 {
		maxPerType = maxVersionsPerType
	}
	return &VersionStore{
		byType:   make(map[ModelType][]*ModelVersion),
		maxTypes: maxPerType,
	}
}

// Create deactivates the previous active version of modelType (if any),
// pushes a new active version, and trims the type's list to maxTypes with
// FIFO eviction of the oldest. Returns the new version's id.
func (s *VersionStore) Create(modelType ModelType, data map[string]interface{}, metrics PerformanceMetrics, now time.Time) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.byType[modelType]
	for _, v := range list {
		v.IsActive = false
	}

	v := &ModelVersion{
		VersionID:          uuid.New(),
		CreatedAt:          now,
		ModelType:          modelType,
		ModelData:          data,
		PerformanceMetrics: metrics,
		IsActive:           true,
	}
	list = append(list, v)
	if over := len(list) - s.maxTypes; over > 0 {
		list = append(list[:0], list[over:]...)
	}
	s.byType[modelType] = list

	return v.VersionID
}

// Active returns the currently active version for modelType, if any.
func (s *VersionStore) Active(modelType ModelType) (*ModelVersion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range s.byType[modelType] {
		if v.IsActive {
			return v, true
		}
	}
	return nil, false
}

// Previous returns the version immediately preceding the active one in
// creation order, if any.
func (s *VersionStore) Previous(modelType ModelType) (*ModelVersion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.byType[modelType]
	for i, v := range list {
		if v.IsActive && i > 0 {
			return list[i-1], true
		}
	}
	return nil, false
}

// List returns a copy of the ordered version list for modelType.
func (s *VersionStore) List(modelType ModelType) []*ModelVersion {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.byType[modelType]
	out := make([]*ModelVersion, len(list))
	copy(out, list)
	return out
}

// Snapshot returns a deep-enough copy of the full byType map, keyed by
// model_type, for persistence (internal/store's whole-file JSON snapshot).
func (s *VersionStore) Snapshot() map[ModelType][]*ModelVersion {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[ModelType][]*ModelVersion, len(s.byType))
	for mt, list := range s.byType {
		cp := make([]*ModelVersion, len(list))
		copy(cp, list)
		out[mt] = cp
	}
	return out
}

// Restore replaces the store's contents with a previously-Snapshot-ted map,
// preserving ordering and active flags, per spec.md §8 property 8
// (round-trip persistence).
func (s *VersionStore) Restore(data map[ModelType][]*ModelVersion) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byType = make(map[ModelType][]*ModelVersion, len(data))
	for mt, list := range data {
		cp := make([]*ModelVersion, len(list))
		copy(cp, list)
		s.byType[mt] = cp
	}
}

// Rollback deactivates the current active version of modelType and
// activates target (the previous version if targetID is uuid.Nil),
// recording reason on the deactivated version. Implements spec.md §4.4's
// rollback and property 6 in §8 (exactly one active version afterward).
func (s *VersionStore) Rollback(modelType ModelType, targetID uuid.UUID, reason string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.byType[modelType]
	if len(list) == 0 {
		return uuid.Nil, fmt.Errorf("learning: no versions exist for model_type %q", modelType)
	}

	activeIdx := -1
	for i, v := range list {
		if v.IsActive {
			activeIdx = i
			break
		}
	}
	if activeIdx == -1 {
		return uuid.Nil, fmt.Errorf("learning: no active version for model_type %q", modelType)
	}

	targetIdx := -1
	if targetID == uuid.Nil {
		if activeIdx == 0 {
			return uuid.Nil, fmt.Errorf("learning: no previous version to roll back to for model_type %q", modelType)
		}
		targetIdx = activeIdx - 1
	} else {
		for i, v := range list {
			if v.VersionID == targetID {
				targetIdx = i
				break
			}
		}
		if targetIdx == -1 {
			return uuid.Nil, fmt.Errorf("learning: target version %s not found for model_type %q", targetID, modelType)
		}
	}

	list[activeIdx].IsActive = false
	list[activeIdx].RollbackReason = reason
	list[targetIdx].IsActive = true

	return list[targetIdx].VersionID, nil
}
