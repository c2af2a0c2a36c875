package learning

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"authrisk/internal/riskengine"
)

func setupAuditTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	return db
}

func TestAuditLog_RecordAndLatest(t *testing.T) {
	db := setupAuditTestDB(t)
	log, err := NewAuditLog(db)
	require.NoError(t, err)

	ctx := riskengine.AuthContext{
		Email:     "audited@example.com",
		ClientIP:  "10.0.0.1",
		UserAgent: "Mozilla/5.0",
		RequestID: uuid.New(),
		Timestamp: time.Now(),
	}
	result := riskengine.AuthAnalysisResult{
		RiskScore:  0.42,
		RiskLevel:  riskengine.RiskMedium,
		Decision:   riskengine.DecisionRequire2FA,
		Confidence: 0.8,
		Factors:    riskengine.RiskFactors{NLP: 0.1, Temporal: 0.3},
		Warnings:   []string{"unusual_hour"},
	}
	require.NoError(t, log.Record(ctx, result))

	latest, err := log.Latest("audited@example.com")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", latest.ClientIP)
	assert.InDelta(t, 0.42, latest.RiskScore, 1e-9)
	assert.Equal(t, string(riskengine.RiskMedium), latest.RiskLevel)
	assert.Contains(t, latest.WarningsJSON, "unusual_hour")
}

func TestAuditLog_Latest_NoRecordsErrors(t *testing.T) {
	db := setupAuditTestDB(t)
	log, err := NewAuditLog(db)
	require.NoError(t, err)

	_, err = log.Latest("nobody@example.com")
	assert.Error(t, err)
}

func TestAuditLog_History_NewestFirstAndLimited(t *testing.T) {
	db := setupAuditTestDB(t)
	log, err := NewAuditLog(db)
	require.NoError(t, err)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		ctx := riskengine.AuthContext{
			Email:     "history@example.com",
			RequestID: uuid.New(),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
		result := riskengine.AuthAnalysisResult{RiskScore: float64(i) / 10, RiskLevel: riskengine.RiskLow, Decision: riskengine.DecisionAllow}
		require.NoError(t, log.Record(ctx, result))
	}

	rows, err := log.History("history@example.com", 3)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.True(t, rows[0].CreatedAt.After(rows[1].CreatedAt) || rows[0].CreatedAt.Equal(rows[1].CreatedAt))
}
