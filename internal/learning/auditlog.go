package learning

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"authrisk/internal/riskengine"
)

// AuditRecord is the durable, typed row backing the audit trail. It
// generalizes the teacher's ad-hoc map[string]interface{} RiskAssessment
// (internal/services/risk_service.go) into a schema built directly from
// AuthAnalysisResult.
type AuditRecord struct {
	ID                uuid.UUID `gorm:"type:text;primary_key"`
	RequestID         uuid.UUID `gorm:"type:text;index"`
	Email             string    `gorm:"type:text;index"`
	ClientIP          string    `gorm:"type:text"`
	UserAgent         string    `gorm:"type:text"`
	DeviceFingerprint string    `gorm:"type:text"`
	RiskScore         float64
	RiskLevel         string `gorm:"type:text"`
	Decision          string `gorm:"type:text"`
	Confidence        float64
	FactorsJSON       string `gorm:"type:text"`
	WarningsJSON      string `gorm:"type:text"`
	CreatedAt         time.Time
}

// BeforeCreate assigns a primary key if absent, matching the teacher's
// BeforeCreate hooks in risk_service.go.
func (r *AuditRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// AuditLog persists AuthAnalysisResult rows for later inspection. It is a
// supplemented feature (not detailed by spec.md, but implied by the
// Performance/Metrics plane it asks for) grounded on the teacher's
// StoreRiskAssessment/GetLatestRiskAssessment/GetRiskAssessmentHistory.
type AuditLog struct {
	db *gorm.DB
}

// NewAuditLog migrates the schema and returns a ready AuditLog.
func NewAuditLog(db *gorm.DB) (*AuditLog, error) {
	if err := db.AutoMigrate(&AuditRecord{}, &DeviceRecord{}); err != nil {
		return nil, fmt.Errorf("auditlog: failed to migrate schema: %w", err)
	}
	return &AuditLog{db: db}, nil
}

// Record stores one login attempt's full analysis result.
func (a *AuditLog) Record(ctx riskengine.AuthContext, result riskengine.AuthAnalysisResult) error {
	factorsJSON, err := json.Marshal(result.Factors)
	if err != nil {
		return fmt.Errorf("auditlog: failed to marshal factors: %w", err)
	}
	warningsJSON, err := json.Marshal(result.Warnings)
	if err != nil {
		return fmt.Errorf("auditlog: failed to marshal warnings: %w", err)
	}

	row := AuditRecord{
		RequestID:         ctx.RequestID,
		Email:             ctx.Email,
		ClientIP:          ctx.ClientIP,
		UserAgent:         ctx.UserAgent,
		DeviceFingerprint: ctx.DeviceFingerprint,
		RiskScore:         result.RiskScore,
		RiskLevel:         string(result.RiskLevel),
		Decision:          string(result.Decision),
		Confidence:        result.Confidence,
		FactorsJSON:       string(factorsJSON),
		WarningsJSON:      string(warningsJSON),
		CreatedAt:         ctx.Timestamp,
	}
	if err := a.db.Create(&row).Error; err != nil {
		return fmt.Errorf("auditlog: failed to store record: %w", err)
	}
	return nil
}

// Latest returns the most recent audit record for an email.
func (a *AuditLog) Latest(email string) (*AuditRecord, error) {
	var row AuditRecord
	err := a.db.Where("email = ?", email).Order("created_at DESC").First(&row).Error
	if err != nil {
		return nil, fmt.Errorf("auditlog: failed to get latest record for %s: %w", email, err)
	}
	return &row, nil
}

// History returns up to limit recent audit records for an email, newest
// first. limit <= 0 means unbounded.
func (a *AuditLog) History(email string, limit int) ([]AuditRecord, error) {
	query := a.db.Where("email = ?", email).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []AuditRecord
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("auditlog: failed to get history for %s: %w", email, err)
	}
	return rows, nil
}
