package learning

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"authrisk/internal/riskengine"
)

// DeviceRecord is a registered device fingerprint for a user, generalized
// from the teacher's DeviceFingerprint model (internal/services/risk_service.go)
// to key off email instead of a Keycloak-backed user UUID.
type DeviceRecord struct {
	ID          uuid.UUID `gorm:"type:text;primary_key"`
	Email       string    `gorm:"type:text;index"`
	Fingerprint string    `gorm:"type:text;index"`
	FirstSeen   time.Time
	LastSeen    time.Time
}

// BeforeCreate assigns a primary key if absent.
func (d *DeviceRecord) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// DeviceRegistry tracks which normalized device fingerprints have been
// seen for which users, backing the device risk factor's "is this a known
// device" question and the BehavioralAnalysis.IsKnownDevice signal.
type DeviceRegistry struct {
	db *gorm.DB
}

// NewDeviceRegistry returns a registry over an already-migrated db (see
// NewAuditLog, which migrates DeviceRecord alongside AuditRecord).
func NewDeviceRegistry(db *gorm.DB) *DeviceRegistry {
	return &DeviceRegistry{db: db}
}

// IsKnown reports whether fingerprint has previously been seen for email.
// An empty fingerprint is always unknown, mirroring the teacher's
// IsNewDevice. The raw fingerprint is normalized (riskengine.NormalizeFingerprint)
// before lookup, so storage and comparison never depend on the
// collaborator's raw encoding.
func (r *DeviceRegistry) IsKnown(email, fingerprint string) (bool, error) {
	if fingerprint == "" {
		return false, nil
	}
	normalized := riskengine.NormalizeFingerprint(fingerprint)

	var count int64
	err := r.db.Model(&DeviceRecord{}).
		Where("email = ? AND fingerprint = ?", email, normalized).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("devices: failed to check fingerprint: %w", err)
	}
	return count > 0, nil
}

// Register records a sighting of fingerprint for email, creating a new
// record on first sight or bumping last_seen on repeat sightings. The raw
// fingerprint is normalized before storage, matching IsKnown's lookup key.
func (r *DeviceRegistry) Register(email, fingerprint string, at time.Time) error {
	if fingerprint == "" {
		return nil
	}
	normalized := riskengine.NormalizeFingerprint(fingerprint)

	var existing DeviceRecord
	err := r.db.Where("email = ? AND fingerprint = ?", email, normalized).First(&existing).Error
	switch err {
	case gorm.ErrRecordNotFound:
		rec := DeviceRecord{Email: email, Fingerprint: normalized, FirstSeen: at, LastSeen: at}
		if err := r.db.Create(&rec).Error; err != nil {
			return fmt.Errorf("devices: failed to register fingerprint: %w", err)
		}
		return nil
	case nil:
		if err := r.db.Model(&existing).Update("last_seen", at).Error; err != nil {
			return fmt.Errorf("devices: failed to update last_seen: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("devices: failed to check existing fingerprint: %w", err)
	}
}
