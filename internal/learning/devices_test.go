package learning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"authrisk/internal/riskengine"
)

func setupDeviceTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&DeviceRecord{}))
	return db
}

func TestDeviceRegistry_UnknownUntilRegistered(t *testing.T) {
	db := setupDeviceTestDB(t)
	reg := NewDeviceRegistry(db)

	known, err := reg.IsKnown("new@example.com", "fp-abc")
	require.NoError(t, err)
	assert.False(t, known)

	require.NoError(t, reg.Register("new@example.com", "fp-abc", time.Now()))

	known, err = reg.IsKnown("new@example.com", "fp-abc")
	require.NoError(t, err)
	assert.True(t, known)
}

func TestDeviceRegistry_EmptyFingerprintAlwaysUnknown(t *testing.T) {
	db := setupDeviceTestDB(t)
	reg := NewDeviceRegistry(db)

	known, err := reg.IsKnown("x@example.com", "")
	require.NoError(t, err)
	assert.False(t, known)

	require.NoError(t, reg.Register("x@example.com", "", time.Now()))
	known, err = reg.IsKnown("x@example.com", "")
	require.NoError(t, err)
	assert.False(t, known)
}

func TestDeviceRegistry_ReRegisterBumpsLastSeen(t *testing.T) {
	db := setupDeviceTestDB(t)
	reg := NewDeviceRegistry(db)

	first := time.Now().Add(-24 * time.Hour)
	second := time.Now()

	require.NoError(t, reg.Register("bump@example.com", "fp-1", first))
	require.NoError(t, reg.Register("bump@example.com", "fp-1", second))

	var rec DeviceRecord
	normalized := riskengine.NormalizeFingerprint("fp-1")
	require.NoError(t, db.Where("email = ? AND fingerprint = ?", "bump@example.com", normalized).First(&rec).Error)
	assert.WithinDuration(t, second, rec.LastSeen, time.Second)
	assert.WithinDuration(t, first, rec.FirstSeen, time.Second)
}
