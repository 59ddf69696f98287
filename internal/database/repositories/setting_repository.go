package repositories

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/lucsky/cuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bbernstein/lacylights-live/internal/database/models"
)

// Setting keys written by the server. The show keys are rewritten on every
// snapshot; the Art-Net address is only changed through the API.
const (
	SettingBPM             = "bpm"
	SettingMIDIEnabled     = "midi_enabled"
	SettingArtNetBroadcast = "artnet_broadcast_address"
)

// SettingRepository reads and writes key/value settings.
type SettingRepository struct {
	db *gorm.DB
}

// NewSettingRepository creates a new SettingRepository.
func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// FindAll returns all settings ordered by key.
func (r *SettingRepository) FindAll(ctx context.Context) ([]models.Setting, error) {
	var settings []models.Setting
	err := r.db.WithContext(ctx).Order("key ASC").Find(&settings).Error
	return settings, err
}

// FindByKey returns the setting stored under key, or nil when there is none.
func (r *SettingRepository) FindByKey(ctx context.Context, key string) (*models.Setting, error) {
	return findSetting(r.db.WithContext(ctx), key)
}

// Value returns the value stored under key, or "" when there is none.
func (r *SettingRepository) Value(ctx context.Context, key string) (string, error) {
	setting, err := r.FindByKey(ctx, key)
	if err != nil || setting == nil {
		return "", err
	}
	return setting.Value, nil
}

// Upsert stores value under key. An existing row keeps its id.
func (r *SettingRepository) Upsert(ctx context.Context, key, value string) (*models.Setting, error) {
	db := r.db.WithContext(ctx)
	if err := upsertSetting(db, key, value); err != nil {
		return nil, err
	}
	return findSetting(db, key)
}

// Delete removes the setting stored under key.
func (r *SettingRepository) Delete(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Delete(&models.Setting{}, "key = ?", key).Error
}

func findSetting(db *gorm.DB, key string) (*models.Setting, error) {
	var setting models.Setting
	err := db.First(&setting, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return &setting, nil
}

func upsertSetting(tx *gorm.DB, key, value string) error {
	setting := models.Setting{ID: cuid.New(), Key: key, Value: value}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
	if err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}

// settingsByKey indexes settings for lookups while loading a show.
func settingsByKey(settings []models.Setting) map[string]string {
	out := make(map[string]string, len(settings))
	for _, s := range settings {
		out[s.Key] = s.Value
	}
	return out
}

func parseIntSetting(values map[string]string, key string, fallback int) int {
	if v, ok := values[key]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
