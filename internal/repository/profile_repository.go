package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wattson/internal/model"
)

// ProfileRepository stores athlete life-context profiles as per-user
// key/value rows.
type ProfileRepository interface {
	Upsert(userID uint, fields map[string]string) error
	Get(userID uint) (map[string]string, error)
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a ProfileRepository backed by MySQL.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

// Upsert writes each field, overwriting an existing value for the same
// user/field pair.
func (r *profileRepository) Upsert(userID uint, fields map[string]string) error {
	for field, value := range fields {
		entry := model.ProfileEntry{UserID: userID, Field: field, Value: value}
		err := r.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "field"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&entry).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// Get returns the profile as a field→value map, empty when none is set.
func (r *profileRepository) Get(userID uint) (map[string]string, error) {
	var entries []model.ProfileEntry
	if err := r.db.Where("user_id = ?", userID).Order("field").Find(&entries).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		out[e.Field] = e.Value
	}
	return out, nil
}
