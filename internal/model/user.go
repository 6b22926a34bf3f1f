package model

import "time"

// User roles. Coaches manage the knowledge base, athletes query it.
const (
	RoleAthlete = "athlete"
	RoleCoach   = "coach"
)

// User is the ORM model for the users table.
type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"type:varchar(100);not null" json:"-"`
	Role         string    `gorm:"type:varchar(20);not null;default:athlete" json:"role"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName sets the database table name for User.
func (User) TableName() string {
	return "users"
}

// ProfileEntry is one key/value pair of an athlete's life-context profile
// (availability, job, family, fatigue...). Profiles are free-form so each
// field is stored as its own row, upserted on write.
type ProfileEntry struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_profile_user_field" json:"userId"`
	Field     string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_profile_user_field" json:"field"`
	Value     string    `gorm:"type:varchar(255);not null" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName sets the database table name for ProfileEntry.
func (ProfileEntry) TableName() string {
	return "athlete_profiles"
}
