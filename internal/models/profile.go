package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JSONMap is a string map stored in a JSONB column.
type JSONMap map[string]string

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported type for JSONMap: %T", value)
	}

	return json.Unmarshal(raw, m)
}

// UserProfile is the one-to-one profile record for a user. Provider-supplied
// data only ever backfills empty fields; user-entered values are never
// overwritten by a login.
type UserProfile struct {
	ID     uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID uuid.UUID `json:"user_id" gorm:"type:uuid;uniqueIndex;not null"`

	FullName          *string `json:"full_name" gorm:"size:255"`
	Headline          *string `json:"headline" gorm:"size:500"`
	Summary           *string `json:"summary"`
	ProfilePictureURL *string `json:"profile_picture_url" gorm:"size:500"`
	Location          *string `json:"location" gorm:"size:255"`
	Phone             *string `json:"phone" gorm:"size:50"`

	// Keyed by provider: {"linkedin": "...", "github": "...", ...}
	SocialLinks JSONMap `json:"social_links" gorm:"type:jsonb"`

	CompletenessScore int `json:"completeness_score" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for UserProfile.
func (UserProfile) TableName() string {
	return "user_profiles"
}
