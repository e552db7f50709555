package models

import (
	"time"

	"biteback/internal/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type MissionStatus string

const (
	MissionStatusActive   MissionStatus = "active"
	MissionStatusInactive MissionStatus = "inactive"
)

type MissionStep struct {
	Description string  `json:"description"`
	Link        *string `json:"link,omitempty"`
}

type Mission struct {
	BaseUUIDModel
	RestaurantID uuid.UUID                       `gorm:"type:uuid;not null;index:idx_missions_restaurant_status" json:"restaurantId"`
	Restaurant   *Restaurant                     `gorm:"foreignKey:RestaurantID"                                 json:"-"`
	Title        string                          `gorm:"type:text;not null"                                      json:"title"`
	Description  string                          `gorm:"type:text"                                               json:"description"`
	Reward       string                          `gorm:"type:text;not null"                                      json:"reward"`
	RewardValue  *decimal.Decimal                `gorm:"type:decimal(10,2)"                                      json:"rewardValue,omitempty"`
	Expiration   *string                         `gorm:"type:text"                                               json:"expiration,omitempty"`
	Status       MissionStatus                   `gorm:"type:text;not null;default:active;index:idx_missions_restaurant_status" json:"status"`
	ImageURL     *string                         `gorm:"type:text"                                               json:"imageUrl,omitempty"`
	Steps        datatypes.JSONSlice[MissionStep] `gorm:"type:jsonb;not null"                                     json:"steps"`
}

func (m *Mission) IsActive() bool {
	return m.Status == MissionStatusActive
}

func (m *Mission) StepCount() int {
	return len(m.Steps)
}

// IsExpired reports whether the mission's expiration day has passed.
func (m *Mission) IsExpired(now time.Time) bool {
	if m.Expiration == nil {
		return false
	}
	return utils.IsExpired(*m.Expiration, now)
}
