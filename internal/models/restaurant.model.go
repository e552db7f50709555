package models

import "github.com/google/uuid"

type Restaurant struct {
	BaseUUIDModel
	OwnerID     uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"ownerId"`
	Owner       *User     `gorm:"foreignKey:OwnerID"             json:"-"`
	Name        string    `gorm:"type:text;not null"             json:"name"`
	Description string    `gorm:"type:text"                      json:"description"`
	Address     string    `gorm:"type:text"                      json:"address"`
	ImageURL    *string   `gorm:"type:text"                      json:"imageUrl,omitempty"`
	Missions    []Mission `gorm:"foreignKey:RestaurantID"        json:"missions,omitempty"`
}
