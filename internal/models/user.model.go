package models

import (
	"strings"
	"time"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleBusiness Role = "business"
)

func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleBusiness
}

// ParseRole normalizes a role claim, defaulting to customer.
func ParseRole(value string) Role {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if !role.Valid() {
		return RoleCustomer
	}
	return role
}

type User struct {
	BaseUUIDModel
	ExternalID  string     `gorm:"column:external_id;type:text;uniqueIndex;not null" json:"-"`
	DisplayName string     `gorm:"type:text"                                         json:"displayName"`
	Email       *string    `gorm:"type:text"                                         json:"email,omitempty"`
	Role        Role       `gorm:"type:text;not null;default:customer"               json:"role"`
	IsActive    bool       `gorm:"type:bool;default:true"                            json:"isActive"`
	LastLoginAt *time.Time `gorm:"type:timestamp"                                    json:"lastLoginAt,omitempty"`
}

// UserProfile represents public user profile information
type UserProfile struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"displayName"`
	Email       *string    `json:"email,omitempty"`
	Role        Role       `json:"role"`
	IsActive    bool       `json:"isActive"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

func (u *User) ToProfile() UserProfile {
	return UserProfile{
		ID:          u.ID.String(),
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Role:        u.Role,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
	}
}

func (u *User) IsBusiness() bool {
	return u.Role == RoleBusiness
}

func (u *User) IsCustomer() bool {
	return u.Role == RoleCustomer
}

// UpdateFromToken refreshes identity fields from validated token claims.
func (u *User) UpdateFromToken(email, name string, role Role) {
	now := time.Now()
	u.LastLoginAt = &now

	if email != "" {
		u.Email = &email
	}

	if name != "" && u.DisplayName == "" {
		u.DisplayName = name
	}

	if role.Valid() {
		u.Role = role
	}
}
