package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type CompletionStatus string

const (
	CompletionNotStarted CompletionStatus = "NOT_STARTED"
	CompletionInProgress CompletionStatus = "IN_PROGRESS"
	CompletionCompleted  CompletionStatus = "COMPLETED"
	CompletionRedeemed   CompletionStatus = "REDEEMED"
)

// MissionCompletion is the ledger row for one (customer, mission) pair. An
// empty string in StepProofs marks a step without a proof yet.
type MissionCompletion struct {
	ID           uuid.UUID                   `gorm:"type:uuid;primaryKey;default:uuidv7()"                      json:"id"`
	CustomerID   uuid.UUID                   `gorm:"type:uuid;not null;uniqueIndex:idx_completion_customer_mission" json:"customerId"`
	MissionID    uuid.UUID                   `gorm:"type:uuid;not null;uniqueIndex:idx_completion_customer_mission;index" json:"missionId"`
	RestaurantID uuid.UUID                   `gorm:"type:uuid;not null;index"                                   json:"restaurantId"`
	MissionTitle string                      `gorm:"type:text"                                                  json:"missionTitle"`
	StepProofs   datatypes.JSONSlice[string] `gorm:"type:jsonb;not null"                                        json:"stepProofs"`
	VoucherID    *string                     `gorm:"type:text;uniqueIndex"                                      json:"voucherId,omitempty"`
	Redeemed     bool                        `gorm:"type:bool;not null;default:false"                           json:"redeemed"`
	CompletedAt  *time.Time                  `gorm:"type:timestamp"                                             json:"completedAt,omitempty"`
	RedeemedAt   *time.Time                  `gorm:"type:timestamp"                                             json:"redeemedAt,omitempty"`
	RedeemedBy   *uuid.UUID                  `gorm:"type:uuid"                                                  json:"redeemedBy,omitempty"`
	Version      int                         `gorm:"type:int;not null;default:0"                                json:"version"`
	CreatedAt    time.Time                   `gorm:"autoCreateTime"                                             json:"timestamp"`
	UpdatedAt    time.Time                   `gorm:"autoUpdateTime"                                             json:"updatedAt"`
}

func (c *MissionCompletion) Status() CompletionStatus {
	switch {
	case c == nil:
		return CompletionNotStarted
	case c.Redeemed:
		return CompletionRedeemed
	case c.HasVoucher():
		return CompletionCompleted
	default:
		return CompletionInProgress
	}
}

func (c *MissionCompletion) HasVoucher() bool {
	return c != nil && c.VoucherID != nil && *c.VoucherID != ""
}

// Voucher returns the minted voucher id or "".
func (c *MissionCompletion) Voucher() string {
	if !c.HasVoucher() {
		return ""
	}
	return *c.VoucherID
}

// ProofSlots returns the proofs sized to stepCount.
func (c *MissionCompletion) ProofSlots(stepCount int) []string {
	slots := make([]string, stepCount)
	if c != nil {
		copy(slots, c.StepProofs)
	}
	return slots
}

// WithProofs returns a copy of the slots sized to stepCount with updates applied.
func (c *MissionCompletion) WithProofs(stepCount int, updates map[int]string) []string {
	slots := c.ProofSlots(stepCount)
	for index, url := range updates {
		if index >= 0 && index < stepCount {
			slots[index] = url
		}
	}
	return slots
}

// MissingSteps lists the indexes of empty proof slots for a mission of stepCount steps.
func (c *MissionCompletion) MissingSteps(stepCount int) []int {
	var missing []int
	for index, proof := range c.ProofSlots(stepCount) {
		if proof == "" {
			missing = append(missing, index)
		}
	}
	return missing
}
