package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func stringPtr(s string) *string {
	return &s
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		input    string
		expected Role
	}{
		{"business", RoleBusiness},
		{" Business ", RoleBusiness},
		{"customer", RoleCustomer},
		{"admin", RoleCustomer},
		{"", RoleCustomer},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseRole(tt.input))
		})
	}
}

func TestUser_UpdateFromToken(t *testing.T) {
	t.Run("fills empty fields", func(t *testing.T) {
		user := &User{Role: RoleCustomer}
		user.UpdateFromToken("owner@example.com", "Owner", RoleBusiness)

		assert.Equal(t, "owner@example.com", *user.Email)
		assert.Equal(t, "Owner", user.DisplayName)
		assert.Equal(t, RoleBusiness, user.Role)
		assert.NotNil(t, user.LastLoginAt)
	})

	t.Run("keeps chosen display name", func(t *testing.T) {
		user := &User{DisplayName: "Chosen", Role: RoleCustomer}
		user.UpdateFromToken("", "Token Name", Role("bogus"))

		assert.Equal(t, "Chosen", user.DisplayName)
		assert.Nil(t, user.Email)
		assert.Equal(t, RoleCustomer, user.Role)
	})
}

func TestMissionCompletion_Status(t *testing.T) {
	var missing *MissionCompletion
	assert.Equal(t, CompletionNotStarted, missing.Status())

	completion := &MissionCompletion{}
	assert.Equal(t, CompletionInProgress, completion.Status())

	completion.VoucherID = stringPtr("")
	assert.Equal(t, CompletionInProgress, completion.Status())

	completion.VoucherID = stringPtr("ABC")
	assert.Equal(t, CompletionCompleted, completion.Status())
	assert.Equal(t, "ABC", completion.Voucher())

	completion.Redeemed = true
	assert.Equal(t, CompletionRedeemed, completion.Status())
}

func TestMissionCompletion_ProofSlots(t *testing.T) {
	completion := &MissionCompletion{StepProofs: []string{"a", "", "c"}}

	assert.Equal(t, []string{"a", "", "c", ""}, completion.ProofSlots(4))
	assert.Equal(t, []string{"a", ""}, completion.ProofSlots(2))
	assert.Equal(t, []int{1, 3}, completion.MissingSteps(4))

	updated := completion.WithProofs(3, map[int]string{1: "b", 7: "ignored"})
	assert.Equal(t, []string{"a", "b", "c"}, updated)
	assert.Equal(t, []string{"a", "", "c"}, []string(completion.StepProofs), "original untouched")
	assert.Empty(t, completion.MissingSteps(0))

	var none *MissionCompletion
	assert.Equal(t, []int{0, 1}, none.MissingSteps(2))
}

func TestMission_IsExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mission := &Mission{}
	assert.False(t, mission.IsExpired(now))

	mission.Expiration = stringPtr("2025-05-31")
	assert.True(t, mission.IsExpired(now))

	mission.Expiration = stringPtr("soon")
	assert.False(t, mission.IsExpired(now))
}
