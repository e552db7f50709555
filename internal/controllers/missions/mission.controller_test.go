package missionController

import (
	"context"
	"testing"

	"biteback/internal/models"
	"biteback/internal/repositories"
	"biteback/internal/repositories/repotest"
	"biteback/internal/services"
	"biteback/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockProofStore struct {
	mock.Mock
	services.ProofStorage
}

func (m *mockProofStore) StoreMissionImage(
	ctx context.Context,
	restaurantID, missionID uuid.UUID,
	image []byte,
) (string, error) {
	args := m.Called(restaurantID, missionID)
	return args.String(0), args.Error(1)
}

func validRequest() MissionRequest {
	value := decimal.RequireFromString("3.25")
	expiration := "2026-12-31"
	return MissionRequest{
		Title:       "  Brunch club ",
		Description: "Three brunches",
		Reward:      "Free mimosa",
		RewardValue: &value,
		Expiration:  &expiration,
		Steps: []models.MissionStep{
			{Description: "Visit once"},
			{Description: "Visit twice"},
		},
	}
}

func setup(t *testing.T) (*MissionController, repositories.Repository, *mockProofStore, *models.User) {
	t.Helper()
	ctx := context.Background()

	repos, _ := repotest.New()
	business, err := repos.User.FindOrCreateFromToken(ctx, types.TokenInfo{Subject: "biz", Role: "business"})
	require.NoError(t, err)
	require.NoError(t, repos.Restaurant.Create(ctx, &models.Restaurant{OwnerID: business.ID, Name: "Cafe"}))

	proofs := new(mockProofStore)
	return New(repos, proofs), repos, proofs, business
}

func TestMissionController_CreateWithCover(t *testing.T) {
	ctrl, repos, proofs, business := setup(t)
	ctx := context.Background()

	proofs.On("StoreMissionImage", mock.Anything, mock.Anything).Return("https://cdn.test/cover", nil).Once()

	mission, err := ctrl.Create(ctx, business, validRequest(), []byte("cover"))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, mission.ID)
	assert.Equal(t, "Brunch club", mission.Title)
	assert.Equal(t, models.MissionStatusActive, mission.Status)
	require.NotNil(t, mission.ImageURL)
	assert.Equal(t, "https://cdn.test/cover", *mission.ImageURL)

	stored, err := repos.Mission.GetByID(ctx, mission.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.StepCount())

	restaurantID := proofs.Calls[0].Arguments.Get(0).(uuid.UUID)
	assert.Equal(t, mission.RestaurantID, restaurantID)
}

func TestMissionController_CreateUploadFailureCreatesNothing(t *testing.T) {
	ctrl, _, proofs, business := setup(t)
	proofs.On("StoreMissionImage", mock.Anything, mock.Anything).Return("", types.ErrStore)

	_, err := ctrl.Create(context.Background(), business, validRequest(), []byte("cover"))
	assert.ErrorIs(t, err, types.ErrStore)

	missions, err := ctrl.ListMine(context.Background(), business)
	require.NoError(t, err)
	assert.Empty(t, missions)
}

func TestMissionController_Validation(t *testing.T) {
	ctrl, _, _, business := setup(t)
	negative := decimal.RequireFromString("-1")
	unknown := models.MissionStatus("paused")

	tests := map[string]func(*MissionRequest){
		"missing title":    func(r *MissionRequest) { r.Title = " " },
		"missing reward":   func(r *MissionRequest) { r.Reward = "" },
		"no steps":         func(r *MissionRequest) { r.Steps = nil },
		"blank step":       func(r *MissionRequest) { r.Steps[1].Description = "" },
		"negative value":   func(r *MissionRequest) { r.RewardValue = &negative },
		"unknown status":   func(r *MissionRequest) { r.Status = &unknown },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			request := validRequest()
			mutate(&request)
			_, err := ctrl.Create(context.Background(), business, request, nil)
			assert.ErrorIs(t, err, types.ErrValidation)
		})
	}
}

func TestMissionController_Ownership(t *testing.T) {
	ctrl, repos, _, business := setup(t)
	ctx := context.Background()

	mission, err := ctrl.Create(ctx, business, validRequest(), nil)
	require.NoError(t, err)

	rival, err := repos.User.FindOrCreateFromToken(ctx, types.TokenInfo{Subject: "rival", Role: "business"})
	require.NoError(t, err)

	_, err = ctrl.Create(ctx, rival, validRequest(), nil)
	assert.ErrorIs(t, err, types.ErrForbidden)

	require.NoError(t, repos.Restaurant.Create(ctx, &models.Restaurant{OwnerID: rival.ID, Name: "Rival"}))
	_, err = ctrl.Update(ctx, rival, mission.ID, validRequest())
	assert.ErrorIs(t, err, types.ErrForbidden)
	assert.ErrorIs(t, ctrl.Delete(ctx, rival, mission.ID), types.ErrForbidden)

	_, err = ctrl.Get(ctx, mission.ID)
	assert.NoError(t, err)
}

func TestMissionController_UpdateAndDelete(t *testing.T) {
	ctrl, _, _, business := setup(t)
	ctx := context.Background()

	mission, err := ctrl.Create(ctx, business, validRequest(), nil)
	require.NoError(t, err)

	inactive := models.MissionStatusInactive
	request := validRequest()
	request.Title = "Brunch club deluxe"
	request.Status = &inactive
	request.Steps = append(request.Steps, models.MissionStep{Description: "Visit thrice"})

	updated, err := ctrl.Update(ctx, business, mission.ID, request)
	require.NoError(t, err)
	assert.Equal(t, "Brunch club deluxe", updated.Title)
	assert.False(t, updated.IsActive())
	assert.Equal(t, 3, updated.StepCount())

	require.NoError(t, ctrl.Delete(ctx, business, mission.ID))
	_, err = ctrl.Get(ctx, mission.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
}
