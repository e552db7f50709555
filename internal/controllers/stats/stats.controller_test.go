package statsController

import (
	"context"
	"testing"
	"time"

	"biteback/internal/events"
	"biteback/internal/models"
	"biteback/internal/repositories"
	"biteback/internal/repositories/repotest"
	"biteback/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	ctrl       *StatsController
	repos      repositories.Repository
	business   *models.User
	restaurant *models.Restaurant
	mission    *models.Mission
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	repos, _ := repotest.New()
	business, err := repos.User.FindOrCreateFromToken(ctx, types.TokenInfo{Subject: "biz", Role: "business"})
	require.NoError(t, err)

	restaurant := &models.Restaurant{OwnerID: business.ID, Name: "Noodle Bar"}
	require.NoError(t, repos.Restaurant.Create(ctx, restaurant))

	value := decimal.RequireFromString("4.50")
	mission := &models.Mission{
		RestaurantID: restaurant.ID,
		Title:        "Slurp challenge",
		Reward:       "Free bao",
		RewardValue:  &value,
		Status:       models.MissionStatusActive,
		Steps:        []models.MissionStep{{Description: "Finish the bowl"}},
	}
	require.NoError(t, repos.Mission.Create(ctx, mission))

	return &fixture{
		ctrl:       New(repos, nil),
		repos:      repos,
		business:   business,
		restaurant: restaurant,
		mission:    mission,
	}
}

func (f *fixture) complete(t *testing.T, customerID uuid.UUID, voucherID string) {
	t.Helper()
	ctx := context.Background()

	completion := &models.MissionCompletion{
		CustomerID:   customerID,
		MissionID:    f.mission.ID,
		RestaurantID: f.restaurant.ID,
		StepProofs:   []string{"https://cdn.test/0"},
	}
	require.NoError(t, f.repos.MissionCompletion.CreateIfAbsent(ctx, completion))
	won, err := f.repos.MissionCompletion.SetVoucher(ctx, completion.ID, voucherID, time.Now())
	require.NoError(t, err)
	require.True(t, won)
}

func (f *fixture) redeem(t *testing.T, voucherID string) {
	t.Helper()
	won, err := f.repos.MissionCompletion.Redeem(
		context.Background(), voucherID, f.restaurant.ID, f.business.ID, time.Now(),
	)
	require.NoError(t, err)
	require.True(t, won)
}

func TestStats_CustomerStatsScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u1 := uuid.New()

	f.complete(t, u1, "V1")
	stats, err := f.ctrl.CustomerStats(ctx, u1)
	require.NoError(t, err)
	assert.Equal(t, repositories.CompletionCounts{Completed: 1, Redeemed: 0}, stats)

	f.redeem(t, "V1")
	stats, err = f.ctrl.CustomerStats(ctx, u1)
	require.NoError(t, err)
	assert.Equal(t, repositories.CompletionCounts{Completed: 1, Redeemed: 1}, stats)
}

func TestStats_MissionCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.complete(t, uuid.New(), "V1")
	f.complete(t, uuid.New(), "V2")
	f.redeem(t, "V2")

	completed, err := f.ctrl.CompletionCount(ctx, f.mission.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), completed)

	redeemed, err := f.ctrl.RedemptionCount(ctx, f.mission.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), redeemed)

	stats, err := f.ctrl.MissionStats(ctx, f.business, f.mission.ID)
	require.NoError(t, err)
	assert.Equal(t, "Slurp challenge", stats.Title)
	assert.Equal(t, int64(2), stats.Completed)
	assert.Equal(t, int64(1), stats.Redeemed)
}

func TestStats_MissionStatsOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rival, err := f.repos.User.FindOrCreateFromToken(ctx, types.TokenInfo{Subject: "rival", Role: "business"})
	require.NoError(t, err)

	_, err = f.ctrl.MissionStats(ctx, rival, f.mission.ID)
	assert.ErrorIs(t, err, types.ErrForbidden)

	require.NoError(t, f.repos.Restaurant.Create(ctx, &models.Restaurant{OwnerID: rival.ID, Name: "Rival"}))
	_, err = f.ctrl.MissionStats(ctx, rival, f.mission.ID)
	assert.ErrorIs(t, err, types.ErrForbidden)

	_, err = f.ctrl.MissionStats(ctx, f.business, uuid.New())
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestStats_RestaurantStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repos.Mission.Create(ctx, &models.Mission{
		RestaurantID: f.restaurant.ID,
		Title:        "Retired",
		Status:       models.MissionStatusInactive,
	}))

	f.complete(t, uuid.New(), "V1")
	f.complete(t, uuid.New(), "V2")
	f.redeem(t, "V1")
	f.redeem(t, "V2")

	stats, err := f.ctrl.RestaurantStats(ctx, f.business)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Missions)
	assert.Equal(t, 1, stats.ActiveMissions)
	assert.Equal(t, int64(2), stats.Completed)
	assert.Equal(t, int64(2), stats.Redeemed)
	assert.True(t, decimal.RequireFromString("9").Equal(stats.RedeemedValue))
}

type mockCompletions struct {
	repositories.MissionCompletionRepository
	mock.Mock
}

func (m *mockCompletions) InvalidateStats(ctx context.Context, customerID, missionID, restaurantID uuid.UUID) error {
	return m.Called(customerID, missionID, restaurantID).Error(0)
}

type mockSubscriber struct {
	mock.Mock
}

func (m *mockSubscriber) Subscribe(channel events.Channel, handler events.EventHandler) error {
	return m.Called(channel, handler).Error(0)
}

func TestStats_InvalidatesOnLedgerEvents(t *testing.T) {
	completions := new(mockCompletions)
	subscriber := new(mockSubscriber)
	subscriber.On("Subscribe", events.MISSIONS_CHANNEL, mock.Anything).Return(nil).Once()

	ctrl := New(repositories.Repository{MissionCompletion: completions}, subscriber)
	subscriber.AssertExpectations(t)

	completion := &models.MissionCompletion{
		ID:           uuid.New(),
		CustomerID:   uuid.New(),
		MissionID:    uuid.New(),
		RestaurantID: uuid.New(),
	}
	completions.On("InvalidateStats", completion.CustomerID, completion.MissionID, completion.RestaurantID).
		Return(nil).Twice()

	require.NoError(t, ctrl.HandleLedgerEvent(events.NewCompletionEvent(events.MISSION_COMPLETED, completion)))
	require.NoError(t, ctrl.HandleLedgerEvent(events.NewCompletionEvent(events.VOUCHER_REDEEMED, completion)))
	require.NoError(t, ctrl.HandleLedgerEvent(events.Event{Type: events.PING}))
	assert.Error(t, ctrl.HandleLedgerEvent(events.Event{Type: events.MISSION_COMPLETED}))

	completions.AssertExpectations(t)
}
