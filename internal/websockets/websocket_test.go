package websockets

import (
	"context"
	"testing"

	"biteback/internal/events"
	"biteback/internal/models"
	"biteback/internal/repositories/repotest"
	"biteback/internal/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockValidator struct {
	mock.Mock
}

func (m *mockValidator) ValidateToken(token string) (*types.TokenInfo, error) {
	args := m.Called(token)
	info, _ := args.Get(0).(*types.TokenInfo)
	return info, args.Error(1)
}

func TestManager_AuthenticateBindsRestaurant(t *testing.T) {
	ctx := context.Background()
	repos, _ := repotest.New()

	business, err := repos.User.FindOrCreateFromToken(ctx, types.TokenInfo{Subject: "biz", Role: "business"})
	require.NoError(t, err)
	restaurant := &models.Restaurant{OwnerID: business.ID, Name: "Deli"}
	require.NoError(t, repos.Restaurant.Create(ctx, restaurant))
	_, err = repos.User.FindOrCreateFromToken(ctx, types.TokenInfo{Subject: "cust"})
	require.NoError(t, err)

	validator := new(mockValidator)
	validator.On("ValidateToken", "good").Return(&types.TokenInfo{Subject: "biz"}, nil)
	validator.On("ValidateToken", "customer").Return(&types.TokenInfo{Subject: "cust"}, nil)
	validator.On("ValidateToken", "bad").Return(nil, types.ErrUnauthorized)

	m := newManager(validator, repos)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "missing token", token: "", wantErr: types.ErrUnauthorized},
		{name: "invalid token", token: "bad", wantErr: types.ErrUnauthorized},
		{name: "customer", token: "customer", wantErr: types.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newClient(m, nil)
			assert.ErrorIs(t, m.authenticate(ctx, client, tt.token), tt.wantErr)
			assert.False(t, m.isAuthenticated(client))
		})
	}

	client := newClient(m, nil)
	require.NoError(t, m.authenticate(ctx, client, "good"))
	assert.True(t, m.isAuthenticated(client))
	assert.Equal(t, business.ID, client.UserID)
	assert.Equal(t, restaurant.ID, client.RestaurantID)

	assert.ErrorIs(t, m.authenticate(ctx, client, "good"), types.ErrValidation)
}

func TestManager_LedgerEventsReachOwningRestaurantOnly(t *testing.T) {
	repos, _ := repotest.New()
	m := newManager(nil, repos)

	restaurantID := uuid.New()
	owner := newClient(m, nil)
	rival := newClient(m, nil)
	pending := newClient(m, nil)
	for _, c := range []*Client{owner, rival, pending} {
		m.registerClient(c)
	}
	require.True(t, m.promoteClientToAuthenticated(owner, uuid.New(), restaurantID))
	require.True(t, m.promoteClientToAuthenticated(rival, uuid.New(), uuid.New()))

	completion := &models.MissionCompletion{
		ID:           uuid.New(),
		CustomerID:   uuid.New(),
		MissionID:    uuid.New(),
		RestaurantID: restaurantID,
		MissionTitle: "Dumpling dash",
	}
	event := events.NewCompletionEvent(events.VOUCHER_REDEEMED, completion)
	require.NoError(t, m.HandleLedgerEvent(event))

	require.Len(t, owner.send, 1)
	message := <-owner.send
	assert.Equal(t, events.VOUCHER_REDEEMED, message.Type)
	assert.Equal(t, "Dumpling dash", message.Data["missionTitle"])
	assert.Equal(t, completion.CustomerID.String(), message.Data["customerId"])

	assert.Empty(t, rival.send)
	assert.Empty(t, pending.send)
}

func TestManager_UnregisteredClientDropsMessages(t *testing.T) {
	repos, _ := repotest.New()
	m := newManager(nil, repos)

	client := newClient(m, nil)
	m.registerClient(client)
	require.True(t, m.promoteClientToAuthenticated(client, uuid.New(), uuid.New()))

	m.unregisterClient(client)
	m.unregisterClient(client)

	assert.False(t, m.enqueue(client, Message{Type: events.PONG}))
	assert.Zero(t, m.sendToAuthenticatedClients(Message{Type: events.BROADCAST}))
}
