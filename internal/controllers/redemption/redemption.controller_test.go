package redemptionController

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	ledgerController "biteback/internal/controllers/ledger"
	"biteback/internal/events"
	"biteback/internal/models"
	"biteback/internal/repositories"
	"biteback/internal/repositories/repotest"
	"biteback/internal/services"
	"biteback/internal/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(channel events.Channel, event events.Event) error {
	return m.Called(channel, event).Error(0)
}

type fixture struct {
	ctrl       *RedemptionController
	repos      repositories.Repository
	store      *repotest.Store
	voucher    *services.VoucherService
	publisher  *mockPublisher
	business   *models.User
	restaurant *models.Restaurant
	mission    *models.Mission
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	repos, store := repotest.New()
	business, err := repos.User.FindOrCreateFromToken(ctx, types.TokenInfo{Subject: "biz", Role: "business"})
	require.NoError(t, err)

	restaurant := &models.Restaurant{OwnerID: business.ID, Name: "Casa Verde"}
	require.NoError(t, repos.Restaurant.Create(ctx, restaurant))

	mission := &models.Mission{
		RestaurantID: restaurant.ID,
		Title:        "Try the mole",
		Reward:       "Free dessert",
		Status:       models.MissionStatusActive,
		Steps: []models.MissionStep{
			{Description: "Order the mole"},
			{Description: "Post a photo"},
			{Description: "Tag us"},
		},
	}
	require.NoError(t, repos.Mission.Create(ctx, mission))

	publisher := new(mockPublisher)
	publisher.On("Publish", events.MISSIONS_CHANNEL, mock.Anything).Return(nil).Maybe()
	voucher := services.NewVoucherService(testKey)

	return &fixture{
		ctrl:       New(repos, voucher, publisher, services.NewMetricsService()),
		repos:      repos,
		store:      store,
		voucher:    voucher,
		publisher:  publisher,
		business:   business,
		restaurant: restaurant,
		mission:    mission,
	}
}

// completed seeds a finalized completion and returns its voucher id.
func (f *fixture) completed(t *testing.T, customerID uuid.UUID) string {
	t.Helper()
	ctx := context.Background()

	completion := &models.MissionCompletion{
		CustomerID:   customerID,
		MissionID:    f.mission.ID,
		RestaurantID: f.restaurant.ID,
		MissionTitle: f.mission.Title,
		StepProofs:   []string{"https://cdn.test/0", "https://cdn.test/1", "https://cdn.test/2"},
	}
	require.NoError(t, f.repos.MissionCompletion.CreateIfAbsent(ctx, completion))

	nonce, err := f.voucher.NewNonce()
	require.NoError(t, err)
	voucherID, err := f.voucher.Mint(customerID, f.mission.ID, nonce)
	require.NoError(t, err)

	won, err := f.repos.MissionCompletion.SetVoucher(ctx, completion.ID, voucherID, time.Now())
	require.NoError(t, err)
	require.True(t, won)

	return voucherID
}

func TestRedemption_RedeemOnce(t *testing.T) {
	f := newFixture(t)
	customerID := uuid.New()
	voucherID := f.completed(t, customerID)
	ctx := context.Background()

	summary, err := f.ctrl.Redeem(ctx, f.business, f.voucher.Encode(voucherID))
	require.NoError(t, err)
	assert.True(t, summary.Redeemed)
	assert.Equal(t, voucherID, summary.VoucherID)
	assert.Equal(t, customerID, summary.CustomerID)
	assert.Equal(t, "Free dessert", summary.Reward)
	require.NotNil(t, summary.RedeemedAt)

	before := f.store.Completion(customerID, f.mission.ID)

	_, err = f.ctrl.Redeem(ctx, f.business, voucherID)
	assert.ErrorIs(t, err, types.ErrAlreadyRedeemed)

	after := f.store.Completion(customerID, f.mission.ID)
	assert.Equal(t, before.RedeemedAt, after.RedeemedAt)
	assert.True(t, after.Redeemed)
	require.NotNil(t, after.RedeemedBy)
	assert.Equal(t, f.business.ID, *after.RedeemedBy)

	f.publisher.AssertNumberOfCalls(t, "Publish", 1)
}

func TestRedemption_ConcurrentRedeemExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	voucherID := f.completed(t, uuid.New())

	const scanners = 12
	errs := make([]error, scanners)

	var wg sync.WaitGroup
	for i := range scanners {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.ctrl.Redeem(context.Background(), f.business, voucherID)
		}()
	}
	wg.Wait()

	successes, already := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case assert.ErrorIs(t, err, types.ErrAlreadyRedeemed):
			already++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, scanners-1, already)
}

func TestRedemption_Rejections(t *testing.T) {
	f := newFixture(t)
	voucherID := f.completed(t, uuid.New())
	ctx := context.Background()

	t.Run("malformed payload", func(t *testing.T) {
		_, err := f.ctrl.Redeem(ctx, f.business, "https://example.com/not-a-voucher")
		assert.ErrorIs(t, err, types.ErrInvalidPayload)
	})

	t.Run("unknown voucher", func(t *testing.T) {
		nonce, err := f.voucher.NewNonce()
		require.NoError(t, err)
		unknown, err := f.voucher.Mint(uuid.New(), uuid.New(), nonce)
		require.NoError(t, err)

		_, err = f.ctrl.Redeem(ctx, f.business, unknown)
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("another restaurant's business", func(t *testing.T) {
		rival, err := f.repos.User.FindOrCreateFromToken(ctx, types.TokenInfo{Subject: "rival", Role: "business"})
		require.NoError(t, err)
		require.NoError(t, f.repos.Restaurant.Create(ctx, &models.Restaurant{OwnerID: rival.ID, Name: "Rival"}))

		_, err = f.ctrl.Redeem(ctx, rival, voucherID)
		assert.ErrorIs(t, err, types.ErrNotFound)
		_, err = f.ctrl.Review(ctx, rival, voucherID)
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("business without restaurant", func(t *testing.T) {
		lonely, err := f.repos.User.FindOrCreateFromToken(ctx, types.TokenInfo{Subject: "lonely", Role: "business"})
		require.NoError(t, err)

		_, err = f.ctrl.Redeem(ctx, lonely, voucherID)
		assert.ErrorIs(t, err, types.ErrForbidden)
	})

	t.Run("store failure", func(t *testing.T) {
		f.store.FailWrites = true
		defer func() { f.store.FailWrites = false }()

		_, err := f.ctrl.Redeem(ctx, f.business, voucherID)
		assert.ErrorIs(t, err, types.ErrStore)
	})

	completion, err := f.repos.MissionCompletion.GetByVoucherID(ctx, voucherID)
	require.NoError(t, err)
	assert.False(t, completion.Redeemed)
}

func TestRedemption_ReviewIsReadOnly(t *testing.T) {
	f := newFixture(t)
	customerID := uuid.New()
	voucherID := f.completed(t, customerID)

	review, err := f.ctrl.Review(context.Background(), f.business, "  "+strings.ToLower(voucherID))
	require.NoError(t, err)
	assert.Equal(t, voucherID, review.VoucherID)
	assert.Len(t, review.Steps, 3)
	assert.Equal(t, "https://cdn.test/1", review.StepProofs[1])
	assert.False(t, review.Redeemed)

	assert.False(t, f.store.Completion(customerID, f.mission.ID).Redeemed)
}

func TestRedemption_SurvivesMissionDeletion(t *testing.T) {
	f := newFixture(t)
	voucherID := f.completed(t, uuid.New())
	require.NoError(t, f.repos.Mission.Delete(context.Background(), f.mission))

	summary, err := f.ctrl.Redeem(context.Background(), f.business, voucherID)
	require.NoError(t, err)
	assert.Equal(t, "Try the mole", summary.MissionTitle)
	assert.Empty(t, summary.Reward)
}

type stubProofStore struct{}

func (stubProofStore) Store(_ context.Context, c, m uuid.UUID, step int, _ []byte) (string, error) {
	return services.ProofKey(c, m, step, uuid.New()), nil
}

func (stubProofStore) StoreAll(
	ctx context.Context,
	c, m uuid.UUID,
	uploads []services.ProofUpload,
) (map[int]string, error) {
	urls := map[int]string{}
	for _, u := range uploads {
		urls[u.StepIndex] = services.ProofKey(c, m, u.StepIndex, uuid.New())
	}
	return urls, nil
}

func (stubProofStore) StoreMissionImage(_ context.Context, r, m uuid.UUID, _ []byte) (string, error) {
	return services.MissionImageKey(r, m), nil
}

func TestThreeStepMissionEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customerID := uuid.New()

	ledger := ledgerController.New(f.repos, stubProofStore{}, f.voucher, f.publisher, nil)

	for step := range 3 {
		_, err := ledger.SubmitStepProof(ctx, customerID, f.mission.ID, step, []byte("proof"))
		require.NoError(t, err)
	}

	v1, err := ledger.Finalize(ctx, customerID, f.mission.ID)
	require.NoError(t, err)

	summary, err := f.ctrl.Redeem(ctx, f.business, f.voucher.Encode(v1))
	require.NoError(t, err)
	assert.True(t, summary.Redeemed)

	state, err := ledger.GetState(ctx, customerID, f.mission.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CompletionRedeemed, state.Status)
	assert.Equal(t, v1, state.VoucherID)

	_, err = f.ctrl.Redeem(ctx, f.business, f.voucher.Encode(v1))
	assert.ErrorIs(t, err, types.ErrAlreadyRedeemed)
}
