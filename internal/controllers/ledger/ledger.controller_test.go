package ledgerController

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

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

type mockProofStore struct {
	mock.Mock
}

func (m *mockProofStore) Store(
	ctx context.Context,
	customerID, missionID uuid.UUID,
	stepIndex int,
	image []byte,
) (string, error) {
	args := m.Called(customerID, missionID, stepIndex)
	return args.String(0), args.Error(1)
}

func (m *mockProofStore) StoreAll(
	ctx context.Context,
	customerID, missionID uuid.UUID,
	uploads []services.ProofUpload,
) (map[int]string, error) {
	args := m.Called(customerID, missionID, len(uploads))
	urls, _ := args.Get(0).(map[int]string)
	return urls, args.Error(1)
}

func (m *mockProofStore) StoreMissionImage(
	ctx context.Context,
	restaurantID, missionID uuid.UUID,
	image []byte,
) (string, error) {
	args := m.Called(restaurantID, missionID)
	return args.String(0), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(channel events.Channel, event events.Event) error {
	return m.Called(channel, event).Error(0)
}

type fixture struct {
	ctrl       *LedgerController
	repos      repositories.Repository
	store      *repotest.Store
	proofs     *mockProofStore
	publisher  *mockPublisher
	metrics    *services.MetricsService
	mission    *models.Mission
	customerID uuid.UUID
}

func newFixture(t *testing.T, stepCount int) *fixture {
	t.Helper()

	repos, store := repotest.New()
	steps := make([]models.MissionStep, stepCount)
	for i := range steps {
		steps[i] = models.MissionStep{Description: fmt.Sprintf("step %d", i+1)}
	}

	mission := &models.Mission{
		RestaurantID: uuid.New(),
		Title:        "Taco Tuesday",
		Reward:       "Free churro",
		Status:       models.MissionStatusActive,
		Steps:        steps,
	}
	require.NoError(t, repos.Mission.Create(context.Background(), mission))

	proofs := new(mockProofStore)
	publisher := new(mockPublisher)
	publisher.On("Publish", events.MISSIONS_CHANNEL, mock.Anything).Return(nil).Maybe()
	metrics := services.NewMetricsService()

	return &fixture{
		ctrl: New(
			repos,
			proofs,
			services.NewVoucherService("0123456789abcdef0123456789abcdef"),
			publisher,
			metrics,
		),
		repos:      repos,
		store:      store,
		proofs:     proofs,
		publisher:  publisher,
		metrics:    metrics,
		mission:    mission,
		customerID: uuid.New(),
	}
}

func (f *fixture) proofURL(step int) string {
	return fmt.Sprintf("https://cdn.test/%s/%d", f.customerID, step)
}

func (f *fixture) expectStore(step int) {
	f.proofs.On("Store", f.customerID, f.mission.ID, step).Return(f.proofURL(step), nil)
}

func (f *fixture) submitAll(t *testing.T) {
	t.Helper()
	for step := range f.mission.StepCount() {
		f.expectStore(step)
		_, err := f.ctrl.SubmitStepProof(context.Background(), f.customerID, f.mission.ID, step, []byte("img"))
		require.NoError(t, err)
	}
}

func TestLedger_GetStateNotStarted(t *testing.T) {
	f := newFixture(t, 2)

	state, err := f.ctrl.GetState(context.Background(), f.customerID, f.mission.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CompletionNotStarted, state.Status)
	assert.Equal(t, []string{"", ""}, state.Proofs)
	assert.Equal(t, []int{0, 1}, state.MissingSteps)
	assert.Empty(t, state.VoucherID)

	_, err = f.ctrl.GetState(context.Background(), f.customerID, uuid.New())
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestLedger_SubmitStepProofOutOfOrder(t *testing.T) {
	f := newFixture(t, 3)
	f.expectStore(2)

	state, err := f.ctrl.SubmitStepProof(context.Background(), f.customerID, f.mission.ID, 2, []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, models.CompletionInProgress, state.Status)
	assert.Equal(t, []string{"", "", f.proofURL(2)}, state.Proofs)
	assert.Equal(t, []int{0, 1}, state.MissingSteps)
}

func TestLedger_SubmitStepProofValidation(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	_, err := f.ctrl.SubmitStepProof(ctx, f.customerID, f.mission.ID, 2, []byte("img"))
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = f.ctrl.SubmitStepProof(ctx, f.customerID, f.mission.ID, -1, []byte("img"))
	assert.ErrorIs(t, err, types.ErrValidation)

	f.mission.Status = models.MissionStatusInactive
	require.NoError(t, f.repos.Mission.Update(ctx, f.mission))
	_, err = f.ctrl.SubmitStepProof(ctx, f.customerID, f.mission.ID, 0, []byte("img"))
	assert.ErrorIs(t, err, types.ErrValidation)

	f.proofs.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything)
	assert.Nil(t, f.store.Completion(f.customerID, f.mission.ID))
}

func TestLedger_UploadFailureLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t, 2)
	f.proofs.On("Store", f.customerID, f.mission.ID, 0).Return("", types.ErrStore)

	_, err := f.ctrl.SubmitStepProof(context.Background(), f.customerID, f.mission.ID, 0, []byte("img"))
	assert.ErrorIs(t, err, types.ErrStore)
	assert.Nil(t, f.store.Completion(f.customerID, f.mission.ID))
}

func TestLedger_FinalizeRequiresEveryProof(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	_, err := f.ctrl.Finalize(ctx, f.customerID, f.mission.ID)
	assert.ErrorIs(t, err, types.ErrValidation)

	f.expectStore(0)
	_, err = f.ctrl.SubmitStepProof(ctx, f.customerID, f.mission.ID, 0, []byte("img"))
	require.NoError(t, err)

	_, err = f.ctrl.Finalize(ctx, f.customerID, f.mission.ID)
	assert.ErrorIs(t, err, types.ErrValidation)

	completion := f.store.Completion(f.customerID, f.mission.ID)
	require.NotNil(t, completion)
	assert.False(t, completion.HasVoucher())
	assert.Equal(t, 0.0, f.minted(t))
}

func TestLedger_FinalizeIsIdempotent(t *testing.T) {
	f := newFixture(t, 2)
	f.submitAll(t)
	ctx := context.Background()

	first, err := f.ctrl.Finalize(ctx, f.customerID, f.mission.ID)
	require.NoError(t, err)
	second, err := f.ctrl.Finalize(ctx, f.customerID, f.mission.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, services.VoucherIDLength)

	state, err := f.ctrl.GetState(ctx, f.customerID, f.mission.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CompletionCompleted, state.Status)
	assert.Equal(t, first, state.VoucherID)

	assert.Equal(t, 1.0, f.minted(t))
	f.publisher.AssertNumberOfCalls(t, "Publish", 1)
}

func TestLedger_ConcurrentFinalizeMintsOnce(t *testing.T) {
	f := newFixture(t, 1)
	f.submitAll(t)

	const callers = 16
	vouchers := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vouchers[i], errs[i] = f.ctrl.Finalize(context.Background(), f.customerID, f.mission.ID)
		}()
	}
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, vouchers[0], vouchers[i])
	}
	assert.Equal(t, 1.0, f.minted(t))
}

func TestLedger_ProofsRejectedAfterCompletion(t *testing.T) {
	f := newFixture(t, 1)
	f.submitAll(t)

	_, err := f.ctrl.Finalize(context.Background(), f.customerID, f.mission.ID)
	require.NoError(t, err)

	_, err = f.ctrl.SubmitStepProof(context.Background(), f.customerID, f.mission.ID, 0, []byte("swapped"))
	assert.ErrorIs(t, err, types.ErrAlreadyCompleted)

	_, err = f.ctrl.SubmitProofs(context.Background(), f.customerID, f.mission.ID, []services.ProofUpload{
		{StepIndex: 0, Image: []byte("swapped")},
	})
	assert.ErrorIs(t, err, types.ErrAlreadyCompleted)

	f.proofs.AssertNumberOfCalls(t, "Store", f.mission.StepCount())
	f.proofs.AssertNotCalled(t, "StoreAll", mock.Anything, mock.Anything, mock.Anything)

	completion := f.store.Completion(f.customerID, f.mission.ID)
	require.NotNil(t, completion)
	assert.Equal(t, []string{f.proofURL(0)}, []string(completion.StepProofs))
}

func TestLedger_FinalizeRejectsExpiredMission(t *testing.T) {
	f := newFixture(t, 1)
	f.submitAll(t)
	ctx := context.Background()

	expired := "2000-01-01"
	f.mission.Expiration = &expired
	require.NoError(t, f.repos.Mission.Update(ctx, f.mission))
	require.True(t, f.mission.IsActive())
	assert.Equal(t, time.UTC, f.ctrl.now().Location())

	_, err := f.ctrl.Finalize(ctx, f.customerID, f.mission.ID)
	assert.ErrorIs(t, err, types.ErrValidation)
	assert.Equal(t, 0.0, f.minted(t))

	completion := f.store.Completion(f.customerID, f.mission.ID)
	require.NotNil(t, completion)
	assert.False(t, completion.HasVoucher())
}

func TestLedger_FinalizeReturnsVoucherAfterExpiry(t *testing.T) {
	f := newFixture(t, 1)
	f.submitAll(t)
	ctx := context.Background()

	voucherID, err := f.ctrl.Finalize(ctx, f.customerID, f.mission.ID)
	require.NoError(t, err)

	expired := "2000-01-01"
	f.mission.Expiration = &expired
	require.NoError(t, f.repos.Mission.Update(ctx, f.mission))

	again, err := f.ctrl.Finalize(ctx, f.customerID, f.mission.ID)
	require.NoError(t, err)
	assert.Equal(t, voucherID, again)
}

func TestLedger_CompleteWizard(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	uploads := []services.ProofUpload{
		{StepIndex: 0, Image: []byte("a")},
		{StepIndex: 1, Image: []byte("b")},
		{StepIndex: 2, Image: []byte("c")},
	}

	f.proofs.On("StoreAll", f.customerID, f.mission.ID, 3).
		Return(map[int]string{0: f.proofURL(0), 1: f.proofURL(1), 2: f.proofURL(2)}, nil).
		Once()

	voucherID, err := f.ctrl.Complete(ctx, f.customerID, f.mission.ID, uploads)
	require.NoError(t, err)

	again, err := f.ctrl.Complete(ctx, f.customerID, f.mission.ID, uploads)
	require.NoError(t, err)
	assert.Equal(t, voucherID, again)

	f.proofs.AssertNumberOfCalls(t, "StoreAll", 1)

	completion := f.store.Completion(f.customerID, f.mission.ID)
	require.NotNil(t, completion)
	assert.Equal(t, []string{f.proofURL(0), f.proofURL(1), f.proofURL(2)}, []string(completion.StepProofs))
}

func TestLedger_CompleteFailsAsAWhole(t *testing.T) {
	f := newFixture(t, 2)
	f.proofs.On("StoreAll", f.customerID, f.mission.ID, 2).Return(nil, types.ErrStore)

	_, err := f.ctrl.Complete(context.Background(), f.customerID, f.mission.ID, []services.ProofUpload{
		{StepIndex: 0, Image: []byte("a")},
		{StepIndex: 1, Image: []byte("b")},
	})
	assert.ErrorIs(t, err, types.ErrStore)
	assert.Nil(t, f.store.Completion(f.customerID, f.mission.ID))
}

func TestLedger_SubmitProofsRejectsDuplicateSteps(t *testing.T) {
	f := newFixture(t, 2)

	_, err := f.ctrl.SubmitProofs(context.Background(), f.customerID, f.mission.ID, []services.ProofUpload{
		{StepIndex: 0, Image: []byte("a")},
		{StepIndex: 0, Image: []byte("b")},
	})
	assert.ErrorIs(t, err, types.ErrValidation)
	f.proofs.AssertNotCalled(t, "StoreAll", mock.Anything, mock.Anything, mock.Anything)
}

func TestLedger_StoreFailureOnWrite(t *testing.T) {
	f := newFixture(t, 1)
	f.expectStore(0)
	f.store.FailWrites = true

	_, err := f.ctrl.SubmitStepProof(context.Background(), f.customerID, f.mission.ID, 0, []byte("img"))
	assert.True(t, errors.Is(err, types.ErrStore))
}

func TestLedger_VoucherQROnlyForHolder(t *testing.T) {
	f := newFixture(t, 1)
	f.submitAll(t)
	ctx := context.Background()

	voucherID, err := f.ctrl.Finalize(ctx, f.customerID, f.mission.ID)
	require.NoError(t, err)

	png, err := f.ctrl.VoucherQR(ctx, f.customerID, voucherID, 128)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])

	_, err = f.ctrl.VoucherQR(ctx, uuid.New(), voucherID, 128)
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = f.ctrl.VoucherQR(ctx, f.customerID, "not a voucher", 128)
	assert.ErrorIs(t, err, types.ErrInvalidPayload)
}

func (f *fixture) minted(t *testing.T) float64 {
	t.Helper()

	families, err := f.metrics.Registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() == "biteback_ledger_vouchers_minted_total" {
			return family.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}
