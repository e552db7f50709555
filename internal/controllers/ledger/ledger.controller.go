package ledgerController

import (
	"context"
	"errors"
	"time"

	"biteback/internal/events"
	. "biteback/internal/models"
	"biteback/internal/repositories"
	"biteback/internal/services"
	"biteback/internal/types"
	"biteback/internal/utils"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/google/uuid"
)

// maxProofWriteAttempts bounds the optimistic retry loop on proof slot writes.
const maxProofWriteAttempts = 5

type LedgerState struct {
	MissionID    uuid.UUID        `json:"missionId"`
	Status       CompletionStatus `json:"status"`
	Proofs       []string         `json:"proofs"`
	MissingSteps []int            `json:"missingSteps"`
	VoucherID    string           `json:"voucherId,omitempty"`
	Redeemed     bool             `json:"redeemed"`
}

type LedgerControllerInterface interface {
	GetState(ctx context.Context, customerID, missionID uuid.UUID) (*LedgerState, error)
	SubmitStepProof(
		ctx context.Context,
		customerID, missionID uuid.UUID,
		stepIndex int,
		image []byte,
	) (*LedgerState, error)
	SubmitProofs(
		ctx context.Context,
		customerID, missionID uuid.UUID,
		uploads []services.ProofUpload,
	) (*LedgerState, error)
	Finalize(ctx context.Context, customerID, missionID uuid.UUID) (string, error)
	Complete(
		ctx context.Context,
		customerID, missionID uuid.UUID,
		uploads []services.ProofUpload,
	) (string, error)
	VoucherQR(ctx context.Context, customerID uuid.UUID, payload string, size int) ([]byte, error)
}

type LedgerController struct {
	missionRepo    repositories.MissionRepository
	completionRepo repositories.MissionCompletionRepository
	proofStore     services.ProofStorage
	voucher        *services.VoucherService
	publisher      events.Publisher
	metrics        *services.MetricsService
	now            func() time.Time
	log            logger.Logger
}

func New(
	repos repositories.Repository,
	proofStore services.ProofStorage,
	voucher *services.VoucherService,
	publisher events.Publisher,
	metrics *services.MetricsService,
) *LedgerController {
	return &LedgerController{
		missionRepo:    repos.Mission,
		completionRepo: repos.MissionCompletion,
		proofStore:     proofStore,
		voucher:        voucher,
		publisher:      publisher,
		metrics:        metrics,
		now:            utils.NowUTC,
		log:            logger.New("ledgerController"),
	}
}

func (c *LedgerController) GetState(
	ctx context.Context,
	customerID, missionID uuid.UUID,
) (*LedgerState, error) {
	mission, err := c.missionRepo.GetByID(ctx, missionID)
	if err != nil {
		return nil, err
	}

	completion, err := c.loadCompletion(ctx, customerID, missionID)
	if err != nil {
		return nil, err
	}

	return buildState(mission, completion), nil
}

func (c *LedgerController) SubmitStepProof(
	ctx context.Context,
	customerID, missionID uuid.UUID,
	stepIndex int,
	image []byte,
) (*LedgerState, error) {
	log := c.log.Function("SubmitStepProof")
	ctx = context.WithoutCancel(ctx)

	mission, err := c.openMission(ctx, customerID, missionID)
	if err != nil {
		return nil, err
	}

	if stepIndex < 0 || stepIndex >= mission.StepCount() {
		return nil, log.ErrorWithType(
			types.ErrValidation,
			"step index out of range",
			"stepIndex", stepIndex,
			"stepCount", mission.StepCount(),
		)
	}

	if err := c.rejectIfCompleted(ctx, customerID, missionID); err != nil {
		return nil, err
	}

	url, err := c.proofStore.Store(ctx, customerID, missionID, stepIndex, image)
	if err != nil {
		return nil, err
	}

	return c.recordProofs(ctx, customerID, mission, map[int]string{stepIndex: url})
}

// SubmitProofs uploads several steps at once and records them in one write.
// Nothing is recorded unless every upload succeeds.
func (c *LedgerController) SubmitProofs(
	ctx context.Context,
	customerID, missionID uuid.UUID,
	uploads []services.ProofUpload,
) (*LedgerState, error) {
	log := c.log.Function("SubmitProofs")
	ctx = context.WithoutCancel(ctx)

	mission, err := c.openMission(ctx, customerID, missionID)
	if err != nil {
		return nil, err
	}

	seen := make(map[int]bool, len(uploads))
	for _, upload := range uploads {
		if upload.StepIndex < 0 || upload.StepIndex >= mission.StepCount() || seen[upload.StepIndex] {
			return nil, log.ErrorWithType(
				types.ErrValidation,
				"invalid or duplicate step index",
				"stepIndex", upload.StepIndex,
				"stepCount", mission.StepCount(),
			)
		}
		seen[upload.StepIndex] = true
	}

	if err := c.rejectIfCompleted(ctx, customerID, missionID); err != nil {
		return nil, err
	}

	urls, err := c.proofStore.StoreAll(ctx, customerID, missionID, uploads)
	if err != nil {
		return nil, err
	}

	return c.recordProofs(ctx, customerID, mission, urls)
}

// Finalize issues the voucher for a fully proven completion. It is
// idempotent: once a voucher exists it is returned unchanged.
func (c *LedgerController) Finalize(
	ctx context.Context,
	customerID, missionID uuid.UUID,
) (string, error) {
	log := c.log.Function("Finalize")
	ctx = context.WithoutCancel(ctx)

	completion, err := c.loadCompletion(ctx, customerID, missionID)
	if err != nil {
		return "", err
	}
	if completion.HasVoucher() {
		return completion.Voucher(), nil
	}
	if completion == nil {
		return "", log.ErrorWithType(
			types.ErrValidation,
			"no proofs submitted",
			"customerID", customerID,
			"missionID", missionID,
		)
	}

	mission, err := c.missionRepo.GetByID(ctx, missionID)
	if err != nil {
		return "", err
	}

	if missing := completion.MissingSteps(mission.StepCount()); len(missing) > 0 {
		return "", log.ErrorWithType(
			types.ErrValidation,
			"steps are missing proofs",
			"missionID", missionID,
			"missingSteps", missing,
		)
	}

	if !mission.IsActive() || mission.IsExpired(c.now()) {
		return "", log.ErrorWithType(types.ErrValidation, "mission is not active", "missionID", missionID)
	}

	nonce, err := c.voucher.NewNonce()
	if err != nil {
		return "", err
	}

	voucherID, err := c.voucher.Mint(customerID, missionID, nonce)
	if err != nil {
		return "", err
	}

	completedAt := c.now()
	won, err := c.completionRepo.SetVoucher(ctx, completion.ID, voucherID, completedAt)
	if err != nil {
		return "", err
	}

	if !won {
		winner, err := c.completionRepo.Get(ctx, customerID, missionID)
		if err != nil {
			return "", err
		}
		if !winner.HasVoucher() {
			return "", log.ErrorWithType(
				types.ErrConcurrentModification,
				"voucher assignment lost without a winner",
				"completionID", completion.ID,
			)
		}
		log.Info("Concurrent finalize resolved to existing voucher", "completionID", completion.ID)
		return winner.Voucher(), nil
	}

	completion.VoucherID = &voucherID
	completion.CompletedAt = &completedAt
	c.metrics.VoucherMinted()
	c.publish(events.MISSION_COMPLETED, completion)

	log.Info("Voucher issued", "customerID", customerID, "missionID", missionID, "completionID", completion.ID)
	return voucherID, nil
}

// Complete runs the whole wizard: an existing voucher short-circuits without
// uploading, otherwise the proofs are stored and the completion finalized.
func (c *LedgerController) Complete(
	ctx context.Context,
	customerID, missionID uuid.UUID,
	uploads []services.ProofUpload,
) (string, error) {
	completion, err := c.loadCompletion(ctx, customerID, missionID)
	if err != nil {
		return "", err
	}
	if completion.HasVoucher() {
		return completion.Voucher(), nil
	}

	if len(uploads) > 0 {
		if _, err := c.SubmitProofs(ctx, customerID, missionID, uploads); err != nil {
			return "", err
		}
	}

	return c.Finalize(ctx, customerID, missionID)
}

func (c *LedgerController) recordProofs(
	ctx context.Context,
	customerID uuid.UUID,
	mission *Mission,
	urls map[int]string,
) (*LedgerState, error) {
	log := c.log.Function("recordProofs")

	for attempt := 1; attempt <= maxProofWriteAttempts; attempt++ {
		completion, err := c.ensureCompletion(ctx, customerID, mission)
		if err != nil {
			return nil, err
		}

		if completion.HasVoucher() {
			return nil, log.ErrorWithType(
				types.ErrAlreadyCompleted,
				"mission already completed",
				"completionID", completion.ID,
			)
		}

		proofs := completion.WithProofs(mission.StepCount(), urls)
		won, err := c.completionRepo.UpdateProofs(ctx, completion.ID, completion.Version, proofs)
		if err != nil {
			return nil, err
		}

		if won {
			completion.StepProofs = proofs
			completion.Version++
			return buildState(mission, completion), nil
		}

		log.Debug("Proof write conflicted, retrying", "completionID", completion.ID, "attempt", attempt)
	}

	return nil, log.ErrorWithType(
		types.ErrConcurrentModification,
		"proof write kept conflicting",
		"customerID", customerID,
		"missionID", mission.ID,
	)
}

func (c *LedgerController) ensureCompletion(
	ctx context.Context,
	customerID uuid.UUID,
	mission *Mission,
) (*MissionCompletion, error) {
	completion, err := c.loadCompletion(ctx, customerID, mission.ID)
	if err != nil || completion != nil {
		return completion, err
	}

	if err := c.completionRepo.CreateIfAbsent(ctx, &MissionCompletion{
		CustomerID:   customerID,
		MissionID:    mission.ID,
		RestaurantID: mission.RestaurantID,
		MissionTitle: mission.Title,
		StepProofs:   make([]string, mission.StepCount()),
	}); err != nil {
		return nil, err
	}

	// Re-read so a row created concurrently by another request wins.
	return c.completionRepo.Get(ctx, customerID, mission.ID)
}

// rejectIfCompleted runs before any upload so a submit against an issued
// voucher never touches the proof store.
func (c *LedgerController) rejectIfCompleted(ctx context.Context, customerID, missionID uuid.UUID) error {
	completion, err := c.loadCompletion(ctx, customerID, missionID)
	if err != nil {
		return err
	}
	if completion.HasVoucher() {
		return c.log.Function("rejectIfCompleted").ErrorWithType(
			types.ErrAlreadyCompleted,
			"mission already completed",
			"completionID", completion.ID,
		)
	}
	return nil
}

func (c *LedgerController) openMission(
	ctx context.Context,
	customerID, missionID uuid.UUID,
) (*Mission, error) {
	log := c.log.Function("openMission")

	mission, err := c.missionRepo.GetByID(ctx, missionID)
	if err != nil {
		return nil, err
	}

	if !mission.IsActive() || mission.IsExpired(c.now()) {
		return nil, log.ErrorWithType(
			types.ErrValidation,
			"mission is not accepting proofs",
			"missionID", missionID,
			"customerID", customerID,
		)
	}

	return mission, nil
}

// VoucherQR renders the QR code for a voucher held by the customer.
func (c *LedgerController) VoucherQR(
	ctx context.Context,
	customerID uuid.UUID,
	payload string,
	size int,
) ([]byte, error) {
	log := c.log.Function("VoucherQR")

	voucherID, err := c.voucher.Decode(payload)
	if err != nil {
		return nil, err
	}

	completion, err := c.completionRepo.GetByVoucherID(ctx, voucherID)
	if err != nil {
		return nil, err
	}
	if completion.CustomerID != customerID {
		return nil, log.ErrorWithType(types.ErrNotFound, "voucher not found", "voucherID", voucherID)
	}

	return c.voucher.QRCode(voucherID, size)
}

// loadCompletion returns nil without error when the pair has no ledger row.
func (c *LedgerController) loadCompletion(
	ctx context.Context,
	customerID, missionID uuid.UUID,
) (*MissionCompletion, error) {
	completion, err := c.completionRepo.Get(ctx, customerID, missionID)
	if errors.Is(err, types.ErrNotFound) {
		return nil, nil
	}
	return completion, err
}

func (c *LedgerController) publish(eventType events.MessageType, completion *MissionCompletion) {
	if c.publisher == nil {
		return
	}

	if err := c.publisher.Publish(events.MISSIONS_CHANNEL, events.NewCompletionEvent(eventType, completion)); err != nil {
		c.log.Function("publish").Warn("failed to publish ledger event", "type", eventType, "error", err)
	}
}

func buildState(mission *Mission, completion *MissionCompletion) *LedgerState {
	proofs := completion.ProofSlots(mission.StepCount())
	missing := completion.MissingSteps(mission.StepCount())
	if missing == nil {
		missing = []int{}
	}

	return &LedgerState{
		MissionID:    mission.ID,
		Status:       completion.Status(),
		Proofs:       proofs,
		MissingSteps: missing,
		VoucherID:    completion.Voucher(),
		Redeemed:     completion != nil && completion.Redeemed,
	}
}
