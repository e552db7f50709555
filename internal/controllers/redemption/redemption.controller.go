package redemptionController

import (
	"context"
	"errors"
	"time"

	"biteback/internal/events"
	. "biteback/internal/models"
	"biteback/internal/repositories"
	"biteback/internal/services"
	"biteback/internal/types"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/google/uuid"
)

type MissionSummary struct {
	VoucherID    string     `json:"voucherId"`
	MissionID    uuid.UUID  `json:"missionId"`
	MissionTitle string     `json:"missionTitle"`
	Reward       string     `json:"reward,omitempty"`
	CustomerID   uuid.UUID  `json:"customerId"`
	Redeemed     bool       `json:"redeemed"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	RedeemedAt   *time.Time `json:"redeemedAt,omitempty"`
}

// VoucherReview is what a business sees before approving a redemption.
type VoucherReview struct {
	MissionSummary
	Steps      []MissionStep `json:"steps"`
	StepProofs []string      `json:"stepProofs"`
}

type RedemptionControllerInterface interface {
	Review(ctx context.Context, business *User, payload string) (*VoucherReview, error)
	Redeem(ctx context.Context, business *User, payload string) (*MissionSummary, error)
}

type RedemptionController struct {
	restaurantRepo repositories.RestaurantRepository
	missionRepo    repositories.MissionRepository
	completionRepo repositories.MissionCompletionRepository
	voucher        *services.VoucherService
	publisher      events.Publisher
	metrics        *services.MetricsService
	now            func() time.Time
	log            logger.Logger
}

func New(
	repos repositories.Repository,
	voucher *services.VoucherService,
	publisher events.Publisher,
	metrics *services.MetricsService,
) *RedemptionController {
	return &RedemptionController{
		restaurantRepo: repos.Restaurant,
		missionRepo:    repos.Mission,
		completionRepo: repos.MissionCompletion,
		voucher:        voucher,
		publisher:      publisher,
		metrics:        metrics,
		now:            time.Now,
		log:            logger.New("redemptionController"),
	}
}

// Review is read-only: it returns the completion behind a voucher owned by
// the business's restaurant.
func (c *RedemptionController) Review(
	ctx context.Context,
	business *User,
	payload string,
) (*VoucherReview, error) {
	voucherID, restaurant, err := c.resolve(ctx, business, payload)
	if err != nil {
		return nil, err
	}

	completion, err := c.ownedCompletion(ctx, voucherID, restaurant.ID)
	if err != nil {
		return nil, err
	}

	mission := c.missionFor(ctx, completion)
	review := &VoucherReview{
		MissionSummary: summarize(completion, mission),
		StepProofs:     append([]string{}, completion.StepProofs...),
		Steps:          []MissionStep{},
	}
	if mission != nil {
		review.Steps = mission.Steps
	}

	return review, nil
}

// Redeem consumes the voucher with a single conditional write. Of several
// concurrent calls exactly one succeeds; the rest get ErrAlreadyRedeemed.
func (c *RedemptionController) Redeem(
	ctx context.Context,
	business *User,
	payload string,
) (summary *MissionSummary, err error) {
	log := c.log.Function("Redeem")
	ctx = context.WithoutCancel(ctx)

	defer func() {
		if err != nil {
			c.metrics.RedeemRejected(err)
		}
	}()

	voucherID, restaurant, err := c.resolve(ctx, business, payload)
	if err != nil {
		return nil, err
	}

	won, err := c.completionRepo.Redeem(ctx, voucherID, restaurant.ID, business.ID, c.now())
	if err != nil {
		return nil, err
	}

	completion, err := c.ownedCompletion(ctx, voucherID, restaurant.ID)
	if err != nil {
		return nil, err
	}

	if !won {
		if completion.Redeemed {
			return nil, log.ErrorWithType(
				types.ErrAlreadyRedeemed,
				"voucher already redeemed",
				"voucherID", voucherID,
				"redeemedAt", completion.RedeemedAt,
			)
		}
		return nil, log.ErrorWithType(
			types.ErrConcurrentModification,
			"voucher changed during redeem",
			"voucherID", voucherID,
		)
	}

	c.metrics.VoucherRedeemed()
	c.publish(completion)

	log.Info(
		"Voucher redeemed",
		"voucherID", voucherID,
		"restaurantID", restaurant.ID,
		"customerID", completion.CustomerID,
	)

	result := summarize(completion, c.missionFor(ctx, completion))
	return &result, nil
}

func (c *RedemptionController) resolve(
	ctx context.Context,
	business *User,
	payload string,
) (string, *Restaurant, error) {
	log := c.log.Function("resolve")

	voucherID, err := c.voucher.Decode(payload)
	if err != nil {
		return "", nil, err
	}

	restaurant, err := c.restaurantRepo.GetByOwnerID(ctx, business.ID)
	if errors.Is(err, types.ErrNotFound) {
		return "", nil, log.ErrorWithType(types.ErrForbidden, "business has no restaurant", "userID", business.ID)
	}
	if err != nil {
		return "", nil, err
	}

	return voucherID, restaurant, nil
}

// ownedCompletion hides vouchers of other restaurants behind ErrNotFound.
func (c *RedemptionController) ownedCompletion(
	ctx context.Context,
	voucherID string,
	restaurantID uuid.UUID,
) (*MissionCompletion, error) {
	completion, err := c.completionRepo.GetByVoucherID(ctx, voucherID)
	if err != nil {
		return nil, err
	}

	if completion.RestaurantID != restaurantID {
		return nil, c.log.Function("ownedCompletion").ErrorWithType(
			types.ErrNotFound,
			"voucher belongs to another restaurant",
			"voucherID", voucherID,
			"restaurantID", restaurantID,
		)
	}

	return completion, nil
}

// missionFor tolerates deleted missions: ledger rows outlive them.
func (c *RedemptionController) missionFor(ctx context.Context, completion *MissionCompletion) *Mission {
	mission, err := c.missionRepo.GetByID(ctx, completion.MissionID)
	if err != nil {
		c.log.Function("missionFor").Debug("mission unavailable", "missionID", completion.MissionID, "error", err)
		return nil
	}
	return mission
}

func (c *RedemptionController) publish(completion *MissionCompletion) {
	if c.publisher == nil {
		return
	}

	event := events.NewCompletionEvent(events.VOUCHER_REDEEMED, completion)
	if err := c.publisher.Publish(events.MISSIONS_CHANNEL, event); err != nil {
		c.log.Function("publish").Warn("failed to publish redemption event", "error", err)
	}
}

func summarize(completion *MissionCompletion, mission *Mission) MissionSummary {
	summary := MissionSummary{
		VoucherID:    completion.Voucher(),
		MissionID:    completion.MissionID,
		MissionTitle: completion.MissionTitle,
		CustomerID:   completion.CustomerID,
		Redeemed:     completion.Redeemed,
		CompletedAt:  completion.CompletedAt,
		RedeemedAt:   completion.RedeemedAt,
	}
	if mission != nil {
		summary.Reward = mission.Reward
	}
	return summary
}
