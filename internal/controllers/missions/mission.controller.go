package missionController

import (
	"context"
	"errors"
	"strings"

	. "biteback/internal/models"
	"biteback/internal/repositories"
	"biteback/internal/services"
	"biteback/internal/types"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type MissionRequest struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Reward      string           `json:"reward"`
	RewardValue *decimal.Decimal `json:"rewardValue,omitempty"`
	Expiration  *string          `json:"expiration,omitempty"`
	Status      *MissionStatus   `json:"status,omitempty"`
	Steps       []MissionStep    `json:"steps"`
}

type MissionControllerInterface interface {
	Create(ctx context.Context, business *User, request MissionRequest, coverImage []byte) (*Mission, error)
	Update(ctx context.Context, business *User, missionID uuid.UUID, request MissionRequest) (*Mission, error)
	UpdateImage(ctx context.Context, business *User, missionID uuid.UUID, image []byte) (*Mission, error)
	Delete(ctx context.Context, business *User, missionID uuid.UUID) error
	Get(ctx context.Context, missionID uuid.UUID) (*Mission, error)
	ListMine(ctx context.Context, business *User) ([]*Mission, error)
}

type MissionController struct {
	restaurantRepo repositories.RestaurantRepository
	missionRepo    repositories.MissionRepository
	proofStore     services.ProofStorage
	log            logger.Logger
}

func New(repos repositories.Repository, proofStore services.ProofStorage) *MissionController {
	return &MissionController{
		restaurantRepo: repos.Restaurant,
		missionRepo:    repos.Mission,
		proofStore:     proofStore,
		log:            logger.New("missionController"),
	}
}

func (c *MissionController) Create(
	ctx context.Context,
	business *User,
	request MissionRequest,
	coverImage []byte,
) (*Mission, error) {
	log := c.log.Function("Create")
	ctx = context.WithoutCancel(ctx)

	if err := validateRequest(log, request); err != nil {
		return nil, err
	}

	restaurant, err := c.ownRestaurant(ctx, business)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, log.Err("failed to generate mission id", err)
	}

	mission := &Mission{
		RestaurantID: restaurant.ID,
		Status:       MissionStatusActive,
	}
	mission.ID = id
	applyRequest(mission, request)

	// Upload before insert so a failed upload leaves nothing behind.
	if len(coverImage) > 0 {
		url, err := c.proofStore.StoreMissionImage(ctx, restaurant.ID, mission.ID, coverImage)
		if err != nil {
			return nil, err
		}
		mission.ImageURL = &url
	}

	if err := c.missionRepo.Create(ctx, mission); err != nil {
		return nil, err
	}

	log.Info("Mission created", "missionID", mission.ID, "restaurantID", restaurant.ID, "steps", mission.StepCount())
	return mission, nil
}

func (c *MissionController) Update(
	ctx context.Context,
	business *User,
	missionID uuid.UUID,
	request MissionRequest,
) (*Mission, error) {
	log := c.log.Function("Update")
	ctx = context.WithoutCancel(ctx)

	if err := validateRequest(log, request); err != nil {
		return nil, err
	}

	mission, err := c.ownMission(ctx, business, missionID)
	if err != nil {
		return nil, err
	}

	applyRequest(mission, request)
	if err := c.missionRepo.Update(ctx, mission); err != nil {
		return nil, err
	}

	log.Info("Mission updated", "missionID", mission.ID)
	return mission, nil
}

func (c *MissionController) UpdateImage(
	ctx context.Context,
	business *User,
	missionID uuid.UUID,
	image []byte,
) (*Mission, error) {
	ctx = context.WithoutCancel(ctx)

	mission, err := c.ownMission(ctx, business, missionID)
	if err != nil {
		return nil, err
	}

	url, err := c.proofStore.StoreMissionImage(ctx, mission.RestaurantID, mission.ID, image)
	if err != nil {
		return nil, err
	}

	mission.ImageURL = &url
	if err := c.missionRepo.Update(ctx, mission); err != nil {
		return nil, err
	}

	return mission, nil
}

// Delete removes the mission. Completions and vouchers issued for it stay
// redeemable.
func (c *MissionController) Delete(ctx context.Context, business *User, missionID uuid.UUID) error {
	ctx = context.WithoutCancel(ctx)

	mission, err := c.ownMission(ctx, business, missionID)
	if err != nil {
		return err
	}

	if err := c.missionRepo.Delete(ctx, mission); err != nil {
		return err
	}

	c.log.Function("Delete").Info("Mission deleted", "missionID", missionID)
	return nil
}

func (c *MissionController) Get(ctx context.Context, missionID uuid.UUID) (*Mission, error) {
	return c.missionRepo.GetByID(ctx, missionID)
}

func (c *MissionController) ListMine(ctx context.Context, business *User) ([]*Mission, error) {
	restaurant, err := c.ownRestaurant(ctx, business)
	if err != nil {
		return nil, err
	}
	return c.missionRepo.ListByRestaurant(ctx, restaurant.ID, false)
}

func (c *MissionController) ownRestaurant(ctx context.Context, business *User) (*Restaurant, error) {
	restaurant, err := c.restaurantRepo.GetByOwnerID(ctx, business.ID)
	if errors.Is(err, types.ErrNotFound) {
		return nil, c.log.Function("ownRestaurant").ErrorWithType(
			types.ErrForbidden,
			"business has no restaurant",
			"userID", business.ID,
		)
	}
	return restaurant, err
}

func (c *MissionController) ownMission(
	ctx context.Context,
	business *User,
	missionID uuid.UUID,
) (*Mission, error) {
	restaurant, err := c.ownRestaurant(ctx, business)
	if err != nil {
		return nil, err
	}

	mission, err := c.missionRepo.GetByID(ctx, missionID)
	if err != nil {
		return nil, err
	}

	if mission.RestaurantID != restaurant.ID {
		return nil, c.log.Function("ownMission").ErrorWithType(
			types.ErrForbidden,
			"mission belongs to another restaurant",
			"missionID", missionID,
			"userID", business.ID,
		)
	}

	return mission, nil
}

func validateRequest(log logger.Logger, request MissionRequest) error {
	switch {
	case strings.TrimSpace(request.Title) == "":
		return log.ErrorWithType(types.ErrValidation, "title is required")
	case strings.TrimSpace(request.Reward) == "":
		return log.ErrorWithType(types.ErrValidation, "reward is required")
	case len(request.Steps) == 0:
		return log.ErrorWithType(types.ErrValidation, "at least one step is required")
	case request.RewardValue != nil && request.RewardValue.IsNegative():
		return log.ErrorWithType(types.ErrValidation, "reward value cannot be negative")
	case request.Status != nil && *request.Status != MissionStatusActive && *request.Status != MissionStatusInactive:
		return log.ErrorWithType(types.ErrValidation, "unknown mission status", "status", *request.Status)
	}

	for i, step := range request.Steps {
		if strings.TrimSpace(step.Description) == "" {
			return log.ErrorWithType(types.ErrValidation, "step description is required", "stepIndex", i)
		}
	}

	return nil
}

func applyRequest(mission *Mission, request MissionRequest) {
	mission.Title = strings.TrimSpace(request.Title)
	mission.Description = strings.TrimSpace(request.Description)
	mission.Reward = strings.TrimSpace(request.Reward)
	mission.RewardValue = request.RewardValue
	mission.Expiration = request.Expiration
	mission.Steps = append([]MissionStep(nil), request.Steps...)
	if request.Status != nil {
		mission.Status = *request.Status
	}
}
