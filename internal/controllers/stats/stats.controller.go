package statsController

import (
	"context"
	"errors"

	"biteback/internal/events"
	. "biteback/internal/models"
	"biteback/internal/repositories"
	"biteback/internal/types"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type MissionStats struct {
	MissionID uuid.UUID `json:"missionId"`
	Title     string    `json:"title"`
	Completed int64     `json:"completed"`
	Redeemed  int64     `json:"redeemed"`
}

type RestaurantStats struct {
	RestaurantID   uuid.UUID       `json:"restaurantId"`
	Missions       int             `json:"missions"`
	ActiveMissions int             `json:"activeMissions"`
	Completed      int64           `json:"completed"`
	Redeemed       int64           `json:"redeemed"`
	RedeemedValue  decimal.Decimal `json:"redeemedValue"`
}

// StatsControllerInterface is the read side over the ledger. Results may lag
// the latest write by up to the stats cache TTL.
type StatsControllerInterface interface {
	CompletionCount(ctx context.Context, missionID uuid.UUID) (int64, error)
	RedemptionCount(ctx context.Context, missionID uuid.UUID) (int64, error)
	MissionStats(ctx context.Context, business *User, missionID uuid.UUID) (*MissionStats, error)
	CustomerStats(ctx context.Context, customerID uuid.UUID) (repositories.CompletionCounts, error)
	RestaurantStats(ctx context.Context, business *User) (*RestaurantStats, error)
}

type StatsController struct {
	restaurantRepo repositories.RestaurantRepository
	missionRepo    repositories.MissionRepository
	completionRepo repositories.MissionCompletionRepository
	log            logger.Logger
}

// New subscribes the controller to ledger events so cached counts are
// dropped as soon as a completion or redemption lands.
func New(repos repositories.Repository, subscriber events.Subscriber) *StatsController {
	c := &StatsController{
		restaurantRepo: repos.Restaurant,
		missionRepo:    repos.Mission,
		completionRepo: repos.MissionCompletion,
		log:            logger.New("statsController"),
	}

	if subscriber != nil {
		if err := subscriber.Subscribe(events.MISSIONS_CHANNEL, c.HandleLedgerEvent); err != nil {
			c.log.Function("New").Warn("failed to subscribe to ledger events", "error", err)
		}
	}

	return c
}

func (c *StatsController) CompletionCount(ctx context.Context, missionID uuid.UUID) (int64, error) {
	counts, err := c.completionRepo.CountsByMission(ctx, missionID)
	return counts.Completed, err
}

func (c *StatsController) RedemptionCount(ctx context.Context, missionID uuid.UUID) (int64, error) {
	counts, err := c.completionRepo.CountsByMission(ctx, missionID)
	return counts.Redeemed, err
}

func (c *StatsController) MissionStats(
	ctx context.Context,
	business *User,
	missionID uuid.UUID,
) (*MissionStats, error) {
	log := c.log.Function("MissionStats")

	restaurant, err := c.restaurantRepo.GetByOwnerID(ctx, business.ID)
	if err != nil {
		return nil, forbiddenIfMissing(log, err, business.ID)
	}

	mission, err := c.missionRepo.GetByID(ctx, missionID)
	if err != nil {
		return nil, err
	}
	if mission.RestaurantID != restaurant.ID {
		return nil, log.ErrorWithType(
			types.ErrForbidden,
			"mission belongs to another restaurant",
			"missionID", missionID,
			"userID", business.ID,
		)
	}

	counts, err := c.completionRepo.CountsByMission(ctx, missionID)
	if err != nil {
		return nil, err
	}

	return &MissionStats{
		MissionID: mission.ID,
		Title:     mission.Title,
		Completed: counts.Completed,
		Redeemed:  counts.Redeemed,
	}, nil
}

func (c *StatsController) CustomerStats(
	ctx context.Context,
	customerID uuid.UUID,
) (repositories.CompletionCounts, error) {
	return c.completionRepo.CountsByCustomer(ctx, customerID)
}

func (c *StatsController) RestaurantStats(ctx context.Context, business *User) (*RestaurantStats, error) {
	log := c.log.Function("RestaurantStats")

	restaurant, err := c.restaurantRepo.GetByOwnerID(ctx, business.ID)
	if err != nil {
		return nil, forbiddenIfMissing(log, err, business.ID)
	}

	missions, err := c.missionRepo.ListByRestaurant(ctx, restaurant.ID, false)
	if err != nil {
		return nil, err
	}

	counts, err := c.completionRepo.CountsByRestaurant(ctx, restaurant.ID)
	if err != nil {
		return nil, err
	}

	stats := &RestaurantStats{
		RestaurantID:  restaurant.ID,
		Missions:      len(missions),
		Completed:     counts.Completed,
		Redeemed:      counts.Redeemed,
		RedeemedValue: counts.RedeemedValue,
	}
	for _, mission := range missions {
		if mission.IsActive() {
			stats.ActiveMissions++
		}
	}

	return stats, nil
}

// HandleLedgerEvent drops the cached counts an event makes stale.
func (c *StatsController) HandleLedgerEvent(event events.Event) error {
	if event.Type != events.MISSION_COMPLETED && event.Type != events.VOUCHER_REDEEMED {
		return nil
	}

	if event.UserID == nil || event.MissionID == nil || event.RestaurantID == nil {
		return c.log.Function("HandleLedgerEvent").Error("ledger event missing ids", "eventID", event.ID)
	}

	return c.completionRepo.InvalidateStats(
		context.Background(),
		*event.UserID,
		*event.MissionID,
		*event.RestaurantID,
	)
}

func forbiddenIfMissing(log logger.Logger, err error, userID uuid.UUID) error {
	if errors.Is(err, types.ErrNotFound) {
		return log.ErrorWithType(types.ErrForbidden, "business has no restaurant", "userID", userID)
	}
	return err
}
