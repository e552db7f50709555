package restaurantController

import (
	"context"
	"errors"
	"strings"

	. "biteback/internal/models"
	"biteback/internal/repositories"
	"biteback/internal/types"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/google/uuid"
)

type RestaurantRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Address     string  `json:"address"`
	ImageURL    *string `json:"imageUrl,omitempty"`
}

// BrowseMission is an active mission tagged with the caller's progress on it.
type BrowseMission struct {
	Mission
	Tag CompletionStatus `json:"tag,omitempty"`
}

type BrowseRestaurant struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Address     string          `json:"address"`
	ImageURL    *string         `json:"imageUrl,omitempty"`
	Missions    []BrowseMission `json:"missions"`
}

type RestaurantControllerInterface interface {
	GetMine(ctx context.Context, business *User) (*Restaurant, error)
	CreateMine(ctx context.Context, business *User, request RestaurantRequest) (*Restaurant, error)
	UpdateMine(ctx context.Context, business *User, request RestaurantRequest) (*Restaurant, error)
	Browse(ctx context.Context, user *User) ([]BrowseRestaurant, error)
}

type RestaurantController struct {
	restaurantRepo repositories.RestaurantRepository
	completionRepo repositories.MissionCompletionRepository
	log            logger.Logger
}

func New(repos repositories.Repository) *RestaurantController {
	return &RestaurantController{
		restaurantRepo: repos.Restaurant,
		completionRepo: repos.MissionCompletion,
		log:            logger.New("restaurantController"),
	}
}

func (c *RestaurantController) GetMine(ctx context.Context, business *User) (*Restaurant, error) {
	return c.restaurantRepo.GetByOwnerID(ctx, business.ID)
}

func (c *RestaurantController) CreateMine(
	ctx context.Context,
	business *User,
	request RestaurantRequest,
) (*Restaurant, error) {
	log := c.log.Function("CreateMine")
	ctx = context.WithoutCancel(ctx)

	if err := validateRequest(log, request); err != nil {
		return nil, err
	}

	_, err := c.restaurantRepo.GetByOwnerID(ctx, business.ID)
	switch {
	case err == nil:
		return nil, log.ErrorWithType(types.ErrValidation, "business already has a restaurant", "userID", business.ID)
	case !errors.Is(err, types.ErrNotFound):
		return nil, err
	}

	restaurant := &Restaurant{OwnerID: business.ID}
	applyRequest(restaurant, request)

	if err := c.restaurantRepo.Create(ctx, restaurant); err != nil {
		return nil, err
	}

	log.Info("Restaurant created", "restaurantID", restaurant.ID, "userID", business.ID)
	return restaurant, nil
}

func (c *RestaurantController) UpdateMine(
	ctx context.Context,
	business *User,
	request RestaurantRequest,
) (*Restaurant, error) {
	log := c.log.Function("UpdateMine")
	ctx = context.WithoutCancel(ctx)

	if err := validateRequest(log, request); err != nil {
		return nil, err
	}

	restaurant, err := c.restaurantRepo.GetByOwnerID(ctx, business.ID)
	if err != nil {
		return nil, err
	}

	applyRequest(restaurant, request)
	if err := c.restaurantRepo.Update(ctx, restaurant); err != nil {
		return nil, err
	}

	return restaurant, nil
}

// Browse lists restaurants that have at least one active mission. Missions
// the caller has completed or redeemed carry a tag.
func (c *RestaurantController) Browse(ctx context.Context, user *User) ([]BrowseRestaurant, error) {
	restaurants, err := c.restaurantRepo.ListWithActiveMissions(ctx)
	if err != nil {
		return nil, err
	}

	tags, err := c.tagsFor(ctx, user)
	if err != nil {
		return nil, err
	}

	result := make([]BrowseRestaurant, 0, len(restaurants))
	for _, restaurant := range restaurants {
		if len(restaurant.Missions) == 0 {
			continue
		}

		entry := BrowseRestaurant{
			ID:          restaurant.ID,
			Name:        restaurant.Name,
			Description: restaurant.Description,
			Address:     restaurant.Address,
			ImageURL:    restaurant.ImageURL,
			Missions:    make([]BrowseMission, 0, len(restaurant.Missions)),
		}
		for _, mission := range restaurant.Missions {
			entry.Missions = append(entry.Missions, BrowseMission{
				Mission: mission,
				Tag:     tags[mission.ID],
			})
		}
		result = append(result, entry)
	}

	return result, nil
}

func (c *RestaurantController) tagsFor(ctx context.Context, user *User) (map[uuid.UUID]CompletionStatus, error) {
	tags := map[uuid.UUID]CompletionStatus{}
	if user == nil || !user.IsCustomer() {
		return tags, nil
	}

	completions, err := c.completionRepo.ListByCustomer(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	for _, completion := range completions {
		if status := completion.Status(); status == CompletionCompleted || status == CompletionRedeemed {
			tags[completion.MissionID] = status
		}
	}

	return tags, nil
}

func validateRequest(log logger.Logger, request RestaurantRequest) error {
	if strings.TrimSpace(request.Name) == "" {
		return log.ErrorWithType(types.ErrValidation, "restaurant name is required")
	}
	return nil
}

func applyRequest(restaurant *Restaurant, request RestaurantRequest) {
	restaurant.Name = strings.TrimSpace(request.Name)
	restaurant.Description = strings.TrimSpace(request.Description)
	restaurant.Address = strings.TrimSpace(request.Address)
	restaurant.ImageURL = request.ImageURL
}
