package repositories

import (
	"context"

	"biteback/internal/constants"
	"biteback/internal/database"
	. "biteback/internal/models"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RestaurantRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Restaurant, error)
	GetByOwnerID(ctx context.Context, ownerID uuid.UUID) (*Restaurant, error)
	ListWithActiveMissions(ctx context.Context) ([]*Restaurant, error)
	Create(ctx context.Context, restaurant *Restaurant) error
	Update(ctx context.Context, restaurant *Restaurant) error
}

type restaurantRepository struct {
	db  database.DB
	log logger.Logger
}

func NewRestaurantRepository(db database.DB) RestaurantRepository {
	return &restaurantRepository{
		db:  db,
		log: logger.New("restaurantRepository"),
	}
}

func (r *restaurantRepository) GetByID(ctx context.Context, id uuid.UUID) (*Restaurant, error) {
	log := r.log.Function("GetByID")

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	var restaurant Restaurant
	if err := r.db.SQLWithContext(ctx).First(&restaurant, "id = ?", id).Error; err != nil {
		return nil, storeError(log, err, "failed to get restaurant", "restaurantID", id)
	}

	return &restaurant, nil
}

func (r *restaurantRepository) GetByOwnerID(
	ctx context.Context,
	ownerID uuid.UUID,
) (*Restaurant, error) {
	log := r.log.Function("GetByOwnerID")

	var restaurant Restaurant
	found, err := database.NewCacheBuilder(r.db.Cache.General, ownerID).
		WithHash(constants.RestaurantOwnerCachePrefix).
		WithContext(ctx).
		Get(&restaurant)
	if err != nil {
		log.Warn("failed to read restaurant cache", "ownerID", ownerID, "error", err)
	}
	if found {
		return &restaurant, nil
	}

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	if err := r.db.SQLWithContext(ctx).First(&restaurant, "owner_id = ?", ownerID).Error; err != nil {
		return nil, storeError(log, err, "failed to get restaurant by owner", "ownerID", ownerID)
	}

	if err := database.NewCacheBuilder(r.db.Cache.General, ownerID).
		WithHash(constants.RestaurantOwnerCachePrefix).
		WithStruct(restaurant).
		WithTTL(constants.UserCacheExpiry).
		WithContext(ctx).
		Set(); err != nil {
		log.Warn("failed to cache restaurant", "ownerID", ownerID, "error", err)
	}

	return &restaurant, nil
}

func (r *restaurantRepository) ListWithActiveMissions(ctx context.Context) ([]*Restaurant, error) {
	log := r.log.Function("ListWithActiveMissions")

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	var restaurants []*Restaurant
	err := r.db.SQLWithContext(ctx).
		Preload("Missions", func(db *gorm.DB) *gorm.DB {
			return db.Where("status = ?", MissionStatusActive).Order("created_at DESC")
		}).
		Order("name ASC").
		Find(&restaurants).Error
	if err != nil {
		return nil, storeError(log, err, "failed to list restaurants")
	}

	return restaurants, nil
}

func (r *restaurantRepository) Create(ctx context.Context, restaurant *Restaurant) error {
	log := r.log.Function("Create")

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	if err := r.db.SQLWithContext(ctx).Create(restaurant).Error; err != nil {
		return storeError(log, err, "failed to create restaurant", "ownerID", restaurant.OwnerID)
	}

	return nil
}

func (r *restaurantRepository) Update(ctx context.Context, restaurant *Restaurant) error {
	log := r.log.Function("Update")

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	if err := r.db.SQLWithContext(ctx).Omit("Missions", "Owner").Save(restaurant).Error; err != nil {
		return storeError(log, err, "failed to update restaurant", "restaurantID", restaurant.ID)
	}

	if err := database.NewCacheBuilder(r.db.Cache.General, restaurant.OwnerID).
		WithHash(constants.RestaurantOwnerCachePrefix).
		WithContext(ctx).
		Delete(); err != nil {
		log.Warn("failed to clear restaurant cache", "ownerID", restaurant.OwnerID, "error", err)
	}

	return nil
}
