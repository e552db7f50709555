package repositories

import (
	"context"
	"time"

	"biteback/internal/constants"
	"biteback/internal/database"
	. "biteback/internal/models"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/google/uuid"
)

type MissionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Mission, error)
	ListByRestaurant(ctx context.Context, restaurantID uuid.UUID, activeOnly bool) ([]*Mission, error)
	Create(ctx context.Context, mission *Mission) error
	Update(ctx context.Context, mission *Mission) error
	Delete(ctx context.Context, mission *Mission) error
	DeactivateExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

type missionRepository struct {
	db  database.DB
	log logger.Logger
}

func NewMissionRepository(db database.DB) MissionRepository {
	return &missionRepository{
		db:  db,
		log: logger.New("missionRepository"),
	}
}

func (r *missionRepository) GetByID(ctx context.Context, id uuid.UUID) (*Mission, error) {
	log := r.log.Function("GetByID")

	var mission Mission
	found, err := database.NewCacheBuilder(r.db.Cache.General, id).
		WithHash(constants.MissionCachePrefix).
		WithContext(ctx).
		Get(&mission)
	if err != nil {
		log.Warn("failed to read mission cache", "missionID", id, "error", err)
	}
	if found {
		return &mission, nil
	}

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	if err := r.db.SQLWithContext(ctx).First(&mission, "id = ?", id).Error; err != nil {
		return nil, storeError(log, err, "failed to get mission", "missionID", id)
	}

	if err := database.NewCacheBuilder(r.db.Cache.General, id).
		WithHash(constants.MissionCachePrefix).
		WithStruct(mission).
		WithTTL(constants.MissionCacheExpiry).
		WithContext(ctx).
		Set(); err != nil {
		log.Warn("failed to cache mission", "missionID", id, "error", err)
	}

	return &mission, nil
}

func (r *missionRepository) ListByRestaurant(
	ctx context.Context,
	restaurantID uuid.UUID,
	activeOnly bool,
) ([]*Mission, error) {
	log := r.log.Function("ListByRestaurant")

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	query := r.db.SQLWithContext(ctx).Where("restaurant_id = ?", restaurantID)
	if activeOnly {
		query = query.Where("status = ?", MissionStatusActive)
	}

	var missions []*Mission
	if err := query.Order("created_at DESC").Find(&missions).Error; err != nil {
		return nil, storeError(log, err, "failed to list missions", "restaurantID", restaurantID)
	}

	return missions, nil
}

func (r *missionRepository) Create(ctx context.Context, mission *Mission) error {
	log := r.log.Function("Create")

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	if err := r.db.SQLWithContext(ctx).Create(mission).Error; err != nil {
		return storeError(log, err, "failed to create mission", "restaurantID", mission.RestaurantID)
	}

	return nil
}

func (r *missionRepository) Update(ctx context.Context, mission *Mission) error {
	log := r.log.Function("Update")

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	if err := r.db.SQLWithContext(ctx).Omit("Restaurant").Save(mission).Error; err != nil {
		return storeError(log, err, "failed to update mission", "missionID", mission.ID)
	}

	r.clearCache(ctx, mission.ID)
	return nil
}

// Delete soft-deletes the mission. Ledger rows for it are kept.
func (r *missionRepository) Delete(ctx context.Context, mission *Mission) error {
	log := r.log.Function("Delete")

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	if err := r.db.SQLWithContext(ctx).Delete(&Mission{}, "id = ?", mission.ID).Error; err != nil {
		return storeError(log, err, "failed to delete mission", "missionID", mission.ID)
	}

	r.clearCache(ctx, mission.ID)
	return nil
}

// DeactivateExpired flips active missions whose expiration day has passed to
// inactive and returns their ids.
func (r *missionRepository) DeactivateExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	log := r.log.Function("DeactivateExpired")

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	var candidates []*Mission
	if err := r.db.SQLWithContext(ctx).
		Select("id", "expiration").
		Where("status = ? AND expiration IS NOT NULL AND expiration <> ''", MissionStatusActive).
		Find(&candidates).Error; err != nil {
		return nil, storeError(log, err, "failed to load expiring missions")
	}

	var expired []uuid.UUID
	for _, mission := range candidates {
		if mission.IsExpired(now) {
			expired = append(expired, mission.ID)
		}
	}

	if len(expired) == 0 {
		return nil, nil
	}

	if err := r.db.SQLWithContext(ctx).
		Model(&Mission{}).
		Where("id IN ? AND status = ?", expired, MissionStatusActive).
		Update("status", MissionStatusInactive).Error; err != nil {
		return nil, storeError(log, err, "failed to deactivate missions", "count", len(expired))
	}

	for _, id := range expired {
		r.clearCache(ctx, id)
	}

	return expired, nil
}

func (r *missionRepository) clearCache(ctx context.Context, id uuid.UUID) {
	if err := database.NewCacheBuilder(r.db.Cache.General, id).
		WithHash(constants.MissionCachePrefix).
		WithContext(ctx).
		Delete(); err != nil {
		r.log.Function("clearCache").Warn("failed to clear mission cache", "missionID", id, "error", err)
	}
}
