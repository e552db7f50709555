package repositories

import (
	"context"
	"time"

	"biteback/internal/constants"
	"biteback/internal/database"
	. "biteback/internal/models"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CompletionCounts struct {
	Completed int64 `json:"completed"`
	Redeemed  int64 `json:"redeemed"`
}

type RestaurantCounts struct {
	CompletionCounts
	RedeemedValue decimal.Decimal `json:"redeemedValue"`
}

// MissionCompletionRepository is the ledger store. The three write methods are
// conditional updates and report whether this caller won.
type MissionCompletionRepository interface {
	Get(ctx context.Context, customerID, missionID uuid.UUID) (*MissionCompletion, error)
	GetByVoucherID(ctx context.Context, voucherID string) (*MissionCompletion, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*MissionCompletion, error)
	CreateIfAbsent(ctx context.Context, completion *MissionCompletion) error
	UpdateProofs(ctx context.Context, id uuid.UUID, version int, proofs []string) (bool, error)
	SetVoucher(ctx context.Context, id uuid.UUID, voucherID string, completedAt time.Time) (bool, error)
	Redeem(
		ctx context.Context,
		voucherID string,
		restaurantID uuid.UUID,
		redeemedBy uuid.UUID,
		redeemedAt time.Time,
	) (bool, error)
	CountsByMission(ctx context.Context, missionID uuid.UUID) (CompletionCounts, error)
	CountsByCustomer(ctx context.Context, customerID uuid.UUID) (CompletionCounts, error)
	CountsByRestaurant(ctx context.Context, restaurantID uuid.UUID) (RestaurantCounts, error)
	InvalidateStats(ctx context.Context, customerID, missionID, restaurantID uuid.UUID) error
}

type missionCompletionRepository struct {
	db       database.DB
	statsTTL time.Duration
	log      logger.Logger
}

func NewMissionCompletionRepository(db database.DB, statsTTL time.Duration) MissionCompletionRepository {
	return &missionCompletionRepository{
		db:       db,
		statsTTL: statsTTL,
		log:      logger.New("missionCompletionRepository"),
	}
}

func (r *missionCompletionRepository) Get(
	ctx context.Context,
	customerID, missionID uuid.UUID,
) (*MissionCompletion, error) {
	log := r.log.Function("Get")

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	var completion MissionCompletion
	if err := r.db.SQLWithContext(ctx).
		Where("customer_id = ? AND mission_id = ?", customerID, missionID).
		First(&completion).Error; err != nil {
		return nil, storeError(
			log, err, "mission completion not found",
			"customerID", customerID,
			"missionID", missionID,
		)
	}

	return &completion, nil
}

// GetByVoucherID looks the voucher up across all customers.
func (r *missionCompletionRepository) GetByVoucherID(
	ctx context.Context,
	voucherID string,
) (*MissionCompletion, error) {
	log := r.log.Function("GetByVoucherID")

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	var completion MissionCompletion
	if err := r.db.SQLWithContext(ctx).
		Where("voucher_id = ?", voucherID).
		First(&completion).Error; err != nil {
		return nil, storeError(log, err, "voucher not found", "voucherID", voucherID)
	}

	return &completion, nil
}

func (r *missionCompletionRepository) ListByCustomer(
	ctx context.Context,
	customerID uuid.UUID,
) ([]*MissionCompletion, error) {
	log := r.log.Function("ListByCustomer")

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	var completions []*MissionCompletion
	if err := r.db.SQLWithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&completions).Error; err != nil {
		return nil, storeError(log, err, "failed to list completions", "customerID", customerID)
	}

	return completions, nil
}

// CreateIfAbsent inserts the row unless one already exists for the pair.
func (r *missionCompletionRepository) CreateIfAbsent(
	ctx context.Context,
	completion *MissionCompletion,
) error {
	log := r.log.Function("CreateIfAbsent")

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	if err := r.db.SQLWithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "customer_id"}, {Name: "mission_id"}},
			DoNothing: true,
		}).
		Create(completion).Error; err != nil {
		return storeError(
			log, err, "failed to create mission completion",
			"customerID", completion.CustomerID,
			"missionID", completion.MissionID,
		)
	}

	return nil
}

// UpdateProofs replaces the proof slots if the row is still at version and
// has no voucher.
func (r *missionCompletionRepository) UpdateProofs(
	ctx context.Context,
	id uuid.UUID,
	version int,
	proofs []string,
) (bool, error) {
	log := r.log.Function("UpdateProofs")

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	result := r.db.SQLWithContext(ctx).
		Model(&MissionCompletion{}).
		Where("id = ? AND version = ? AND voucher_id IS NULL", id, version).
		Updates(map[string]any{
			"step_proofs": datatypes.JSONSlice[string](proofs),
			"version":     gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return false, storeError(log, result.Error, "failed to update proofs", "completionID", id)
	}

	return result.RowsAffected == 1, nil
}

// SetVoucher assigns the voucher only if none has been assigned yet.
func (r *missionCompletionRepository) SetVoucher(
	ctx context.Context,
	id uuid.UUID,
	voucherID string,
	completedAt time.Time,
) (bool, error) {
	log := r.log.Function("SetVoucher")

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	result := r.db.SQLWithContext(ctx).
		Model(&MissionCompletion{}).
		Where("id = ? AND voucher_id IS NULL", id).
		Updates(map[string]any{
			"voucher_id":   voucherID,
			"completed_at": completedAt,
			"version":      gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return false, storeError(log, result.Error, "failed to set voucher", "completionID", id)
	}

	return result.RowsAffected == 1, nil
}

// Redeem flips redeemed false -> true for a voucher owned by restaurantID.
func (r *missionCompletionRepository) Redeem(
	ctx context.Context,
	voucherID string,
	restaurantID uuid.UUID,
	redeemedBy uuid.UUID,
	redeemedAt time.Time,
) (bool, error) {
	log := r.log.Function("Redeem")

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	result := r.db.SQLWithContext(ctx).
		Model(&MissionCompletion{}).
		Where("voucher_id = ? AND restaurant_id = ? AND redeemed = ?", voucherID, restaurantID, false).
		Updates(map[string]any{
			"redeemed":    true,
			"redeemed_at": redeemedAt,
			"redeemed_by": redeemedBy,
		})
	if result.Error != nil {
		return false, storeError(log, result.Error, "failed to redeem voucher", "voucherID", voucherID)
	}

	return result.RowsAffected == 1, nil
}

const countsSelect = "COUNT(*) FILTER (WHERE voucher_id IS NOT NULL) AS completed, " +
	"COUNT(*) FILTER (WHERE redeemed) AS redeemed"

func (r *missionCompletionRepository) CountsByMission(
	ctx context.Context,
	missionID uuid.UUID,
) (CompletionCounts, error) {
	return r.cachedCounts(ctx, constants.MissionStatsCachePrefix, missionID, "mission_id")
}

func (r *missionCompletionRepository) CountsByCustomer(
	ctx context.Context,
	customerID uuid.UUID,
) (CompletionCounts, error) {
	return r.cachedCounts(ctx, constants.CustomerStatsCachePrefix, customerID, "customer_id")
}

func (r *missionCompletionRepository) CountsByRestaurant(
	ctx context.Context,
	restaurantID uuid.UUID,
) (RestaurantCounts, error) {
	log := r.log.Function("CountsByRestaurant")

	var counts RestaurantCounts
	if found, _ := r.statsCache(ctx, constants.RestaurantStatsCachePrefix, restaurantID).Get(&counts); found {
		return counts, nil
	}

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	if err := r.db.SQLWithContext(ctx).
		Raw(
			`SELECT COUNT(*) FILTER (WHERE mc.voucher_id IS NOT NULL) AS completed,
				COUNT(*) FILTER (WHERE mc.redeemed) AS redeemed,
				COALESCE(SUM(m.reward_value) FILTER (WHERE mc.redeemed), 0) AS redeemed_value
			FROM mission_completions mc
			LEFT JOIN missions m ON m.id = mc.mission_id
			WHERE mc.restaurant_id = ?`,
			restaurantID,
		).
		Scan(&counts).Error; err != nil {
		return RestaurantCounts{}, storeError(log, err, "failed to count restaurant completions", "restaurantID", restaurantID)
	}

	if err := r.statsCache(ctx, constants.RestaurantStatsCachePrefix, restaurantID).
		WithStruct(counts).
		Set(); err != nil {
		log.Warn("failed to cache restaurant stats", "restaurantID", restaurantID, "error", err)
	}

	return counts, nil
}

// InvalidateStats drops every cached projection a ledger transition touches.
func (r *missionCompletionRepository) InvalidateStats(
	ctx context.Context,
	customerID, missionID, restaurantID uuid.UUID,
) error {
	keys := []string{
		constants.MissionStatsCachePrefix + ":" + missionID.String(),
		constants.CustomerStatsCachePrefix + ":" + customerID.String(),
		constants.RestaurantStatsCachePrefix + ":" + restaurantID.String(),
	}

	if err := database.NewCacheBuilder(r.db.Cache.Stats, keys).WithContext(ctx).Delete(); err != nil {
		return r.log.Function("InvalidateStats").Err("failed to invalidate stats", err, "keys", keys)
	}

	return nil
}

func (r *missionCompletionRepository) cachedCounts(
	ctx context.Context,
	prefix string,
	id uuid.UUID,
	column string,
) (CompletionCounts, error) {
	log := r.log.Function("cachedCounts")

	var counts CompletionCounts
	if found, _ := r.statsCache(ctx, prefix, id).Get(&counts); found {
		return counts, nil
	}

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	if err := r.db.SQLWithContext(ctx).
		Model(&MissionCompletion{}).
		Select(countsSelect).
		Where(column+" = ?", id).
		Scan(&counts).Error; err != nil {
		return CompletionCounts{}, storeError(log, err, "failed to count completions", column, id)
	}

	if err := r.statsCache(ctx, prefix, id).WithStruct(counts).Set(); err != nil {
		log.Warn("failed to cache stats", "key", prefix, "id", id, "error", err)
	}

	return counts, nil
}

func (r *missionCompletionRepository) statsCache(
	ctx context.Context,
	prefix string,
	id uuid.UUID,
) *database.CacheBuilder {
	return database.NewCacheBuilder(r.db.Cache.Stats, id).
		WithHash(prefix).
		WithTTL(r.statsTTL).
		WithContext(ctx)
}
