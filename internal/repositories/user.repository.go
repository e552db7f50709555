package repositories

import (
	"context"
	"errors"

	"biteback/internal/constants"
	"biteback/internal/database"
	. "biteback/internal/models"
	"biteback/internal/types"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/google/uuid"
	"gorm.io/gorm/clause"
)

type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByExternalID(ctx context.Context, externalID string) (*User, error)
	FindOrCreateFromToken(ctx context.Context, info types.TokenInfo) (*User, error)
	Update(ctx context.Context, user *User) error
}

type userRepository struct {
	db  database.DB
	log logger.Logger
}

func NewUserRepository(db database.DB) UserRepository {
	return &userRepository{
		db:  db,
		log: logger.New("userRepository"),
	}
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	log := r.log.Function("GetByID")

	var user User
	found, err := database.NewCacheBuilder(r.db.Cache.User, id).
		WithHash(constants.UserCachePrefix).
		WithContext(ctx).
		Get(&user)
	if err != nil {
		log.Warn("failed to read user cache", "userID", id, "error", err)
	}
	if found {
		return &user, nil
	}

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	if err := r.db.SQLWithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, storeError(log, err, "failed to get user by id", "userID", id)
	}

	r.addUserToCache(ctx, &user)
	return &user, nil
}

func (r *userRepository) GetByExternalID(ctx context.Context, externalID string) (*User, error) {
	log := r.log.Function("GetByExternalID")

	var userID string
	found, err := database.NewCacheBuilder(r.db.Cache.User, externalID).
		WithHash(constants.UserSubjectCachePrefix).
		WithContext(ctx).
		Get(&userID)
	if err == nil && found {
		if id, parseErr := uuid.Parse(userID); parseErr == nil {
			if user, getErr := r.GetByID(ctx, id); getErr == nil {
				return user, nil
			}
		}
	}

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	var user User
	if err := r.db.SQLWithContext(ctx).First(&user, "external_id = ?", externalID).Error; err != nil {
		return nil, storeError(log, err, "failed to get user by external id", "externalID", externalID)
	}

	r.addUserToCache(ctx, &user)
	return &user, nil
}

// FindOrCreateFromToken returns the user for a validated token subject,
// creating it on first sight and refreshing identity fields otherwise.
func (r *userRepository) FindOrCreateFromToken(
	ctx context.Context,
	info types.TokenInfo,
) (*User, error) {
	log := r.log.Function("FindOrCreateFromToken")

	role := ParseRole(info.Role)

	existing, err := r.GetByExternalID(ctx, info.Subject)
	if err == nil {
		if existing.Role != role || (info.Email != "" && existing.Email == nil) {
			existing.UpdateFromToken(info.Email, info.Name, role)
			if err := r.Update(ctx, existing); err != nil {
				log.Warn("failed to refresh user from token", "userID", existing.ID, "error", err)
			}
		}
		return existing, nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		return nil, err
	}

	user := &User{
		ExternalID: info.Subject,
		Role:       role,
		IsActive:   true,
	}
	user.UpdateFromToken(info.Email, info.Name, role)

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	result := r.db.SQLWithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "external_id"}}, DoNothing: true}).
		Create(user)
	if result.Error != nil {
		return nil, storeError(log, result.Error, "failed to create user", "externalID", info.Subject)
	}

	if result.RowsAffected == 0 {
		// Lost a race with a concurrent first request for the same subject.
		return r.GetByExternalID(ctx, info.Subject)
	}

	log.Info("user created", "userID", user.ID, "role", user.Role)
	r.addUserToCache(ctx, user)
	return user, nil
}

func (r *userRepository) Update(ctx context.Context, user *User) error {
	log := r.log.Function("Update")

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	if err := r.db.SQLWithContext(ctx).Save(user).Error; err != nil {
		return storeError(log, err, "failed to update user", "userID", user.ID)
	}

	r.clearUserCache(ctx, user)
	return nil
}

func (r *userRepository) addUserToCache(ctx context.Context, user *User) {
	log := r.log.Function("addUserToCache")

	if err := database.NewCacheBuilder(r.db.Cache.User, user.ID).
		WithHash(constants.UserCachePrefix).
		WithStruct(user).
		WithTTL(constants.UserCacheExpiry).
		WithContext(ctx).
		Set(); err != nil {
		log.Warn("failed to add user to cache", "userID", user.ID, "error", err)
	}

	if err := database.NewCacheBuilder(r.db.Cache.User, user.ExternalID).
		WithHash(constants.UserSubjectCachePrefix).
		WithStruct(user.ID.String()).
		WithTTL(constants.UserCacheExpiry).
		WithContext(ctx).
		Set(); err != nil {
		log.Warn("failed to cache subject mapping", "userID", user.ID, "error", err)
	}
}

func (r *userRepository) clearUserCache(ctx context.Context, user *User) {
	if err := database.NewCacheBuilder(r.db.Cache.User, user.ID).
		WithHash(constants.UserCachePrefix).
		WithContext(ctx).
		Delete(); err != nil {
		r.log.Function("clearUserCache").Warn("failed to clear user cache", "userID", user.ID, "error", err)
	}
}
