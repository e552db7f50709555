package repositories

import (
	"errors"

	"biteback/config"
	"biteback/internal/database"
	"biteback/internal/types"

	logger "github.com/Bparsons0904/goLogger"
	"gorm.io/gorm"
)

type Repository struct {
	User              UserRepository
	Restaurant        RestaurantRepository
	Mission           MissionRepository
	MissionCompletion MissionCompletionRepository
}

func New(db database.DB, config config.Config) Repository {
	return Repository{
		User:              NewUserRepository(db),
		Restaurant:        NewRestaurantRepository(db),
		Mission:           NewMissionRepository(db),
		MissionCompletion: NewMissionCompletionRepository(db, config.StatsCacheTTL()),
	}
}

// storeError classifies a gorm error as ErrNotFound or ErrStore.
func storeError(log logger.Logger, err error, msg string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return log.ErrorWithType(types.ErrNotFound, msg, args...)
	}
	return log.ErrorWithType(types.ErrStore, msg, append(args, "error", err)...)
}
