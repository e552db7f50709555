package database

import (
	"biteback/internal/models"

	logger "github.com/Bparsons0904/goLogger"
)

// Models lists every table owned by the service, parents first.
func Models() []any {
	return []any{
		&models.User{},
		&models.Restaurant{},
		&models.Mission{},
		&models.MissionCompletion{},
	}
}

// MigrateModels runs GORM AutoMigrate for all models
func (db *DB) MigrateModels() error {
	log := logger.New("database").Function("MigrateModels")
	log.Info("Starting database migration")

	for _, model := range Models() {
		if err := db.SQL.AutoMigrate(model); err != nil {
			return log.Err("Failed to migrate model", err, "model", model)
		}
	}

	log.Info("Database migration completed successfully")
	return nil
}
