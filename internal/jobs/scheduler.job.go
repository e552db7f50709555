package jobs

import (
	"biteback/internal/repositories"
	"biteback/internal/services"

	logger "github.com/Bparsons0904/goLogger"
)

func RegisterAllJobs(
	schedulerService *services.SchedulerService,
	repos repositories.Repository,
) error {
	log := logger.New("jobs").Function("RegisterAllJobs")
	log.Info("Registering jobs")

	missionExpiryJob := NewMissionExpiryJob(repos.Mission, services.Daily)
	if err := schedulerService.AddJob(missionExpiryJob); err != nil {
		return log.Err("failed to register mission expiry job", err)
	}
	log.Info("Registered mission expiry job", "schedule", "daily")

	return nil
}
