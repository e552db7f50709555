package jobs

import (
	"context"
	"time"

	"biteback/internal/repositories"
	"biteback/internal/services"
	"biteback/internal/utils"

	logger "github.com/Bparsons0904/goLogger"
)

// MissionExpiryJob deactivates missions whose expiration day has passed.
// Missions with an unparseable expiration are left active.
type MissionExpiryJob struct {
	missionRepo repositories.MissionRepository
	schedule    services.Schedule
	now         func() time.Time
	log         logger.Logger
}

func NewMissionExpiryJob(
	missionRepo repositories.MissionRepository,
	schedule services.Schedule,
) *MissionExpiryJob {
	return &MissionExpiryJob{
		missionRepo: missionRepo,
		schedule:    schedule,
		now:         utils.NowUTC,
		log:         logger.New("missionExpiryJob"),
	}
}

func (j *MissionExpiryJob) Name() string {
	return "MissionExpiry"
}

func (j *MissionExpiryJob) Execute(ctx context.Context) error {
	log := j.log.Function("Execute")

	expired, err := j.missionRepo.DeactivateExpired(ctx, j.now())
	if err != nil {
		return log.Err("failed to deactivate expired missions", err)
	}

	log.Info("Mission expiry check completed", "deactivated", len(expired))
	return nil
}

func (j *MissionExpiryJob) Schedule() services.Schedule {
	return j.schedule
}
