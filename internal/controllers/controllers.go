package controllers

import (
	"biteback/internal/events"
	"biteback/internal/repositories"
	"biteback/internal/services"

	ledgerController "biteback/internal/controllers/ledger"
	missionController "biteback/internal/controllers/missions"
	redemptionController "biteback/internal/controllers/redemption"
	restaurantController "biteback/internal/controllers/restaurants"
	statsController "biteback/internal/controllers/stats"
	userController "biteback/internal/controllers/users"
)

type Controllers struct {
	User       userController.UserControllerInterface
	Restaurant restaurantController.RestaurantControllerInterface
	Mission    missionController.MissionControllerInterface
	Ledger     ledgerController.LedgerControllerInterface
	Redemption redemptionController.RedemptionControllerInterface
	Stats      statsController.StatsControllerInterface
}

func New(
	services services.Service,
	repos repositories.Repository,
	eventBus *events.EventBus,
) Controllers {
	return Controllers{
		User:       userController.New(repos),
		Restaurant: restaurantController.New(repos),
		Mission:    missionController.New(repos, services.ProofStore),
		Ledger: ledgerController.New(
			repos,
			services.ProofStore,
			services.Voucher,
			eventBus,
			services.Metrics,
		),
		Redemption: redemptionController.New(repos, services.Voucher, eventBus, services.Metrics),
		Stats:      statsController.New(repos, eventBus),
	}
}
