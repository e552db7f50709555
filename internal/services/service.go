package services

import (
	"biteback/config"
	"biteback/internal/database"
)

type Service struct {
	Auth        *AuthService
	Voucher     *VoucherService
	ProofStore  *ProofStoreService
	Metrics     *MetricsService
	Transaction *TransactionService
	Scheduler   *SchedulerService
}

func New(db database.DB, config config.Config) (Service, error) {
	metricsService := NewMetricsService()

	proofStoreService, err := NewProofStoreService(config, metricsService)
	if err != nil {
		return Service{}, err
	}

	return Service{
		Auth:        NewAuthService(config),
		Voucher:     NewVoucherService(config.VoucherSigningKey),
		ProofStore:  proofStoreService,
		Metrics:     metricsService,
		Transaction: NewTransactionService(db),
		Scheduler:   NewSchedulerService(metricsService),
	}, nil
}
