package middleware

import (
	"biteback/internal/repositories"
	"biteback/internal/services"
	"biteback/internal/types"

	logger "github.com/Bparsons0904/goLogger"
)

// TokenValidator verifies bearer tokens issued by the identity provider.
type TokenValidator interface {
	ValidateToken(token string) (*types.TokenInfo, error)
}

type Middleware struct {
	userRepo repositories.UserRepository
	auth     TokenValidator
	metrics  *services.MetricsService
	log      logger.Logger
}

func New(
	repos repositories.Repository,
	auth TokenValidator,
	metrics *services.MetricsService,
) Middleware {
	return Middleware{
		userRepo: repos.User,
		auth:     auth,
		metrics:  metrics,
		log:      logger.New("middleware"),
	}
}
