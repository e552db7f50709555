package services

import (
	"time"

	"biteback/config"
	"biteback/internal/types"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims are the claims the identity provider puts in access tokens.
type TokenClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type AuthService struct {
	secret []byte
	issuer string
	log    logger.Logger
}

func NewAuthService(cfg config.Config) *AuthService {
	return &AuthService{
		secret: []byte(cfg.AuthJWTSecret),
		issuer: cfg.AuthJWTIssuer,
		log:    logger.New("authService"),
	}
}

// ValidateToken verifies an HS256 bearer token and returns its identity.
func (s *AuthService) ValidateToken(tokenString string) (*types.TokenInfo, error) {
	log := s.log.Function("ValidateToken")

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		options = append(options, jwt.WithIssuer(s.issuer))
	}

	var claims TokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, options...)
	if err != nil || !token.Valid {
		return nil, log.ErrorWithType(types.ErrUnauthorized, "invalid token", "error", err)
	}

	if claims.Subject == "" {
		return nil, log.ErrorWithType(types.ErrUnauthorized, "token has no subject")
	}

	return &types.TokenInfo{
		Subject: claims.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Role:    claims.Role,
		Issuer:  claims.Issuer,
	}, nil
}

// IssueToken signs a token for info. Used by the seed command and tests.
func (s *AuthService) IssueToken(info types.TokenInfo, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := TokenClaims{
		Email: info.Email,
		Name:  info.Name,
		Role:  info.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   info.Subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", s.log.Function("IssueToken").Err("failed to sign token", err)
	}
	return signed, nil
}
