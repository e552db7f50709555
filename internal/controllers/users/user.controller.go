package userController

import (
	"context"
	"strings"
	"time"

	. "biteback/internal/models"
	"biteback/internal/repositories"
	"biteback/internal/types"

	logger "github.com/Bparsons0904/goLogger"
)

type ProfileRequest struct {
	DisplayName string  `json:"displayName"`
	Email       *string `json:"email,omitempty"`
}

type UserControllerInterface interface {
	GetProfile(ctx context.Context, user *User) UserProfile
	UpdateProfile(ctx context.Context, user *User, request ProfileRequest) (UserProfile, error)
	RecordLogin(ctx context.Context, user *User) error
}

type UserController struct {
	userRepo repositories.UserRepository
	now      func() time.Time
	log      logger.Logger
}

func New(repos repositories.Repository) *UserController {
	return &UserController{
		userRepo: repos.User,
		now:      time.Now,
		log:      logger.New("userController"),
	}
}

func (uc *UserController) GetProfile(_ context.Context, user *User) UserProfile {
	return user.ToProfile()
}

// UpdateProfile registers or edits the caller's profile. The role always
// comes from the token and cannot be changed here.
func (uc *UserController) UpdateProfile(
	ctx context.Context,
	user *User,
	request ProfileRequest,
) (UserProfile, error) {
	log := uc.log.Function("UpdateProfile")
	ctx = context.WithoutCancel(ctx)

	name := strings.TrimSpace(request.DisplayName)
	if name == "" {
		return UserProfile{}, log.ErrorWithType(types.ErrValidation, "display name is required")
	}

	if request.Email != nil {
		email := strings.TrimSpace(*request.Email)
		if email != "" && !strings.Contains(email, "@") {
			return UserProfile{}, log.ErrorWithType(types.ErrValidation, "invalid email", "userID", user.ID)
		}
		if email == "" {
			user.Email = nil
		} else {
			user.Email = &email
		}
	}

	user.DisplayName = name
	if err := uc.userRepo.Update(ctx, user); err != nil {
		return UserProfile{}, err
	}

	log.Info("Profile updated", "userID", user.ID)
	return user.ToProfile(), nil
}

func (uc *UserController) RecordLogin(ctx context.Context, user *User) error {
	now := uc.now().UTC()
	user.LastLoginAt = &now
	return uc.userRepo.Update(context.WithoutCancel(ctx), user)
}
