package seed

import (
	"context"
	"time"

	"biteback/config"
	. "biteback/internal/models"
	"biteback/internal/services"
	"biteback/internal/types"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func stringPtr(s string) *string {
	return &s
}

const devTokenTTL = 30 * 24 * time.Hour

// Seed creates a demo business with one restaurant and two missions, plus a
// demo customer, in a single transaction. In development it also logs bearer
// tokens for both demo users.
func Seed(
	tx *services.TransactionService,
	auth *services.AuthService,
	config config.Config,
	log logger.Logger,
) error {
	log = log.Function("Seed")
	log.Info("Seeding development data", "environment", config.Environment)

	err := tx.Execute(context.Background(), func(ctx context.Context, db *gorm.DB) error {
		business := &User{
			ExternalID:  "seed-business",
			DisplayName: "Demo Bistro Owner",
			Email:       stringPtr("owner@example.com"),
			Role:        RoleBusiness,
			IsActive:    true,
		}
		customer := &User{
			ExternalID:  "seed-customer",
			DisplayName: "Demo Customer",
			Email:       stringPtr("customer@example.com"),
			Role:        RoleCustomer,
			IsActive:    true,
		}
		if err := db.Create([]*User{business, customer}).Error; err != nil {
			return log.Err("failed to create users", err)
		}

		restaurant := &Restaurant{
			OwnerID:     business.ID,
			Name:        "Demo Bistro",
			Description: "Seasonal plates and natural wine",
			Address:     "12 Market Street",
		}
		if err := db.Create(restaurant).Error; err != nil {
			return log.Err("failed to create restaurant", err)
		}

		coffee := decimal.RequireFromString("4.50")
		dessert := decimal.RequireFromString("8.00")
		missions := []*Mission{
			{
				RestaurantID: restaurant.ID,
				Title:        "Morning regular",
				Description:  "Grab a coffee three mornings in a row",
				Reward:       "Free flat white",
				RewardValue:  &coffee,
				Status:       MissionStatusActive,
				Steps: []MissionStep{
					{Description: "Photo of your first coffee"},
					{Description: "Photo of your second coffee"},
					{Description: "Photo of your third coffee"},
				},
			},
			{
				RestaurantID: restaurant.ID,
				Title:        "Share the love",
				Description:  "Post about us and tag a friend",
				Reward:       "Dessert on the house",
				RewardValue:  &dessert,
				Expiration:   stringPtr("2099-12-31"),
				Status:       MissionStatusActive,
				Steps: []MissionStep{
					{Description: "Screenshot of your post", Link: stringPtr("https://instagram.com")},
				},
			},
		}
		if err := db.Create(missions).Error; err != nil {
			return log.Err("failed to create missions", err)
		}

		log.Info("Seed complete", "restaurantID", restaurant.ID, "missions", len(missions))
		return nil
	})
	if err != nil || config.Environment != "development" {
		return err
	}

	for _, info := range []types.TokenInfo{
		{Subject: "seed-business", Role: string(RoleBusiness)},
		{Subject: "seed-customer", Role: string(RoleCustomer)},
	} {
		token, err := auth.IssueToken(info, devTokenTTL)
		if err != nil {
			return err
		}
		log.Info("Development token", "subject", info.Subject, "token", token)
	}

	return nil
}
