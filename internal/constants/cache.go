package constants

import "time"

// Cache hashes. CacheBuilder adds the colon.
const (
	UserCachePrefix            = "user"
	UserSubjectCachePrefix     = "user_subject"
	RestaurantOwnerCachePrefix = "restaurant_owner"
	MissionCachePrefix         = "mission"
	MissionStatsCachePrefix    = "stats_mission"
	CustomerStatsCachePrefix   = "stats_customer"
	RestaurantStatsCachePrefix = "stats_restaurant"

	UserCacheExpiry    = 7 * 24 * time.Hour
	MissionCacheExpiry = 10 * time.Minute
)
