package config

import (
	"time"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/spf13/viper"
)

const (
	MinVoucherKeyLength = 32

	defaultStoreTimeoutSeconds  = 5
	defaultUploadTimeoutSeconds = 30
	defaultParallelUploads      = 4
	defaultStatsCacheTTLSeconds = 60
)

type Config struct {
	GeneralVersion            string `mapstructure:"GENERAL_VERSION"`
	Environment               string `mapstructure:"ENVIRONMENT"`
	ServerPort                int    `mapstructure:"SERVER_PORT"`
	DatabaseHost              string `mapstructure:"DB_HOST"`
	DatabasePort              int    `mapstructure:"DB_PORT"`
	DatabaseName              string `mapstructure:"DB_NAME"`
	DatabaseUser              string `mapstructure:"DB_USER"`
	DatabasePassword          string `mapstructure:"DB_PASSWORD"`
	DatabaseCacheAddress      string `mapstructure:"DB_CACHE_ADDRESS"`
	DatabaseCachePort         int    `mapstructure:"DB_CACHE_PORT"`
	DatabaseCacheReset        int    `mapstructure:"DB_CACHE_RESET"`
	CorsAllowOrigins          string `mapstructure:"CORS_ALLOW_ORIGINS"`
	AuthJWTSecret             string `mapstructure:"AUTH_JWT_SECRET"`
	AuthJWTIssuer             string `mapstructure:"AUTH_JWT_ISSUER"`
	VoucherSigningKey         string `mapstructure:"VOUCHER_SIGNING_KEY"`
	ProofBucket               string `mapstructure:"PROOF_BUCKET"`
	ProofRegion               string `mapstructure:"PROOF_REGION"`
	ProofEndpoint             string `mapstructure:"PROOF_ENDPOINT"`
	ProofAccessKey            string `mapstructure:"PROOF_ACCESS_KEY"`
	ProofSecretKey            string `mapstructure:"PROOF_SECRET_KEY"`
	ProofPublicBaseURL        string `mapstructure:"PROOF_PUBLIC_BASE_URL"`
	ProofUploadTimeoutSeconds int    `mapstructure:"PROOF_UPLOAD_TIMEOUT_SECONDS"`
	ProofMaxParallelUploads   int    `mapstructure:"PROOF_MAX_PARALLEL_UPLOADS"`
	StoreTimeoutSeconds       int    `mapstructure:"STORE_TIMEOUT_SECONDS"`
	StatsCacheTTLSeconds      int    `mapstructure:"STATS_CACHE_TTL_SECONDS"`
	SchedulerEnabled          bool   `mapstructure:"SCHEDULER_ENABLED"`
}

var ConfigInstance Config

var envVars = []string{
	"GENERAL_VERSION", "ENVIRONMENT", "SERVER_PORT",
	"DB_HOST", "DB_PORT", "DB_NAME", "DB_USER", "DB_PASSWORD",
	"DB_CACHE_ADDRESS", "DB_CACHE_PORT", "DB_CACHE_RESET",
	"CORS_ALLOW_ORIGINS",
	"AUTH_JWT_SECRET", "AUTH_JWT_ISSUER", "VOUCHER_SIGNING_KEY",
	"PROOF_BUCKET", "PROOF_REGION", "PROOF_ENDPOINT", "PROOF_ACCESS_KEY", "PROOF_SECRET_KEY",
	"PROOF_PUBLIC_BASE_URL", "PROOF_UPLOAD_TIMEOUT_SECONDS", "PROOF_MAX_PARALLEL_UPLOADS",
	"STORE_TIMEOUT_SECONDS", "STATS_CACHE_TTL_SECONDS", "SCHEDULER_ENABLED",
}

func InitConfig() (Config, error) {
	log := logger.New("config").Function("InitConfig")
	log.Info("Initializing config")

	viper.AutomaticEnv()

	for _, env := range envVars {
		if err := viper.BindEnv(env); err != nil {
			log.Warn("Failed to bind environment variable", "env", env, "error", err)
		}
	}

	viper.SetDefault("DB_CACHE_RESET", -1)
	viper.SetDefault("STORE_TIMEOUT_SECONDS", defaultStoreTimeoutSeconds)
	viper.SetDefault("PROOF_UPLOAD_TIMEOUT_SECONDS", defaultUploadTimeoutSeconds)
	viper.SetDefault("PROOF_MAX_PARALLEL_UPLOADS", defaultParallelUploads)
	viper.SetDefault("STATS_CACHE_TTL_SECONDS", defaultStatsCacheTTLSeconds)

	envVarsSet := viper.IsSet("SERVER_PORT") && viper.IsSet("DB_HOST")

	if envVarsSet {
		log.Info("Environment variables detected, skipping file loading")
	} else {
		log.Info("Environment variables not found, attempting to load from files")

		viper.SetConfigFile(".env")
		viper.SetConfigType("env")

		if err := viper.ReadInConfig(); err != nil {
			log.Warn("Could not find .env file", "error", err)
		} else {
			log.Info("Loaded .env file")
		}

		viper.SetConfigFile(".env.local")
		if err := viper.MergeInConfig(); err != nil {
			log.Debug("No .env.local file found", "error", err)
		} else {
			log.Info("Loaded .env.local overrides")
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return Config{}, log.Err("Fatal error: could not unmarshal config", err)
	}

	if err := validateConfig(config, log); err != nil {
		return Config{}, err
	}

	log.Info(
		"Successfully initialized config",
		"environment", config.Environment,
		"port", config.ServerPort,
		"bucket", config.ProofBucket,
	)

	ConfigInstance = config
	return config, nil
}

func GetConfig() Config {
	return ConfigInstance
}

func validateConfig(config Config, log logger.Logger) error {
	if config.ServerPort <= 0 {
		return log.Error(
			"Fatal error: invalid server port",
			"port", config.ServerPort,
		)
	}

	if config.AuthJWTSecret == "" {
		return log.ErrMsg("Fatal error: AUTH_JWT_SECRET is required")
	}

	if len(config.VoucherSigningKey) < MinVoucherKeyLength {
		return log.Error(
			"Fatal error: VOUCHER_SIGNING_KEY is too short",
			"length", len(config.VoucherSigningKey),
			"minimum", MinVoucherKeyLength,
		)
	}

	if config.ProofBucket == "" {
		return log.ErrMsg("Fatal error: PROOF_BUCKET is required")
	}

	if config.ProofMaxParallelUploads <= 0 {
		return log.Error(
			"Fatal error: PROOF_MAX_PARALLEL_UPLOADS must be positive",
			"value", config.ProofMaxParallelUploads,
		)
	}

	return nil
}

func (c Config) StoreTimeout() time.Duration {
	return secondsOr(c.StoreTimeoutSeconds, defaultStoreTimeoutSeconds)
}

func (c Config) UploadTimeout() time.Duration {
	return secondsOr(c.ProofUploadTimeoutSeconds, defaultUploadTimeoutSeconds)
}

func (c Config) StatsCacheTTL() time.Duration {
	return secondsOr(c.StatsCacheTTLSeconds, defaultStatsCacheTTLSeconds)
}

func secondsOr(seconds, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}
