package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                 string
	Port                string
	SessionSecret       string
	DatabaseURL         string
	RedisURL            string
	SweepInterval       time.Duration
	DispatchWorkers     int
	DispatchQueueSize   int
	BrevoAPIKey         string
	MailFrom            string
	FrontendURLEndsWith string
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	port := viper.GetString("PORT")
	if port == "" {
		port = "8080"
	}
	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	dbURL := viper.GetString("DATABASE_URL")
	if env == "test" {
		dbURL = viper.GetString("DATABASE_URL_TEST")
	}

	sweepSeconds := viper.GetInt("SWEEP_INTERVAL_SECONDS")
	if sweepSeconds <= 0 {
		sweepSeconds = 60
	}
	workers := viper.GetInt("DISPATCH_WORKERS")
	if workers <= 0 {
		workers = 4
	}
	queueSize := viper.GetInt("DISPATCH_QUEUE_SIZE")
	if queueSize <= 0 {
		queueSize = 256
	}

	return &Config{
		Env:                 env,
		Port:                port,
		SessionSecret:       viper.GetString("SESSION_SECRET"),
		DatabaseURL:         dbURL,
		RedisURL:            viper.GetString("REDIS_URL"),
		SweepInterval:       time.Duration(sweepSeconds) * time.Second,
		DispatchWorkers:     workers,
		DispatchQueueSize:   queueSize,
		BrevoAPIKey:         viper.GetString("BREVO_API_KEY"),
		MailFrom:            viper.GetString("MAIL_FROM"),
		FrontendURLEndsWith: viper.GetString("FRONTEND_URL_ENDS_WITH"),
	}, nil
}
