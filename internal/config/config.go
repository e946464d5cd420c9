package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Gateway   GatewayConfig
	Delivery  DeliveryConfig
	Scheduler SchedulerConfig
	LogLevel  string
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         string
	AllowedHosts []string
}

// MongoDBConfig holds MongoDB-specific configuration
type MongoDBConfig struct {
	URI      string
	Database string
}

// RedisConfig holds the pub/sub bus configuration
type RedisConfig struct {
	URL string
}

// JWTConfig holds JWT-specific configuration
type JWTConfig struct {
	Secret    string
	ExpiresIn int
}

// GatewayConfig holds vendor gateway-specific configuration. When Mock is
// true the simulated gateway is used instead of the HTTP vendor.
type GatewayConfig struct {
	Mock        bool
	SuccessRate float64
	MinLatency  time.Duration
	MaxLatency  time.Duration
	BaseURL     string
	Secret      string
	SendTimeout time.Duration
}

// DeliveryConfig holds delivery worker-specific configuration
type DeliveryConfig struct {
	BatchSize int64
	Interval  time.Duration
}

// SchedulerConfig holds campaign scheduler-specific configuration
type SchedulerConfig struct {
	Interval time.Duration
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	// Read configuration
	if err := viper.ReadInConfig(); err != nil {
		// It's okay if config file is not found, we'll use environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// Unmarshal configuration
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults sets default values for configuration
func setDefaults() {
	viper.SetDefault("Server.Port", "4000")
	viper.SetDefault("Server.AllowedHosts", []string{"localhost:3000"})
	viper.SetDefault("MongoDB.URI", "mongodb://localhost:27017")
	viper.SetDefault("MongoDB.Database", "pulse-crm")
	viper.SetDefault("Redis.URL", "redis://localhost:6379/0")
	viper.SetDefault("JWT.ExpiresIn", 24*60*60) // 24 hours
	viper.SetDefault("LogLevel", "info")
	viper.SetDefault("Gateway.Mock", true)
	viper.SetDefault("Gateway.SuccessRate", 0.9)
	viper.SetDefault("Gateway.MinLatency", 50*time.Millisecond)
	viper.SetDefault("Gateway.MaxLatency", 250*time.Millisecond)
	viper.SetDefault("Gateway.SendTimeout", 10*time.Second)
	viper.SetDefault("Delivery.BatchSize", 100)
	viper.SetDefault("Delivery.Interval", time.Second)
	viper.SetDefault("Scheduler.Interval", time.Minute)
}
