package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode   string `mapstructure:"mode"`
	Server struct {
		HTTPPort string        `mapstructure:"HTTPPort"`
		Timeout  time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	Repositories struct {
		Postgres struct {
			Host     string `mapstructure:"host"`
			Password string `mapstructure:"password"`
			Port     string `mapstructure:"port"`
			Username string `mapstructure:"username"`
			DB       string `mapstructure:"db"`
			SSLMode  string `mapstructure:"sslmode"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	Discovery struct {
		DefaultCollection    string        `mapstructure:"defaultCollection"`
		DefaultResultCount   int           `mapstructure:"defaultResultCount"`
		RerankThreshold      int           `mapstructure:"rerankThreshold"`
		SessionTTL           time.Duration `mapstructure:"sessionTTL"`
		SweepInterval        time.Duration `mapstructure:"sweepInterval"`
		CacheTTL             time.Duration `mapstructure:"cacheTTL"`
		CacheCleanupInterval time.Duration `mapstructure:"cacheCleanupInterval"`
	} `mapstructure:"discovery"`
	Breaker struct {
		FailureThreshold    int           `mapstructure:"failureThreshold"`
		VolumeThreshold     int           `mapstructure:"volumeThreshold"`
		SuccessThreshold    int           `mapstructure:"successThreshold"`
		ResetTimeout        time.Duration `mapstructure:"resetTimeout"`
		ExecutionTimeout    time.Duration `mapstructure:"executionTimeout"`
		MaintenanceInterval time.Duration `mapstructure:"maintenanceInterval"`
	} `mapstructure:"breaker"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	// Add file-based config paths
	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Try to load file-based config
	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %s", err)
		}
	}

	// Unmarshal the config into the Config struct
	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %s", err)
	}
	fmt.Println("Successfully loaded app configs...")
	return config, nil
}
