package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port     string `mapstructure:"PORT"`
	DBUrl    string `mapstructure:"DB_URL"`
	RedisUrl string `mapstructure:"REDIS_URL"`

	// StepBudget bounds the wall-clock time a solver step may take before a
	// run is aborted with a timeout. Zero disables the budget.
	StepBudget time.Duration `mapstructure:"STEP_BUDGET"`

	// DefaultStepMinutes seeds Building.StepMinutes when a submitted
	// building leaves it unset.
	DefaultStepMinutes float64 `mapstructure:"DEFAULT_STEP_MINUTES"`

	// DefaultMaxSpeed, when positive, replaces Building.MaxSpeed
	// (meters/minute) for every run, overriding the builder's default.
	DefaultMaxSpeed float64 `mapstructure:"DEFAULT_MAX_SPEED"`
}

func LoadConfig() (c Config, err error) {
	// Get environment type from ENV variable or use development as default
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Set default values
	viper.SetDefault("PORT", ":8080")
	viper.SetDefault("STEP_BUDGET", 5*time.Second)
	viper.SetDefault("DEFAULT_STEP_MINUTES", 0)
	viper.SetDefault("DEFAULT_MAX_SPEED", 65.0)

	// Load environment file
	viper.SetConfigName(fmt.Sprintf(".env.%s", env))
	viper.SetConfigType("env")
	viper.AddConfigPath(".") // Look in the project root directory

	// Environment variables take precedence over config file
	viper.AutomaticEnv()

	// Try to read config file
	if err := viper.ReadInConfig(); err != nil {
		// Continue even if file is not found
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return c, err
		}
	}

	// Map the values to the Config struct
	err = viper.Unmarshal(&c)
	return
}
