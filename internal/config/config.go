package config

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Nico-Draagron/clima-negocios/internal/features"
)

// minTrainingSamplesFloor is the smallest workable training minimum:
// feature engineering drops the first features.MaxLag rows and then
// needs features.MaxLag+1 usable ones, so any configured minimum below
// this fails at exactly the minimum row count.
const minTrainingSamplesFloor = 2*features.MaxLag + 1

type Location struct {
	Name      string  `yaml:"name"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

var (
	instance *Config
	once     sync.Once
)

// Config - can/will add more later
type Config struct {
	Engine struct {
		MinTrainingSamples int    `yaml:"min_training_samples"`
		LookbackMonths     int    `yaml:"lookback_months"`
		Workers            int    `yaml:"workers"`
		ModelDir           string `yaml:"model_dir"`
		RetrainGuardMins   int    `yaml:"retrain_guard_minutes"`
		CacheTTLSecs       int    `yaml:"cache_ttl_seconds"`
		RetrainCron        string `yaml:"retrain_cron"`
	} `yaml:"engine"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Locations []Location `yaml:"locations"`
}

func Load(configPath string) (*Config, error) {
	var err error
	once.Do(func() {
		instance = &Config{}

		data, readErr := os.ReadFile(configPath)
		if readErr != nil {
			err = fmt.Errorf("failed to read config file %s: %w", configPath, readErr)
			return
		}

		if parseErr := yaml.Unmarshal(data, instance); parseErr != nil {
			err = fmt.Errorf("failed to parse config: %w", parseErr)
			return
		}

		instance.applyDefaults()

		if validateErr := instance.validate(); validateErr != nil {
			err = validateErr
			return
		}
	})

	return instance, err
}

func Get() *Config {
	if instance == nil {
		panic("config not loaded - call config.Load() first")
	}
	return instance
}

func (c *Config) applyDefaults() {
	if c.Engine.MinTrainingSamples == 0 {
		c.Engine.MinTrainingSamples = 90
	}
	if c.Engine.LookbackMonths == 0 {
		c.Engine.LookbackMonths = 12
	}
	if c.Engine.Workers == 0 {
		c.Engine.Workers = 4
	}
	if c.Engine.ModelDir == "" {
		c.Engine.ModelDir = "./models"
	}
	if c.Engine.RetrainGuardMins == 0 {
		c.Engine.RetrainGuardMins = 10
	}
	if c.Engine.CacheTTLSecs == 0 {
		c.Engine.CacheTTLSecs = 3600
	}
}

func (c *Config) validate() error {
	if c.Engine.MinTrainingSamples < minTrainingSamplesFloor {
		return fmt.Errorf("engine.min_training_samples must be at least %d, got %d",
			minTrainingSamplesFloor, c.Engine.MinTrainingSamples)
	}
	return nil
}
