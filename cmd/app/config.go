package main

import (
	"fmt"
	"strings"
	"time"

	"taskreward_bot/internal/repository"

	"github.com/spf13/viper"
)

const (
	configPath   = "./"
	configName   = "config"
	configFormat = "yaml"
)

type Config struct {
	Database repository.Config `yaml:"database"`
	Server   ServerConfig      `yaml:"server"`

	Telegram TelegramConfig `yaml:"telegram"`
	Rewards  RewardsConfig  `yaml:"rewards"`
	Tasks    TasksConfig    `yaml:"tasks"`
	Payouts  PayoutsConfig  `yaml:"payouts"`

	LogLevel string `yaml:"logLevel"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

type TelegramConfig struct {
	BotToken      string `yaml:"botToken"`
	AdminID       int64  `yaml:"adminId"`
	SupportHandle string `yaml:"supportHandle"`
	TaskURL       string `yaml:"taskUrl"`
}

type RewardsConfig struct {
	TaskReward    string `yaml:"taskReward"`
	ReferralBonus string `yaml:"referralBonus"`
}

type TasksConfig struct {
	Cooldown       time.Duration `yaml:"cooldown"`
	PendingTimeout time.Duration `yaml:"pendingTimeout"`
	SweepInterval  time.Duration `yaml:"sweepInterval"`
}

type PayoutsConfig struct {
	AllowNegativeBalance bool `yaml:"allowNegativeBalance"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName(configName)
	viper.AddConfigPath(configPath)
	viper.SetConfigType(configFormat)

	viper.AutomaticEnv()
	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
