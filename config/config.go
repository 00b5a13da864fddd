package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/webpiratt/dca-protocol/storage"
)

type Config struct {
	Server struct {
		Host     string `mapstructure:"host" json:"host,omitempty"`
		Port     int64  `mapstructure:"port" json:"port,omitempty"`
		Database struct {
			DSN string `mapstructure:"dsn" json:"dsn,omitempty"`
		} `mapstructure:"database" json:"database,omitempty"`
	} `mapstructure:"server" json:"server"`

	Engine struct {
		MinPurchasePeriod    uint64 `mapstructure:"min_purchase_period" json:"min_purchase_period,omitempty"`
		MaxSchedulesPerToken int    `mapstructure:"max_schedules_per_token" json:"max_schedules_per_token,omitempty"`
		MinPurchaseAmount    string `mapstructure:"min_purchase_amount" json:"min_purchase_amount,omitempty"`
		Fees                 struct {
			MinFeeRate uint64 `mapstructure:"min_fee_rate" json:"min_fee_rate,omitempty"`
			MaxFeeRate uint64 `mapstructure:"max_fee_rate" json:"max_fee_rate,omitempty"`
			LowerBound string `mapstructure:"lower_bound" json:"lower_bound,omitempty"`
			UpperBound string `mapstructure:"upper_bound" json:"upper_bound,omitempty"`
		} `mapstructure:"fees" json:"fees,omitempty"`

		// Bootstrap role grants, applied at startup.
		Admins   []string `mapstructure:"admins" json:"admins,omitempty"`
		Swappers []string `mapstructure:"swappers" json:"swappers,omitempty"`

		// Accepted tokens and the lending venues they can be parked in.
		Tokens []TokenConfig `mapstructure:"tokens" json:"tokens,omitempty"`
	} `mapstructure:"engine" json:"engine,omitempty"`

	Redis storage.RedisConfig `mapstructure:"redis" json:"redis,omitempty"`

	BlockStorage storage.BlockStorageConfig `mapstructure:"block_storage" json:"block_storage,omitempty"`

	Datadog struct {
		Host string `mapstructure:"host" json:"host,omitempty"`
		Port string `mapstructure:"port" json:"port,omitempty"`
	} `mapstructure:"datadog" json:"datadog"`
}

// TokenConfig describes one accepted (token, lending venue) pair. Protocol
// index 0 is the no-lending slot and must keep an empty protocol name.
type TokenConfig struct {
	Address              string `mapstructure:"address" json:"address"`
	LendingProtocolIndex uint64 `mapstructure:"lending_protocol_index" json:"lending_protocol_index"`
	ProtocolName         string `mapstructure:"protocol_name" json:"protocol_name,omitempty"`
}

func GetConfigure() (*Config, error) {
	configName := os.Getenv("DCA_CONFIG_NAME")
	if configName == "" {
		configName = "config"
	}

	return ReadConfig(configName)
}

func ReadConfig(configName string) (*Config, error) {
	viper.SetConfigName(configName)
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	viper.SetDefault("Engine.MinPurchasePeriod", 3600)
	viper.SetDefault("Engine.MaxSchedulesPerToken", 5)
	viper.SetDefault("Engine.MinPurchaseAmount", "1000000000000000000")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("fail to reading config file, %w", err)
	}
	var cfg Config
	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}
	return &cfg, nil
}
