package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

type Config struct {
	LevelDbPath string   `yaml:"level_db_path"`
	Chains      []string `yaml:"chains"`
	Testnet     bool     `yaml:"testnet"`
	LogLevel    string   `yaml:"log_level"`

	RelayAddress   string        `yaml:"relay_address"`
	Topic          string        `yaml:"topic"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// Accounts are the CAIP-10 accounts of the established session.
	Accounts []string `yaml:"accounts"`
	// Balances seeds the account directory, keyed by CAIP-10 account id.
	Balances map[string]string `yaml:"balances"`
	// Endpoints maps numeric chain references to RPC base URLs.
	Endpoints map[string]string `yaml:"endpoints"`

	MetricsAddress string `yaml:"metrics_address"`
}

func NewConfig(path string) (*Config, error) {
	var config = new(Config)
	h, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	if err = yaml.Unmarshal(h, config); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	config.applyDefaults()
	return config, config.Validate()
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LevelDbPath == "" {
		c.LevelDbPath = "./data"
	}
}

func (c *Config) Validate() error {
	if len(c.Chains) == 0 {
		return errors.New("config: at least one chain namespace is required")
	}
	if c.RequestTimeout < 0 {
		return errors.New("config: request_timeout must not be negative")
	}
	return nil
}
