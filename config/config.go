/*
Copyright 2025 Bountybase Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5002"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"PAYOUT_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"PAYOUT_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"PAYOUT_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"PAYOUT_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"PAYOUT_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"PAYOUT_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"PAYOUT_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"PAYOUT_REDIS_DNS"`
}

// ChainConfig describes the ledger node the settlement engine talks to. The
// signing key is a base58 ed25519 seed supplied via secure configuration; it
// is never logged and never persisted in the settlement ledger.
type ChainConfig struct {
	NodeURL         string  `json:"node_url" envconfig:"PAYOUT_CHAIN_NODE_URL"`
	ContractAddress string  `json:"contract_address" envconfig:"PAYOUT_CHAIN_CONTRACT_ADDRESS"`
	SigningKey      string  `json:"signing_key" envconfig:"PAYOUT_CHAIN_SIGNING_KEY"`
	ConfirmTimeout  int     `json:"confirm_timeout_sec" envconfig:"PAYOUT_CHAIN_CONFIRM_TIMEOUT_SEC"`
	PollIntervalMs  int     `json:"poll_interval_ms" envconfig:"PAYOUT_CHAIN_POLL_INTERVAL_MS"`
	FiatRate        float64 `json:"fiat_rate_native_units" envconfig:"PAYOUT_CHAIN_FIAT_RATE"`
}

// Configured reports whether the service can reach the chain at all. When it
// is false DistributeReward returns ServiceUnavailable immediately so callers
// can fall back to manual payout without delay.
func (c ChainConfig) Configured() bool {
	return c.NodeURL != "" && c.ContractAddress != "" && c.SigningKey != ""
}

func (c ChainConfig) ConfirmTimeoutDuration() time.Duration {
	return time.Duration(c.ConfirmTimeout) * time.Second
}

func (c ChainConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// RetryConfig bounds the automated retry loop before a payout is handed to
// the manual fallback path.
type RetryConfig struct {
	MaxAttempts    int `json:"max_attempts" envconfig:"PAYOUT_RETRY_MAX_ATTEMPTS"`
	BaseBackoffMs  int `json:"base_backoff_ms" envconfig:"PAYOUT_RETRY_BASE_BACKOFF_MS"`
	MaxBackoffSec  int `json:"max_backoff_sec" envconfig:"PAYOUT_RETRY_MAX_BACKOFF_SEC"`
	LockTimeoutSec int `json:"lock_timeout_sec" envconfig:"PAYOUT_RETRY_LOCK_TIMEOUT_SEC"`
}

func (r RetryConfig) BaseBackoff() time.Duration {
	return time.Duration(r.BaseBackoffMs) * time.Millisecond
}

func (r RetryConfig) MaxBackoff() time.Duration {
	return time.Duration(r.MaxBackoffSec) * time.Second
}

func (r RetryConfig) LockTimeout() time.Duration {
	return time.Duration(r.LockTimeoutSec) * time.Second
}

// RateLimitConfig bounds API request rates. Nil values disable limiting.
type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"PAYOUT_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"PAYOUT_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"PAYOUT_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type QueueConfig struct {
	PayoutQueue    string `json:"payout_queue" envconfig:"PAYOUT_QUEUE_NAME"`
	WebhookQueue   string `json:"webhook_queue" envconfig:"PAYOUT_WEBHOOK_QUEUE_NAME"`
	NumberOfQueues int    `json:"number_of_queues" envconfig:"PAYOUT_NUMBER_OF_QUEUES"`
	MonitoringPort string `json:"monitoring_port" envconfig:"PAYOUT_QUEUE_MONITORING_PORT"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type Configuration struct {
	ProjectName  string           `json:"project_name" envconfig:"PAYOUT_PROJECT_NAME"`
	Server       ServerConfig     `json:"server"`
	DataSource   DataSourceConfig `json:"data_source"`
	Redis        RedisConfig      `json:"redis"`
	Chain        ChainConfig      `json:"chain"`
	Retry        RetryConfig      `json:"retry"`
	RateLimit    RateLimitConfig  `json:"rate_limit"`
	Queue        QueueConfig      `json:"queue"`
	Notification Notification     `json:"notification"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}
	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("payout", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok || c == nil {
		return nil, errors.New("config not loaded from file. Create a json file called payout.json with your config")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		cnf.ProjectName = "Payout Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.Chain.NodeURL = strings.TrimSpace(cnf.Chain.NodeURL)
	cnf.Chain.ContractAddress = strings.TrimSpace(cnf.Chain.ContractAddress)
	cnf.Chain.SigningKey = strings.TrimSpace(cnf.Chain.SigningKey)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	// The chain section may legitimately be empty: the service then reports
	// ServiceUnavailable and callers use the manual payout path.
	if !cnf.Chain.Configured() {
		log.Println("Warning: chain is not fully configured; payouts will report SERVICE_UNAVAILABLE")
	}
	if cnf.Chain.ConfirmTimeout <= 0 {
		cnf.Chain.ConfirmTimeout = 60
	}
	if cnf.Chain.PollIntervalMs <= 0 {
		cnf.Chain.PollIntervalMs = 500
	}
	if cnf.Chain.FiatRate < 0 {
		return errors.New("fiat rate must not be negative")
	}
	if cnf.Chain.Configured() && cnf.Chain.FiatRate == 0 {
		return errors.New("fiat rate is required when the chain is configured")
	}

	if cnf.Retry.MaxAttempts <= 0 {
		cnf.Retry.MaxAttempts = 3
	}
	if cnf.Retry.BaseBackoffMs <= 0 {
		cnf.Retry.BaseBackoffMs = 500
	}
	if cnf.Retry.MaxBackoffSec <= 0 {
		cnf.Retry.MaxBackoffSec = 30
	}
	if cnf.Retry.LockTimeoutSec <= 0 {
		cnf.Retry.LockTimeoutSec = 300
	}

	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 300
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	if cnf.Queue.PayoutQueue == "" {
		cnf.Queue.PayoutQueue = "new:payout"
	}
	if cnf.Queue.WebhookQueue == "" {
		cnf.Queue.WebhookQueue = "new:webhook"
	}
	if cnf.Queue.NumberOfQueues <= 0 {
		cnf.Queue.NumberOfQueues = 4
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = "5003"
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
