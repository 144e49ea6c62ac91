package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/fystack/mpcium-client/pkg/logger"
	"github.com/fystack/mpcium-client/pkg/messaging"
	"github.com/mitchellh/mapstructure"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	DefaultPeersPrefix = "mpc_peers/"
)

type ClientConfig struct {
	Environment    string               `mapstructure:"environment" json:"environment"`
	NATs           NATsConfig           `mapstructure:"nats" json:"nats"`
	EventInitiator EventInitiatorConfig `mapstructure:"event_initiator" json:"event_initiator"`
	KMS            KMSConfig            `mapstructure:"kms" json:"kms"`
	Consumer       ConsumerConfig       `mapstructure:"consumer" json:"consumer"`
	Publish        PublishConfig        `mapstructure:"publish" json:"publish"`
	Journal        JournalConfig        `mapstructure:"journal" json:"journal"`
	Consul         ConsulConfig         `mapstructure:"consul" json:"consul"`
	PeersPrefix    string               `mapstructure:"peers_prefix" json:"peers_prefix"`
}

type NATsConfig struct {
	URL      string `mapstructure:"url" json:"url"`
	Username string `mapstructure:"username" json:"username"`
	Password string `mapstructure:"password" json:"password"`
}

type EventInitiatorConfig struct {
	KeyPath   string `mapstructure:"key_path" json:"key_path"`
	Password  string `mapstructure:"password" json:"password"`
	Encrypted bool   `mapstructure:"encrypted" json:"encrypted"`
	// Algorithm is ed25519 for a local key or p256 for a KMS key.
	Algorithm string `mapstructure:"algorithm" json:"algorithm"`
}

type KMSConfig struct {
	Region          string `mapstructure:"region" json:"region"`
	KeyID           string `mapstructure:"key_id" json:"key_id"`
	EndpointURL     string `mapstructure:"endpoint_url" json:"endpoint_url"`
	AccessKeyID     string `mapstructure:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" json:"secret_access_key"`
}

type ConsumerConfig struct {
	MaxDeliver      int             `mapstructure:"max_deliver" json:"max_deliver"`
	AckWait         time.Duration   `mapstructure:"ack_wait" json:"ack_wait"`
	Backoff         []time.Duration `mapstructure:"backoff" json:"backoff"`
	ExhaustedPolicy string          `mapstructure:"exhausted_policy" json:"exhausted_policy"`
	// DurableSuffix gives the CLI its own result consumers so it never
	// acknowledges results meant for an application on the shared ones.
	DurableSuffix string `mapstructure:"durable_suffix" json:"durable_suffix"`
}

type PublishConfig struct {
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`
}

type JournalConfig struct {
	Path     string `mapstructure:"path" json:"path"`
	Password string `mapstructure:"password" json:"password"`
}

type ConsulConfig struct {
	Address  string `mapstructure:"address" json:"address"`
	Username string `mapstructure:"username" json:"username"`
	Password string `mapstructure:"password" json:"password"`
	Token    string `mapstructure:"token" json:"token"`
}

func mask(s string) string {
	return strings.Repeat("*", len(s))
}

// MarshalJSONMask renders the config with every secret replaced by
// asterisks of the same length.
func (c ClientConfig) MarshalJSONMask() string {
	c.NATs.Password = mask(c.NATs.Password)
	c.EventInitiator.Password = mask(c.EventInitiator.Password)
	c.KMS.SecretAccessKey = mask(c.KMS.SecretAccessKey)
	c.Journal.Password = mask(c.Journal.Password)
	c.Consul.Password = mask(c.Consul.Password)
	c.Consul.Token = mask(c.Consul.Token)

	bytes, err := json.Marshal(c)
	if err != nil {
		logger.Error("Failed to marshal client config", err)
	}
	return string(bytes)
}

// Validate reports settings the client cannot start with.
func (c *ClientConfig) Validate() error {
	var errs []error
	if c.NATs.URL == "" {
		errs = append(errs, errors.New("nats.url is required"))
	}
	switch c.EventInitiator.Algorithm {
	case "ed25519":
		if c.EventInitiator.KeyPath == "" {
			errs = append(errs, errors.New("event_initiator.key_path is required for ed25519"))
		}
	case "p256":
		if c.EventInitiator.KeyPath == "" && c.KMS.KeyID == "" {
			errs = append(errs, errors.New("p256 needs event_initiator.key_path or kms.key_id"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported event_initiator.algorithm %q", c.EventInitiator.Algorithm))
	}
	if c.Consumer.MaxDeliver < 1 {
		errs = append(errs, errors.New("consumer.max_deliver must be at least 1"))
	}
	if _, err := messaging.ParseExhaustedPolicy(c.Consumer.ExhaustedPolicy); err != nil {
		errs = append(errs, fmt.Errorf("consumer.exhausted_policy: %w", err))
	}
	if !lo.EveryBy([]rune(c.Consumer.DurableSuffix), func(r rune) bool {
		return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
	}) {
		errs = append(errs, fmt.Errorf("consumer.durable_suffix %q may only contain letters, digits and _", c.Consumer.DurableSuffix))
	}
	if c.Journal.Path != "" && c.Journal.Password == "" {
		errs = append(errs, errors.New("journal.password is required when journal.path is set"))
	}
	return errors.Join(errs...)
}

func setDefaults() {
	viper.SetDefault("environment", EnvDevelopment)
	viper.SetDefault("nats.url", "nats://127.0.0.1:4222")
	viper.SetDefault("nats.username", "")
	viper.SetDefault("nats.password", "")
	viper.SetDefault("event_initiator.key_path", "event_initiator.key")
	viper.SetDefault("event_initiator.password", "")
	viper.SetDefault("event_initiator.encrypted", false)
	viper.SetDefault("event_initiator.algorithm", "ed25519")
	viper.SetDefault("kms.region", "")
	viper.SetDefault("kms.key_id", "")
	viper.SetDefault("kms.endpoint_url", "")
	viper.SetDefault("kms.access_key_id", "")
	viper.SetDefault("kms.secret_access_key", "")
	viper.SetDefault("consumer.max_deliver", 3)
	viper.SetDefault("consumer.ack_wait", "60s")
	viper.SetDefault("consumer.backoff", []string{})
	viper.SetDefault("consumer.exhausted_policy", "broker")
	viper.SetDefault("consumer.durable_suffix", "cli")
	viper.SetDefault("publish.timeout", "5s")
	viper.SetDefault("journal.path", "")
	viper.SetDefault("journal.password", "")
	viper.SetDefault("consul.address", "localhost:8500")
	viper.SetDefault("consul.username", "")
	viper.SetDefault("consul.password", "")
	viper.SetDefault("consul.token", "")
	viper.SetDefault("peers_prefix", DefaultPeersPrefix)
}

// InitViperConfig reads config.yaml from configPath, or from the working
// directory when configPath is empty. A missing file is not an error;
// defaults and environment variables still apply.
func InitViperConfig(configPath string) error {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config file: %w", err)
		}
		logger.Warn("No config file found, using defaults and environment")
		return nil
	}

	logger.Info("Reading config file", "file", viper.ConfigFileUsed())
	return nil
}

func LoadConfig() (*ClientConfig, error) {
	setDefaults()

	var config ClientConfig
	decoderConfig := &mapstructure.DecoderConfig{
		Result:           &config,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	}

	decoder, err := mapstructure.NewDecoder(decoderConfig)
	if err != nil {
		return nil, fmt.Errorf("create config decoder: %w", err)
	}

	if err := decoder.Decode(viper.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return &config, nil
}
