package infra

import (
	"fmt"
	"time"

	"github.com/fystack/mpcium-client/pkg/logger"
	"github.com/hashicorp/consul/api"
)

type ConsulKV interface {
	Put(kv *api.KVPair, options *api.WriteOptions) (*api.WriteMeta, error)
	Get(key string, options *api.QueryOptions) (*api.KVPair, *api.QueryMeta, error)
	Delete(key string, options *api.WriteOptions) (*api.WriteMeta, error)
	List(prefix string, options *api.QueryOptions) (api.KVPairs, *api.QueryMeta, error)
}

type ConsulOptions struct {
	Address  string
	Token    string
	Username string
	Password string
	// Authenticated enables the token and basic auth settings.
	Authenticated bool
}

// NewConsulClient connects to consul and checks that a leader is reachable.
func NewConsulClient(opts ConsulOptions) (*api.Client, error) {
	config := api.DefaultConfig()
	if opts.Authenticated {
		config.Token = opts.Token
		if opts.Username != "" || opts.Password != "" {
			config.HttpAuth = &api.HttpBasicAuth{
				Username: opts.Username,
				Password: opts.Password,
			}
		}
	}

	if opts.Address != "" {
		config.Address = opts.Address
	}
	config.WaitTime = 10 * time.Second

	logger.Info("Consul config",
		"address", config.Address,
		"wait_time", config.WaitTime,
		"token_length", len(config.Token),
		"http_auth", config.HttpAuth != nil,
	)

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("create consul client: %w", err)
	}

	if _, err := client.Status().Leader(); err != nil {
		return nil, fmt.Errorf("connect to consul at %s: %w", config.Address, err)
	}

	return client, nil
}
