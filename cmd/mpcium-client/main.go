package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fystack/mpcium-client/pkg/client"
	"github.com/fystack/mpcium-client/pkg/config"
	"github.com/fystack/mpcium-client/pkg/logger"
	"github.com/fystack/mpcium-client/pkg/messaging"
	"github.com/fystack/mpcium-client/pkg/types"
	"github.com/nats-io/nats.go"
	"github.com/urfave/cli/v3"
)

const defaultResultTimeout = 2 * time.Minute

func main() {
	app := &cli.Command{
		Name:  "mpcium-client",
		Usage: "Submit signed requests to an MPC cluster and follow their results",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config.yaml",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "generate-initiator",
				Usage: "Generate an event initiator key pair",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "node-name",
						Aliases: []string{"n"},
						Value:   "event_initiator",
						Usage:   "Name used for the key and identity files",
					},
					&cli.StringFlag{
						Name:    "output-dir",
						Aliases: []string{"o"},
						Value:   ".",
						Usage:   "Output directory",
					},
					&cli.StringFlag{
						Name:    "algorithm",
						Aliases: []string{"a"},
						Value:   string(types.EventInitiatorKeyTypeEd25519),
						Usage:   "Key algorithm (ed25519 or p256)",
					},
					&cli.BoolFlag{
						Name:    "encrypt",
						Aliases: []string{"e"},
						Usage:   "Encrypt the private key with an age passphrase",
					},
					&cli.BoolFlag{
						Name:  "overwrite",
						Usage: "Overwrite existing files",
					},
				},
				Action: generateInitiatorIdentity,
			},
			{
				Name:  "create-wallet",
				Usage: "Request key generation for a wallet",
				Description: "Results are read from the consumer.durable_suffix consumers (default \"cli\"). " +
					"Setting the suffix to \"\" shares the application's consumers, and results for other requests are then acknowledged here.",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:    "wallet-id",
						Aliases: []string{"w"},
						Usage:   "Wallet ID (generated when empty)",
					},
				}, waitFlags()...),
				Action: createWallet,
			},
			{
				Name:  "sign",
				Usage: "Request a signature over a transaction",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "wallet-id",
						Aliases:  []string{"w"},
						Usage:    "Wallet ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "key-type",
						Value: string(types.KeyTypeSecp256k1),
						Usage: "Key type (secp256k1 or ed25519)",
					},
					&cli.StringFlag{
						Name:  "network",
						Usage: "Network internal code",
					},
					&cli.StringFlag{
						Name:     "tx",
						Usage:    "Transaction bytes, hex encoded",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "tx-id",
						Usage: "Transaction ID, generated when empty",
					},
				}, waitFlags()...),
				Action: signTransaction,
			},
			{
				Name:  "reshare",
				Usage: "Request a key reshare to a new committee",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "wallet-id",
						Aliases:  []string{"w"},
						Usage:    "Wallet ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "key-type",
						Value: string(types.KeyTypeSecp256k1),
						Usage: "Key type (secp256k1 or ed25519)",
					},
					&cli.StringSliceFlag{
						Name:     "nodes",
						Usage:    "New committee node IDs, or node names with --resolve-peers",
						Required: true,
					},
					&cli.IntFlag{
						Name:     "threshold",
						Aliases:  []string{"t"},
						Usage:    "New threshold",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "resolve-peers",
						Usage: "Resolve --nodes names to node IDs through consul",
					},
					&cli.StringFlag{
						Name:  "session-id",
						Usage: "Session ID, generated when empty",
					},
				}, waitFlags()...),
				Action: reshare,
			},
			{
				Name:   "peers",
				Usage:  "List MPC peers registered in consul",
				Action: listPeers,
			},
			{
				Name:  "wallet-info",
				Usage: "Show the committee currently holding a wallet",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "wallet-id",
						Aliases:  []string{"w"},
						Usage:    "Wallet ID",
						Required: true,
					},
				},
				Action: walletInfo,
			},
			{
				Name:  "pending",
				Usage: "List journaled requests still waiting for a result",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "category",
						Usage: "Only list one category (keygen, signing or reshare)",
					},
				},
				Action: listPending,
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func waitFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "no-wait",
			Usage: "Return after publishing without waiting for the result",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Value: defaultResultTimeout,
			Usage: "How long to wait for the result",
		},
	}
}

// loadConfig reads and validates config.yaml and initializes the logger.
func loadConfig(c *cli.Command) (*config.ClientConfig, error) {
	if err := config.InitViperConfig(c.String("config")); err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.Environment, c.Bool("debug"))
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger.Debug("Loaded config", "config", cfg.MarshalJSONMask())
	return cfg, nil
}

func connectNATS(cfg *config.ClientConfig) (*nats.Conn, error) {
	opts := []nats.Option{nats.Name("mpcium-client")}
	if cfg.NATs.Username != "" {
		opts = append(opts, nats.UserInfo(cfg.NATs.Username, cfg.NATs.Password))
	}
	if cfg.Environment == config.EnvProduction {
		opts = append(opts,
			nats.ClientCert("./certs/client-cert.pem", "./certs/client-key.pem"),
			nats.RootCAs("./certs/rootCA.pem"),
		)
	}

	nc, err := nats.Connect(cfg.NATs.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", cfg.NATs.URL, err)
	}
	return nc, nil
}

// newSigner returns a KMS signer when kms.key_id is set, a local P256 signer
// for p256 keys on disk, and nil to let the client load its Ed25519 key.
func newSigner(cfg *config.ClientConfig) (client.Signer, error) {
	if cfg.KMS.KeyID != "" {
		return client.NewKMSSigner(types.EventInitiatorKeyTypeP256, client.KMSSignerOptions{
			Region:          cfg.KMS.Region,
			KeyID:           cfg.KMS.KeyID,
			EndpointURL:     cfg.KMS.EndpointURL,
			AccessKeyID:     cfg.KMS.AccessKeyID,
			SecretAccessKey: cfg.KMS.SecretAccessKey,
		})
	}
	if cfg.EventInitiator.Algorithm == string(types.EventInitiatorKeyTypeP256) {
		return client.NewLocalSigner(types.EventInitiatorKeyTypeP256, client.LocalSignerOptions{
			KeyPath:   cfg.EventInitiator.KeyPath,
			Encrypted: cfg.EventInitiator.Encrypted,
			Password:  cfg.EventInitiator.Password,
		})
	}
	return nil, nil
}

func openJournal(cfg *config.ClientConfig) (*client.Journal, error) {
	if cfg.Journal.Path == "" {
		return nil, nil
	}
	return client.OpenJournal(cfg.Journal.Path, cfg.Journal.Password)
}

// session holds everything a request command needs. Close releases it in
// reverse order of creation.
type session struct {
	cfg     *config.ClientConfig
	nc      *nats.Conn
	journal *client.Journal
	client  client.MPCClient
}

func newSession(c *cli.Command) (*session, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	signer, err := newSigner(cfg)
	if err != nil {
		return nil, err
	}

	policy, err := messaging.ParseExhaustedPolicy(cfg.Consumer.ExhaustedPolicy)
	if err != nil {
		return nil, err
	}

	nc, err := connectNATS(cfg)
	if err != nil {
		return nil, err
	}

	journal, err := openJournal(cfg)
	if err != nil {
		nc.Close()
		return nil, err
	}

	mpcClient, err := client.NewMPCClient(client.Options{
		NatsConn:        nc,
		KeyPath:         cfg.EventInitiator.KeyPath,
		Encrypted:       cfg.EventInitiator.Encrypted,
		Password:        cfg.EventInitiator.Password,
		Signer:          signer,
		MaxDeliver:      cfg.Consumer.MaxDeliver,
		AckWait:         cfg.Consumer.AckWait,
		Backoff:         cfg.Consumer.Backoff,
		ExhaustedPolicy: policy,
		ConsumerSuffix:  cfg.Consumer.DurableSuffix,
		PublishTimeout:  cfg.Publish.Timeout,
		Journal:         journal,
	})
	if err != nil {
		if journal != nil {
			journal.Close()
		}
		nc.Close()
		return nil, err
	}

	return &session{cfg: cfg, nc: nc, journal: journal, client: mpcClient}, nil
}

func (s *session) Close() {
	if err := s.client.Close(); err != nil {
		logger.Warn("Failed to close MPC client", "error", err.Error())
	}
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			logger.Warn("Failed to close journal", "error", err.Error())
		}
	}
	if err := s.nc.Drain(); err != nil {
		s.nc.Close()
	}
}
