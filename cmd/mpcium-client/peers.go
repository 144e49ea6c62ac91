package main

import (
	"context"
	"fmt"

	"github.com/fystack/mpcium-client/pkg/config"
	"github.com/fystack/mpcium-client/pkg/infra"
	"github.com/fystack/mpcium-client/pkg/keyinfo"
	"github.com/fystack/mpcium-client/pkg/logger"
	"github.com/fystack/mpcium-client/pkg/types"
	"github.com/urfave/cli/v3"
)

func newConsulKV(cfg *config.ClientConfig) (infra.ConsulKV, error) {
	consul, err := infra.NewConsulClient(infra.ConsulOptions{
		Address:       cfg.Consul.Address,
		Token:         cfg.Consul.Token,
		Username:      cfg.Consul.Username,
		Password:      cfg.Consul.Password,
		Authenticated: cfg.Environment == config.EnvProduction,
	})
	if err != nil {
		return nil, err
	}
	return consul.KV(), nil
}

// resolveNodeIDs maps node names to the ids registered in consul.
func resolveNodeIDs(cfg *config.ClientConfig, kv infra.ConsulKV, names []string) ([]string, error) {
	peers, err := config.LoadPeersFromConsul(kv, cfg.PeersPrefix)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(names))
	for _, name := range names {
		id := config.GetNodeID(name, peers)
		if id == "" {
			return nil, fmt.Errorf("node %q is not registered under %s", name, cfg.PeersPrefix)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func listPeers(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	kv, err := newConsulKV(cfg)
	if err != nil {
		return err
	}
	peers, err := config.LoadPeersFromConsul(kv, cfg.PeersPrefix)
	if err != nil {
		return err
	}
	if len(peers) == 0 {
		fmt.Println("No peers registered under", cfg.PeersPrefix)
		return nil
	}
	for _, peer := range peers {
		fmt.Printf("%-20s %s\n", peer.Name, peer.ID)
	}
	return nil
}

func walletInfo(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	kv, err := newConsulKV(cfg)
	if err != nil {
		return err
	}

	info, err := keyinfo.NewStore(kv).Get(c.String("wallet-id"))
	if err != nil {
		return err
	}
	return printResult(info)
}

// warnUnchangedCommittee flags a reshare that would reproduce the committee
// already holding the wallet.
func warnUnchangedCommittee(kv infra.ConsulKV, msg *types.ResharingMessage) {
	info, err := keyinfo.NewStore(kv).Get(msg.WalletID)
	if err != nil {
		logger.Warn("Could not load current committee", "wallet_id", msg.WalletID, "error", err.Error())
		return
	}
	if info.SameCommittee(msg.NodeIDs, msg.NewThreshold) {
		logger.Warn("Reshare keeps the current committee and threshold", "wallet_id", msg.WalletID, "version", info.Version)
	}
}
