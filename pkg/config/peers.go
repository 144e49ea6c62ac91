package config

import (
	"sort"
	"strings"

	"github.com/fystack/mpcium-client/pkg/infra"
	"github.com/fystack/mpcium-client/pkg/logger"
)

// Peer is one MPC node registered in consul as <prefix><name> = <node id>.
type Peer struct {
	ID   string
	Name string
}

func LoadPeersFromConsul(kv infra.ConsulKV, prefix string) ([]Peer, error) {
	pairs, _, err := kv.List(prefix, nil)
	if err != nil {
		return nil, err
	}

	peers := make([]Peer, 0, len(pairs))
	for _, pair := range pairs {
		name := strings.TrimPrefix(pair.Key, prefix)
		if name == "" || len(pair.Value) == 0 {
			continue
		}
		peers = append(peers, Peer{
			ID:   string(pair.Value),
			Name: name,
		})
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].Name < peers[j].Name })

	logger.Debug("Loaded peers from consul", "prefix", prefix, "count", len(peers))
	return peers, nil
}

func GetNodeID(nodeName string, peers []Peer) string {
	for _, peer := range peers {
		if peer.Name == nodeName {
			return peer.ID
		}
	}

	return ""
}
