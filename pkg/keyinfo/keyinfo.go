package keyinfo

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fystack/mpcium-client/pkg/infra"
	"github.com/samber/lo"
)

const keyPrefix = "threshold_keyinfo/"

var ErrNotFound = errors.New("key info not found")

// KeyInfo is the committee that currently holds the shares of a wallet, as
// registered in consul by the MPC nodes.
type KeyInfo struct {
	ParticipantPeerIDs []string `json:"participant_peer_ids"`
	Threshold          int      `json:"threshold"`
	Version            int      `json:"version"`
}

// SameCommittee reports whether nodeIDs and threshold describe the current
// committee, ignoring node order.
func (k *KeyInfo) SameCommittee(nodeIDs []string, threshold int) bool {
	if k.Threshold != threshold || len(k.ParticipantPeerIDs) != len(nodeIDs) {
		return false
	}
	missing, extra := lo.Difference(k.ParticipantPeerIDs, nodeIDs)
	return len(missing) == 0 && len(extra) == 0
}

type Store interface {
	Get(walletID string) (*KeyInfo, error)
}

type store struct {
	consulKV infra.ConsulKV
}

func NewStore(consulKV infra.ConsulKV) Store {
	return &store{consulKV: consulKV}
}

func (s *store) Get(walletID string) (*KeyInfo, error) {
	pair, _, err := s.consulKV.Get(keyPrefix+walletID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get key info: %w", err)
	}
	if pair == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, walletID)
	}

	info := &KeyInfo{}
	if err := json.Unmarshal(pair.Value, info); err != nil {
		return nil, fmt.Errorf("failed to unmarshal key info: %w", err)
	}
	return info, nil
}
