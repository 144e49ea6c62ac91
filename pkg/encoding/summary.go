package encoding

import (
	"encoding/hex"
)

// KeySummary is the validated, normalized form of the public keys of a
// wallet.
type KeySummary struct {
	ECDSAPubKey string `json:"ecdsa_pub_key,omitempty"`
	EDDSAPubKey string `json:"eddsa_pub_key,omitempty"`
}

// SummarizeKeys validates the keys of a keygen result and renders both in
// compressed hex. Either key may be empty.
func SummarizeKeys(ecdsaPub, eddsaPub []byte) (KeySummary, error) {
	var summary KeySummary

	if len(ecdsaPub) > 0 {
		pub, err := ParseS256PubKey(ecdsaPub)
		if err != nil {
			return summary, err
		}
		summary.ECDSAPubKey = hex.EncodeToString(pub.SerializeCompressed())
	}

	if len(eddsaPub) > 0 {
		pub, err := ParseEDDSAPubKey(eddsaPub)
		if err != nil {
			return summary, err
		}
		summary.EDDSAPubKey = hex.EncodeToString(pub.SerializeCompressed())
	}

	return summary, nil
}
