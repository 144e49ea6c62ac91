package event

import "github.com/fystack/mpcium-client/pkg/types"

const (
	ReshareBrokerStream   = "mpc-reshare"
	ReshareRequestTopic   = "mpc.reshare_request.*"
	ReshareRequestSubject = "mpc.reshare_request.event"

	ReshareResultStream   = "mpc-reshare-result"
	ReshareResultTopic    = "mpc.mpc_reshare_result.*"
	ReshareResultConsumer = "mpc_reshare_result"
)

type ResharingResultEvent struct {
	SessionID    string        `json:"session_id"`
	WalletID     string        `json:"wallet_id"`
	NewThreshold int           `json:"new_threshold"`
	KeyType      types.KeyType `json:"key_type"`
	PubKey       []byte        `json:"pub_key"`

	ResultType  ResultType `json:"result_type"`
	ErrorReason string     `json:"error_reason"`
	ErrorCode   ErrorCode  `json:"error_code"`
}

// CorrelationID is the session id. Decode fills it from the result subject
// when the payload omits it; the wallet id is the last resort.
func (e ResharingResultEvent) CorrelationID() string {
	if e.SessionID != "" {
		return e.SessionID
	}
	return e.WalletID
}

func (e ResharingResultEvent) resultType() ResultType { return e.ResultType }
