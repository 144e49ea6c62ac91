package event

const (
	KeygenBrokerStream   = "mpc-keygen"
	KeygenRequestTopic   = "mpc.keygen_request.*"
	KeygenRequestSubject = "mpc.keygen_request.event"

	KeygenResultStream   = "mpc-keygen-result"
	KeygenResultTopic    = "mpc.mpc_keygen_result.*"
	KeygenResultConsumer = "mpc_keygen_result"
)

type KeygenResultEvent struct {
	WalletID    string `json:"wallet_id"`
	ECDSAPubKey []byte `json:"ecdsa_pub_key"`
	EDDSAPubKey []byte `json:"eddsa_pub_key"`

	ResultType  ResultType `json:"result_type"`
	ErrorReason string     `json:"error_reason"`
	ErrorCode   ErrorCode  `json:"error_code"`
}

func (e KeygenResultEvent) CorrelationID() string { return e.WalletID }

func (e KeygenResultEvent) resultType() ResultType { return e.ResultType }
