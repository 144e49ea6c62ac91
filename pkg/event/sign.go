package event

const (
	SigningPublisherStream   = "mpc-signing"
	SigningRequestTopic      = "mpc.signing_request.*"
	SigningRequestEventTopic = "mpc.signing_request.event"

	SigningResultStream   = "mpc-signing-result"
	SigningResultTopic    = "mpc.mpc_signing_result.*"
	SigningResultConsumer = "mpc_signing_result"
)

type SigningResultEvent struct {
	ResultType          ResultType `json:"result_type"`
	ErrorCode           ErrorCode  `json:"error_code"`
	ErrorReason         string     `json:"error_reason"`
	IsTimeout           bool       `json:"is_timeout"`
	NetworkInternalCode string     `json:"network_internal_code"`
	WalletID            string     `json:"wallet_id"`
	TxID                string     `json:"tx_id"`
	R                   []byte     `json:"r"`
	S                   []byte     `json:"s"`
	SignatureRecovery   []byte     `json:"signature_recovery"`

	// EdDSA signatures are carried whole in Signature; ECDSA uses R, S and
	// SignatureRecovery.
	Signature []byte `json:"signature"`
}

func (e SigningResultEvent) CorrelationID() string { return e.TxID }

func (e SigningResultEvent) resultType() ResultType { return e.ResultType }
