package event

// Category groups the broker resources of one request/result family.
type Category struct {
	Name string

	RequestStream  string
	RequestTopic   string
	RequestSubject string

	ResultStream   string
	ResultTopic    string
	ResultConsumer string
}

var (
	KeygenCategory = Category{
		Name:           "keygen",
		RequestStream:  KeygenBrokerStream,
		RequestTopic:   KeygenRequestTopic,
		RequestSubject: KeygenRequestSubject,
		ResultStream:   KeygenResultStream,
		ResultTopic:    KeygenResultTopic,
		ResultConsumer: KeygenResultConsumer,
	}

	SigningCategory = Category{
		Name:           "signing",
		RequestStream:  SigningPublisherStream,
		RequestTopic:   SigningRequestTopic,
		RequestSubject: SigningRequestEventTopic,
		ResultStream:   SigningResultStream,
		ResultTopic:    SigningResultTopic,
		ResultConsumer: SigningResultConsumer,
	}

	ReshareCategory = Category{
		Name:           "reshare",
		RequestStream:  ReshareBrokerStream,
		RequestTopic:   ReshareRequestTopic,
		RequestSubject: ReshareRequestSubject,
		ResultStream:   ReshareResultStream,
		ResultTopic:    ReshareResultTopic,
		ResultConsumer: ReshareResultConsumer,
	}
)

// Categories lists every category in a stable order.
func Categories() []Category {
	return []Category{KeygenCategory, SigningCategory, ReshareCategory}
}
