package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownResultType = errors.New("unknown result_type")

// ResultEvent is implemented by every result delivered to the client.
type ResultEvent interface {
	KeygenResultEvent | SigningResultEvent | ResharingResultEvent
	CorrelationID() string
	resultType() ResultType
}

// DecodeError reports a delivered payload that can never be processed.
type DecodeError struct {
	Event string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Event, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decode parses and validates a result payload delivered on subject. When
// the payload does not carry its correlation id, the last subject token is
// used, since results are published on <result topic>.<correlation id>.
func Decode[T ResultEvent](subject string, data []byte) (T, error) {
	var evt T
	if err := json.Unmarshal(data, &evt); err != nil {
		return evt, &DecodeError{Event: fmt.Sprintf("%T", evt), Err: err}
	}
	if rt := evt.resultType(); !rt.Valid() {
		return evt, &DecodeError{
			Event: fmt.Sprintf("%T", evt),
			Err:   fmt.Errorf("%w: %q", ErrUnknownResultType, rt),
		}
	}

	if id := SubjectCorrelationID(subject); id != "" {
		switch e := any(&evt).(type) {
		case *KeygenResultEvent:
			if e.WalletID == "" {
				e.WalletID = id
			}
		case *SigningResultEvent:
			if e.TxID == "" {
				e.TxID = id
			}
		case *ResharingResultEvent:
			if e.SessionID == "" {
				e.SessionID = id
			}
		}
	}
	return evt, nil
}

// SubjectCorrelationID returns the correlation id carried as the last token
// of a result subject, or "" when the subject has none.
func SubjectCorrelationID(subject string) string {
	i := strings.LastIndexByte(subject, '.')
	if i < 0 {
		return ""
	}
	switch token := subject[i+1:]; token {
	case "", "*", ">", "event", "complete":
		return ""
	default:
		return token
	}
}
