package payments

import (
	"errors"

	"github.com/tidwall/gjson"
)

var ErrMalformedEvent = errors.New("malformed gateway event")

// Event is a gateway webhook notification.
type Event struct {
	Name        string
	Transaction Transaction
}

// ParseEvent extracts the transaction carried by a webhook body. It does not
// verify the checksum.
func ParseEvent(payload []byte) (Event, error) {
	if !gjson.ValidBytes(payload) {
		return Event{}, ErrMalformedEvent
	}
	txn := gjson.GetBytes(payload, "data.transaction")
	if !txn.IsObject() {
		return Event{}, ErrMalformedEvent
	}
	parsed, err := transactionFrom(txn)
	if err != nil || parsed.Status == "" {
		return Event{}, ErrMalformedEvent
	}
	return Event{Name: gjson.GetBytes(payload, "event").String(), Transaction: parsed}, nil
}
