package event

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TypeTradeExecuted is the discriminator carried by every trade event.
const TypeTradeExecuted = "TradeExecuted"

// TradeEvent is the immutable record published for one executed trade.
type TradeEvent struct {
	EventType      string
	EventID        uuid.UUID
	EventTimestamp time.Time // publish wall clock (UTC), not trade time
	SchemaVersion  string
	Details        TradeDetails
	Metadata       Metadata
}

// TradeDetails holds the business facts of the trade.
type TradeDetails struct {
	TradeID   uuid.UUID
	Ticker    string
	Price     decimal.Decimal
	Shares    decimal.Decimal // fractional shares allowed
	TradeTime time.Time       // execution time (UTC)
	BrokerID  string
}

// Metadata carries tracing and routing context.
type Metadata struct {
	CorrelationID string
	PartitionKey  string
}

// NewTradeEvent builds an event for details stamped at now.
// The partition key is always the ticker.
func NewTradeEvent(details TradeDetails, correlationID string, now time.Time) TradeEvent {
	details.TradeTime = details.TradeTime.UTC()
	return TradeEvent{
		EventType:      TypeTradeExecuted,
		EventID:        uuid.New(),
		EventTimestamp: now.UTC(),
		SchemaVersion:  CurrentSchemaVersion,
		Details:        details,
		Metadata: Metadata{
			CorrelationID: correlationID,
			PartitionKey:  PartitionKey(details.Ticker),
		},
	}
}

// PartitionKey returns the routing key for a ticker.
func PartitionKey(ticker string) string {
	return ticker
}

// Equal reports whether e and o carry the same values. Decimals and
// instants are compared by value rather than representation.
func (e TradeEvent) Equal(o TradeEvent) bool {
	return e.EventType == o.EventType &&
		e.EventID == o.EventID &&
		e.EventTimestamp.Equal(o.EventTimestamp) &&
		e.SchemaVersion == o.SchemaVersion &&
		e.Details.Equal(o.Details) &&
		e.Metadata == o.Metadata
}

// Equal reports whether d and o describe the same trade.
func (d TradeDetails) Equal(o TradeDetails) bool {
	return d.TradeID == o.TradeID &&
		d.Ticker == o.Ticker &&
		d.Price.Equal(o.Price) &&
		d.Shares.Equal(o.Shares) &&
		d.TradeTime.Equal(o.TradeTime) &&
		d.BrokerID == o.BrokerID
}
