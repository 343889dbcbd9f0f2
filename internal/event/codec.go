package event

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CurrentSchemaVersion is stamped on every event this module produces.
const CurrentSchemaVersion = "1.0"

// supportedMajors lists the schema major versions this decoder understands.
var supportedMajors = map[int]struct{}{1: {}}

// eventWire is the JSON shape of a TradeEvent. Pointer fields let Decode
// tell a missing field from a zero one.
type eventWire struct {
	EventType      *string       `json:"eventType"`
	EventID        *uuid.UUID    `json:"eventId"`
	EventTimestamp time.Time     `json:"eventTimestamp"`
	SchemaVersion  *string       `json:"schemaVersion"`
	Details        *detailsWire  `json:"details"`
	Metadata       *metadataWire `json:"metadata,omitempty"`
}

type detailsWire struct {
	TradeID   uuid.UUID       `json:"tradeId"`
	Ticker    string          `json:"ticker"`
	Price     decimal.Decimal `json:"price"`
	Shares    decimal.Decimal `json:"shares"`
	TradeTime time.Time       `json:"tradeTime"`
	BrokerID  string          `json:"brokerId"`
}

type metadataWire struct {
	CorrelationID string `json:"correlationId"`
	PartitionKey  string `json:"partitionKey"`
}

// Encode serializes e. Output is deterministic for a given event.
func Encode(e TradeEvent) ([]byte, error) {
	w := eventWire{
		EventType:      &e.EventType,
		EventID:        &e.EventID,
		EventTimestamp: e.EventTimestamp.UTC(),
		SchemaVersion:  &e.SchemaVersion,
		Details: &detailsWire{
			TradeID:   e.Details.TradeID,
			Ticker:    e.Details.Ticker,
			Price:     e.Details.Price,
			Shares:    e.Details.Shares,
			TradeTime: e.Details.TradeTime.UTC(),
			BrokerID:  e.Details.BrokerID,
		},
		Metadata: &metadataWire{
			CorrelationID: e.Metadata.CorrelationID,
			PartitionKey:  e.Metadata.PartitionKey,
		},
	}
	return json.Marshal(w)
}

// Decode parses a payload produced by Encode or by any producer speaking a
// compatible schema major. Failures are always *DecodeError.
func Decode(data []byte) (TradeEvent, error) {
	var w eventWire
	if err := json.Unmarshal(data, &w); err != nil {
		return TradeEvent{}, &DecodeError{Kind: ErrMalformed, Cause: err}
	}

	switch {
	case w.EventType == nil:
		return TradeEvent{}, &DecodeError{Kind: ErrMissingField, Field: "eventType"}
	case w.EventID == nil:
		return TradeEvent{}, &DecodeError{Kind: ErrMissingField, Field: "eventId"}
	case w.SchemaVersion == nil:
		return TradeEvent{}, &DecodeError{Kind: ErrMissingField, Field: "schemaVersion"}
	case w.Details == nil:
		return TradeEvent{}, &DecodeError{Kind: ErrMissingField, Field: "details"}
	}

	if *w.EventType != TypeTradeExecuted {
		return TradeEvent{}, &DecodeError{Kind: ErrUnknownEventType, Field: *w.EventType}
	}
	if err := checkVersion(*w.SchemaVersion); err != nil {
		return TradeEvent{}, err
	}

	e := TradeEvent{
		EventType:      *w.EventType,
		EventID:        *w.EventID,
		EventTimestamp: w.EventTimestamp.UTC(),
		SchemaVersion:  *w.SchemaVersion,
		Details: TradeDetails{
			TradeID:   w.Details.TradeID,
			Ticker:    w.Details.Ticker,
			Price:     w.Details.Price,
			Shares:    w.Details.Shares,
			TradeTime: w.Details.TradeTime.UTC(),
			BrokerID:  w.Details.BrokerID,
		},
	}
	if w.Metadata != nil {
		e.Metadata = Metadata{
			CorrelationID: w.Metadata.CorrelationID,
			PartitionKey:  w.Metadata.PartitionKey,
		}
	}
	return e, nil
}

// checkVersion accepts "major.minor" strings whose major is supported.
// Minor bumps are additive and always accepted.
func checkVersion(v string) error {
	majorStr, minorStr, ok := strings.Cut(v, ".")
	if !ok {
		return &DecodeError{Kind: ErrUnsupportedVersion, Field: v}
	}
	major, err := strconv.Atoi(majorStr)
	if err != nil {
		return &DecodeError{Kind: ErrUnsupportedVersion, Field: v, Cause: err}
	}
	if _, err := strconv.Atoi(minorStr); err != nil {
		return &DecodeError{Kind: ErrUnsupportedVersion, Field: v, Cause: err}
	}
	if _, ok := supportedMajors[major]; !ok {
		return &DecodeError{Kind: ErrUnsupportedVersion, Field: v}
	}
	return nil
}
