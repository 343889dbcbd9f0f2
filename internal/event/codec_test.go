package event

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent(t *testing.T) TradeEvent {
	t.Helper()
	return NewTradeEvent(TradeDetails{
		TradeID:   uuid.New(),
		Ticker:    "VOD.L",
		Price:     decimal.RequireFromString("72.345"),
		Shares:    decimal.RequireFromString("10.5"),
		TradeTime: time.Date(2024, 3, 1, 9, 30, 0, 123456789, time.UTC),
		BrokerID:  "BRK-001",
	}, "corr-42", time.Date(2024, 3, 1, 9, 30, 1, 0, time.UTC))
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*TradeEvent)
	}{
		{name: "typical"},
		{name: "empty correlation id", mutate: func(e *TradeEvent) { e.Metadata.CorrelationID = "" }},
		{name: "fractional shares", mutate: func(e *TradeEvent) { e.Details.Shares = decimal.RequireFromString("0.0001") }},
		{name: "large price", mutate: func(e *TradeEvent) { e.Details.Price = decimal.RequireFromString("123456789012.987654") }},
		{name: "non-utc trade time", mutate: func(e *TradeEvent) {
			e.Details.TradeTime = time.Date(2024, 3, 1, 10, 30, 0, 0, time.FixedZone("CET", 3600))
		}},
		{name: "newer minor version", mutate: func(e *TradeEvent) { e.SchemaVersion = "1.7" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := sampleEvent(t)
			if tt.mutate != nil {
				tt.mutate(&e)
			}

			data, err := Encode(e)
			require.NoError(t, err)

			got, err := Decode(data)
			require.NoError(t, err)
			assert.True(t, got.Equal(e), "round trip mismatch:\n got  %+v\n want %+v", got, e)
		})
	}
}

func TestEncode_Deterministic(t *testing.T) {
	e := sampleEvent(t)

	first, err := Encode(e)
	require.NoError(t, err)
	second, err := Encode(e)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEncode_WireFieldNames(t *testing.T) {
	data, err := Encode(sampleEvent(t))
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"eventType", "eventId", "eventTimestamp", "schemaVersion", "details", "metadata"} {
		assert.Contains(t, raw, key)
	}

	var details map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw["details"], &details))
	for _, key := range []string{"tradeId", "ticker", "price", "shares", "tradeTime", "brokerId"} {
		assert.Contains(t, details, key)
	}
	assert.Equal(t, `"72.345"`, string(details["price"]))
}

func TestDecode_ToleratesUnknownAndMissingMetadata(t *testing.T) {
	payload := `{
		"eventType": "TradeExecuted",
		"eventId": "5f0c6b8e-3b6e-4d8e-9a51-0c1f2a3b4c5d",
		"eventTimestamp": "2024-03-01T09:30:01Z",
		"schemaVersion": "1.3",
		"futureField": {"nested": true},
		"details": {
			"tradeId": "0e9d8c7b-6a5f-4e3d-2c1b-0a9f8e7d6c5b",
			"ticker": "BARC.L",
			"price": "1.5",
			"shares": 100,
			"tradeTime": "2024-03-01T09:30:00Z",
			"brokerId": "B1",
			"venue": "XLON"
		},
		"metadata": {"traceparent": "00-abc"}
	}`

	e, err := Decode([]byte(payload))
	require.NoError(t, err)

	assert.Equal(t, "BARC.L", e.Details.Ticker)
	assert.True(t, e.Details.Shares.Equal(decimal.NewFromInt(100)))
	assert.Empty(t, e.Metadata.CorrelationID)
	assert.Empty(t, e.Metadata.PartitionKey)
}

func TestDecode_NoMetadataObject(t *testing.T) {
	payload := `{"eventType":"TradeExecuted","eventId":"5f0c6b8e-3b6e-4d8e-9a51-0c1f2a3b4c5d",
		"schemaVersion":"1.0","details":{"ticker":"X"}}`

	e, err := Decode([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, Metadata{}, e.Metadata)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		kind    error
	}{
		{name: "not json", payload: `not-json`, kind: ErrMalformed},
		{name: "truncated", payload: `{"eventType":"TradeExecuted"`, kind: ErrMalformed},
		{name: "bad uuid", payload: `{"eventType":"TradeExecuted","eventId":"nope","schemaVersion":"1.0","details":{}}`, kind: ErrMalformed},
		{name: "bad decimal", payload: `{"eventType":"TradeExecuted","eventId":"5f0c6b8e-3b6e-4d8e-9a51-0c1f2a3b4c5d","schemaVersion":"1.0","details":{"price":"abc"}}`, kind: ErrMalformed},
		{name: "missing event type", payload: `{"eventId":"5f0c6b8e-3b6e-4d8e-9a51-0c1f2a3b4c5d","schemaVersion":"1.0","details":{}}`, kind: ErrMissingField},
		{name: "missing event id", payload: `{"eventType":"TradeExecuted","schemaVersion":"1.0","details":{}}`, kind: ErrMissingField},
		{name: "missing version", payload: `{"eventType":"TradeExecuted","eventId":"5f0c6b8e-3b6e-4d8e-9a51-0c1f2a3b4c5d","details":{}}`, kind: ErrMissingField},
		{name: "missing details", payload: `{"eventType":"TradeExecuted","eventId":"5f0c6b8e-3b6e-4d8e-9a51-0c1f2a3b4c5d","schemaVersion":"1.0"}`, kind: ErrMissingField},
		{name: "other event type", payload: `{"eventType":"TradeCancelled","eventId":"5f0c6b8e-3b6e-4d8e-9a51-0c1f2a3b4c5d","schemaVersion":"1.0","details":{}}`, kind: ErrUnknownEventType},
		{name: "unknown major", payload: `{"eventType":"TradeExecuted","eventId":"5f0c6b8e-3b6e-4d8e-9a51-0c1f2a3b4c5d","schemaVersion":"2.0","details":{}}`, kind: ErrUnsupportedVersion},
		{name: "version without minor", payload: `{"eventType":"TradeExecuted","eventId":"5f0c6b8e-3b6e-4d8e-9a51-0c1f2a3b4c5d","schemaVersion":"1","details":{}}`, kind: ErrUnsupportedVersion},
		{name: "garbage version", payload: `{"eventType":"TradeExecuted","eventId":"5f0c6b8e-3b6e-4d8e-9a51-0c1f2a3b4c5d","schemaVersion":"v1.x","details":{}}`, kind: ErrUnsupportedVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.payload))
			require.Error(t, err)

			var decErr *DecodeError
			require.True(t, errors.As(err, &decErr), "want *DecodeError, got %T", err)
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}
