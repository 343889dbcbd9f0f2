package event

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNewTradeEvent(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.FixedZone("EST", -5*3600))
	tradeTime := time.Date(2024, 3, 1, 14, 59, 59, 0, time.UTC)

	e := NewTradeEvent(TradeDetails{
		TradeID:   uuid.New(),
		Ticker:    "LLOY.L",
		Price:     decimal.RequireFromString("0.5"),
		Shares:    decimal.RequireFromString("3"),
		TradeTime: tradeTime,
		BrokerID:  "BRK",
	}, "corr-1", now)

	assert.Equal(t, TypeTradeExecuted, e.EventType)
	assert.Equal(t, CurrentSchemaVersion, e.SchemaVersion)
	assert.NotEqual(t, uuid.Nil, e.EventID)
	assert.Equal(t, time.UTC, e.EventTimestamp.Location())
	assert.True(t, e.EventTimestamp.Equal(now))
	assert.True(t, e.Details.TradeTime.Equal(tradeTime), "trade time is business time, not publish time")
	assert.Equal(t, "corr-1", e.Metadata.CorrelationID)
	assert.Equal(t, e.Details.Ticker, e.Metadata.PartitionKey)
}

func TestNewTradeEvent_UniqueIDs(t *testing.T) {
	const n = 10000
	seen := make(map[uuid.UUID]struct{}, n)
	now := time.Now()

	for i := 0; i < n; i++ {
		e := NewTradeEvent(TradeDetails{Ticker: "T"}, "", now)
		seen[e.EventID] = struct{}{}
	}

	assert.Len(t, seen, n)
}

func TestTradeEvent_Equal(t *testing.T) {
	base := NewTradeEvent(TradeDetails{
		TradeID: uuid.New(),
		Ticker:  "T",
		Price:   decimal.RequireFromString("1.50"),
		Shares:  decimal.RequireFromString("2"),
	}, "c", time.Now())

	same := base
	same.Details.Price = decimal.RequireFromString("1.5")
	assert.True(t, base.Equal(same), "decimals compare by value")

	other := base
	other.Details.BrokerID = "x"
	assert.False(t, base.Equal(other))
}
