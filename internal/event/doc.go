// Package event defines the TradeExecuted envelope and its wire codec.
//
// The envelope is the only contract shared by producers and consumers:
//
//	{
//	  "eventType":      "TradeExecuted",
//	  "eventId":        "<uuid>",
//	  "eventTimestamp": "<RFC 3339, UTC>",
//	  "schemaVersion":  "1.0",
//	  "details":  {"tradeId", "ticker", "price", "shares", "tradeTime", "brokerId"},
//	  "metadata": {"correlationId", "partitionKey"}
//	}
//
// Prices and share counts are fixed-point decimals encoded as JSON strings.
// Decoders ignore unknown fields and reject unknown schema major versions.
package event
