// Package producer turns executed trades into TradeExecuted events and
// publishes them to the partitioned stream.
//
// Each call validates the trade, encodes one event, routes it by ticker and
// sends it in a batch owned by that call. A Producer is safe for concurrent
// use and never retries; callers decide whether a failed publish is retried.
package producer
