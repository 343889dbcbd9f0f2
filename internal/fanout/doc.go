// Package fanout broadcasts consumed trade events to WebSocket clients.
//
// A Hub is both an http.Handler that upgrades connections and a
// consumer.Handler that receives events. Each client has a bounded outbound
// queue drained by its own writer goroutine. Clients whose queue overflows
// are disconnected.
//
// Clients may subscribe to a single ticker with the ticker query parameter:
//
//	ws://host:8080/trades?ticker=AAPL
package fanout
