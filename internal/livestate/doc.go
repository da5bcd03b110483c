// Package livestate keeps the client-side view of the download service in
// sync with the server.
//
// A Reconciler merges two kinds of input: full snapshots fetched on demand
// (Refresh, RefreshSubscriptions) and sparse notifications from the push
// channel (Watch). Snapshots replace a whole collection; progress patches
// touch one job; log lines go to a bounded ring. Every mutation is folded
// through the pure Reduce function so the transition rules can be tested
// without goroutines or a network.
package livestate
