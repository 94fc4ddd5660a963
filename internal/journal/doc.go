// Package journal records received console events in PostgreSQL.
//
// Envelopes are queued without blocking the dispatch path and written in
// batches with pgx.Batch, either when a batch fills or on the flush
// interval. The journal only records what arrived; it never replays events
// missed while the subscription was down.
package journal
