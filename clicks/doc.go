// Package clicks is the access pattern library of the click statistics
// service. It records click events and maintains total, daily, and monthly
// counters on top of any [types.Store].
//
// # Consistency
//
// [Service.RecordClick] issues two independent store calls: the create-only
// event write and the increment of the all-time total. A failure between them leaves an
// event without a matching increment. Counters are only ever changed with the
// store's atomic add, so concurrent callers never lose increments.
//
// # Timeouts
//
// Every store call runs under the sooner of the caller's deadline and the
// timeout set with [WithStoreTimeout] (default 5 seconds). A call that runs
// out of time fails with [types.ErrStoreUnavailable].
//
// # Event keys
//
// An event is keyed by subject and millisecond timestamp, and an existing
// event row is never overwritten. A Service hands out strictly increasing
// timestamps, so clicks arriving within one millisecond are spread over the
// following milliseconds. When another writer already holds the key, the
// click moves to the next millisecond, up to [MaxCreateAttempts] times.
//
// # Concurrency
//
// [Service] is safe for concurrent use.
package clicks
