// Package redis provides a Redis-backed implementation of the
// [github.com/quititoday/clickstats/types.Store] interface, built on
// go-redis v9.
//
// # Layout
//
// Every row is a hash. Each partition keeps a sorted set of its sort keys,
// and each DateIndex partition value keeps a sorted set of
// "<recordSort>\x00<partitionKey>\x00<sortKey>" members. All sorted set
// members share score 0, so ordering and range conditions use
// lexicographical commands (ZRANGEBYLEX), matching the byte ordering of the
// DynamoDB backend.
//
// Writes run as Lua scripts, so a row and its set memberships change
// together, and [Client.Add] increments with HINCRBY inside the same script.
// The scripts touch keys that are derived at run time, so the client is
// meant for a single Redis node, not a cluster.
package redis
