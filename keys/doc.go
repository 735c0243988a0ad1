// Package keys derives the physical key attributes of the click table from
// semantic identifiers. Every function is pure.
//
// # Layout
//
// Event rows and aggregate rows share one table:
//
//   - Click event:  <subjectId> / <timestamp>, indexed as DATE#<date> / CLICK#<timestamp>#<subjectId>
//   - Total:        STAT#TOTAL / METADATA, not indexed
//   - Daily stat:   STAT#DAILY / <date>, indexed as DATE#<date> / STAT#DAILY
//   - Monthly stat: STAT#MONTHLY / <month>, indexed as MONTH#<month> / STAT#MONTHLY
//
// Timestamps are ISO-8601 in UTC with millisecond precision
// (2025-10-02T08:15:30.123Z), so lexicographic order equals chronological
// order. Partition keys starting with STAT# are reserved for aggregates and
// are rejected as subject ids.
package keys
