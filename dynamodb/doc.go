// Package dynamodb provides a DynamoDB-backed implementation of the
// [github.com/quititoday/clickstats/types.Store] interface.
//
// # Overview
//
// The package uses a single-table design. Every row is keyed by a subject
// (partition key, "userId") and a record key (sort key, "createDateTime").
// Click events use the subject's user id and the click timestamp; aggregate
// rows use a STAT# partition:
//
//   - Click events:   <userId> / <timestamp>
//   - All-time total: STAT#TOTAL / METADATA
//   - Daily rollups:  STAT#DAILY / <yyyy-mm-dd>
//   - Monthly rollups: STAT#MONTHLY / <yyyy-mm>
//
// One Global Secondary Index, [types.DateIndex], is keyed by "dateKey" and
// "recordSort" and projects all attributes. It serves the by-date listing and
// the rollup lookups.
//
// Counters are incremented with a single UpdateItem using an ADD expression,
// so concurrent increments never lose updates.
//
// # Getting Started
//
// Create a [Client] with [New], supplying an AWS config, the table name, and
// any [Option] values you need:
//
//	client := dynamodb.New(
//	    &awsCfg,
//	    tableName,
//	    dynamodb.WithEndpoint("http://localhost:8000"),
//	)
//
//	if err := client.Connect(); err != nil {
//	    return err
//	}
//
// By default, [Client.Connect] creates an AWS SDK v2 DynamoDB client from the
// supplied [aws.Config]. Supply [WithAPI] to inject a custom or mock
// implementation.
//
// [Client.CreateTable] creates the table and its index for local development.
// [Client.Init] verifies that an existing table has the expected layout.
//
// # Errors
//
// Driver errors are classified into [types.ErrStoreUnavailable] (throttling,
// server errors, network failures, exhausted retries) and
// [types.ErrStoreWriteConflict] (failed conditions, transaction conflicts).
// The underlying error stays in the chain.
//
// # Concurrency
//
// [Client] is safe for concurrent use by multiple goroutines.
package dynamodb
