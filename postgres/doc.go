// Package postgres provides a PostgreSQL-backed implementation of the
// [github.com/quititoday/clickstats/types.Store] interface.
//
// It uses pgx v5 with connection pooling (pgxpool). All rows live in one
// table keyed by (subject_id, record_key), mirroring the DynamoDB layout,
// with a partial index on (date_key, record_sort) standing in for the
// DateIndex secondary index.
//
// # Usage
//
// Create a client using [New] with functional options, call [Client.Connect]
// to establish the connection pool, and then [Client.Init] to create the
// database schema:
//
//	client := postgres.New(
//	    postgres.WithHost("localhost"),
//	    postgres.WithPort(5432),
//	    postgres.WithUser("postgres"),
//	    postgres.WithPassword("secret"),
//	    postgres.WithDatabase("clickstats"),
//	)
//
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close(ctx)
//
//	if err := client.Init(ctx, false); err != nil {
//	    log.Fatal(err)
//	}
//
// # Counters
//
// [Client.Add] is a single INSERT ... ON CONFLICT DO UPDATE that adds to the
// counter column and returns the updated row, so concurrent increments are
// serialised by the row lock.
//
// # Schema Validation
//
// When [Client.Init] is called with skipSchemaValidation set to false, it
// queries information_schema.columns and verifies that every expected column
// exists with the correct data type and nullability.
//
// # SSL
//
// SSL behaviour is controlled by [WithSSLMode] using the [SSLMode] constants.
// The default is [SSLModePrefer].
package postgres
