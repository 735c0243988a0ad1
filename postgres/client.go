package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quititoday/clickstats/types"
)

var errNotConnected = errors.New("client is not connected")

const recordColumns = "subject_id, record_key, date_key, record_sort, click_count, total_clicks"

// counterColumns maps counter attributes to their columns. Only these two
// columns are ever interpolated into SQL.
var counterColumns = map[string]string{
	types.AttrClickCount:  "click_count",
	types.AttrTotalClicks: "total_clicks",
}

// pool defines the interface for database operations.
// This interface is satisfied by *pgxpool.Pool and can be mocked for testing.
type pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
	Ping(ctx context.Context) error
}

// Client is a PostgreSQL-backed implementation of [types.Store].
type Client struct {
	conn pool
	opts *options
}

var _ types.Store = (*Client)(nil)

func New(opts ...Option) *Client {
	o := newOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &Client{opts: o}
}

func (c *Client) Connect(ctx context.Context) error {
	// Close existing connection if any to prevent leaks
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	if err := c.opts.validate(); err != nil {
		return fmt.Errorf("invalid Postgres db configuration: %w", err)
	}

	config, err := pgxpool.ParseConfig(c.opts.connectionString())
	if err != nil {
		return fmt.Errorf("failed to parse Postgres db connection string: %w", err)
	}

	if c.opts.poolMaxConnections != nil {
		config.MaxConns = *c.opts.poolMaxConnections
	}

	if c.opts.poolMinConnections != nil {
		config.MinConns = *c.opts.poolMinConnections
	}

	if c.opts.poolMaxConnectionLifetime != nil {
		config.MaxConnLifetime = *c.opts.poolMaxConnectionLifetime
	}

	if c.opts.poolMaxConnectionIdleTime != nil {
		config.MaxConnIdleTime = *c.opts.poolMaxConnectionIdleTime
	}

	if c.opts.poolHealthCheckPeriod != nil {
		config.HealthCheckPeriod = *c.opts.poolHealthCheckPeriod
	}

	conn, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create new Postgres connection pool: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return fmt.Errorf("failed to ping Postgres db: %w", classify(err))
	}

	c.conn = conn

	return nil
}

func (c *Client) Close(_ context.Context) error {
	if c.conn == nil {
		return nil
	}

	c.conn.Close()

	c.conn = nil

	return nil
}

// Init creates the click table and its date index if they do not exist, then
// verifies the column layout unless skipSchemaValidation is true.
func (c *Client) Init(ctx context.Context, skipSchemaValidation bool) error {
	if c.conn == nil {
		return errNotConnected
	}

	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin init transaction: %w", err)
	}

	defer func() { _ = tx.Rollback(ctx) }() // No-op if committed

	for _, sql := range c.opts.createStatements() {
		if _, err := tx.Exec(ctx, sql); err != nil {
			return fmt.Errorf("failed to execute create statement: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit init transaction: %w", err)
	}

	if skipSchemaValidation {
		return nil
	}

	query := "SELECT table_name, column_name, data_type, is_nullable FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1 ORDER BY ordinal_position"

	rows, err := c.conn.Query(ctx, query, c.opts.table)
	if err != nil {
		return fmt.Errorf("failed to query information schema: %w", err)
	}

	defer rows.Close()

	infoRows := map[string]*dbRow{}

	for rows.Next() {
		var table, column string
		infoRow := &dbRow{}

		if err := rows.Scan(&table, &column, &infoRow.DataType, &infoRow.IsNullable); err != nil {
			return fmt.Errorf("failed to scan row from information schema: %w", err)
		}

		infoRows[table+"."+column] = infoRow
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating over rows from information schema: %w", err)
	}

	if err := c.opts.verifySchema(infoRows); err != nil {
		return fmt.Errorf("failed to verify database schema: %w", err)
	}

	return nil
}

// DropAllData removes every row from the click table. The table itself is
// kept.
//
// This method is intended for use in tests only. Do not call it in production.
func (c *Client) DropAllData(ctx context.Context) error {
	if c.conn == nil {
		return errNotConnected
	}

	if _, err := c.conn.Exec(ctx, c.opts.truncateStatement()); err != nil {
		return fmt.Errorf("failed to truncate click table: %w", classify(err))
	}

	return nil
}

// Put inserts a row, replacing every column of an existing row with the same
// key.
func (c *Client) Put(ctx context.Context, record *types.Record) error {
	if c.conn == nil {
		return errNotConnected
	}

	if err := record.Validate(); err != nil {
		return err
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (subject_id, record_key) DO UPDATE SET date_key = EXCLUDED.date_key, record_sort = EXCLUDED.record_sort, click_count = EXCLUDED.click_count, total_clicks = EXCLUDED.total_clicks", c.opts.table, recordColumns)

	if _, err := c.conn.Exec(ctx, sql,
		record.PartitionKey,
		record.SortKey,
		nullable(record.DateKey),
		nullable(record.RecordSort),
		record.ClickCount,
		record.TotalClicks,
	); err != nil {
		return fmt.Errorf("failed to save record to Postgres db: %w", classify(err))
	}

	return nil
}

// Create inserts a row and reports a write conflict when a row with the same
// key already exists. The existing row is left as it is.
func (c *Client) Create(ctx context.Context, record *types.Record) error {
	if c.conn == nil {
		return errNotConnected
	}

	if err := record.Validate(); err != nil {
		return err
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (subject_id, record_key) DO NOTHING", c.opts.table, recordColumns)

	tag, err := c.conn.Exec(ctx, sql,
		record.PartitionKey,
		record.SortKey,
		nullable(record.DateKey),
		nullable(record.RecordSort),
		record.ClickCount,
		record.TotalClicks,
	)
	if err != nil {
		return fmt.Errorf("failed to create record in Postgres db: %w", classify(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: row %s/%s already exists", types.ErrStoreWriteConflict, record.PartitionKey, record.SortKey)
	}

	return nil
}

// Get reads a row by primary key. Returns (nil, nil) if the row does not
// exist.
func (c *Client) Get(ctx context.Context, key types.Key) (*types.Record, error) {
	if c.conn == nil {
		return nil, errNotConnected
	}

	if err := key.Validate(); err != nil {
		return nil, err
	}

	sql := fmt.Sprintf("SELECT %s FROM %s WHERE subject_id = $1 AND record_key = $2", recordColumns, c.opts.table)

	record, err := scanRecord(c.conn.QueryRow(ctx, sql, key.PartitionKey, key.SortKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil //nolint:nilnil // not found is not an error
		}

		return nil, fmt.Errorf("failed to get record from Postgres db: %w", classify(err))
	}

	return record, nil
}

// Add increments a counter column with a single upsert and returns the row
// after the increment. Index columns are set when input.Index is non-nil and
// left untouched otherwise.
func (c *Client) Add(ctx context.Context, input *types.AddInput) (*types.Record, error) {
	if c.conn == nil {
		return nil, errNotConnected
	}

	if err := input.Validate(); err != nil {
		return nil, err
	}

	sql, args := c.addSQL(input)

	record, err := scanRecord(c.conn.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, fmt.Errorf("failed to increment %s in Postgres db: %w", input.Field, classify(err))
	}

	return record, nil
}

// Query returns every row matching the input. Returns an empty slice if
// nothing matches.
func (c *Client) Query(ctx context.Context, input *types.QueryInput) ([]*types.Record, error) {
	if c.conn == nil {
		return nil, errNotConnected
	}

	if err := input.Validate(); err != nil {
		return nil, err
	}

	sql, args := c.querySQL(input)

	rows, err := c.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query Postgres db: %w", classify(err))
	}

	defer rows.Close()

	records := []*types.Record{}

	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record row: %w", err)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over record rows: %w", classify(err))
	}

	return records, nil
}

func (c *Client) addSQL(input *types.AddInput) (string, []any) {
	column := counterColumns[input.Field]

	var dateKey, recordSort *string

	if input.Index != nil {
		dateKey = nullable(input.Index.DateKey)
		recordSort = nullable(input.Index.RecordSort)
	}

	sql := fmt.Sprintf(
		"INSERT INTO %[1]s (subject_id, record_key, date_key, record_sort, %[2]s) VALUES ($1, $2, $3, $4, $5) "+
			"ON CONFLICT (subject_id, record_key) DO UPDATE SET %[2]s = %[1]s.%[2]s + EXCLUDED.%[2]s, "+
			"date_key = COALESCE(EXCLUDED.date_key, %[1]s.date_key), record_sort = COALESCE(EXCLUDED.record_sort, %[1]s.record_sort) "+
			"RETURNING %[3]s",
		c.opts.table, column, recordColumns)

	return sql, []any{input.Key.PartitionKey, input.Key.SortKey, dateKey, recordSort, input.Delta}
}

func (c *Client) querySQL(input *types.QueryInput) (string, []any) {
	pkColumn, skColumn := "subject_id", "record_key"
	orderBy := "record_key ASC"

	if !input.ScanForward {
		orderBy = "record_key DESC"
	}

	if input.IndexName == types.DateIndex {
		pkColumn, skColumn = "date_key", "record_sort"
		orderBy = "record_sort ASC, subject_id ASC, record_key ASC"

		if !input.ScanForward {
			orderBy = "record_sort DESC, subject_id DESC, record_key DESC"
		}
	}

	where := pkColumn + " = $1"
	args := []any{input.PartitionValue}

	if sc := input.SortCondition; sc != nil {
		switch sc.Operator {
		case types.SortEqual:
			where += fmt.Sprintf(" AND %s = $2", skColumn)
			args = append(args, sc.Value)
		case types.SortBetween:
			where += fmt.Sprintf(" AND %s BETWEEN $2 AND $3", skColumn)
			args = append(args, sc.Value, sc.Upper)
		case types.SortBeginsWith:
			where += fmt.Sprintf(" AND starts_with(%s, $2)", skColumn)
			args = append(args, sc.Value)
		}
	}

	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s", recordColumns, c.opts.table, where, orderBy)

	return sql, args
}

func scanRecord(row pgx.Row) (*types.Record, error) {
	var (
		record              types.Record
		dateKey, recordSort *string
	)

	if err := row.Scan(
		&record.PartitionKey,
		&record.SortKey,
		&dateKey,
		&recordSort,
		&record.ClickCount,
		&record.TotalClicks,
	); err != nil {
		return nil, err
	}

	if dateKey != nil {
		record.DateKey = *dateKey
	}

	if recordSort != nil {
		record.RecordSort = *recordSort
	}

	return &record, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
