package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/quititoday/clickstats/types"
	"github.com/redis/go-redis/v9"
)

const (
	fieldPartitionKey = "pk"
	fieldSortKey      = "sk"
	fieldDateKey      = "dateKey"
	fieldRecordSort   = "recordSort"
	fieldIndexKey     = "_idxKey"
	fieldIndexMember  = "_idxMember"

	memberSeparator = "\x00"
)

// putBody replaces a row and moves its index membership.
//
// KEYS: row, partition set, [index set]
// ARGV: sort key, index member, field/value pairs...
const putBody = `
local oldKey = redis.call('HGET', KEYS[1], '_idxKey')
if oldKey then
  redis.call('ZREM', oldKey, redis.call('HGET', KEYS[1], '_idxMember'))
end
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[1], unpack(ARGV, 3))
if #KEYS == 3 then
  redis.call('HSET', KEYS[1], '_idxKey', KEYS[3], '_idxMember', ARGV[2])
  redis.call('ZADD', KEYS[3], 0, ARGV[2])
end
redis.call('ZADD', KEYS[2], 0, ARGV[1])
return 1
`

var putScript = redis.NewScript(putBody)

// createScript runs putBody only when the row does not exist yet and returns
// 0 otherwise. Same KEYS and ARGV as putBody.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
` + putBody)

// addScript increments one counter field, creating the row when needed, and
// returns the row.
//
// KEYS: row, partition set, [index set]
// ARGV: partition key, sort key, field, delta, [index member, date key, record sort]
var addScript = redis.NewScript(`
redis.call('HSET', KEYS[1], 'pk', ARGV[1], 'sk', ARGV[2])
redis.call('HINCRBY', KEYS[1], ARGV[3], ARGV[4])
if #KEYS == 3 then
  local oldKey = redis.call('HGET', KEYS[1], '_idxKey')
  if oldKey then
    redis.call('ZREM', oldKey, redis.call('HGET', KEYS[1], '_idxMember'))
  end
  redis.call('HSET', KEYS[1], 'dateKey', ARGV[6], 'recordSort', ARGV[7], '_idxKey', KEYS[3], '_idxMember', ARGV[5])
  redis.call('ZADD', KEYS[3], 0, ARGV[5])
end
redis.call('ZADD', KEYS[2], 0, ARGV[2])
return redis.call('HGETALL', KEYS[1])
`)

// Client is a Redis-backed implementation of [types.Store].
type Client struct {
	client redis.UniversalClient
	opts   *Options
}

var _ types.Store = (*Client)(nil)

// New creates a Client using an existing go-redis client. The caller owns
// the go-redis client and closes it.
func New(client redis.UniversalClient, opts ...Option) (*Client, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil")
	}

	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	if err := options.validate(); err != nil {
		return nil, fmt.Errorf("invalid Redis options: %w", err)
	}

	return &Client{client: client, opts: options}, nil
}

// Init pings the server and loads the write scripts.
func (c *Client) Init(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", classify(err))
	}

	for _, script := range []*redis.Script{putScript, createScript, addScript} {
		if err := script.Load(ctx, c.client).Err(); err != nil {
			return fmt.Errorf("failed to load Redis script: %w", classify(err))
		}
	}

	return nil
}

// DropAllData deletes every key under the client's prefix.
//
// This method is intended for use in tests only. Do not call it in production.
func (c *Client) DropAllData(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.opts.prefix+":*", 500).Iterator()

	var batch []string

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())

		if len(batch) == 500 {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("failed to delete Redis keys: %w", classify(err))
			}

			batch = batch[:0]
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan Redis keys: %w", classify(err))
	}

	if len(batch) > 0 {
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("failed to delete Redis keys: %w", classify(err))
		}
	}

	return nil
}

// Put replaces the row under record's key.
func (c *Client) Put(ctx context.Context, record *types.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	keys, args := c.writeArgs(record)

	if err := putScript.Run(ctx, c.client, keys, args...).Err(); err != nil {
		return fmt.Errorf("failed to write record to Redis: %w", classify(err))
	}

	return nil
}

// Create writes the row only if its key is unused.
func (c *Client) Create(ctx context.Context, record *types.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	keys, args := c.writeArgs(record)

	created, err := createScript.Run(ctx, c.client, keys, args...).Int()
	if err != nil {
		return fmt.Errorf("failed to create record in Redis: %w", classify(err))
	}

	if created == 0 {
		return fmt.Errorf("%w: row %s/%s already exists", types.ErrStoreWriteConflict, record.PartitionKey, record.SortKey)
	}

	return nil
}

func (c *Client) writeArgs(record *types.Record) ([]string, []any) {
	keys := []string{c.rowKey(record.Key), c.partitionKey(record.PartitionKey)}
	args := []any{record.SortKey, ""}

	if record.DateKey != "" {
		keys = append(keys, c.indexKey(record.DateKey))
		args[1] = indexMember(record.RecordSort, record.Key)
	}

	args = append(args,
		fieldPartitionKey, record.PartitionKey,
		fieldSortKey, record.SortKey,
		types.AttrClickCount, record.ClickCount,
		types.AttrTotalClicks, record.TotalClicks,
	)

	if record.DateKey != "" {
		args = append(args, fieldDateKey, record.DateKey, fieldRecordSort, record.RecordSort)
	}

	return keys, args
}

// Get reads a row by primary key. Returns (nil, nil) if the row does not
// exist.
func (c *Client) Get(ctx context.Context, key types.Key) (*types.Record, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	fields, err := c.client.HGetAll(ctx, c.rowKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get record from Redis: %w", classify(err))
	}

	if len(fields) == 0 {
		return nil, nil //nolint:nilnil // not found is not an error
	}

	return parseFields(fields)
}

// Add increments a counter field and returns the row after the increment.
func (c *Client) Add(ctx context.Context, input *types.AddInput) (*types.Record, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	keys := []string{c.rowKey(input.Key), c.partitionKey(input.Key.PartitionKey)}
	args := []any{input.Key.PartitionKey, input.Key.SortKey, input.Field, input.Delta}

	if input.Index != nil {
		keys = append(keys, c.indexKey(input.Index.DateKey))
		args = append(args, indexMember(input.Index.RecordSort, input.Key), input.Index.DateKey, input.Index.RecordSort)
	}

	result, err := addScript.Run(ctx, c.client, keys, args...).Slice()
	if err != nil {
		return nil, fmt.Errorf("failed to increment %s in Redis: %w", input.Field, classify(err))
	}

	fields, err := pairsToMap(result)
	if err != nil {
		return nil, err
	}

	return parseFields(fields)
}

// Query returns every row matching the input.
func (c *Client) Query(ctx context.Context, input *types.QueryInput) ([]*types.Record, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	setKey := c.partitionKey(input.PartitionValue)
	bounds := baseBounds(input.SortCondition)

	if input.IndexName == types.DateIndex {
		setKey = c.indexKey(input.PartitionValue)
		bounds = indexBounds(input.SortCondition)
	}

	var (
		members []string
		err     error
	)

	if input.ScanForward {
		members, err = c.client.ZRangeByLex(ctx, setKey, bounds).Result()
	} else {
		members, err = c.client.ZRevRangeByLex(ctx, setKey, bounds).Result()
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query Redis: %w", classify(err))
	}

	rowKeys := make([]string, 0, len(members))

	for _, member := range members {
		key := types.Key{PartitionKey: input.PartitionValue, SortKey: member}
		sortValue := member

		if input.IndexName == types.DateIndex {
			var ok bool

			sortValue, key, ok = splitIndexMember(member)
			if !ok {
				return nil, fmt.Errorf("malformed index member %q in %s", member, setKey)
			}
		}

		if !input.SortCondition.Matches(sortValue) {
			continue
		}

		rowKeys = append(rowKeys, c.rowKey(key))
	}

	return c.loadRows(ctx, rowKeys)
}

func (c *Client) loadRows(ctx context.Context, rowKeys []string) ([]*types.Record, error) {
	records := []*types.Record{}

	if len(rowKeys) == 0 {
		return records, nil
	}

	pipe := c.client.Pipeline()

	cmds := make([]*redis.MapStringStringCmd, 0, len(rowKeys))
	for _, key := range rowKeys {
		cmds = append(cmds, pipe.HGetAll(ctx, key))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to load rows from Redis: %w", classify(err))
	}

	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}

		record, err := parseFields(fields)
		if err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	return records, nil
}

// rowKey length-prefixes the partition key so that any pair of strings maps
// to a distinct key.
func (c *Client) rowKey(key types.Key) string {
	return c.opts.prefix + ":row:" + strconv.Itoa(len(key.PartitionKey)) + ":" + key.PartitionKey + ":" + key.SortKey
}

func (c *Client) partitionKey(partition string) string {
	return c.opts.prefix + ":part:" + partition
}

func (c *Client) indexKey(dateKey string) string {
	return c.opts.prefix + ":idx:" + dateKey
}

func indexMember(recordSort string, key types.Key) string {
	return recordSort + memberSeparator + key.PartitionKey + memberSeparator + key.SortKey
}

func splitIndexMember(member string) (string, types.Key, bool) {
	parts := strings.SplitN(member, memberSeparator, 3)
	if len(parts) != 3 {
		return "", types.Key{}, false
	}

	return parts[0], types.Key{PartitionKey: parts[1], SortKey: parts[2]}, true
}

// baseBounds converts a sort condition into ZRANGEBYLEX bounds over sort
// keys. Prefix conditions are narrowed afterwards with Matches.
func baseBounds(sc *types.SortCondition) *redis.ZRangeBy {
	if sc == nil {
		return &redis.ZRangeBy{Min: "-", Max: "+"}
	}

	switch sc.Operator {
	case types.SortEqual:
		return &redis.ZRangeBy{Min: "[" + sc.Value, Max: "[" + sc.Value}
	case types.SortBetween:
		return &redis.ZRangeBy{Min: "[" + sc.Value, Max: "[" + sc.Upper}
	default:
		return &redis.ZRangeBy{Min: "[" + sc.Value, Max: "+"}
	}
}

// indexBounds converts a sort condition on recordSort into ZRANGEBYLEX
// bounds over index members, which carry the key after a NUL byte.
func indexBounds(sc *types.SortCondition) *redis.ZRangeBy {
	if sc == nil {
		return &redis.ZRangeBy{Min: "-", Max: "+"}
	}

	switch sc.Operator {
	case types.SortEqual:
		return &redis.ZRangeBy{Min: "[" + sc.Value + memberSeparator, Max: "(" + sc.Value + "\x01"}
	case types.SortBetween:
		return &redis.ZRangeBy{Min: "[" + sc.Value, Max: "(" + sc.Upper + "\x01"}
	default:
		return &redis.ZRangeBy{Min: "[" + sc.Value, Max: "+"}
	}
}

func pairsToMap(values []any) (map[string]string, error) {
	if len(values)%2 != 0 {
		return nil, fmt.Errorf("unexpected odd-length hash reply of %d values", len(values))
	}

	fields := make(map[string]string, len(values)/2)

	for i := 0; i < len(values); i += 2 {
		name, ok1 := values[i].(string)
		value, ok2 := values[i+1].(string)

		if !ok1 || !ok2 {
			return nil, fmt.Errorf("unexpected hash reply element types %T and %T", values[i], values[i+1])
		}

		fields[name] = value
	}

	return fields, nil
}

func parseFields(fields map[string]string) (*types.Record, error) {
	record := &types.Record{
		Key: types.Key{
			PartitionKey: fields[fieldPartitionKey],
			SortKey:      fields[fieldSortKey],
		},
		IndexKeys: types.IndexKeys{
			DateKey:    fields[fieldDateKey],
			RecordSort: fields[fieldRecordSort],
		},
	}

	var err error

	if record.ClickCount, err = parseCounter(fields[types.AttrClickCount]); err != nil {
		return nil, fmt.Errorf("invalid %s on %s/%s: %w", types.AttrClickCount, record.PartitionKey, record.SortKey, err)
	}

	if record.TotalClicks, err = parseCounter(fields[types.AttrTotalClicks]); err != nil {
		return nil, fmt.Errorf("invalid %s on %s/%s: %w", types.AttrTotalClicks, record.PartitionKey, record.SortKey, err)
	}

	return record, nil
}

func parseCounter(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}

	return strconv.ParseInt(s, 10, 64)
}
