package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/quititoday/clickstats/types"
)

const (
	// PartitionKey is the DynamoDB partition key attribute name.
	PartitionKey = "userId"

	// SortKey is the DynamoDB sort key attribute name.
	SortKey = "createDateTime"

	// DateKeyAttr is the partition key of the [types.DateIndex] index.
	DateKeyAttr = "dateKey"

	// RecordSortAttr is the sort key of the [types.DateIndex] index.
	RecordSortAttr = "recordSort"

	// batchLimit is the maximum number of requests in one BatchWriteItem call.
	batchLimit = 25

	// maxBackoff is the maximum backoff duration for retry loops.
	maxBackoff = 2 * time.Second
)

// Client is a DynamoDB-backed implementation of the [types.Store] interface.
//
// Use [New] to create a Client, [Client.Connect] to initialize the underlying
// DynamoDB connection, and [Client.Init] to validate the table schema.
type Client struct {
	client    API
	tableName string
	awsCfg    *aws.Config
	opts      *Options
}

var _ types.Store = (*Client)(nil)

// New creates a new Client configured with the given AWS config, table name,
// and optional options. Call [Client.Connect] on the returned client before use.
func New(awsCfg *aws.Config, tableName string, opts ...Option) *Client {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	return &Client{
		awsCfg:    awsCfg,
		tableName: tableName,
		opts:      options,
	}
}

// Connect initializes the DynamoDB client from the AWS config provided to [New].
// It must be called before any other Client methods, and must complete before
// the Client is used concurrently.
func (c *Client) Connect() error {
	if c.tableName == "" {
		return errors.New("table name cannot be empty")
	}

	if err := c.opts.validate(); err != nil {
		return fmt.Errorf("invalid DynamoDB options: %w", err)
	}

	if c.opts.dynamoDBAPI != nil {
		c.client = c.opts.dynamoDBAPI
		return nil
	}

	if c.awsCfg == nil {
		return errors.New("AWS config cannot be nil")
	}

	c.client = dynamodb.NewFromConfig(*c.awsCfg, func(o *dynamodb.Options) {
		o.RetryMaxAttempts = c.opts.maxAttempts

		if c.opts.endpoint != "" {
			o.BaseEndpoint = aws.String(c.opts.endpoint)
		}
	})

	return nil
}

// Init validates the DynamoDB table schema. It checks that the table exists
// and is active, has the partition key userId and the sort key
// createDateTime, and that the [types.DateIndex] index is keyed by dateKey
// and recordSort with all attributes projected.
//
// Pass skipSchemaValidation true to skip all checks and return immediately,
// which is useful when schema validation is managed separately.
func (c *Client) Init(ctx context.Context, skipSchemaValidation bool) error {
	if skipSchemaValidation {
		return nil
	}

	input := &dynamodb.DescribeTableInput{
		TableName: aws.String(c.tableName),
	}

	response, err := c.client.DescribeTable(ctx, input)
	if err != nil {
		var notFoundError *dynamodbtypes.ResourceNotFoundException
		if errors.As(err, &notFoundError) {
			return fmt.Errorf("table %s does not exist", c.tableName)
		}
		return fmt.Errorf("failed to describe table %s: %w", c.tableName, classify(err))
	}

	if response.Table == nil {
		return fmt.Errorf("table %s has no description", c.tableName)
	}

	if len(response.Table.KeySchema) < 1 {
		return fmt.Errorf("table %s has no key schema", c.tableName)
	}

	if aws.ToString(response.Table.KeySchema[0].AttributeName) != PartitionKey {
		return fmt.Errorf("table %s has partition key %s, expected %s", c.tableName, aws.ToString(response.Table.KeySchema[0].AttributeName), PartitionKey)
	}

	if len(response.Table.KeySchema) < 2 {
		return fmt.Errorf("table %s has a simple primary key, expected composite", c.tableName)
	}

	if aws.ToString(response.Table.KeySchema[1].AttributeName) != SortKey {
		return fmt.Errorf("table %s has sort key %s, expected %s", c.tableName, aws.ToString(response.Table.KeySchema[1].AttributeName), SortKey)
	}

	if response.Table.TableStatus != dynamodbtypes.TableStatusActive {
		return fmt.Errorf("table %s is not active (status: %s)", c.tableName, response.Table.TableStatus)
	}

	return verifySecondaryIndex(response.Table, types.DateIndex, DateKeyAttr, RecordSortAttr)
}

// CreateTable creates the table with its [types.DateIndex] index, using
// on-demand billing, and waits until it is active. It returns nil if the
// table already exists.
//
// This method is intended for local development against DynamoDB Local.
// Production tables are expected to be provisioned separately.
func (c *Client) CreateTable(ctx context.Context) error {
	input := &dynamodb.CreateTableInput{
		TableName:   aws.String(c.tableName),
		BillingMode: dynamodbtypes.BillingModePayPerRequest,
		AttributeDefinitions: []dynamodbtypes.AttributeDefinition{
			{AttributeName: aws.String(PartitionKey), AttributeType: dynamodbtypes.ScalarAttributeTypeS},
			{AttributeName: aws.String(SortKey), AttributeType: dynamodbtypes.ScalarAttributeTypeS},
			{AttributeName: aws.String(DateKeyAttr), AttributeType: dynamodbtypes.ScalarAttributeTypeS},
			{AttributeName: aws.String(RecordSortAttr), AttributeType: dynamodbtypes.ScalarAttributeTypeS},
		},
		KeySchema: []dynamodbtypes.KeySchemaElement{
			{AttributeName: aws.String(PartitionKey), KeyType: dynamodbtypes.KeyTypeHash},
			{AttributeName: aws.String(SortKey), KeyType: dynamodbtypes.KeyTypeRange},
		},
		GlobalSecondaryIndexes: []dynamodbtypes.GlobalSecondaryIndex{
			{
				IndexName: aws.String(types.DateIndex),
				KeySchema: []dynamodbtypes.KeySchemaElement{
					{AttributeName: aws.String(DateKeyAttr), KeyType: dynamodbtypes.KeyTypeHash},
					{AttributeName: aws.String(RecordSortAttr), KeyType: dynamodbtypes.KeyTypeRange},
				},
				Projection: &dynamodbtypes.Projection{ProjectionType: dynamodbtypes.ProjectionTypeAll},
			},
		},
	}

	if _, err := c.client.CreateTable(ctx, input); err != nil {
		var inUseError *dynamodbtypes.ResourceInUseException
		if errors.As(err, &inUseError) {
			return nil
		}
		return fmt.Errorf("failed to create DynamoDB table %s: %w", c.tableName, classify(err))
	}

	waiter := dynamodb.NewTableExistsWaiter(c.client)

	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(c.tableName)}, c.opts.tableWait); err != nil {
		return fmt.Errorf("failed waiting for DynamoDB table %s: %w", c.tableName, err)
	}

	return nil
}

// DropAllData deletes every item from the DynamoDB table. It scans the table
// in pages and removes each page using BatchWriteItem with exponential backoff
// for unprocessed items.
//
// This method is intended for use in tests only. Do not call it in production.
func (c *Client) DropAllData(ctx context.Context) error {
	input := &dynamodb.ScanInput{
		TableName:            aws.String(c.tableName),
		ProjectionExpression: aws.String("#pk, #sk"),
		ExpressionAttributeNames: map[string]string{
			"#pk": PartitionKey,
			"#sk": SortKey,
		},
		ConsistentRead: aws.Bool(true),
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		output, err := c.client.Scan(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to scan DynamoDB table %s: %w", c.tableName, classify(err))
		}

		for i := 0; i < len(output.Items); i += batchLimit {
			end := min(i+batchLimit, len(output.Items))

			requests := make([]dynamodbtypes.WriteRequest, 0, end-i)

			for _, item := range output.Items[i:end] {
				requests = append(requests, dynamodbtypes.WriteRequest{
					DeleteRequest: &dynamodbtypes.DeleteRequest{
						Key: map[string]dynamodbtypes.AttributeValue{
							PartitionKey: item[PartitionKey],
							SortKey:      item[SortKey],
						},
					},
				})
			}

			if err := c.batchWrite(ctx, requests); err != nil {
				return err
			}
		}

		if output.LastEvaluatedKey == nil {
			break
		}

		input.ExclusiveStartKey = output.LastEvaluatedKey
	}

	return nil
}

// Put writes a row, replacing any row with the same key. Index attributes are
// only written when set, so rows without them stay out of the index.
func (c *Client) Put(ctx context.Context, record *types.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	input := &dynamodb.PutItemInput{
		TableName: &c.tableName,
		Item:      createItem(record),
	}

	if _, err := c.client.PutItem(ctx, input); err != nil {
		return fmt.Errorf("failed to write record to DynamoDB table %s: %w", c.tableName, classify(err))
	}

	return nil
}

// Create writes a row guarded by attribute_not_exists on the partition key,
// so an existing row with the same key fails the condition and is kept.
func (c *Client) Create(ctx context.Context, record *types.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	input := &dynamodb.PutItemInput{
		TableName:                &c.tableName,
		Item:                     createItem(record),
		ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{"#pk": PartitionKey},
	}

	if _, err := c.client.PutItem(ctx, input); err != nil {
		return fmt.Errorf("failed to create record in DynamoDB table %s: %w", c.tableName, classify(err))
	}

	return nil
}

// Get reads a row by primary key. Returns (nil, nil) if the row does not
// exist.
func (c *Client) Get(ctx context.Context, key types.Key) (*types.Record, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	input := &dynamodb.GetItemInput{
		TableName:      &c.tableName,
		Key:            keyAttributes(key),
		ConsistentRead: aws.Bool(c.opts.consistentReads),
	}

	output, err := c.client.GetItem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to get record from DynamoDB table %s: %w", c.tableName, classify(err))
	}

	if len(output.Item) == 0 {
		return nil, nil //nolint:nilnil // not found is not an error
	}

	return parseItem(output.Item)
}

// Add increments a counter attribute with an ADD update expression and
// returns the row as it is after the update. When input.Index is set, the
// index attributes are written in the same request.
func (c *Client) Add(ctx context.Context, input *types.AddInput) (*types.Record, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	expression := "ADD #field :inc"

	names := map[string]string{"#field": input.Field}
	values := map[string]dynamodbtypes.AttributeValue{
		":inc": &dynamodbtypes.AttributeValueMemberN{Value: strconv.FormatInt(input.Delta, 10)},
	}

	if input.Index != nil {
		expression += " SET #dk = :dk, #rs = :rs"
		names["#dk"] = DateKeyAttr
		names["#rs"] = RecordSortAttr
		values[":dk"] = &dynamodbtypes.AttributeValueMemberS{Value: input.Index.DateKey}
		values[":rs"] = &dynamodbtypes.AttributeValueMemberS{Value: input.Index.RecordSort}
	}

	updateInput := &dynamodb.UpdateItemInput{
		TableName:                 &c.tableName,
		Key:                       keyAttributes(input.Key),
		UpdateExpression:          aws.String(expression),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ReturnValues:              dynamodbtypes.ReturnValueAllNew,
	}

	output, err := c.client.UpdateItem(ctx, updateInput)
	if err != nil {
		return nil, fmt.Errorf("failed to update %s in DynamoDB table %s: %w", input.Field, c.tableName, classify(err))
	}

	if len(output.Attributes) == 0 {
		return nil, fmt.Errorf("update of %s in DynamoDB table %s returned no attributes", input.Field, c.tableName)
	}

	return parseItem(output.Attributes)
}

// Query returns every row matching the input, following LastEvaluatedKey
// until the result is exhausted. Returns an empty slice if nothing matches.
func (c *Client) Query(ctx context.Context, input *types.QueryInput) ([]*types.Record, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	queryInput := buildQuery(c.tableName, input, c.opts.consistentReads)

	records := []*types.Record{}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		output, err := c.client.Query(ctx, queryInput)
		if err != nil {
			return nil, fmt.Errorf("failed to query DynamoDB table %s: %w", c.tableName, classify(err))
		}

		for _, item := range output.Items {
			record, err := parseItem(item)
			if err != nil {
				return nil, err
			}

			records = append(records, record)
		}

		if output.LastEvaluatedKey == nil {
			break
		}

		queryInput.ExclusiveStartKey = output.LastEvaluatedKey
	}

	return records, nil
}

// batchWrite sends requests with BatchWriteItem, retrying unprocessed items
// with exponential backoff.
func (c *Client) batchWrite(ctx context.Context, requests []dynamodbtypes.WriteRequest) error {
	input := &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]dynamodbtypes.WriteRequest{
			c.tableName: requests,
		},
	}

	const maxRetries = 5
	backoff := 50 * time.Millisecond

	for attempt := 0; attempt <= maxRetries; attempt++ {
		result, err := c.client.BatchWriteItem(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to batch write items to DynamoDB table %s: %w", c.tableName, classify(err))
		}

		if len(result.UnprocessedItems) == 0 {
			return nil
		}

		if attempt == maxRetries {
			return fmt.Errorf("%w: %d unprocessed items after %d retries",
				types.ErrStoreUnavailable, len(result.UnprocessedItems[c.tableName]), maxRetries)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, maxBackoff)
		input.RequestItems = result.UnprocessedItems
	}

	return nil
}

func buildQuery(tableName string, input *types.QueryInput, consistent bool) *dynamodb.QueryInput {
	pkAttr, skAttr := PartitionKey, SortKey

	if input.IndexName == types.DateIndex {
		pkAttr, skAttr = DateKeyAttr, RecordSortAttr
	}

	names := map[string]string{"#pk": pkAttr}
	values := map[string]dynamodbtypes.AttributeValue{
		":pk": &dynamodbtypes.AttributeValueMemberS{Value: input.PartitionValue},
	}

	condition := "#pk = :pk"

	if sc := input.SortCondition; sc != nil {
		names["#sk"] = skAttr
		values[":sk"] = &dynamodbtypes.AttributeValueMemberS{Value: sc.Value}

		switch sc.Operator {
		case types.SortEqual:
			condition += " AND #sk = :sk"
		case types.SortBetween:
			condition += " AND #sk BETWEEN :sk AND :upper"
			values[":upper"] = &dynamodbtypes.AttributeValueMemberS{Value: sc.Upper}
		case types.SortBeginsWith:
			condition += " AND begins_with(#sk, :sk)"
		}
	}

	queryInput := &dynamodb.QueryInput{
		TableName:                 aws.String(tableName),
		KeyConditionExpression:    aws.String(condition),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ScanIndexForward:          aws.Bool(input.ScanForward),
	}

	// Global secondary indexes only support eventually consistent reads.
	if input.IndexName != "" {
		queryInput.IndexName = aws.String(input.IndexName)
	} else if consistent {
		queryInput.ConsistentRead = aws.Bool(true)
	}

	return queryInput
}

func keyAttributes(key types.Key) map[string]dynamodbtypes.AttributeValue {
	return map[string]dynamodbtypes.AttributeValue{
		PartitionKey: &dynamodbtypes.AttributeValueMemberS{Value: key.PartitionKey},
		SortKey:      &dynamodbtypes.AttributeValueMemberS{Value: key.SortKey},
	}
}

func createItem(record *types.Record) map[string]dynamodbtypes.AttributeValue {
	item := keyAttributes(record.Key)

	if record.DateKey != "" {
		item[DateKeyAttr] = &dynamodbtypes.AttributeValueMemberS{Value: record.DateKey}
		item[RecordSortAttr] = &dynamodbtypes.AttributeValueMemberS{Value: record.RecordSort}
	}

	if record.ClickCount != 0 {
		item[types.AttrClickCount] = &dynamodbtypes.AttributeValueMemberN{Value: strconv.FormatInt(record.ClickCount, 10)}
	}

	if record.TotalClicks != 0 {
		item[types.AttrTotalClicks] = &dynamodbtypes.AttributeValueMemberN{Value: strconv.FormatInt(record.TotalClicks, 10)}
	}

	return item
}

func parseItem(item map[string]dynamodbtypes.AttributeValue) (*types.Record, error) {
	record := &types.Record{
		Key: types.Key{
			PartitionKey: getStringValue(item[PartitionKey]),
			SortKey:      getStringValue(item[SortKey]),
		},
		IndexKeys: types.IndexKeys{
			DateKey:    getStringValue(item[DateKeyAttr]),
			RecordSort: getStringValue(item[RecordSortAttr]),
		},
	}

	var err error

	if record.ClickCount, err = getNumberValue(item[types.AttrClickCount]); err != nil {
		return nil, fmt.Errorf("invalid %s on %s/%s: %w", types.AttrClickCount, record.PartitionKey, record.SortKey, err)
	}

	if record.TotalClicks, err = getNumberValue(item[types.AttrTotalClicks]); err != nil {
		return nil, fmt.Errorf("invalid %s on %s/%s: %w", types.AttrTotalClicks, record.PartitionKey, record.SortKey, err)
	}

	return record, nil
}

func verifySecondaryIndex(table *dynamodbtypes.TableDescription, indexName, partitionKey, sortKey string) error {
	for _, index := range table.GlobalSecondaryIndexes {
		if aws.ToString(index.IndexName) != indexName {
			continue
		}

		if len(index.KeySchema) < 1 || aws.ToString(index.KeySchema[0].AttributeName) != partitionKey {
			return fmt.Errorf("global secondary index %s does not have partition key %s", indexName, partitionKey)
		}

		if len(index.KeySchema) != 2 {
			return fmt.Errorf("global secondary index %s has a simple primary key, expected a composite primary key", indexName)
		}

		if aws.ToString(index.KeySchema[1].AttributeName) != sortKey {
			return fmt.Errorf("global secondary index %s has sort key %s, expected %s", indexName, aws.ToString(index.KeySchema[1].AttributeName), sortKey)
		}

		if index.IndexStatus != dynamodbtypes.IndexStatusActive {
			return fmt.Errorf("global secondary index %s is not active (status: %s)", indexName, index.IndexStatus)
		}

		if index.Projection == nil || index.Projection.ProjectionType != dynamodbtypes.ProjectionTypeAll {
			return fmt.Errorf("global secondary index %s must project all attributes", indexName)
		}

		return nil
	}

	return fmt.Errorf("global secondary index %s not found", indexName)
}

// getStringValue extracts the string value from a DynamoDB AttributeValue.
// It returns an empty string if the AttributeValue is not of type AttributeValueMemberS.
func getStringValue(attr dynamodbtypes.AttributeValue) string {
	if attrValue, ok := attr.(*dynamodbtypes.AttributeValueMemberS); ok {
		return attrValue.Value
	}

	return ""
}

// getNumberValue parses an integer from a DynamoDB number attribute. A
// missing attribute is 0.
func getNumberValue(attr dynamodbtypes.AttributeValue) (int64, error) {
	attrValue, ok := attr.(*dynamodbtypes.AttributeValueMemberN)
	if !ok {
		return 0, nil
	}

	return strconv.ParseInt(attrValue.Value, 10, 64)
}
