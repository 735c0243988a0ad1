package dynamodb

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/quititoday/clickstats/types"
)

// mockAPI is a mock implementation of API for testing.
type mockAPI struct {
	putItemFunc        func(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	getItemFunc        func(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	updateItemFunc     func(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	queryFunc          func(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	scanFunc           func(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	batchWriteItemFunc func(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	describeTableFunc  func(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	createTableFunc    func(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

func (m *mockAPI) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if m.putItemFunc != nil {
		return m.putItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockAPI) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if m.getItemFunc != nil {
		return m.getItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.GetItemOutput{}, nil
}

func (m *mockAPI) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	if m.updateItemFunc != nil {
		return m.updateItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (m *mockAPI) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, params, optFns...)
	}
	return &dynamodb.QueryOutput{}, nil
}

func (m *mockAPI) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	if m.scanFunc != nil {
		return m.scanFunc(ctx, params, optFns...)
	}
	return &dynamodb.ScanOutput{}, nil
}

func (m *mockAPI) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	if m.batchWriteItemFunc != nil {
		return m.batchWriteItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

func (m *mockAPI) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if m.describeTableFunc != nil {
		return m.describeTableFunc(ctx, params, optFns...)
	}
	return &dynamodb.DescribeTableOutput{}, nil
}

func (m *mockAPI) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	if m.createTableFunc != nil {
		return m.createTableFunc(ctx, params, optFns...)
	}
	return &dynamodb.CreateTableOutput{}, nil
}

func newTestClient(mock *mockAPI, opts ...Option) *Client {
	cfg := aws.Config{}
	client := New(&cfg, "test-table", append([]Option{WithAPI(mock)}, opts...)...)
	_ = client.Connect()
	return client
}

func validTable() *dynamodbtypes.TableDescription {
	return &dynamodbtypes.TableDescription{
		TableStatus: dynamodbtypes.TableStatusActive,
		KeySchema: []dynamodbtypes.KeySchemaElement{
			{AttributeName: aws.String(PartitionKey), KeyType: dynamodbtypes.KeyTypeHash},
			{AttributeName: aws.String(SortKey), KeyType: dynamodbtypes.KeyTypeRange},
		},
		GlobalSecondaryIndexes: []dynamodbtypes.GlobalSecondaryIndexDescription{
			{
				IndexName:   aws.String(types.DateIndex),
				IndexStatus: dynamodbtypes.IndexStatusActive,
				KeySchema: []dynamodbtypes.KeySchemaElement{
					{AttributeName: aws.String(DateKeyAttr), KeyType: dynamodbtypes.KeyTypeHash},
					{AttributeName: aws.String(RecordSortAttr), KeyType: dynamodbtypes.KeyTypeRange},
				},
				Projection: &dynamodbtypes.Projection{ProjectionType: dynamodbtypes.ProjectionTypeAll},
			},
		},
	}
}

func stringAttr(v string) *dynamodbtypes.AttributeValueMemberS {
	return &dynamodbtypes.AttributeValueMemberS{Value: v}
}

func numberAttr(v string) *dynamodbtypes.AttributeValueMemberN {
	return &dynamodbtypes.AttributeValueMemberN{Value: v}
}

// ==================== Connect Tests ====================

func TestConnect_Success(t *testing.T) {
	t.Parallel()
	cfg := aws.Config{}
	client := New(&cfg, "test-table", WithAPI(&mockAPI{}))

	if err := client.Connect(); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestConnect_InvalidOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts []Option
	}{
		{"zero max attempts", []Option{WithMaxAttempts(0)}},
		{"relative endpoint", []Option{WithEndpoint("localhost")}},
		{"zero table wait", []Option{WithTableWait(0)}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := aws.Config{}
			client := New(&cfg, "test-table", append(tc.opts, WithAPI(&mockAPI{}))...)

			if err := client.Connect(); err == nil {
				t.Error("expected error for invalid options, got nil")
			}
		})
	}
}

func TestConnect_EmptyTableName(t *testing.T) {
	t.Parallel()
	cfg := aws.Config{}
	client := New(&cfg, "", WithAPI(&mockAPI{}))

	if err := client.Connect(); err == nil {
		t.Error("expected error for empty table name, got nil")
	}
}

func TestConnect_WithEndpoint(t *testing.T) {
	t.Parallel()
	cfg := aws.Config{Region: "us-east-1"}
	client := New(&cfg, "test-table", WithEndpoint("http://localhost:8000"))

	if err := client.Connect(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if _, ok := client.client.(*dynamodb.Client); !ok {
		t.Errorf("expected SDK client, got %T", client.client)
	}
}

// ==================== Init Tests ====================

func TestInit_SkipValidation(t *testing.T) {
	t.Parallel()
	called := false
	mock := &mockAPI{
		describeTableFunc: func(context.Context, *dynamodb.DescribeTableInput, ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			called = true
			return nil, errors.New("should not be called")
		},
	}
	client := newTestClient(mock)

	if err := client.Init(context.Background(), true); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if called {
		t.Error("expected DescribeTable not to be called")
	}
}

func TestInit_ValidSchema(t *testing.T) {
	t.Parallel()
	mock := &mockAPI{
		describeTableFunc: func(_ context.Context, params *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			if aws.ToString(params.TableName) != "test-table" {
				t.Errorf("expected table name 'test-table', got %s", aws.ToString(params.TableName))
			}
			return &dynamodb.DescribeTableOutput{Table: validTable()}, nil
		},
	}
	client := newTestClient(mock)

	if err := client.Init(context.Background(), false); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestInit_InvalidSchema(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*dynamodbtypes.TableDescription)
		want   string
	}{
		{
			name:   "wrong partition key",
			mutate: func(d *dynamodbtypes.TableDescription) { d.KeySchema[0].AttributeName = aws.String("pk") },
			want:   "partition key pk",
		},
		{
			name:   "simple primary key",
			mutate: func(d *dynamodbtypes.TableDescription) { d.KeySchema = d.KeySchema[:1] },
			want:   "simple primary key",
		},
		{
			name:   "not active",
			mutate: func(d *dynamodbtypes.TableDescription) { d.TableStatus = dynamodbtypes.TableStatusCreating },
			want:   "not active",
		},
		{
			name:   "missing index",
			mutate: func(d *dynamodbtypes.TableDescription) { d.GlobalSecondaryIndexes = nil },
			want:   "not found",
		},
		{
			name: "keys only projection",
			mutate: func(d *dynamodbtypes.TableDescription) {
				d.GlobalSecondaryIndexes[0].Projection.ProjectionType = dynamodbtypes.ProjectionTypeKeysOnly
			},
			want: "project all attributes",
		},
		{
			name: "wrong index sort key",
			mutate: func(d *dynamodbtypes.TableDescription) {
				d.GlobalSecondaryIndexes[0].KeySchema[1].AttributeName = aws.String("createDateTime")
			},
			want: "sort key createDateTime",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			table := validTable()
			tc.mutate(table)
			mock := &mockAPI{
				describeTableFunc: func(context.Context, *dynamodb.DescribeTableInput, ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
					return &dynamodb.DescribeTableOutput{Table: table}, nil
				},
			}
			client := newTestClient(mock)

			err := client.Init(context.Background(), false)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestInit_TableNotFound(t *testing.T) {
	t.Parallel()
	mock := &mockAPI{
		describeTableFunc: func(context.Context, *dynamodb.DescribeTableInput, ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			return nil, &dynamodbtypes.ResourceNotFoundException{Message: aws.String("not found")}
		},
	}
	client := newTestClient(mock)

	err := client.Init(context.Background(), false)
	if err == nil || err.Error() != "table test-table does not exist" {
		t.Errorf("expected 'table test-table does not exist', got %v", err)
	}
}

// ==================== CreateTable Tests ====================

func TestCreateTable_AlreadyExists(t *testing.T) {
	t.Parallel()
	var captured *dynamodb.CreateTableInput
	mock := &mockAPI{
		createTableFunc: func(_ context.Context, params *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
			captured = params
			return nil, &dynamodbtypes.ResourceInUseException{Message: aws.String("exists")}
		},
	}
	client := newTestClient(mock)

	if err := client.CreateTable(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(captured.GlobalSecondaryIndexes) != 1 {
		t.Fatalf("expected one GSI, got %d", len(captured.GlobalSecondaryIndexes))
	}

	gsi := captured.GlobalSecondaryIndexes[0]
	if aws.ToString(gsi.IndexName) != types.DateIndex {
		t.Errorf("expected index %s, got %s", types.DateIndex, aws.ToString(gsi.IndexName))
	}
	if gsi.Projection.ProjectionType != dynamodbtypes.ProjectionTypeAll {
		t.Errorf("expected projection ALL, got %s", gsi.Projection.ProjectionType)
	}
	if aws.ToString(captured.KeySchema[0].AttributeName) != PartitionKey {
		t.Errorf("expected partition key %s, got %s", PartitionKey, aws.ToString(captured.KeySchema[0].AttributeName))
	}
}

func TestCreateTable_WaitsForActive(t *testing.T) {
	t.Parallel()
	mock := &mockAPI{
		describeTableFunc: func(context.Context, *dynamodb.DescribeTableInput, ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			return &dynamodb.DescribeTableOutput{Table: validTable()}, nil
		},
	}
	client := newTestClient(mock)

	if err := client.CreateTable(context.Background()); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestCreateTable_Error(t *testing.T) {
	t.Parallel()
	mock := &mockAPI{
		createTableFunc: func(context.Context, *dynamodb.CreateTableInput, ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
			return nil, errors.New("dynamodb error")
		},
	}
	client := newTestClient(mock)

	if err := client.CreateTable(context.Background()); err == nil {
		t.Error("expected error, got nil")
	}
}

// ==================== Put Tests ====================

func TestPut_EventRecord(t *testing.T) {
	t.Parallel()
	var captured *dynamodb.PutItemInput
	mock := &mockAPI{
		putItemFunc: func(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			captured = params
			return &dynamodb.PutItemOutput{}, nil
		},
	}
	client := newTestClient(mock)

	record := &types.Record{
		Key:        types.Key{PartitionKey: "user-001", SortKey: "2025-10-02T08:00:00.000Z"},
		IndexKeys:  types.IndexKeys{DateKey: "DATE#2025-10-02", RecordSort: "CLICK#2025-10-02T08:00:00.000Z#user-001"},
		ClickCount: 1,
	}

	if err := client.Put(context.Background(), record); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if *captured.TableName != "test-table" {
		t.Errorf("expected table name 'test-table', got %s", *captured.TableName)
	}

	want := map[string]string{
		PartitionKey:   "user-001",
		SortKey:        "2025-10-02T08:00:00.000Z",
		DateKeyAttr:    "DATE#2025-10-02",
		RecordSortAttr: "CLICK#2025-10-02T08:00:00.000Z#user-001",
	}
	for attr, value := range want {
		if got := getStringValue(captured.Item[attr]); got != value {
			t.Errorf("expected %s %q, got %q", attr, value, got)
		}
	}

	if n, ok := captured.Item[types.AttrClickCount].(*dynamodbtypes.AttributeValueMemberN); !ok || n.Value != "1" {
		t.Errorf("expected clickCount 1, got %v", captured.Item[types.AttrClickCount])
	}
	if _, ok := captured.Item[types.AttrTotalClicks]; ok {
		t.Error("expected no totalClicks attribute on event row")
	}
}

func TestPut_NoIndexAttributes(t *testing.T) {
	t.Parallel()
	var captured *dynamodb.PutItemInput
	mock := &mockAPI{
		putItemFunc: func(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			captured = params
			return &dynamodb.PutItemOutput{}, nil
		},
	}
	client := newTestClient(mock)

	record := &types.Record{Key: types.Key{PartitionKey: "STAT#TOTAL", SortKey: "METADATA"}, TotalClicks: 4}

	if err := client.Put(context.Background(), record); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, ok := captured.Item[DateKeyAttr]; ok {
		t.Error("expected no dateKey attribute")
	}
}

func TestPut_InvalidRecord(t *testing.T) {
	t.Parallel()
	client := newTestClient(&mockAPI{})

	err := client.Put(context.Background(), &types.Record{Key: types.Key{PartitionKey: "user-001"}})
	if !errors.Is(err, types.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestPut_ThrottlingIsUnavailable(t *testing.T) {
	t.Parallel()
	mock := &mockAPI{
		putItemFunc: func(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			return nil, &dynamodbtypes.ProvisionedThroughputExceededException{Message: aws.String("slow down")}
		},
	}
	client := newTestClient(mock)

	err := client.Put(context.Background(), &types.Record{Key: types.Key{PartitionKey: "user-001", SortKey: "x"}})
	if !errors.Is(err, types.ErrStoreUnavailable) {
		t.Errorf("expected unavailable error, got %v", err)
	}
}

func TestCreate_ConditionalPut(t *testing.T) {
	t.Parallel()
	var captured *dynamodb.PutItemInput
	mock := &mockAPI{
		putItemFunc: func(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			captured = params
			return &dynamodb.PutItemOutput{}, nil
		},
	}
	client := newTestClient(mock)

	record := &types.Record{
		Key:        types.Key{PartitionKey: "user-001", SortKey: "2025-10-02T08:00:00.000Z"},
		IndexKeys:  types.IndexKeys{DateKey: "DATE#2025-10-02", RecordSort: "CLICK#2025-10-02T08:00:00.000Z#user-001"},
		ClickCount: 1,
	}

	if err := client.Create(context.Background(), record); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if aws.ToString(captured.ConditionExpression) != "attribute_not_exists(#pk)" {
		t.Errorf("unexpected condition expression %q", aws.ToString(captured.ConditionExpression))
	}
	if captured.ExpressionAttributeNames["#pk"] != PartitionKey {
		t.Errorf("expected #pk to name %s, got %q", PartitionKey, captured.ExpressionAttributeNames["#pk"])
	}
	if got := getStringValue(captured.Item[SortKey]); got != "2025-10-02T08:00:00.000Z" {
		t.Errorf("expected sort key in item, got %q", got)
	}
}

func TestCreate_ExistingKeyIsConflict(t *testing.T) {
	t.Parallel()
	mock := &mockAPI{
		putItemFunc: func(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			return nil, &dynamodbtypes.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
		},
	}
	client := newTestClient(mock)

	err := client.Create(context.Background(), &types.Record{Key: types.Key{PartitionKey: "user-001", SortKey: "x"}, ClickCount: 1})
	if !errors.Is(err, types.ErrStoreWriteConflict) {
		t.Errorf("expected write conflict, got %v", err)
	}
}

func TestCreate_InvalidRecord(t *testing.T) {
	t.Parallel()
	client := newTestClient(&mockAPI{})

	err := client.Create(context.Background(), &types.Record{Key: types.Key{SortKey: "x"}})
	if !errors.Is(err, types.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

// ==================== Get Tests ====================

func TestGet_Found(t *testing.T) {
	t.Parallel()
	var captured *dynamodb.GetItemInput
	mock := &mockAPI{
		getItemFunc: func(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			captured = params
			return &dynamodb.GetItemOutput{Item: map[string]dynamodbtypes.AttributeValue{
				PartitionKey:          stringAttr("STAT#TOTAL"),
				SortKey:               stringAttr("METADATA"),
				types.AttrTotalClicks: numberAttr("12"),
			}}, nil
		},
	}
	client := newTestClient(mock, WithConsistentReads(true))

	record, err := client.Get(context.Background(), types.Key{PartitionKey: "STAT#TOTAL", SortKey: "METADATA"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if record == nil || record.TotalClicks != 12 {
		t.Errorf("expected total 12, got %+v", record)
	}
	if !aws.ToBool(captured.ConsistentRead) {
		t.Error("expected consistent read")
	}
}

func TestGet_NotFound(t *testing.T) {
	t.Parallel()
	client := newTestClient(&mockAPI{})

	record, err := client.Get(context.Background(), types.Key{PartitionKey: "STAT#TOTAL", SortKey: "METADATA"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if record != nil {
		t.Errorf("expected nil record, got %+v", record)
	}
}

func TestGet_InvalidNumber(t *testing.T) {
	t.Parallel()
	mock := &mockAPI{
		getItemFunc: func(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			return &dynamodb.GetItemOutput{Item: map[string]dynamodbtypes.AttributeValue{
				PartitionKey:          stringAttr("STAT#TOTAL"),
				SortKey:               stringAttr("METADATA"),
				types.AttrTotalClicks: numberAttr("1.5"),
			}}, nil
		},
	}
	client := newTestClient(mock)

	if _, err := client.Get(context.Background(), types.Key{PartitionKey: "STAT#TOTAL", SortKey: "METADATA"}); err == nil {
		t.Error("expected error for non-integer counter, got nil")
	}
}

// ==================== Add Tests ====================

func TestAdd_Total(t *testing.T) {
	t.Parallel()
	var captured *dynamodb.UpdateItemInput
	mock := &mockAPI{
		updateItemFunc: func(_ context.Context, params *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
			captured = params
			return &dynamodb.UpdateItemOutput{Attributes: map[string]dynamodbtypes.AttributeValue{
				PartitionKey:          stringAttr("STAT#TOTAL"),
				SortKey:               stringAttr("METADATA"),
				types.AttrTotalClicks: numberAttr("3"),
			}}, nil
		},
	}
	client := newTestClient(mock)

	record, err := client.Add(context.Background(), &types.AddInput{
		Key:   types.Key{PartitionKey: "STAT#TOTAL", SortKey: "METADATA"},
		Field: types.AttrTotalClicks,
		Delta: 1,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if record.TotalClicks != 3 {
		t.Errorf("expected total 3, got %d", record.TotalClicks)
	}
	if aws.ToString(captured.UpdateExpression) != "ADD #field :inc" {
		t.Errorf("unexpected update expression %q", aws.ToString(captured.UpdateExpression))
	}
	if captured.ExpressionAttributeNames["#field"] != types.AttrTotalClicks {
		t.Errorf("expected #field to be %s", types.AttrTotalClicks)
	}
	if captured.ReturnValues != dynamodbtypes.ReturnValueAllNew {
		t.Errorf("expected ALL_NEW, got %s", captured.ReturnValues)
	}
}

func TestAdd_WithIndex(t *testing.T) {
	t.Parallel()
	var captured *dynamodb.UpdateItemInput
	mock := &mockAPI{
		updateItemFunc: func(_ context.Context, params *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
			captured = params
			return &dynamodb.UpdateItemOutput{Attributes: map[string]dynamodbtypes.AttributeValue{
				PartitionKey:          stringAttr("STAT#DAILY"),
				SortKey:               stringAttr("2025-10-02"),
				DateKeyAttr:           stringAttr("DATE#2025-10-02"),
				RecordSortAttr:        stringAttr("STAT#DAILY"),
				types.AttrTotalClicks: numberAttr("5"),
			}}, nil
		},
	}
	client := newTestClient(mock)

	record, err := client.Add(context.Background(), &types.AddInput{
		Key:   types.Key{PartitionKey: "STAT#DAILY", SortKey: "2025-10-02"},
		Field: types.AttrTotalClicks,
		Delta: 5,
		Index: &types.IndexKeys{DateKey: "DATE#2025-10-02", RecordSort: "STAT#DAILY"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if record.DateKey != "DATE#2025-10-02" || record.RecordSort != "STAT#DAILY" {
		t.Errorf("unexpected index keys %+v", record.IndexKeys)
	}
	if aws.ToString(captured.UpdateExpression) != "ADD #field :inc SET #dk = :dk, #rs = :rs" {
		t.Errorf("unexpected update expression %q", aws.ToString(captured.UpdateExpression))
	}
	if v, ok := captured.ExpressionAttributeValues[":inc"].(*dynamodbtypes.AttributeValueMemberN); !ok || v.Value != "5" {
		t.Errorf("expected :inc 5, got %v", captured.ExpressionAttributeValues[":inc"])
	}
	if getStringValue(captured.ExpressionAttributeValues[":dk"]) != "DATE#2025-10-02" {
		t.Error("expected :dk to be the date key")
	}
}

func TestAdd_NoAttributes(t *testing.T) {
	t.Parallel()
	client := newTestClient(&mockAPI{})

	_, err := client.Add(context.Background(), &types.AddInput{
		Key:   types.Key{PartitionKey: "STAT#TOTAL", SortKey: "METADATA"},
		Field: types.AttrTotalClicks,
		Delta: 1,
	})
	if err == nil {
		t.Error("expected error, got nil")
	}
}

func TestAdd_ConditionFailedIsConflict(t *testing.T) {
	t.Parallel()
	mock := &mockAPI{
		updateItemFunc: func(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
			return nil, &dynamodbtypes.ConditionalCheckFailedException{Message: aws.String("nope")}
		},
	}
	client := newTestClient(mock)

	_, err := client.Add(context.Background(), &types.AddInput{
		Key:   types.Key{PartitionKey: "STAT#TOTAL", SortKey: "METADATA"},
		Field: types.AttrTotalClicks,
		Delta: 1,
	})
	if !errors.Is(err, types.ErrStoreWriteConflict) {
		t.Errorf("expected write conflict, got %v", err)
	}
}

func TestAdd_InvalidField(t *testing.T) {
	t.Parallel()
	client := newTestClient(&mockAPI{})

	_, err := client.Add(context.Background(), &types.AddInput{
		Key:   types.Key{PartitionKey: "STAT#TOTAL", SortKey: "METADATA"},
		Field: "ttl",
		Delta: 1,
	})
	if !errors.Is(err, types.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

// ==================== Query Tests ====================

func TestQuery_BaseTableBetween(t *testing.T) {
	t.Parallel()
	var captured *dynamodb.QueryInput
	mock := &mockAPI{
		queryFunc: func(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			captured = params
			return &dynamodb.QueryOutput{}, nil
		},
	}
	client := newTestClient(mock)

	records, err := client.Query(context.Background(), &types.QueryInput{
		PartitionValue: "user-001",
		SortCondition:  &types.SortCondition{Operator: types.SortBetween, Value: "2025-10-01T00:00:00.000Z", Upper: "2025-10-05T23:59:59.999Z"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Errorf("expected empty slice, got %v", records)
	}
	if captured.IndexName != nil {
		t.Errorf("expected no index name, got %s", aws.ToString(captured.IndexName))
	}
	if aws.ToString(captured.KeyConditionExpression) != "#pk = :pk AND #sk BETWEEN :sk AND :upper" {
		t.Errorf("unexpected key condition %q", aws.ToString(captured.KeyConditionExpression))
	}
	if captured.ExpressionAttributeNames["#pk"] != PartitionKey || captured.ExpressionAttributeNames["#sk"] != SortKey {
		t.Errorf("unexpected attribute names %v", captured.ExpressionAttributeNames)
	}
	if aws.ToBool(captured.ScanIndexForward) {
		t.Error("expected descending scan")
	}
}

func TestQuery_DateIndexBeginsWith(t *testing.T) {
	t.Parallel()
	var captured *dynamodb.QueryInput
	mock := &mockAPI{
		queryFunc: func(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			captured = params
			return &dynamodb.QueryOutput{}, nil
		},
	}
	client := newTestClient(mock)

	_, err := client.Query(context.Background(), &types.QueryInput{
		IndexName:      types.DateIndex,
		PartitionValue: "DATE#2025-10-02",
		SortCondition:  &types.SortCondition{Operator: types.SortBeginsWith, Value: "CLICK#"},
		ScanForward:    true,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if aws.ToString(captured.IndexName) != types.DateIndex {
		t.Errorf("expected index %s, got %s", types.DateIndex, aws.ToString(captured.IndexName))
	}
	if aws.ToString(captured.KeyConditionExpression) != "#pk = :pk AND begins_with(#sk, :sk)" {
		t.Errorf("unexpected key condition %q", aws.ToString(captured.KeyConditionExpression))
	}
	if captured.ExpressionAttributeNames["#pk"] != DateKeyAttr || captured.ExpressionAttributeNames["#sk"] != RecordSortAttr {
		t.Errorf("unexpected attribute names %v", captured.ExpressionAttributeNames)
	}
}

func TestQuery_Paginates(t *testing.T) {
	t.Parallel()
	calls := 0
	mock := &mockAPI{
		queryFunc: func(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			calls++
			item := map[string]dynamodbtypes.AttributeValue{
				PartitionKey:         stringAttr("user-001"),
				SortKey:              stringAttr("2025-10-02T08:00:00.00" + string(rune('0'+calls)) + "Z"),
				types.AttrClickCount: numberAttr("1"),
			}
			if calls == 1 {
				if params.ExclusiveStartKey != nil {
					t.Error("expected no start key on first page")
				}
				return &dynamodb.QueryOutput{
					Items:            []map[string]dynamodbtypes.AttributeValue{item},
					LastEvaluatedKey: map[string]dynamodbtypes.AttributeValue{PartitionKey: stringAttr("user-001")},
				}, nil
			}
			if params.ExclusiveStartKey == nil {
				t.Error("expected start key on second page")
			}
			return &dynamodb.QueryOutput{Items: []map[string]dynamodbtypes.AttributeValue{item}}, nil
		},
	}
	client := newTestClient(mock)

	records, err := client.Query(context.Background(), &types.QueryInput{PartitionValue: "user-001"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 query calls, got %d", calls)
	}
	if len(records) != 2 || records[0].ClickCount != 1 {
		t.Errorf("unexpected records %+v", records)
	}
}

func TestQuery_NoSortCondition(t *testing.T) {
	t.Parallel()
	var captured *dynamodb.QueryInput
	mock := &mockAPI{
		queryFunc: func(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			captured = params
			return &dynamodb.QueryOutput{}, nil
		},
	}
	client := newTestClient(mock)

	if _, err := client.Query(context.Background(), &types.QueryInput{PartitionValue: "user-001"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if aws.ToString(captured.KeyConditionExpression) != "#pk = :pk" {
		t.Errorf("unexpected key condition %q", aws.ToString(captured.KeyConditionExpression))
	}
	if _, ok := captured.ExpressionAttributeNames["#sk"]; ok {
		t.Error("expected no #sk name without a sort condition")
	}
}

func TestQuery_Error(t *testing.T) {
	t.Parallel()
	mock := &mockAPI{
		queryFunc: func(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			return nil, &smithy.GenericAPIError{Code: "ThrottlingException", Message: "rate exceeded"}
		},
	}
	client := newTestClient(mock)

	_, err := client.Query(context.Background(), &types.QueryInput{PartitionValue: "user-001"})
	if !errors.Is(err, types.ErrStoreUnavailable) {
		t.Errorf("expected unavailable error, got %v", err)
	}
}

// ==================== DropAllData Tests ====================

func TestDropAllData_RetriesUnprocessedItems(t *testing.T) {
	t.Parallel()
	scans := 0
	writes := 0
	mock := &mockAPI{
		scanFunc: func(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
			scans++
			items := make([]map[string]dynamodbtypes.AttributeValue, 30)
			for i := range items {
				items[i] = map[string]dynamodbtypes.AttributeValue{
					PartitionKey: stringAttr("user-001"),
					SortKey:      stringAttr(string(rune('a' + i))),
				}
			}
			return &dynamodb.ScanOutput{Items: items}, nil
		},
		batchWriteItemFunc: func(_ context.Context, params *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
			writes++
			if len(params.RequestItems["test-table"]) > batchLimit {
				t.Errorf("batch of %d exceeds limit", len(params.RequestItems["test-table"]))
			}
			if writes == 1 {
				return &dynamodb.BatchWriteItemOutput{
					UnprocessedItems: map[string][]dynamodbtypes.WriteRequest{
						"test-table": params.RequestItems["test-table"][:1],
					},
				}, nil
			}
			return &dynamodb.BatchWriteItemOutput{}, nil
		},
	}
	client := newTestClient(mock)

	if err := client.DropAllData(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if scans != 1 {
		t.Errorf("expected 1 scan, got %d", scans)
	}
	if writes != 3 {
		t.Errorf("expected 3 batch writes, got %d", writes)
	}
}

func TestDropAllData_ScanError(t *testing.T) {
	t.Parallel()
	mock := &mockAPI{
		scanFunc: func(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
			return nil, errors.New("dynamodb error")
		},
	}
	client := newTestClient(mock)

	if err := client.DropAllData(context.Background()); err == nil {
		t.Error("expected error, got nil")
	}
}

// ==================== classify Tests ====================

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"conditional check", &dynamodbtypes.ConditionalCheckFailedException{}, types.ErrStoreWriteConflict},
		{"transaction conflict", &smithy.GenericAPIError{Code: "TransactionConflictException"}, types.ErrStoreWriteConflict},
		{"throughput", &dynamodbtypes.ProvisionedThroughputExceededException{}, types.ErrStoreUnavailable},
		{"internal", &dynamodbtypes.InternalServerError{}, types.ErrStoreUnavailable},
		{"deadline", context.DeadlineExceeded, types.ErrStoreUnavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if err := classify(tc.err); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}

	plain := errors.New("plain")
	if got := classify(plain); got != plain {
		t.Errorf("expected plain error unchanged, got %v", got)
	}
	if classify(nil) != nil {
		t.Error("expected nil for nil")
	}
}
