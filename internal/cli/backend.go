package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	goredis "github.com/redis/go-redis/v9"

	"github.com/quititoday/clickstats/dynamodb"
	"github.com/quititoday/clickstats/internal/config"
	"github.com/quititoday/clickstats/internal/logger"
	"github.com/quititoday/clickstats/memory"
	"github.com/quititoday/clickstats/postgres"
	"github.com/quititoday/clickstats/redis"
	"github.com/quititoday/clickstats/types"
)

// backend is an opened store.
type backend struct {
	store types.Store

	// dynamo is set for the dynamodb store so init can create the table.
	dynamo *dynamodb.Client

	// schema creates or validates the backend schema.
	schema func(ctx context.Context) error

	close func(ctx context.Context)
}

type openFunc func(ctx context.Context, cfg *config.Config, log logger.Logger) (*backend, error)

func openBackend(ctx context.Context, cfg *config.Config, log logger.Logger) (*backend, error) {
	log = log.With("store", cfg.Store)

	switch cfg.Store {
	case config.StoreDynamoDB:
		return openDynamoDB(ctx, cfg, log)
	case config.StorePostgres:
		return openPostgres(ctx, cfg, log)
	case config.StoreRedis:
		return openRedis(ctx, cfg, log)
	case config.StoreMemory:
		log.Warn("Using the in-memory store; data is lost on exit")
		return &backend{
			store:  memory.New(),
			schema: func(context.Context) error { return nil },
			close:  func(context.Context) {},
		}, nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// loadAWSConfig loads the default AWS configuration. A custom endpoint gets
// static dummy credentials, which local emulators accept.
func loadAWSConfig(ctx context.Context, cfg *config.Config, endpoint string) (aws.Config, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWS.Region)}

	if endpoint != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("local", "local", "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return awsCfg, nil
}

func openDynamoDB(ctx context.Context, cfg *config.Config, log logger.Logger) (*backend, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg, cfg.DynamoDB.Endpoint)
	if err != nil {
		return nil, err
	}

	opts := []dynamodb.Option{
		dynamodb.WithMaxAttempts(cfg.DynamoDB.MaxAttempts),
		dynamodb.WithConsistentReads(cfg.DynamoDB.ConsistentReads),
	}

	if cfg.DynamoDB.Endpoint != "" {
		opts = append(opts, dynamodb.WithEndpoint(cfg.DynamoDB.Endpoint))
	}

	client := dynamodb.New(&awsCfg, cfg.DynamoDB.Table, opts...)

	if err := client.Connect(); err != nil {
		return nil, err
	}

	log.Debug("DynamoDB client ready", "table", cfg.DynamoDB.Table, "endpoint", cfg.DynamoDB.Endpoint)

	return &backend{
		store:  client,
		dynamo: client,
		schema: func(ctx context.Context) error { return client.Init(ctx, false) },
		close:  func(context.Context) {},
	}, nil
}

func openPostgres(ctx context.Context, cfg *config.Config, log logger.Logger) (*backend, error) {
	pg := cfg.Postgres

	client := postgres.New(
		postgres.WithHost(pg.Host),
		postgres.WithPort(pg.Port),
		postgres.WithUser(pg.User),
		postgres.WithPassword(pg.Password),
		postgres.WithDatabase(pg.Database),
		postgres.WithSSLMode(postgres.SSLMode(pg.SSLMode)),
		postgres.WithTable(pg.Table),
		postgres.WithPoolMaxConnections(pg.MaxConns),
	)

	if err := client.Connect(ctx); err != nil {
		return nil, err
	}

	log.Debug("Postgres pool ready", "host", pg.Host, "database", pg.Database, "table", pg.Table)

	return &backend{
		store:  client,
		schema: func(ctx context.Context) error { return client.Init(ctx, false) },
		close: func(ctx context.Context) {
			if err := client.Close(ctx); err != nil {
				log.Warn("Failed to close Postgres pool", "error", err)
			}
		},
	}, nil
}

func openRedis(ctx context.Context, cfg *config.Config, log logger.Logger) (*backend, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	client, err := redis.New(rdb, redis.WithPrefix(cfg.Redis.Prefix))
	if err != nil {
		_ = rdb.Close()
		return nil, err
	}

	// Redis has no schema; Init only checks the connection and loads scripts.
	if err := client.Init(ctx); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	log.Debug("Redis client ready", "addr", cfg.Redis.Addr, "prefix", cfg.Redis.Prefix)

	return &backend{
		store:  client,
		schema: client.Init,
		close: func(context.Context) {
			if err := rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
				log.Warn("Failed to close Redis client", "error", err)
			}
		},
	}, nil
}
