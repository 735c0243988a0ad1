// Package config loads process configuration from defaults and environment
// variables.
package config

import "time"

// Store kinds accepted by Config.Store.
const (
	StoreDynamoDB = "dynamodb"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

// Config is the complete process configuration. The env tag names the
// variable that overrides each field.
type Config struct {
	Store            string        `koanf:"store"              validate:"oneof=dynamodb postgres redis memory" env:"CLICKSTATS_STORE"`
	DefaultSubjectID string        `koanf:"default_subject_id"                                                 env:"CLICKSTATS_DEFAULT_USER_ID"`
	StoreTimeout     time.Duration `koanf:"store_timeout"      validate:"gt=0"                                 env:"CLICKSTATS_STORE_TIMEOUT"`
	Rollups          bool          `koanf:"rollups"                                                            env:"CLICKSTATS_ROLLUPS"`

	Server   ServerConfig   `koanf:"server"`
	AWS      AWSConfig      `koanf:"aws"`
	DynamoDB DynamoDBConfig `koanf:"dynamodb"`
	Postgres PostgresConfig `koanf:"postgres"`
	Redis    RedisConfig    `koanf:"redis"`
	SQS      SQSConfig      `koanf:"sqs"`
	Log      LogConfig      `koanf:"log"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr"             validate:"required" env:"CLICKSTATS_SERVER_ADDR"`
	ReadTimeout     time.Duration `koanf:"read_timeout"     validate:"gt=0"     env:"CLICKSTATS_SERVER_READ_TIMEOUT"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"     env:"CLICKSTATS_SERVER_SHUTDOWN_TIMEOUT"`
}

type AWSConfig struct {
	Region string `koanf:"region" validate:"required" env:"AWS_REGION"`
}

type DynamoDBConfig struct {
	Table           string `koanf:"table"            env:"DYNAMODB_TABLE"`
	Endpoint        string `koanf:"endpoint"         env:"DYNAMODB_ENDPOINT"           validate:"omitempty,url"`
	ConsistentReads bool   `koanf:"consistent_reads" env:"CLICKSTATS_DYNAMODB_CONSISTENT_READS"`
	MaxAttempts     int    `koanf:"max_attempts"     env:"CLICKSTATS_DYNAMODB_MAX_ATTEMPTS" validate:"min=1"`
}

type PostgresConfig struct {
	Host     string `koanf:"host"     env:"CLICKSTATS_POSTGRES_HOST"`
	Port     int    `koanf:"port"     env:"CLICKSTATS_POSTGRES_PORT"     validate:"min=1,max=65535"`
	User     string `koanf:"user"     env:"CLICKSTATS_POSTGRES_USER"`
	Password string `koanf:"password" env:"CLICKSTATS_POSTGRES_PASSWORD"`
	Database string `koanf:"database" env:"CLICKSTATS_POSTGRES_DATABASE"`
	SSLMode  string `koanf:"ssl_mode" env:"CLICKSTATS_POSTGRES_SSL_MODE" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	Table    string `koanf:"table"    env:"CLICKSTATS_POSTGRES_TABLE"`
	MaxConns int32  `koanf:"max_conns" env:"CLICKSTATS_POSTGRES_MAX_CONNS" validate:"min=1"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"     env:"CLICKSTATS_REDIS_ADDR"`
	Password string `koanf:"password" env:"CLICKSTATS_REDIS_PASSWORD"`
	DB       int    `koanf:"db"       env:"CLICKSTATS_REDIS_DB"     validate:"min=0"`
	Prefix   string `koanf:"prefix"   env:"CLICKSTATS_REDIS_PREFIX"`
}

type SQSConfig struct {
	Queue       string `koanf:"queue"       env:"CLICKSTATS_SQS_QUEUE"       validate:"omitempty,endswith=.fifo"`
	Endpoint    string `koanf:"endpoint"    env:"CLICKSTATS_SQS_ENDPOINT"    validate:"omitempty,url"`
	Concurrency int    `koanf:"concurrency" env:"CLICKSTATS_SQS_CONCURRENCY" validate:"min=1"`
}

type LogConfig struct {
	Level string `koanf:"level" env:"CLICKSTATS_LOG_LEVEL" validate:"oneof=debug info warn error disabled"`
	JSON  bool   `koanf:"json"  env:"CLICKSTATS_LOG_JSON"`
}

// Default returns the configuration used when no environment variable is set.
func Default() *Config {
	return &Config{
		Store:        StoreDynamoDB,
		StoreTimeout: 5 * time.Second,
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		AWS: AWSConfig{Region: "us-east-1"},
		DynamoDB: DynamoDBConfig{
			Table:       "qit-db-local",
			MaxAttempts: 3,
		},
		Postgres: PostgresConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Database: "clickstats",
			SSLMode:  "prefer",
			Table:    "clicks",
			MaxConns: 10,
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "clickstats",
		},
		SQS: SQSConfig{
			Concurrency: 10,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
