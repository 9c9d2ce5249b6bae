package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Supported record store drivers.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Supported message queue and object storage backends.
const (
	BackendNone     = "none"
	BackendRabbitMQ = "rabbitmq"
	BackendPubSub   = "pubsub"
	BackendMinio    = "minio"
	BackendGCS      = "gcs"
)

type Config struct {
	Env              string        `env:"ENV" envDefault:"production"`
	ServerPort       int           `env:"SERVER_PORT" envDefault:"5000"`
	JWTSecret        string        `env:"JWT_SECRET"`
	JWTTTL           time.Duration `env:"JWT_TTL" envDefault:"24h"`
	SeedDemoAccounts bool          `env:"SEED_DEMO_ACCOUNTS" envDefault:"true"`
	CORSOrigins      []string      `env:"CORS_ORIGINS" envSeparator:","`
	AuthRateLimit    float64       `env:"AUTH_RATE_LIMIT" envDefault:"1"`
	AuthRateBurst    int           `env:"AUTH_RATE_BURST" envDefault:"10"`

	DBDriver string `env:"DB_DRIVER" envDefault:"mongo"`
	Mongo    MongoConfig
	Database DatabaseConfig

	MQ      MQConfig
	Storage StorageConfig
}

type MongoConfig struct {
	URI      string `env:"MONGODB_URI" envDefault:"mongodb://localhost:27017"`
	Database string `env:"MONGODB_DATABASE" envDefault:"hackathon-platform"`
}

type DatabaseConfig struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"htverse"`
	Password string `env:"DB_PASSWORD" envDefault:"password"`
	DBName   string `env:"DB_NAME" envDefault:"htverse_db"`
	UseSSL   bool   `env:"DB_USE_SSL" envDefault:"false"`

	MaxOpenConns   int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns   int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"15s"`
}

type MQConfig struct {
	Backend  string `env:"MQ_BACKEND" envDefault:"none"`
	Channel  string `env:"MQ_CHANNEL" envDefault:"hackathon-events"`
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
}

type RabbitMQConfig struct {
	URL             string `env:"RABBITMQ_URL"`
	QueueDurable    bool   `env:"RABBITMQ_QUEUE_DURABLE" envDefault:"true"`
	QueueAutoDelete bool   `env:"RABBITMQ_QUEUE_AUTO_DELETE" envDefault:"false"`
	PrefetchCount   int    `env:"RABBITMQ_PREFETCH" envDefault:"10"`
	QueueSuffix     string `env:"RABBITMQ_QUEUE_SUFFIX" envDefault:".subscriber"`
}

type PubSubConfig struct {
	ProjectID          string `env:"PUBSUB_PROJECT_ID"`
	CredentialsFile    string `env:"PUBSUB_CREDENTIALS_FILE"`
	SubscriptionSuffix string `env:"PUBSUB_SUBSCRIPTION_SUFFIX" envDefault:"-sub"`
}

type StorageConfig struct {
	Backend string `env:"STORAGE_BACKEND" envDefault:"none"`
	Minio   MinioConfig
	GCS     GCSConfig
}

type MinioConfig struct {
	Endpoint  string `env:"MINIO_ENDPOINT" envDefault:"localhost:9000"`
	AccessKey string `env:"MINIO_ACCESS_KEY"`
	SecretKey string `env:"MINIO_SECRET_KEY"`
	Bucket    string `env:"MINIO_BUCKET" envDefault:"htverse"`
	UseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
}

type GCSConfig struct {
	Bucket          string `env:"GCS_BUCKET"`
	ProjectID       string `env:"GCS_PROJECT_ID"`
	CredentialsFile string `env:"GCS_CREDENTIALS_FILE"`
}

// IsDev reports whether the service runs in development mode.
func (c Config) IsDev() bool {
	return c.Env == "dev" || c.Env == "development"
}

// LoadConfig reads configuration from the environment. A .env file is
// loaded first in dev mode.
func LoadConfig() (Config, error) {
	if os.Getenv("ENV") == "dev" {
		_ = godotenv.Load()
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = defaultCORSOrigins()
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.DBDriver {
	case DriverMongo, DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.MQ.Backend {
	case BackendNone, BackendRabbitMQ, BackendPubSub:
	default:
		return fmt.Errorf("unsupported MQ_BACKEND %q", c.MQ.Backend)
	}
	switch c.Storage.Backend {
	case BackendNone, BackendMinio, BackendGCS:
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.Storage.Backend)
	}
	return nil
}

func defaultCORSOrigins() []string {
	return []string{
		"http://localhost:3000",
		"http://localhost:5500",
		"http://127.0.0.1:5500",
		"https://*.vercel.app",
	}
}
