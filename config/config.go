package config

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	ServerPort int    `env:"SERVER_PORT, default=8080"`
	Env        string `env:"ENV, default=production"`
	LogLevel   string `env:"LOG_LEVEL, default=info"`
	LogPretty  bool   `env:"LOG_PRETTY, default=false"`

	// CORSOrigins lists the origins allowed to call /api. "*" allows any.
	CORSOrigins []string `env:"CORS_ORIGINS, default=*"`

	// CatalogFile optionally points at a YAML node catalog served by /api/config.
	CatalogFile string `env:"CATALOG_FILE"`

	Database  DatabaseConfig
	Auth      AuthConfig
	Resources ResourceConfig
	Artifacts ArtifactConfig
	Minio     MinioConfig
	GCS       GCSConfig
	S3        S3Config
	Events    EventConfig
	RabbitMQ  RabbitMQConfig
	PubSub    PubSubConfig
	Redis     RedisConfig
}

type DatabaseConfig struct {
	Host     string `env:"DB_HOST, default=localhost"`
	Port     int    `env:"DB_PORT, default=5432"`
	User     string `env:"DB_USER, default=aimaster"`
	Password string `env:"DB_PASSWORD, default=password"`
	DBName   string `env:"DB_NAME, default=aimaster_db"`
	UseSSL   bool   `env:"DB_USE_SSL, default=false"`
}

type AuthConfig struct {
	// SessionSecret signs the ambient session cookie. Cookie sessions are
	// disabled when it is empty and only bearer tokens are accepted.
	SessionSecret string        `env:"SESSION_SECRET"`
	SessionTTL    time.Duration `env:"SESSION_TTL, default=24h"`
	SecureCookie  bool          `env:"SESSION_SECURE_COOKIE, default=false"`
	SeedCredits   int           `env:"SEED_CREDITS, default=5"`
}

type ResourceConfig struct {
	// StrictNodes requires every node to be an object with id, type and config.
	StrictNodes bool `env:"STRICT_NODES, default=false"`
}

type ArtifactConfig struct {
	// Backend is one of local, minio, gcs, s3.
	Backend string `env:"ARTIFACTS_BACKEND, default=local"`
	// LocalDir is the root directory for the local backend.
	LocalDir string `env:"ARTIFACTS_LOCAL_DIR, default=./static"`
	// PublicBaseURL prefixes artifact keys to build their public URL.
	PublicBaseURL string `env:"ARTIFACTS_PUBLIC_BASE_URL, default=/static"`
}

type MinioConfig struct {
	Endpoint  string `env:"MINIO_ENDPOINT"`
	AccessKey string `env:"MINIO_ACCESS_KEY"`
	SecretKey string `env:"MINIO_SECRET_KEY"`
	Bucket    string `env:"MINIO_BUCKET, default=aimaster-artifacts"`
	UseSSL    bool   `env:"MINIO_USE_SSL, default=false"`
}

type GCSConfig struct {
	Bucket          string `env:"GCS_BUCKET"`
	ProjectID       string `env:"GCS_PROJECT_ID"`
	CredentialsFile string `env:"GCS_CREDENTIALS_FILE"`
}

type S3Config struct {
	Region       string `env:"S3_REGION, default=us-east-1"`
	AccessKey    string `env:"S3_ACCESS_KEY"`
	SecretKey    string `env:"S3_SECRET_KEY"`
	BaseEndpoint string `env:"S3_BASE_ENDPOINT"`
	Bucket       string `env:"S3_BUCKET"`
}

type EventConfig struct {
	// Backend is one of none, rabbitmq, pubsub.
	Backend string `env:"EVENTS_BACKEND, default=none"`
	Channel string `env:"EVENTS_CHANNEL, default=actuar.published"`
}

type RabbitMQConfig struct {
	URL             string `env:"RABBITMQ_URL"`
	QueueDurable    bool   `env:"RABBITMQ_QUEUE_DURABLE, default=true"`
	QueueAutoDelete bool   `env:"RABBITMQ_QUEUE_AUTO_DELETE, default=false"`
	PrefetchCount   int    `env:"RABBITMQ_PREFETCH, default=10"`
}

type PubSubConfig struct {
	ProjectID          string `env:"PUBSUB_PROJECT_ID"`
	CredentialsFile    string `env:"PUBSUB_CREDENTIALS_FILE"`
	SubscriptionSuffix string `env:"PUBSUB_SUBSCRIPTION_SUFFIX, default=-sub"`
}

type RedisConfig struct {
	// Addr enables the lookup cache when set.
	Addr     string        `env:"REDIS_ADDR"`
	DB       int           `env:"REDIS_DB, default=0"`
	Timeout  time.Duration `env:"REDIS_TIMEOUT, default=5s"`
	CacheTTL time.Duration `env:"LOOKUP_CACHE_TTL, default=10m"`
}

// LoadConfig reads the configuration from the environment, loading a .env
// file first when ENV=dev.
func LoadConfig(ctx context.Context) (Config, error) {
	if os.Getenv("ENV") == "dev" {
		_ = godotenv.Load()
	}
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
