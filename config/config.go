package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"go.yaml.in/yaml/v4"
)

type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Firestore FirestoreConfig `yaml:"firestore"`
	Mongo     MongoConfig     `yaml:"mongo"`
	Database  DatabaseConfig  `yaml:"database"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Tasks     TasksConfig     `yaml:"tasks"`
	Push      PushConfig      `yaml:"push"`
	Backend   BackendConfig   `yaml:"backend"`
	Tracing   TracingConfig   `yaml:"tracing"`
	LiveCalls LiveCallsConfig `yaml:"livecalls"`
}

type StoreConfig struct {
	Backend string `yaml:"backend"` // "firestore" | "mongo" | "memory"
	// AuditBackend "postgres" пишет историю уведомлений в Postgres, иначе в основной store.
	AuditBackend string `yaml:"audit_backend"`
}

type FirestoreConfig struct {
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                  string `yaml:"host"`
	Port                  int    `yaml:"port"`
	NotificationTopicName string `yaml:"notification_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type TasksConfig struct {
	Backend             string `yaml:"backend"` // "cloudtasks" | "fake"
	ProjectID           string `yaml:"project_id"`
	Location            string `yaml:"location"`
	Queue               string `yaml:"queue"`
	CallbackURL         string `yaml:"callback_url"`
	ServiceAccountEmail string `yaml:"service_account_email"`
	CredentialsFile     string `yaml:"credentials_file"`
}

type PushConfig struct {
	Backend         string `yaml:"backend"` // "fcm" | "fake"
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`
}

type BackendConfig struct {
	Host  string `yaml:"host"`
	Token string `yaml:"token"`
}

type TracingConfig struct {
	Endpoint    string `yaml:"endpoint"` // host:port коллектора OTLP/HTTP
	ServiceName string `yaml:"service_name"`
	Insecure    bool   `yaml:"insecure"`
}

type LiveCallsConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	WorkerHTTPAddr     string `yaml:"worker_http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`
	LogLevel           string `yaml:"log_level"`

	// NotificationMode: "inline" доставляет в пуле внутри API, "kafka" через notify-worker.
	NotificationMode        string `yaml:"notification_mode"`
	NotificationConcurrency int    `yaml:"notification_concurrency"`

	DeviceCacheTTLSeconds int `yaml:"device_cache_ttl_seconds"`
	DedupTTLSeconds       int `yaml:"dedup_ttl_seconds"`

	PushMaxAttempts    int `yaml:"push_max_attempts"`
	PushBackoff1Millis int `yaml:"push_backoff_1_millis"`
	PushBackoff2Millis int `yaml:"push_backoff_2_millis"`
	PushBackoff3Millis int `yaml:"push_backoff_3_millis"`

	SearchMaxRadiusKm float64 `yaml:"search_max_radius_km"`
}

// envOverrides are secrets and deployment-specific values that must not live in the YAML file.
type envOverrides struct {
	BackendHost       string `envconfig:"BACKEND_HOST"`
	BackendToken      string `envconfig:"BACKEND_TOKEN"`
	DatabasePassword  string `envconfig:"DATABASE_PASSWORD"`
	MongoURI          string `envconfig:"MONGO_URI"`
	GoogleCredentials string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`
	TasksCallbackURL  string `envconfig:"TASKS_CALLBACK_URL"`
	TracingEndpoint   string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	if err := applyEnv(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("failed to read env overrides: %w", err)
	}
	setIfNotEmpty(&cfg.Backend.Host, env.BackendHost)
	setIfNotEmpty(&cfg.Backend.Token, env.BackendToken)
	setIfNotEmpty(&cfg.Database.Password, env.DatabasePassword)
	setIfNotEmpty(&cfg.Mongo.URI, env.MongoURI)
	setIfNotEmpty(&cfg.Tasks.CallbackURL, env.TasksCallbackURL)
	setIfNotEmpty(&cfg.Tracing.Endpoint, env.TracingEndpoint)
	if env.GoogleCredentials != "" {
		setIfEmpty(&cfg.Firestore.CredentialsFile, env.GoogleCredentials)
		setIfEmpty(&cfg.Tasks.CredentialsFile, env.GoogleCredentials)
		setIfEmpty(&cfg.Push.CredentialsFile, env.GoogleCredentials)
	}
	return nil
}

func setIfNotEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setIfEmpty(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}
