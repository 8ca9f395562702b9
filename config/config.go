package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"

	envPrefix = "APPT"
)

type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	GRPC       GRPCConfig       `yaml:"grpc"`
	Database   DatabaseConfig   `yaml:"database"`
	Storage    StorageConfig    `yaml:"storage"`
	Redis      RedisConfig      `yaml:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Scheduling SchedulingConfig `yaml:"scheduling"`
	Payments   PaymentsConfig   `yaml:"payments"`
	Auth       AuthConfig       `yaml:"auth"`
	Log        LogConfig        `yaml:"log"`
	Worker     WorkerConfig     `yaml:"worker"`
}

type HTTPConfig struct {
	Address    string `yaml:"address"`
	SwaggerURL string `yaml:"swagger_url"`
}

type GRPCConfig struct {
	Address string `yaml:"address"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int32  `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
	if d.MaxConns > 0 {
		dsn += fmt.Sprintf(" pool_max_conns=%d", d.MaxConns)
	}
	return dsn
}

type StorageConfig struct {
	Driver string `yaml:"driver"`
	// Seed fills the directory of the memory driver. Postgres ignores it.
	Seed SeedConfig `yaml:"seed"`
}

type SeedConfig struct {
	Doctors  []SeedDoctor  `yaml:"doctors"`
	Patients []SeedPatient `yaml:"patients"`
}

type SeedDoctor struct {
	ID                string `yaml:"id"`
	Name              string `yaml:"name"`
	Email             string `yaml:"email"`
	ConsultationPrice string `yaml:"consultation_price"`
	Inactive          bool   `yaml:"inactive"`
}

type SeedPatient struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Enabled reports whether a redis address was configured. Without one the
// slot cache and slot lock are skipped.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type KafkaConfig struct {
	Brokers                []string `yaml:"brokers"`
	AppointmentEventsTopic string   `yaml:"appointment_events_topic"`
	NotificationsTopic     string   `yaml:"notifications_topic"`
	GroupID                string   `yaml:"group_id"`
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type SchedulingConfig struct {
	Timezone      string `yaml:"timezone"`
	SlotsCacheTTL int    `yaml:"slots_cache_ttl_seconds"`
	SlotLockTTL   int    `yaml:"slot_lock_ttl_seconds"`
	ListLimit     int    `yaml:"list_limit"`
}

// Location resolves the scheduling timezone, UTC when unset.
func (s SchedulingConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(s.Timezone)
}

type PaymentsConfig struct {
	GatewayAddress        string `yaml:"gateway_address"`
	Currency              string `yaml:"currency"`
	TimeoutSeconds        int    `yaml:"timeout_seconds"`
	MaxRetries            int    `yaml:"max_retries"`
	WebhookSecret         string `yaml:"webhook_secret"`
	ReconcileAfterMinutes int    `yaml:"reconcile_after_minutes"`
}

func (p PaymentsConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type WorkerConfig struct {
	ReconcileCron   string `yaml:"reconcile_cron"`
	RemindersCron   string `yaml:"reminders_cron"`
	RefundRetryCron string `yaml:"refund_retry_cron"`
}

// LoadConfig reads the YAML file at path, then applies APPT_* environment
// overrides. A .env file in the working directory is loaded first when present.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnv(cfg)
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		HTTP:       HTTPConfig{Address: ":8080", SwaggerURL: "/openapi.json"},
		GRPC:       GRPCConfig{Address: ":9090"},
		Storage:    StorageConfig{Driver: StorageDriverPostgres},
		Database:   DatabaseConfig{Port: 5432, SSLMode: "disable", MaxConns: 10},
		Scheduling: SchedulingConfig{Timezone: "UTC", SlotsCacheTTL: 60, SlotLockTTL: 10, ListLimit: 100},
		Payments:   PaymentsConfig{GatewayAddress: "localhost:7070", Currency: "USD", TimeoutSeconds: 5, MaxRetries: 3, ReconcileAfterMinutes: 15},
		Log:        LogConfig{Level: "info", Format: "json"},
		Worker: WorkerConfig{
			ReconcileCron:   "*/5 * * * *",
			RemindersCron:   "0 18 * * *",
			RefundRetryCron: "*/10 * * * *",
		},
	}
}

func applyEnv(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	strs := map[string]*string{
		"http.address":             &cfg.HTTP.Address,
		"grpc.address":             &cfg.GRPC.Address,
		"database.host":            &cfg.Database.Host,
		"database.user":            &cfg.Database.User,
		"database.password":        &cfg.Database.Password,
		"database.name":            &cfg.Database.Name,
		"storage.driver":           &cfg.Storage.Driver,
		"redis.addr":               &cfg.Redis.Addr,
		"redis.password":           &cfg.Redis.Password,
		"scheduling.timezone":      &cfg.Scheduling.Timezone,
		"payments.gateway_address": &cfg.Payments.GatewayAddress,
		"payments.webhook_secret":  &cfg.Payments.WebhookSecret,
		"auth.jwt_secret":          &cfg.Auth.JWTSecret,
		"auth.issuer":              &cfg.Auth.Issuer,
		"log.level":                &cfg.Log.Level,
		"log.format":               &cfg.Log.Format,
	}
	for key, dst := range strs {
		if s := v.GetString(key); s != "" {
			*dst = s
		}
	}

	if port := v.GetInt("database.port"); port > 0 {
		cfg.Database.Port = port
	}
	if brokers := v.GetString("kafka.brokers"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
}

// Validate checks the settings every command depends on.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if _, err := c.Scheduling.Location(); err != nil {
		return fmt.Errorf("invalid scheduling timezone %q: %w", c.Scheduling.Timezone, err)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Payments.TimeoutSeconds <= 0 {
		return errors.New("payments.timeout_seconds must be positive")
	}
	if c.Payments.Currency == "" {
		return errors.New("payments.currency is required")
	}
	return nil
}
