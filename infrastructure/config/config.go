package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverAmqp     = "amqp"
	DriverNone     = "none"

	ExporterJaeger = "jaeger"
	ExporterOtlp   = "otlp"
)

type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Feed     FeedConfig
	Rooms    RoomsConfig
	Auth     AuthConfig
	Cors     CorsConfig
	Logger   LoggerConfig
	Tracing  TracingConfig
	Sentry   SentryConfig
	Events   EventsConfig
}

type ServerConfig struct {
	InternalPort string
	ExternalPort string
	RunMode      string
	Domain       string
}

type StoreConfig struct {
	Driver string
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DbName          string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Host         string
	Port         string
	Password     string
	Db           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	PoolTimeout  time.Duration
}

type FeedConfig struct {
	Driver               string
	ChannelPrefix        string
	BufferSize           int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
}

type RoomsConfig struct {
	CodeGenerationAttempts int
}

type AuthConfig struct {
	JWTSecret           string
	Issuer              string
	Audience            string
	AllowHeaderIdentity bool
}

type CorsConfig struct {
	AllowOrigins string
}

type LoggerConfig struct {
	FilePath string
	Encoding string
	Level    string
}

type TracingConfig struct {
	Exporter       string
	ServiceName    string
	ServiceVersion string
	Endpoint       string
}

type SentryConfig struct {
	Dsn            string
	Debug          bool
	SendDefaultPII bool
}

type EventsConfig struct {
	Sink         string
	Channel      string
	AmqpURL      string
	Exchange     string
	PersistAudit bool
}

func GetConfig() *Config {
	cfgPath := getConfigPath(os.Getenv("APP_ENV"))
	v, err := LoadConfig(cfgPath, "yml")
	if err != nil {
		log.Fatalf("Error in load config %v", err)
	}

	cfg, err := ParseConfig(v)
	if err != nil {
		log.Fatalf("Error in parse config %v", err)
	}

	if envPort := os.Getenv("PORT"); envPort != "" {
		cfg.Server.ExternalPort = envPort
		log.Printf("Set external port from environment -> %s", cfg.Server.ExternalPort)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	return cfg
}

func ParseConfig(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		log.Printf("Unable to parse config: %v", err)
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func LoadConfig(filename string, fileType string) (*viper.Viper, error) {
	v := newViper()
	v.SetConfigType(fileType)
	v.SetConfigName(filename)

	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")
	v.AddConfigPath("../../config")

	if wd, err := os.Getwd(); err == nil {
		v.AddConfigPath(filepath.Join(wd, "config"))
	}

	return readConfig(v)
}

// LoadConfigFile reads an explicit config file path.
func LoadConfigFile(path string) (*viper.Viper, error) {
	v := newViper()
	v.SetConfigFile(path)
	return readConfig(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("LOBBY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func readConfig(v *viper.Viper) (*viper.Viper, error) {
	if err := v.ReadInConfig(); err != nil {
		log.Printf("Unable to read config: %v", err)
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return nil, errors.New("config file not found")
		}
		return nil, err
	}

	log.Printf("Using config file: %s", v.ConfigFileUsed())
	return v, nil
}

func getConfigPath(env string) string {
	switch env {
	case "docker":
		return "config-docker"
	case "production":
		return "config-production"
	default:
		return "config-development"
	}
}

func (c *Config) applyDefaults() {
	if c.Store.Driver == "" {
		c.Store.Driver = DriverPostgres
	}
	if c.Feed.Driver == "" {
		c.Feed.Driver = DriverRedis
	}
	if c.Feed.ChannelPrefix == "" {
		c.Feed.ChannelPrefix = "lobby:changes:"
	}
	if c.Feed.BufferSize <= 0 {
		c.Feed.BufferSize = 16
	}
	if c.Feed.RetryInitialInterval <= 0 {
		c.Feed.RetryInitialInterval = 250 * time.Millisecond
	}
	if c.Feed.RetryMaxInterval <= 0 {
		c.Feed.RetryMaxInterval = 30 * time.Second
	}
	if c.Rooms.CodeGenerationAttempts <= 0 {
		c.Rooms.CodeGenerationAttempts = 5
	}
	if c.Events.Sink == "" {
		c.Events.Sink = DriverNone
	}
	if c.Events.Channel == "" {
		c.Events.Channel = "lobby:events"
	}
	if c.Events.Exchange == "" {
		c.Events.Exchange = "lobby"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "lobby"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.InternalPort == "" {
		return errors.New("server.internalPort is required")
	}
	if c.Server.ExternalPort == "" {
		return errors.New("server.externalPort is required")
	}

	switch c.Store.Driver {
	case DriverPostgres:
		if c.Postgres.Host == "" {
			return errors.New("postgres.host is required")
		}
		if c.Postgres.Port == "" {
			return errors.New("postgres.port is required")
		}
		if c.Postgres.DbName == "" {
			return errors.New("postgres.dbName is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("store.driver %q is not supported", c.Store.Driver)
	}

	switch c.Feed.Driver {
	case DriverRedis:
	case DriverMemory:
		if c.Store.Driver != DriverMemory {
			return errors.New("feed.driver memory only works with store.driver memory")
		}
	default:
		return fmt.Errorf("feed.driver %q is not supported", c.Feed.Driver)
	}

	if c.UsesRedis() {
		if c.Redis.Host == "" {
			return errors.New("redis.host is required")
		}
		if c.Redis.Port == "" {
			return errors.New("redis.port is required")
		}
	}

	switch c.Events.Sink {
	case DriverNone, DriverRedis:
	case DriverAmqp:
		if c.Events.AmqpURL == "" {
			return errors.New("events.amqpUrl is required for the amqp sink")
		}
	default:
		return fmt.Errorf("events.sink %q is not supported", c.Events.Sink)
	}
	if c.Events.PersistAudit && c.Store.Driver != DriverPostgres {
		return errors.New("events.persistAudit requires store.driver postgres")
	}
	if c.Events.PersistAudit && c.Events.Sink != DriverRedis {
		return errors.New("events.persistAudit requires events.sink redis")
	}

	if c.Auth.JWTSecret == "" && !c.Auth.AllowHeaderIdentity {
		return errors.New("auth.jwtSecret is required unless auth.allowHeaderIdentity is set")
	}

	return nil
}

// UsesRedis reports whether any configured component needs a Redis connection.
func (c *Config) UsesRedis() bool {
	return c.Feed.Driver == DriverRedis || c.Events.Sink == DriverRedis
}

func (c *Config) IsDevelopment() bool {
	return c.Server.RunMode == "debug" || c.Server.RunMode == "development"
}

func (c *Config) IsProduction() bool {
	return c.Server.RunMode == "release" || c.Server.RunMode == "production"
}

func (c *Config) GetPostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.User,
		c.Postgres.Password,
		c.Postgres.DbName,
		c.Postgres.SSLMode,
	)
}

func (c *Config) GetRedisAddress() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf(":%s", c.Server.InternalPort)
}
