package ioc

import (
	"fmt"
	"net/url"
	"os"
	"time"
)

// Config is the environment-derived bootstrap configuration every cmd/
// entrypoint builds a ContainerBuilder from. Per-tenant/per-brand overrides
// live in the Config Store (C1) once the process is running; this struct
// only carries what's needed before that store exists.
type Config struct {
	Mongo MongoConfig
	Redis RedisConfig
	JWT   JWTConfig
	Kafka KafkaConfig
	AMQP  AMQPConfig
	HTTP  HTTPConfig
}

type MongoConfig struct {
	URI      string
	Database string
}

type RedisConfig struct {
	Addr string // empty disables Redis; the in-process cache is used instead
}

type JWTConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type KafkaConfig struct {
	BootstrapServers string // empty disables Kafka; the in-memory bus is used instead
	GroupID          string
}

type AMQPConfig struct {
	URL   string
	Queue string
}

type HTTPConfig struct {
	Port string
}

// buildMongoURI assembles a MongoDB connection URI from MONGO_URI or, if
// unset, MONGODB_HOST/PORT/DATABASE(+USER/PASSWORD).
func buildMongoURI() string {
	if uri := os.Getenv("MONGO_URI"); uri != "" {
		return uri
	}

	host := os.Getenv("MONGODB_HOST")
	port := os.Getenv("MONGODB_PORT")
	dbName := os.Getenv("MONGODB_DATABASE")
	if host == "" || port == "" || dbName == "" {
		return ""
	}

	user, password := os.Getenv("MONGODB_USER"), os.Getenv("MONGODB_PASSWORD")
	if user != "" && password != "" {
		return fmt.Sprintf("mongodb://%s:%s@%s:%s/%s?authSource=admin",
			url.QueryEscape(user), url.QueryEscape(password), host, port, dbName)
	}
	return fmt.Sprintf("mongodb://%s:%s/%s", host, port, dbName)
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

// EnvironmentConfig reads Config from the process environment.
func EnvironmentConfig() (Config, error) {
	return Config{
		Mongo: MongoConfig{
			URI:      buildMongoURI(),
			Database: os.Getenv("MONGODB_DATABASE"),
		},
		Redis: RedisConfig{
			Addr: os.Getenv("REDIS_ADDR"),
		},
		JWT: JWTConfig{
			Secret:     os.Getenv("JWT_SECRET"),
			AccessTTL:  durationEnv("JWT_ACCESS_TTL", 15*time.Minute),
			RefreshTTL: durationEnv("JWT_REFRESH_TTL", 30*24*time.Hour),
		},
		Kafka: KafkaConfig{
			BootstrapServers: os.Getenv("KAFKA_BOOTSTRAP_SERVERS"),
			GroupID:          envOr("KAFKA_GROUP_ID", "coreledger-platform"),
		},
		AMQP: AMQPConfig{
			URL:   os.Getenv("AMQP_URL"),
			Queue: os.Getenv("AMQP_NOTIFICATIONS_QUEUE"),
		},
		HTTP: HTTPConfig{
			Port: envOr("PORT", "8080"),
		},
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

