package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// App mode & server
	Mode          string
	ServerAddr    string
	APIPrefix     string
	TLSCertFile   string
	TLSKeyFile    string
	MaxBodyBytes  int64
	CORSOrigins   []string
	RateLimitAuth int

	// Auth
	JWTSecret  string
	JWTTTL     time.Duration
	BcryptCost int

	// Logging
	LogLevel  string
	LogFormat string

	// Store selection
	StoreDriver string

	// Mongo
	MongoURI          string
	MongoDatabase     string
	MongoTimeout      time.Duration
	MongoTransactions bool

	// Kafka
	EventsEnabled bool
	KafkaBroker   string
	KafkaTopic    string
	KafkaGroupID  string
	KafkaReadTO   time.Duration
	KafkaWriteTO  time.Duration

	// Worker
	WorkerCount     int
	WorkerQueueSize int

	// Cassandra
	CassandraHost     string
	CassandraKeyspace string
	CassandraUsername string
	CassandraPassword string
	CassandraTimeout  time.Duration
	CassandraDC       string
}

var cfg *Config

// Init loads the config using Viper and returns it
func Init() *Config {
	viper.SetDefault("MODE", "server")
	viper.SetDefault("SERVER_ADDR", ":8080")
	viper.SetDefault("API_PREFIX", "/api")
	viper.SetDefault("MAX_BODY_BYTES", 50<<20)
	viper.SetDefault("CORS_ORIGINS", "*")
	viper.SetDefault("RATE_LIMIT_AUTH", 20)

	viper.SetDefault("JWT_TTL", "24h")
	viper.SetDefault("BCRYPT_COST", 10)

	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")

	viper.SetDefault("STORE_DRIVER", "mongo")

	viper.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	viper.SetDefault("MONGO_DATABASE", "twitter")
	viper.SetDefault("MONGO_TIMEOUT", "10s")
	viper.SetDefault("MONGO_TRANSACTIONS", false)

	viper.SetDefault("EVENTS_ENABLED", true)
	viper.SetDefault("KAFKA_BROKER", "localhost:29092")
	viper.SetDefault("KAFKA_TOPIC", "chirp-events")
	viper.SetDefault("KAFKA_GROUP_ID", "reconciler-group")
	viper.SetDefault("KAFKA_READ_TIMEOUT", "10s")
	viper.SetDefault("KAFKA_WRITE_TIMEOUT", "10s")

	viper.SetDefault("WORKER_COUNT", 0)
	viper.SetDefault("WORKER_QUEUE_SIZE", 0)

	viper.SetDefault("CASSANDRA_HOST", "localhost")
	viper.SetDefault("CASSANDRA_KEYSPACE", "chirp")
	viper.SetDefault("CASSANDRA_TIMEOUT", "10s")
	// Optional: Cassandra username/password/DC can be empty

	// Load env variables
	viper.AutomaticEnv()

	// Optional config file support
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	_ = viper.ReadInConfig() // ignore error if no file

	cfg = &Config{
		Mode:              viper.GetString("MODE"),
		ServerAddr:        viper.GetString("SERVER_ADDR"),
		APIPrefix:         strings.TrimSuffix(viper.GetString("API_PREFIX"), "/"),
		TLSCertFile:       viper.GetString("TLS_CERT_FILE"),
		TLSKeyFile:        viper.GetString("TLS_KEY_FILE"),
		MaxBodyBytes:      viper.GetInt64("MAX_BODY_BYTES"),
		CORSOrigins:       splitList(viper.GetString("CORS_ORIGINS")),
		RateLimitAuth:     viper.GetInt("RATE_LIMIT_AUTH"),
		JWTSecret:         viper.GetString("JWT_SECRET"),
		JWTTTL:            parseDuration(viper.GetString("JWT_TTL"), 24*time.Hour),
		BcryptCost:        viper.GetInt("BCRYPT_COST"),
		LogLevel:          viper.GetString("LOG_LEVEL"),
		LogFormat:         viper.GetString("LOG_FORMAT"),
		StoreDriver:       viper.GetString("STORE_DRIVER"),
		MongoURI:          viper.GetString("MONGO_URI"),
		MongoDatabase:     viper.GetString("MONGO_DATABASE"),
		MongoTimeout:      parseDuration(viper.GetString("MONGO_TIMEOUT"), 10*time.Second),
		MongoTransactions: viper.GetBool("MONGO_TRANSACTIONS"),
		EventsEnabled:     viper.GetBool("EVENTS_ENABLED"),
		KafkaBroker:       viper.GetString("KAFKA_BROKER"),
		KafkaTopic:        viper.GetString("KAFKA_TOPIC"),
		KafkaGroupID:      viper.GetString("KAFKA_GROUP_ID"),
		KafkaReadTO:       parseDuration(viper.GetString("KAFKA_READ_TIMEOUT"), 10*time.Second),
		KafkaWriteTO:      parseDuration(viper.GetString("KAFKA_WRITE_TIMEOUT"), 10*time.Second),
		WorkerCount:       viper.GetInt("WORKER_COUNT"),
		WorkerQueueSize:   viper.GetInt("WORKER_QUEUE_SIZE"),
		CassandraHost:     viper.GetString("CASSANDRA_HOST"),
		CassandraKeyspace: viper.GetString("CASSANDRA_KEYSPACE"),
		CassandraUsername: viper.GetString("CASSANDRA_USERNAME"),
		CassandraPassword: viper.GetString("CASSANDRA_PASSWORD"),
		CassandraTimeout:  parseDuration(viper.GetString("CASSANDRA_TIMEOUT"), 10*time.Second),
		CassandraDC:       viper.GetString("CASSANDRA_DC"),
	}

	return cfg
}

func parseDuration(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Get returns the loaded config instance
func Get() *Config {
	return cfg
}
