package cmd

import "time"

type DatastoreConfig struct {
	// Engine is one of "memory", "sqlite" or "postgres".
	Engine string

	// URI is the connection string for the SQL engines.
	URI string
}

type RedisConfig struct {
	// Addrs is a comma separated host:port list. Empty selects the
	// in-process set store, which only makes sense together with the memory
	// datastore.
	Addrs    string
	Username string
	Password string
	DB       int
}

type Config struct {
	HTTPAddr string

	Datastore DatastoreConfig
	Redis     RedisConfig

	// CacheTTL bounds the per-filter audience cache entries.
	CacheTTL time.Duration

	// PushEndpoints maps a device type to its provider webhook.
	PushEndpoints map[string]string

	LogFormat string
	LogLevel  string
}

func DefaultConfig() *Config {
	return &Config{
		HTTPAddr: "0.0.0.0:8080",
		Datastore: DatastoreConfig{
			Engine: "memory",
		},
		Redis: RedisConfig{
			Addrs: "localhost:6379",
		},
		CacheTTL:      3 * time.Hour,
		PushEndpoints: map[string]string{},
		LogFormat:     "text",
		LogLevel:      "info",
	}
}
