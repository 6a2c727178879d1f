package config

// Config represents the persistent loom configuration stored as config.toml
// in the .loom/ directory. The TOML layout uses sections for logical
// grouping.
type Config struct {
	Version int           `toml:"version"`
	Storage StorageConfig `toml:"storage"`
	Log     LogConfig     `toml:"log"`
	Events  EventsConfig  `toml:"events"`
}

// StorageConfig selects and parameterizes the storage backend.
type StorageConfig struct {
	// Backend is "sqlite", "postgres", or "memory".
	Backend string `toml:"backend,omitempty"`

	// SQLitePath is the database file path for the sqlite backend.
	// Empty means <dotdir>/loom.db.
	SQLitePath string `toml:"sqlite_path,omitempty"`

	// PostgresDSN is the connection string for the postgres backend.
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Debug  bool `toml:"debug,omitempty"`
	Pretty bool `toml:"pretty,omitempty"`
	JSON   bool `toml:"json,omitempty"`
}

// EventsConfig holds node event streaming settings.
type EventsConfig struct {
	Enabled bool     `toml:"enabled,omitempty"`
	Brokers []string `toml:"brokers,omitempty"`
	Topic   string   `toml:"topic,omitempty"`
}
