package config

const (
	defaultBackend     = "sqlite"
	defaultEventsTopic = "loom.nodes"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Backend: defaultBackend,
		},
		Log: LogConfig{
			Pretty: true,
		},
		Events: EventsConfig{
			Topic: defaultEventsTopic,
		},
	}
}
