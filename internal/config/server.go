package config

// ServerConfig configures the HTTP serving layer.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// MaxFileBytes caps a single uploaded file; larger uploads are rejected.
	MaxFileBytes int64 `yaml:"max_file_bytes"`
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "127.0.0.1",
		Port:         8000,
		MaxFileBytes: 50 * 1024 * 1024,
	}
}
