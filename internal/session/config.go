package session

// Config defines per-connection limits.
type Config struct {
	// MaxLineBytes bounds one input line; longer lines end the session.
	MaxLineBytes int
	// Transport labels logs and metrics ("tcp", "tls", "ws").
	Transport string
}

func DefaultConfig() Config {
	return Config{
		MaxLineBytes: 64 * 1024,
		Transport:    "tcp",
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.MaxLineBytes <= 0 {
		c.MaxLineBytes = def.MaxLineBytes
	}
	if c.Transport == "" {
		c.Transport = def.Transport
	}
	return c
}
