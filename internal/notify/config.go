// Package notify fans ticket events out to delivery sinks through a
// bounded worker pool.
package notify

// Config defines the dispatcher configuration.
type Config struct {
	// Workers is the number of concurrent delivery goroutines.
	Workers int `yaml:"workers"`
	// QueueSize bounds pending notifications. Enqueue drops when full.
	QueueSize int `yaml:"queue_size"`
	// BySink limits concurrent deliveries per sink name.
	BySink map[string]int `yaml:"by_sink"`
	// Webhooks lists URLs that receive every notification as JSON.
	Webhooks []string `yaml:"webhooks"`
}

// DefaultConfig returns the default dispatcher configuration.
func DefaultConfig() *Config {
	return &Config{
		Workers:   4,
		QueueSize: 256,
		BySink: map[string]int{
			"log":     4,
			"webhook": 2,
		},
	}
}

// GetSinkLimit returns the concurrency limit for a sink.
func (c *Config) GetSinkLimit(sinkName string) int {
	if limit, ok := c.BySink[sinkName]; ok && limit > 0 {
		return limit
	}
	// Default limit if not specified
	return 1
}
