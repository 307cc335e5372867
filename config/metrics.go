package config

// InfluxConfig describes the optional InfluxDB sink.
type InfluxConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	Token   string `json:"token"`
	Org     string `json:"org"`
	Bucket  string `json:"bucket"`
}

// MetricsConfig defines settings for metrics sinks.
type MetricsConfig struct {
	// PrometheusPort is the port the /metrics HTTP endpoint listens on.
	// Zero disables the exposer.
	PrometheusPort int          `json:"prometheus_port"`
	Influx         InfluxConfig `json:"influx"`
}

// SetDefaults applies sane defaults.
func (c *MetricsConfig) SetDefaults() {
	if c.PrometheusPort == 0 {
		c.PrometheusPort = 9090
	}
}
