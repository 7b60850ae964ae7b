// FILE: wxsdr/src/internal/config/config.go
package config

import (
	"fmt"
	"time"
)

type Config struct {
	Process  ProcessConfig  `toml:"process"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Sensors  SensorsConfig  `toml:"sensors"`
	Console  ConsoleConfig  `toml:"console"`
	MQTT     MQTTConfig     `toml:"mqtt"`
	Status   StatusConfig   `toml:"status"`
	Logging  LoggingConfig  `toml:"logging"`
}

// ProcessConfig describes the external decoder invocation and its restart
// policy. Command and args are accepted as-resolved; the core never searches
// the filesystem for alternatives.
type ProcessConfig struct {
	Command       string   `toml:"command"`
	Args          []string `toml:"args"`
	Path          string   `toml:"path"`
	LDLibraryPath string   `toml:"ld_library_path"`
	BufferSize    int      `toml:"buffer_size"`

	BackoffMinMs         int `toml:"backoff_min_ms"`
	BackoffMaxMs         int `toml:"backoff_max_ms"`
	RestartBudget        int `toml:"restart_budget"`
	RestartWindowMinutes int `toml:"restart_window_minutes"`
}

func (p ProcessConfig) BackoffMin() time.Duration {
	return time.Duration(p.BackoffMinMs) * time.Millisecond
}

func (p ProcessConfig) BackoffMax() time.Duration {
	return time.Duration(p.BackoffMaxMs) * time.Millisecond
}

func (p ProcessConfig) RestartWindow() time.Duration {
	return time.Duration(p.RestartWindowMinutes) * time.Minute
}

func (p ProcessConfig) RestartBudgetCount() int {
	if p.RestartBudget < 1 {
		return 1
	}
	return p.RestartBudget
}

func (p ProcessConfig) BufferSizeOrDefault() int {
	if p.BufferSize < 1 {
		return 1000
	}
	return p.BufferSize
}

// PipelineConfig controls accumulation cadence and diagnostics
type PipelineConfig struct {
	PollIntervalSeconds int  `toml:"poll_interval_seconds"`
	BlockMaxAgeMs       int  `toml:"block_max_age_ms"`
	LogUnknownSensors   bool `toml:"log_unknown_sensors"`
	LogUnmappedSensors  bool `toml:"log_unmapped_sensors"`
	StaleAfterSeconds   int  `toml:"stale_after_seconds"`
}

func (p PipelineConfig) PollInterval() time.Duration {
	return time.Duration(p.PollIntervalSeconds) * time.Second
}

func (p PipelineConfig) BlockMaxAge() time.Duration {
	return time.Duration(p.BlockMaxAgeMs) * time.Millisecond
}

func (p PipelineConfig) StaleAfter() time.Duration {
	return time.Duration(p.StaleAfterSeconds) * time.Second
}

// SensorsConfig holds the user-authored sensor map and the counter-delta
// table. Map keys are output field names, values are identity-key patterns:
//
//	[sensors.map]
//	outTemp = "temperature.0BFA.Acurite5n1Packet"
//	inTemp  = "temperature.*.AcuriteTowerPacket"
//
//	[sensors.deltas]
//	rain = "rain_total"
type SensorsConfig struct {
	Map    map[string]string `toml:"map"`
	Deltas map[string]string `toml:"deltas"`
}

// ConsoleConfig enables writing each flushed batch to stdout as one JSON
// line, the simplest way to pipe batches into another process
type ConsoleConfig struct {
	Enabled bool `toml:"enabled"`
}

// MQTTConfig describes the optional batch publisher
type MQTTConfig struct {
	Enabled  bool   `toml:"enabled"`
	Broker   string `toml:"broker"`
	ClientID string `toml:"client_id"`
	Topic    string `toml:"topic"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	QoS      int    `toml:"qos"`
}

// StatusConfig describes the optional HTTP status/metrics server
type StatusConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

// LoggingConfig controls the service's own log output
type LoggingConfig struct {
	Level     string `toml:"level"`
	Output    string `toml:"output"` // stdout, stderr, file, none
	Directory string `toml:"directory"`
	Name      string `toml:"name"`
}

func (c *Config) validate() error {
	if c.Process.Command == "" {
		return fmt.Errorf("process command must not be empty")
	}
	if c.Process.BackoffMinMs < 100 {
		return fmt.Errorf("backoff_min_ms too small: %d (min: 100)", c.Process.BackoffMinMs)
	}
	if c.Process.BackoffMaxMs < c.Process.BackoffMinMs {
		return fmt.Errorf("backoff_max_ms %d below backoff_min_ms %d",
			c.Process.BackoffMaxMs, c.Process.BackoffMinMs)
	}
	if c.Process.RestartBudget < 1 {
		return fmt.Errorf("restart_budget must be positive: %d", c.Process.RestartBudget)
	}
	if c.Process.RestartWindowMinutes < 1 {
		return fmt.Errorf("restart_window_minutes must be positive: %d", c.Process.RestartWindowMinutes)
	}

	if c.Pipeline.PollIntervalSeconds < 1 {
		return fmt.Errorf("poll_interval_seconds must be positive: %d", c.Pipeline.PollIntervalSeconds)
	}
	if c.Pipeline.BlockMaxAgeMs < 100 {
		return fmt.Errorf("block_max_age_ms too small: %d (min: 100)", c.Pipeline.BlockMaxAgeMs)
	}
	if c.Pipeline.StaleAfterSeconds < 0 {
		return fmt.Errorf("stale_after_seconds cannot be negative: %d", c.Pipeline.StaleAfterSeconds)
	}

	for deltaField, totalField := range c.Sensors.Deltas {
		if deltaField == "" || totalField == "" {
			return fmt.Errorf("deltas: empty field name in '%s = %s'", deltaField, totalField)
		}
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return fmt.Errorf("mqtt enabled but broker not set")
		}
		if c.MQTT.Topic == "" {
			return fmt.Errorf("mqtt enabled but topic not set")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt qos must be 0, 1 or 2: %d", c.MQTT.QoS)
		}
	}

	if c.Status.Enabled {
		if c.Status.Port < 1 || c.Status.Port > 65535 {
			return fmt.Errorf("invalid status port: %d", c.Status.Port)
		}
	}

	switch c.Logging.Output {
	case "", "stdout", "stderr", "none":
	case "file":
		if c.Logging.Directory == "" {
			return fmt.Errorf("logging output 'file' requires a directory")
		}
	default:
		return fmt.Errorf("invalid logging output: %s", c.Logging.Output)
	}

	return nil
}
