// FILE: wxsdr/src/internal/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"wxsdr/src/internal/core"

	lconfig "github.com/lixenwraith/config"
)

func defaults() *Config {
	return &Config{
		Process: ProcessConfig{
			Command:              core.DefaultCommand,
			Args:                 core.DefaultArgs,
			BufferSize:           1000,
			BackoffMinMs:         1000,
			BackoffMaxMs:         60000,
			RestartBudget:        5,
			RestartWindowMinutes: 10,
		},
		Pipeline: PipelineConfig{
			PollIntervalSeconds: 10,
			BlockMaxAgeMs:       2000,
		},
		Sensors: SensorsConfig{
			// rain is a cumulative gauge on every family that reports it
			Deltas: map[string]string{"rain": "rain_total"},
		},
		MQTT: MQTTConfig{
			ClientID: "wxsdr",
			Topic:    "wxsdr/loop",
			QoS:      0,
		},
		Status: StatusConfig{
			Port: 8433,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stderr",
			Name:   "wxsdr",
		},
	}
}

func LoadWithCLI(cliArgs []string) (*Config, error) {
	configPath := GetConfigPath()

	cfg, err := lconfig.NewBuilder().
		WithDefaults(defaults()).
		WithEnvPrefix("WXSDR_").
		WithFile(configPath).
		WithArgs(cliArgs).
		WithEnvTransform(customEnvTransform).
		WithSources(
			lconfig.SourceCLI,
			lconfig.SourceEnv,
			lconfig.SourceFile,
			lconfig.SourceDefault,
		).
		Build()

	if err != nil {
		if !strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	finalConfig := &Config{}
	if err := cfg.Scan(finalConfig); err != nil {
		return nil, fmt.Errorf("failed to scan config: %w", err)
	}

	return finalConfig, finalConfig.validate()
}

func customEnvTransform(path string) string {
	env := strings.ReplaceAll(path, ".", "_")
	env = strings.ToUpper(env)
	env = "WXSDR_" + env
	return env
}

func GetConfigPath() string {
	if configFile := os.Getenv("WXSDR_CONFIG_FILE"); configFile != "" {
		if filepath.IsAbs(configFile) {
			return configFile
		}
		if configDir := os.Getenv("WXSDR_CONFIG_DIR"); configDir != "" {
			return filepath.Join(configDir, configFile)
		}
		return configFile
	}

	if configDir := os.Getenv("WXSDR_CONFIG_DIR"); configDir != "" {
		return filepath.Join(configDir, "wxsdr.toml")
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config", "wxsdr.toml")
	}

	return "wxsdr.toml"
}
