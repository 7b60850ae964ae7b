// FILE: wxsdr/src/cmd/wxsdr/bootstrap.go
package main

import (
	"fmt"
	"os"
	"strings"

	"wxsdr/src/internal/config"
	"wxsdr/src/internal/emit"
	"wxsdr/src/internal/proc"
	"wxsdr/src/internal/service"

	"github.com/lixenwraith/log"
)

// buildEmitters assembles the optional batch outputs from configuration
func buildEmitters(cfg *config.Config) ([]emit.Emitter, error) {
	var emitters []emit.Emitter
	if cfg.Console.Enabled {
		emitters = append(emitters, emit.NewConsoleEmitter(os.Stdout, logger))
	}
	if cfg.MQTT.Enabled {
		mqttEmitter, err := emit.NewMQTTEmitter(cfg.MQTT, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create MQTT emitter: %w", err)
		}
		emitters = append(emitters, mqttEmitter)
	}
	return emitters, nil
}

// runShowPackets streams decoder output to stdout, tagging every block as
// parsed or unparsed. Used to identify sensors in range before authoring a
// sensor map; nothing is mapped or accumulated.
func runShowPackets(cfg *config.Config) error {
	runner := proc.NewRunner(cfg.Process, logger)
	src := service.LineSource(runner)

	lines := src.Subscribe()
	if err := src.Start(); err != nil {
		return err
	}
	defer src.Stop()

	inspector := service.NewInspector(cfg, logger)
	for line := range lines {
		for _, out := range inspector.Inspect(line) {
			fmt.Println(out)
		}
	}
	return nil
}

// initializeLogger sets up the logger based on configuration
func initializeLogger(cfg *config.Config) error {
	logger = log.NewLogger()

	var configArgs []string

	if *quiet {
		configArgs = append(configArgs,
			"disable_file=true",
			"enable_console=false",
			"level=255")
		return logger.ApplyConfigString(configArgs...)
	}

	level := cfg.Logging.Level
	if *logLevel != "" {
		level = *logLevel
	}
	levelValue, err := parseLogLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	configArgs = append(configArgs, fmt.Sprintf("level=%d", levelValue))

	output := cfg.Logging.Output
	if *logOutput != "" {
		output = *logOutput
	}
	switch output {
	case "none":
		configArgs = append(configArgs, "disable_file=true", "enable_console=false")

	case "stdout":
		configArgs = append(configArgs,
			"disable_file=true",
			"enable_console=true",
			"console_target=stdout")

	case "", "stderr":
		configArgs = append(configArgs,
			"disable_file=true",
			"enable_console=true",
			"console_target=stderr")

	case "file":
		configArgs = append(configArgs,
			"enable_console=false",
			fmt.Sprintf("directory=%s", cfg.Logging.Directory),
			fmt.Sprintf("name=%s", cfg.Logging.Name))

	default:
		return fmt.Errorf("invalid log output mode: %s", output)
	}

	return logger.ApplyConfigString(configArgs...)
}

func parseLogLevel(level string) (int, error) {
	switch strings.ToLower(level) {
	case "debug":
		return int(log.LevelDebug), nil
	case "info":
		return int(log.LevelInfo), nil
	case "warn", "warning":
		return int(log.LevelWarn), nil
	case "error":
		return int(log.LevelError), nil
	default:
		return 0, fmt.Errorf("unknown level: %s", level)
	}
}

func fatalError(code int, format string, args ...any) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(code)
}
