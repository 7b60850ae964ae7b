// FILE: wxsdr/src/cmd/wxsdr/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"wxsdr/src/internal/config"
	"wxsdr/src/internal/metric"
	"wxsdr/src/internal/packet"
	"wxsdr/src/internal/proc"
	"wxsdr/src/internal/service"
	"wxsdr/src/internal/status"
	"wxsdr/src/internal/version"

	"github.com/lixenwraith/log"
)

var logger *log.Logger

func main() {
	if err := parseFlags(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	// No config needed to list what the parser understands
	if *listSupported {
		for _, f := range packet.Families() {
			fmt.Println(f)
		}
		os.Exit(0)
	}

	// Set config file environment if specified
	if *configFile != "" {
		os.Setenv("WXSDR_CONFIG_FILE", *configFile)
	}

	cfg, err := config.LoadWithCLI(os.Args[1:])
	if err != nil {
		if *configFile != "" && strings.Contains(err.Error(), "not found") {
			fatalError(2, "Config file not found: %s\n", *configFile)
		}
		fatalError(1, "Failed to load config: %v\n", err)
	}

	if err := initializeLogger(cfg); err != nil {
		fatalError(1, "Failed to initialize logger: %v\n", err)
	}
	defer shutdownLogger()

	metric.Init()

	if *showPackets {
		if err := runShowPackets(cfg); err != nil {
			logger.Error("msg", "Packet inspection failed", "error", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	logger.Info("msg", "wxsdr starting",
		"version", version.String(),
		"config_file", *configFile,
		"command", cfg.Process.Command,
		"log_output", cfg.Logging.Output)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	runner := proc.NewRunner(cfg.Process, logger)

	emitters, err := buildEmitters(cfg)
	if err != nil {
		logger.Error("msg", "Failed to create emitters", "error", err)
		os.Exit(1)
	}

	pipeline, err := service.NewPipeline(ctx, cfg, runner, emitters, logger)
	if err != nil {
		logger.Error("msg", "Failed to create pipeline", "error", err)
		os.Exit(1)
	}

	if err := pipeline.Start(); err != nil {
		logger.Error("msg", "Failed to start pipeline", "error", err)
		os.Exit(1)
	}

	var statusServer *status.Server
	if cfg.Status.Enabled {
		statusServer = status.NewServer(cfg.Status.Port, pipeline, logger)
		if err := statusServer.Start(ctx); err != nil {
			logger.Error("msg", "Failed to start status server", "error", err)
			pipeline.Shutdown()
			os.Exit(1)
		}
	}

	exitCode := 0
	select {
	case sig := <-sigChan:
		logger.Info("msg", "Shutdown signal received, starting graceful shutdown...",
			"signal", sig.String())
	case err := <-pipeline.Fatal():
		logger.Error("msg", "Pipeline failed, shutting down", "error", err)
		exitCode = 1
	}

	if statusServer != nil {
		statusServer.Stop()
	}

	// Shutdown pipeline with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		pipeline.Shutdown()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("msg", "Shutdown complete")
	case <-shutdownCtx.Done():
		logger.Error("msg", "Shutdown timeout exceeded - forcing exit")
		os.Exit(1)
	}

	if exitCode != 0 {
		shutdownLogger()
		os.Exit(exitCode)
	}
}

func shutdownLogger() {
	if logger != nil {
		if err := logger.Shutdown(2 * time.Second); err != nil {
			fmt.Fprintf(os.Stderr, "Logger shutdown error: %v\n", err)
		}
	}
}
