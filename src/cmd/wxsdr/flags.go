// FILE: wxsdr/src/cmd/wxsdr/flags.go
package main

import (
	"flag"
	"fmt"
	"os"
)

// Command-line flags
var (
	// General flags
	configFile  = flag.String("config", "", "Config file path")
	showVersion = flag.Bool("version", false, "Show version information")
	quiet       = flag.Bool("quiet", false, "Suppress all log output")

	// Inspection actions
	listSupported = flag.Bool("list-supported", false, "List supported sensor families and exit")
	showPackets   = flag.Bool("show-packets", false, "Print decoder output and parsed packets, do not map or accumulate")

	// Logging flags
	logOutput = flag.String("log-output", "", "Log output: file, stdout, stderr, none (overrides config)")
	logLevel  = flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
)

func init() {
	flag.Usage = customUsage
}

func customUsage() {
	fmt.Fprintf(os.Stderr, "wxsdr - SDR weather sensor ingestion service\n\n")
	fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Options:\n")

	fmt.Fprintf(os.Stderr, "\nGeneral:\n")
	fmt.Fprintf(os.Stderr, "  -config string\n\tConfig file path\n")
	fmt.Fprintf(os.Stderr, "  -version\n\tShow version information\n")
	fmt.Fprintf(os.Stderr, "  -quiet\n\tSuppress all log output\n")

	fmt.Fprintf(os.Stderr, "\nInspection:\n")
	fmt.Fprintf(os.Stderr, "  -list-supported\n\tList supported sensor families and exit\n")
	fmt.Fprintf(os.Stderr, "  -show-packets\n\tPrint decoder output and parsed packets without mapping\n")

	fmt.Fprintf(os.Stderr, "\nLogging:\n")
	fmt.Fprintf(os.Stderr, "  -log-output string\n\tLog output: file, stdout, stderr, none (overrides config)\n")
	fmt.Fprintf(os.Stderr, "  -log-level string\n\tLog level: debug, info, warn, error (overrides config)\n")

	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  # Run with default config\n")
	fmt.Fprintf(os.Stderr, "  %s\n\n", os.Args[0])

	fmt.Fprintf(os.Stderr, "  # Identify sensors in range before writing a sensor map\n")
	fmt.Fprintf(os.Stderr, "  %s --show-packets\n\n", os.Args[0])

	fmt.Fprintf(os.Stderr, "  # Run with custom config and debug logging\n")
	fmt.Fprintf(os.Stderr, "  %s --config /etc/wxsdr.toml --log-level debug\n\n", os.Args[0])

	fmt.Fprintf(os.Stderr, "Environment Variables:\n")
	fmt.Fprintf(os.Stderr, "  WXSDR_CONFIG_FILE  Config file path\n")
	fmt.Fprintf(os.Stderr, "  WXSDR_CONFIG_DIR   Config directory\n")
}

func parseFlags() error {
	flag.Parse()

	if *logOutput != "" {
		validOutputs := map[string]bool{
			"file": true, "stdout": true, "stderr": true, "none": true,
		}
		if !validOutputs[*logOutput] {
			return fmt.Errorf("invalid log-output: %s (valid: file, stdout, stderr, none)", *logOutput)
		}
	}

	if *logLevel != "" {
		validLevels := map[string]bool{
			"debug": true, "info": true, "warn": true, "error": true,
		}
		if !validLevels[*logLevel] {
			return fmt.Errorf("invalid log-level: %s (valid: debug, info, warn, error)", *logLevel)
		}
	}

	return nil
}
