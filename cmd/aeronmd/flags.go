package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	AeronDir            string
	TermBufferLength    int
	MTULength           int
	EventLog            string
	MetricsAddr         string
	DeleteDirOnStart    bool
	DeleteDirOnShutdown bool
	LogLevel            string
	LogFormat           string
	Debug               bool
	ShowVersion         bool
	ShowHelp            bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	// Define flags with environment variable fallback
	flag.StringVar(&cfg.AeronDir, "dir",
		getEnv("AERON_DIR", ""),
		"Driver directory, defaults to the aeron.dir property (env: AERON_DIR)")

	flag.IntVar(&cfg.TermBufferLength, "term-length",
		getEnvInt("AERON_TERM_BUFFER_LENGTH", 0),
		"Term buffer length in bytes, power of two (env: AERON_TERM_BUFFER_LENGTH)")

	flag.IntVar(&cfg.MTULength, "mtu",
		getEnvInt("AERON_MTU_LENGTH", 0),
		"Outbound MTU in bytes (env: AERON_MTU_LENGTH)")

	flag.StringVar(&cfg.EventLog, "event-log",
		getEnv("AERON_EVENT_LOG", ""),
		"Comma-separated event codes, or 'all' (env: AERON_EVENT_LOG)")

	flag.StringVar(&cfg.MetricsAddr, "metrics-addr",
		getEnv("AERON_METRICS_ADDR", ""),
		"Prometheus listen address, empty to disable (env: AERON_METRICS_ADDR)")

	flag.BoolVar(&cfg.DeleteDirOnStart, "delete-dir-on-start",
		getEnvBool("AERON_DIR_DELETE_ON_START", false),
		"Remove a stale driver directory before starting (env: AERON_DIR_DELETE_ON_START)")

	flag.BoolVar(&cfg.DeleteDirOnShutdown, "delete-dir-on-shutdown",
		getEnvBool("AERON_DIR_DELETE_ON_SHUTDOWN", true),
		"Remove the driver directory on orderly shutdown (env: AERON_DIR_DELETE_ON_SHUTDOWN)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("AERON_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: AERON_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("AERON_LOG_FORMAT", "json"),
		"Log format: json, text (env: AERON_LOG_FORMAT)")

	flag.BoolVar(&cfg.Debug, "debug",
		getEnvBool("AERON_DEBUG", false),
		"Enable debug mode (env: AERON_DEBUG)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")

	// Custom usage
	flag.Usage = func() {
		printDetailedHelp()
	}

	flag.Parse()

	// Override log level if debug is set
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	// Skip validation for special flags
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	// Validate log level
	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	// Validate log format
	validFormats := []string{"json", "text"}
	if !contains(validFormats, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	if cfg.TermBufferLength < 0 {
		return fmt.Errorf("invalid term buffer length: %d", cfg.TermBufferLength)
	}
	if cfg.MTULength < 0 {
		return fmt.Errorf("invalid MTU length: %d", cfg.MTULength)
	}

	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - Media Driver

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Run with a custom driver directory
  %s --dir=/dev/shm/aeron

  # Run with debug logging and frame tracing
  %s --log-level=debug --log-format=text --event-log=all

  # Run with environment variables
  export AERON_DIR=/dev/shm/aeron
  export AERON_LOG_LEVEL=debug
  %s

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Utility function to check if slice contains string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
