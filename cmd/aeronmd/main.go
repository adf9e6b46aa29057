// Package main implements the media driver daemon. The driver owns the
// shared memory directory and the UDP sockets; publisher and subscriber
// processes attach through the admin buffers it maps at startup.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/chris-numeus/aeron/config"
	"github.com/chris-numeus/aeron/driver"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "aeronmd"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Media driver failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting media driver",
		"version", Version,
		"build_time", BuildTime,
		"dir", cliCfg.AeronDir)

	ctx, err := buildContext(cliCfg)
	if err != nil {
		return fmt.Errorf("build driver context: %w", err)
	}

	md, err := driver.NewMediaDriver(ctx, logger)
	if err != nil {
		return fmt.Errorf("create media driver: %w", err)
	}

	md.Launch()
	return runUntilSignalled(md, logger)
}

// buildContext layers CLI flags over the property and default driven
// context.
func buildContext(cliCfg *CLIConfig) (*config.Context, error) {
	ctx := config.NewContext()

	if cliCfg.AeronDir != "" {
		ctx.AeronDir = cliCfg.AeronDir
	}
	if cliCfg.TermBufferLength > 0 {
		ctx.TermBufferLength = int32(cliCfg.TermBufferLength)
	}
	if cliCfg.MTULength > 0 {
		ctx.MTULength = int32(cliCfg.MTULength)
	}
	if cliCfg.EventLog != "" {
		ctx.EventLogSpec = cliCfg.EventLog
	}
	if cliCfg.MetricsAddr != "" {
		ctx.MetricsAddr = cliCfg.MetricsAddr
	}
	if cliCfg.DeleteDirOnStart {
		ctx.DirDeleteOnStart = true
	}
	if cliCfg.DeleteDirOnShutdown {
		ctx.DirDeleteOnShutdown = true
	}

	if err := ctx.Conclude(); err != nil {
		return nil, err
	}
	return ctx, nil
}

// runUntilSignalled blocks until SIGINT or SIGTERM, then closes the driver.
func runUntilSignalled(md *driver.MediaDriver, logger *slog.Logger) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("Shutdown signal received", "signal", sig.String())

	if err := md.Close(); err != nil {
		return fmt.Errorf("close media driver: %w", err)
	}
	logger.Info("Media driver stopped")
	return nil
}
