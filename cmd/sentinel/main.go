// Package main is the sentinel command line scanner.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"sentinel/internal/config"
	sanitize "sentinel/internal/errors"
	"sentinel/internal/logging"
	"sentinel/internal/publish"
)

var version = "dev"

// Exit codes.
const (
	exitOK        = 0
	exitError     = 1
	exitThreshold = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var code int
	switch os.Args[1] {
	case "scan":
		code = runScanCmd(ctx, os.Args[2:], os.Stdout)
	case "sequence":
		code = runSequenceCmd(ctx, os.Args[2:], os.Stdout)
	case "doctor":
		code = runDoctorCmd(ctx, os.Args[2:], os.Stdout)
	case "version", "-version", "--version", "-v":
		fmt.Printf("sentinel %s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown subcommand: %s\n", os.Args[1])
		printUsage()
		code = exitError
	}
	stop()
	os.Exit(code)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: sentinel <command> [flags] [args]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  scan      Scan Solidity files or directories\n")
	fmt.Fprintf(os.Stderr, "  sequence  Detect exploit patterns in a transaction log\n")
	fmt.Fprintf(os.Stderr, "  doctor    Check configuration, rules and external tools\n")
	fmt.Fprintf(os.Stderr, "  version   Show version and exit\n")
}

// commonFlags are shared by scan and sequence.
type commonFlags struct {
	configPath string
	jsonOut    bool
	publish    bool
	failOn     string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "Path to config file (default $SENTINEL_CONFIG_PATH or "+config.DefaultPath+")")
	fs.BoolVar(&c.jsonOut, "json", false, "Print results as JSON")
	fs.BoolVar(&c.publish, "publish", false, "Publish results to Kafka")
	fs.StringVar(&c.failOn, "fail-on", "", "Exit 2 when any result reaches this level (low, medium, high, critical)")
}

// setup loads configuration and installs the process logger.
func (c *commonFlags) setup() (*config.Config, *slog.Logger, error) {
	var (
		cfg *config.Config
		err error
	)
	if c.configPath != "" {
		if _, statErr := os.Stat(c.configPath); statErr != nil {
			return nil, nil, fmt.Errorf("config file: %w", statErr)
		}
		cfg, err = config.LoadPath(c.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, err
	}
	if c.publish {
		cfg.Publish.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if c.failOn != "" && levelRank(c.failOn) == 0 {
		return nil, nil, fmt.Errorf("invalid -fail-on level %q", c.failOn)
	}

	logger, err := logging.New(os.Stderr, cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	sanitize.SetProductionMode(cfg.ProductionMode)

	return cfg, logger, nil
}

// newPublisher combines the configured sinks. A notifier that cannot
// connect is logged and skipped; Kafka failures are fatal.
func newPublisher(cfg *config.Config, logger *slog.Logger) (publish.Publisher, error) {
	var pubs []publish.Publisher
	if cfg.Publish.Enabled {
		kp, err := publish.NewKafkaPublisher(cfg.Publish, version, logger)
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, kp)
	}
	if cfg.Notify.Enabled {
		rp, err := publish.NewRedisPublisher(cfg.Notify, version, logger)
		if err != nil {
			logger.Warn("live notifications disabled", "error", err)
		} else {
			pubs = append(pubs, rp)
		}
	}
	return publish.Combine(pubs...), nil
}

func levelRank(level string) int {
	switch strings.ToLower(level) {
	case "low":
		return 1
	case "medium":
		return 2
	case "high":
		return 3
	case "critical":
		return 4
	}
	return 0
}

// reached reports whether level is at or above threshold. An empty
// threshold is never reached.
func reached(level, threshold string) bool {
	t := levelRank(threshold)
	return t > 0 && levelRank(level) >= t
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fail(err error) int {
	fmt.Fprintf(os.Stderr, "Error: %s\n", sanitize.SafeErrorMessage(err))
	return exitError
}
