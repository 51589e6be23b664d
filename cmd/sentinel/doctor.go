package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"sentinel/internal/config"
	"sentinel/internal/logging"
	"sentinel/internal/startup"
	"sentinel/internal/summary"
)

// runDoctorCmd reports configuration problems instead of failing on them,
// so it loads without validating.
func runDoctorCmd(ctx context.Context, args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	jsonOut := fs.Bool("json", false, "Print results as JSON")
	fs.Parse(args)

	path := *configPath
	if path == "" {
		path = os.Getenv("SENTINEL_CONFIG_PATH")
	}
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.LoadPath(path)
	if err != nil {
		return fail(err)
	}

	logger, err := logging.New(os.Stderr, cfg.Logging)
	if err != nil {
		logger, _ = logging.New(os.Stderr, logging.Config{})
	}

	d := startup.NewDiagnostics(cfg, path, logger)
	results := d.RunAll(ctx)

	if *jsonOut {
		if err := writeJSON(stdout, results); err != nil {
			return fail(err)
		}
	} else {
		for _, r := range results {
			fmt.Fprintf(stdout, "%s  %-20s %s\n", statusBadge(r.Status), r.Name, r.Message)
		}
	}

	if d.HasErrors() {
		return exitError
	}
	return exitOK
}

func statusBadge(s startup.Status) string {
	token := "info"
	switch s {
	case startup.StatusOK:
		token = "low"
	case startup.StatusWarning:
		token = "medium"
	case startup.StatusError:
		token = "critical"
	}
	return summary.SeverityStyle(token).Render(fmt.Sprintf("%-7s", s))
}
