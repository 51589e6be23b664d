// Package startup runs preflight diagnostics: configuration, rule catalog,
// external analyzers and the result publisher.
package startup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"runtime"
	"time"

	"sentinel/internal/config"
	"sentinel/internal/engine"
	"sentinel/internal/publish"
)

// DiagnosticResult represents the result of a diagnostic check
type DiagnosticResult struct {
	Name    string            `json:"name"`
	Status  Status            `json:"status"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Status represents the status of a diagnostic check
type Status int

const (
	StatusOK Status = iota
	StatusWarning
	StatusError
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWarning:
		return "WARNING"
	case StatusError:
		return "ERROR"
	case StatusSkipped:
		return "SKIPPED"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Diagnostics runs preflight checks against a loaded configuration.
type Diagnostics struct {
	cfg        *config.Config
	configPath string
	results    []DiagnosticResult
	logger     *slog.Logger

	lookPath    func(string) (string, error)
	openNotify  func(publish.RedisConfig) (io.Closer, error)
	dialContext func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewDiagnostics creates a diagnostics runner. configPath is reported in the
// config_file check; an empty path means defaults were used.
func NewDiagnostics(cfg *config.Config, configPath string, logger *slog.Logger) *Diagnostics {
	if logger == nil {
		logger = slog.Default()
	}
	return &Diagnostics{
		cfg:         cfg,
		configPath:  configPath,
		logger:      logger.With("component", "startup"),
		lookPath:    exec.LookPath,
		openNotify:  openRedis,
		dialContext: (&net.Dialer{}).DialContext,
	}
}

func openRedis(cfg publish.RedisConfig) (io.Closer, error) {
	return publish.NewRedisPublisher(cfg, "", nil)
}

// RunAll runs all diagnostic checks
func (d *Diagnostics) RunAll(ctx context.Context) []DiagnosticResult {
	d.results = nil
	d.logger.Info("running preflight diagnostics")

	d.checkSystem()
	d.checkConfiguration()
	d.checkRules()
	d.checkAdapters()
	d.checkPublisher(ctx)
	d.checkNotify()
	d.checkSecurity()

	d.printSummary()
	return d.results
}

// Results returns the results of the last run.
func (d *Diagnostics) Results() []DiagnosticResult {
	return d.results
}

func (d *Diagnostics) addResult(result DiagnosticResult) {
	d.results = append(d.results, result)

	attrs := []any{
		"check", result.Name,
		"status", result.Status.String(),
	}
	if result.Message != "" {
		attrs = append(attrs, "message", result.Message)
	}
	for k, v := range result.Details {
		attrs = append(attrs, k, v)
	}

	switch result.Status {
	case StatusOK:
		d.logger.Info("diagnostic check passed", attrs...)
	case StatusWarning:
		d.logger.Warn("diagnostic check warning", attrs...)
	case StatusError:
		d.logger.Error("diagnostic check failed", attrs...)
	case StatusSkipped:
		d.logger.Debug("diagnostic check skipped", attrs...)
	}
}

func (d *Diagnostics) checkSystem() {
	workers := d.cfg.Scan.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	d.addResult(DiagnosticResult{
		Name:    "runtime",
		Status:  StatusOK,
		Message: "Go runtime detected",
		Details: map[string]string{
			"go_version": runtime.Version(),
			"os":         runtime.GOOS,
			"arch":       runtime.GOARCH,
			"workers":    fmt.Sprintf("%d", workers),
		},
	})

	tmp, err := os.MkdirTemp("", "sentinel-preflight-")
	if err != nil {
		d.addResult(DiagnosticResult{
			Name:    "temp_dir",
			Status:  StatusError,
			Message: fmt.Sprintf("Temporary directory is not writable: %s", err),
			Details: map[string]string{"path": os.TempDir()},
		})
		return
	}
	os.RemoveAll(tmp)
	d.addResult(DiagnosticResult{
		Name:    "temp_dir",
		Status:  StatusOK,
		Message: "Temporary directory is writable",
		Details: map[string]string{"path": os.TempDir()},
	})
}

func (d *Diagnostics) checkConfiguration() {
	if d.configPath == "" {
		d.addResult(DiagnosticResult{
			Name:    "config_file",
			Status:  StatusWarning,
			Message: "Config file not found, using defaults",
		})
	} else if !fileExists(d.configPath) {
		d.addResult(DiagnosticResult{
			Name:    "config_file",
			Status:  StatusWarning,
			Message: "Config file not found, using defaults",
			Details: map[string]string{"path": d.configPath},
		})
	} else {
		d.addResult(DiagnosticResult{
			Name:    "config_file",
			Status:  StatusOK,
			Message: "Config file found",
			Details: map[string]string{"path": d.configPath},
		})
	}

	if err := d.cfg.Validate(); err != nil {
		d.addResult(DiagnosticResult{
			Name:    "config_validation",
			Status:  StatusError,
			Message: fmt.Sprintf("Configuration validation failed: %s", err),
		})
		return
	}
	d.addResult(DiagnosticResult{
		Name:    "config_validation",
		Status:  StatusOK,
		Message: "Configuration is valid",
	})
}

func (d *Diagnostics) checkRules() {
	store, rejected, err := engine.BuildStore(d.cfg.Rules)
	if err != nil {
		d.addResult(DiagnosticResult{
			Name:    "rules",
			Status:  StatusError,
			Message: fmt.Sprintf("Rule catalog failed to load: %s", err),
		})
		return
	}

	details := map[string]string{
		"loaded":   fmt.Sprintf("%d", store.Len()),
		"rejected": fmt.Sprintf("%d", len(rejected)),
		"disabled": fmt.Sprintf("%d", len(d.cfg.Rules.Disabled)),
	}
	switch {
	case store.Len() == 0:
		d.addResult(DiagnosticResult{
			Name:    "rules",
			Status:  StatusError,
			Message: "No rules loaded",
			Details: details,
		})
	case len(rejected) > 0:
		d.addResult(DiagnosticResult{
			Name:    "rules",
			Status:  StatusWarning,
			Message: fmt.Sprintf("%d rule(s) rejected: %s", len(rejected), rejected[0]),
			Details: details,
		})
	default:
		d.addResult(DiagnosticResult{
			Name:    "rules",
			Status:  StatusOK,
			Message: "Rule catalog loaded",
			Details: details,
		})
	}
}

func (d *Diagnostics) checkAdapters() {
	tools := []struct {
		name    string
		enabled bool
		path    string
	}{
		{"slither", d.cfg.Adapters.Slither.Enabled, d.cfg.Adapters.Slither.Path},
		{"solc", d.cfg.Adapters.Solc.Enabled, d.cfg.Adapters.Solc.Path},
	}

	for _, tool := range tools {
		name := "adapter_" + tool.name
		if !tool.enabled {
			d.addResult(DiagnosticResult{
				Name:    name,
				Status:  StatusSkipped,
				Message: "Adapter disabled",
			})
			continue
		}
		resolved, err := d.lookPath(tool.path)
		if err != nil {
			// Scans still run; the adapter reports itself unavailable.
			d.addResult(DiagnosticResult{
				Name:    name,
				Status:  StatusWarning,
				Message: fmt.Sprintf("%s not installed", tool.name),
				Details: map[string]string{"path": tool.path},
			})
			continue
		}
		d.addResult(DiagnosticResult{
			Name:    name,
			Status:  StatusOK,
			Message: fmt.Sprintf("%s found", tool.name),
			Details: map[string]string{"path": resolved},
		})
	}
}

func (d *Diagnostics) checkPublisher(ctx context.Context) {
	pub := d.cfg.Publish
	if !pub.Enabled {
		d.addResult(DiagnosticResult{
			Name:    "kafka",
			Status:  StatusSkipped,
			Message: "Publishing disabled",
		})
		return
	}

	timeout := pub.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	var reachable []string
	for _, broker := range pub.Brokers {
		dctx, cancel := context.WithTimeout(ctx, timeout)
		conn, err := d.dialContext(dctx, "tcp", broker)
		cancel()
		if err != nil {
			d.logger.Debug("broker unreachable", "broker", broker, "error", err)
			continue
		}
		conn.Close()
		reachable = append(reachable, broker)
	}

	details := map[string]string{
		"brokers":   fmt.Sprintf("%d", len(pub.Brokers)),
		"reachable": fmt.Sprintf("%d", len(reachable)),
		"topic":     pub.Topic,
	}
	if len(reachable) == 0 {
		d.addResult(DiagnosticResult{
			Name:    "kafka",
			Status:  StatusError,
			Message: "No Kafka broker reachable",
			Details: details,
		})
		return
	}
	d.addResult(DiagnosticResult{
		Name:    "kafka",
		Status:  StatusOK,
		Message: "Kafka broker reachable",
		Details: details,
	})
}

func (d *Diagnostics) checkNotify() {
	cfg := d.cfg.Notify
	if !cfg.Enabled {
		d.addResult(DiagnosticResult{
			Name:    "redis_notify",
			Status:  StatusSkipped,
			Message: "Live notifications disabled",
		})
		return
	}

	details := map[string]string{"addr": cfg.Addr, "channel": cfg.Channel}
	conn, err := d.openNotify(cfg)
	if err != nil {
		// Scans still publish to Kafka; only the live channel is lost.
		d.addResult(DiagnosticResult{
			Name:    "redis_notify",
			Status:  StatusWarning,
			Message: fmt.Sprintf("Redis unreachable: %s", err),
			Details: details,
		})
		return
	}
	conn.Close()
	d.addResult(DiagnosticResult{
		Name:    "redis_notify",
		Status:  StatusOK,
		Message: "Redis reachable",
		Details: details,
	})
}

func (d *Diagnostics) checkSecurity() {
	if !d.cfg.ProductionMode {
		d.addResult(DiagnosticResult{
			Name:    "error_sanitization",
			Status:  StatusWarning,
			Message: "Production mode is off - analyzer errors are reported unsanitized",
			Details: map[string]string{"recommendation": "Set production_mode=true or SENTINEL_PRODUCTION=true"},
		})
	} else {
		d.addResult(DiagnosticResult{
			Name:    "error_sanitization",
			Status:  StatusOK,
			Message: "Analyzer errors are sanitized",
		})
	}

	pub := d.cfg.Publish
	if !pub.Enabled {
		return
	}
	if pub.UsesSASL() && !pub.UsesTLS() {
		d.addResult(DiagnosticResult{
			Name:    "kafka_security",
			Status:  StatusWarning,
			Message: "SASL credentials are sent WITHOUT TLS",
			Details: map[string]string{"recommendation": "Use security_protocol SASL_SSL"},
		})
		return
	}
	if pub.UsesTLS() {
		for _, f := range []string{pub.TLSCertFile, pub.TLSKeyFile, pub.TLSCAFile} {
			if f != "" && !fileExists(f) {
				d.addResult(DiagnosticResult{
					Name:    "kafka_security",
					Status:  StatusError,
					Message: "TLS enabled but certificate files missing",
					Details: map[string]string{"file": f},
				})
				return
			}
		}
	}
	d.addResult(DiagnosticResult{
		Name:    "kafka_security",
		Status:  StatusOK,
		Message: "Publisher transport settings look sane",
	})
}

func (d *Diagnostics) printSummary() {
	var ok, warnings, errors, skipped int
	for _, r := range d.results {
		switch r.Status {
		case StatusOK:
			ok++
		case StatusWarning:
			warnings++
		case StatusError:
			errors++
		case StatusSkipped:
			skipped++
		}
	}

	d.logger.Info("diagnostics summary",
		"passed", ok,
		"warnings", warnings,
		"errors", errors,
		"skipped", skipped,
	)
}

// HasErrors reports whether any check failed.
func (d *Diagnostics) HasErrors() bool {
	for _, r := range d.results {
		if r.Status == StatusError {
			return true
		}
	}
	return false
}

// HasWarnings reports whether any check produced a warning.
func (d *Diagnostics) HasWarnings() bool {
	for _, r := range d.results {
		if r.Status == StatusWarning {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
