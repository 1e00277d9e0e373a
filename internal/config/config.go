// Package config reads the optional Lotus configuration file, a
// key=value-per-line file at $HOME/.config/lotus/lotus.conf.
//
// Grounded on original_source/lib/config.c's config_read: a missing file is
// not an error. Every key=value line is read into a flat map (the format has
// no sections or nesting), and the recognized keys are then looked up in it;
// blank lines and lines starting with '#' are skipped.
package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/aledsdavies/lotus/internal/diagnostics"
)

// Recognized configuration keys (spec.md §6).
const (
	KeyLogLevel     = "LOG_LEVEL"
	KeyPrintReport  = "PRINT_REPORT"
	defaultLogLevel = "WARNING"
)

// Config holds the values read from lotus.conf, defaulted per spec.md §6.
type Config struct {
	LogLevel    diagnostics.Level
	PrintReport bool
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{LogLevel: diagnostics.Warning, PrintReport: false}
}

// Path returns the host-specific configuration file path,
// $HOME/.config/lotus/lotus.conf.
func Path() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "lotus", "lotus.conf")
}

// Load reads the configuration file at Path(). A missing file yields
// Default() with no error, matching config_read's behavior of returning
// NULL when fopen fails.
func Load() (Config, error) {
	return LoadFile(Path())
}

// LoadFile reads and parses the configuration file at path.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()

	values := map[string]string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		values[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return cfg, err
	}

	if raw, ok := values[KeyLogLevel]; ok {
		cfg.LogLevel = parseLogLevel(raw)
	}
	if raw, ok := values[KeyPrintReport]; ok {
		cfg.PrintReport = strings.EqualFold(raw, "TRUE")
	}
	return cfg, nil
}

func parseLogLevel(raw string) diagnostics.Level {
	switch strings.ToUpper(raw) {
	case "INFO":
		return diagnostics.Info
	case "ERROR":
		return diagnostics.Error
	case "WARNING":
		return diagnostics.Warning
	default:
		return diagnostics.Warning
	}
}
