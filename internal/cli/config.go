package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mcoot/rostersync/internal/client/transport"
	"github.com/mcoot/rostersync/internal/client/xivgear"
)

// Transport names accepted by --transport
const (
	TransportSSE = "sse"
	TransportWS  = "ws"
)

// Config holds CLI configuration
type Config struct {
	ServerURL string
	Output    string
	Transport string
	Verbose   bool

	// Hosts used by "gear import"
	XivgearAPI  string
	XivgearData string
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL: getEnvOrDefault("ROSTERCTL_SERVER", "http://localhost:8080"),
		Output:    "text",
		Transport: getEnvOrDefault("ROSTERCTL_TRANSPORT", TransportSSE),
		Verbose:   false,

		XivgearAPI:  getEnvOrDefault("ROSTERCTL_XIVGEAR_API", xivgear.DefaultAPIURL),
		XivgearData: getEnvOrDefault("ROSTERCTL_XIVGEAR_DATA", xivgear.DefaultDataURL),
	}
}

// Validate checks the enumerated settings
func (c *Config) Validate() error {
	switch c.Output {
	case "text", "json":
	default:
		return fmt.Errorf("unknown output format %q", c.Output)
	}
	switch c.Transport {
	case TransportSSE, TransportWS:
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	return nil
}

// Logger returns a stderr logger when verbose, otherwise a discarding one
func (c *Config) Logger() *slog.Logger {
	if c.Verbose {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Source returns the event source for the configured transport
func (c *Config) Source(logger *slog.Logger) transport.Source {
	if c.Transport == TransportWS {
		return transport.NewWSSource(c.ServerURL, logger)
	}
	return transport.NewSSESource(c.ServerURL, logger)
}

// Importer returns a gear importer for the configured xivgear hosts
func (c *Config) Importer() *xivgear.Client {
	return xivgear.NewClient(c.XivgearAPI, c.XivgearData)
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
