package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/vk/beancharts/internal/app"
)

// storageTokenEnv is where the bucket bearer token is read from; it is a
// secret and never appears on the command line.
const storageTokenEnv = "BEANCHARTS_STORAGE_TOKEN"

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("beancharts", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
beancharts - serves pre-computed Vega-Lite chart documents for the analytics
frontend, recomputing them on demand from the protocol subgraph.

Usage:
  beancharts [options]

Options:
`)
		flagSet.PrintDefaults()
	}

	listenFlag := flagSet.String("listen", ":8080", "HTTP listen address.")
	chartsFlag := flagSet.String("charts", "charts", "Path to the directory containing chart manifests.")
	bucketURLFlag := flagSet.String("bucket-url", "", "Base URL of the artifact storage bucket.")
	subgraphURLFlag := flagSet.String("subgraph-url", "", "GraphQL endpoint of the protocol subgraph.")
	maxAgeFlag := flagSet.Int("max-age-seconds", 900, "Artifact staleness window in seconds.")
	concurrencyFlag := flagSet.Int("concurrency", 4, "Maximum charts refreshed in parallel per request.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	if *maxAgeFlag <= 0 {
		return nil, false, &ExitError{Code: 2, Message: "invalid max-age-seconds: must be positive"}
	}

	config, err := app.NewConfig(app.Config{
		ListenAddr:   *listenFlag,
		ChartsPath:   *chartsFlag,
		BucketURL:    *bucketURLFlag,
		StorageToken: os.Getenv(storageTokenEnv),
		SubgraphURL:  *subgraphURLFlag,
		MaxAge:       time.Duration(*maxAgeFlag) * time.Second,
		Concurrency:  *concurrencyFlag,
		LogFormat:    logFormat,
		LogLevel:     logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	return config, false, nil
}
