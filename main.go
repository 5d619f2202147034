package main

import (
	"encoding/json"
	"fmt"
	nurl "net/url"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/cnosuke/agent-fetch/classifier"
	"github.com/cnosuke/agent-fetch/config"
	"github.com/cnosuke/agent-fetch/fetcher"
	ierrors "github.com/cnosuke/agent-fetch/internal/errors"
	"github.com/cnosuke/agent-fetch/server"
	"github.com/cnosuke/agent-fetch/store"
	"github.com/cnosuke/agent-fetch/types"
)

// Set via ldflags at build time.
var (
	name     = "agent-fetch"
	version  = "dev"
	revision = "xxx"
)

func main() {
	app := &cli.App{
		Name:    name,
		Version: fmt.Sprintf("%s (rev: %s)", version, revision),
		Usage:   "fetch an agent page, classify its content, and browse stored records",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the configuration file",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			return setupLogger(c.Bool("debug"))
		},
		After: func(c *cli.Context) error {
			_ = zap.S().Sync()
			return nil
		},
		Commands: []*cli.Command{
			newFetchCommand(),
			newServeCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func setupLogger(debug bool) error {
	var logger *zap.Logger
	var err error
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.OutputPaths = []string{"stderr"}
		logger, err = cfg.Build()
	}
	if err != nil {
		return ierrors.Wrap(err, "failed to initialize logger")
	}
	zap.ReplaceGlobals(logger)
	return nil
}

func newFetchCommand() *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "fetch one URL, classify the response, and store the record",
		ArgsUsage: "<url>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "write the record to this file instead of the record store",
			},
			&cli.IntFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "request timeout in seconds (overrides config)",
			},
			&cli.BoolFlag{
				Name:    "try-alternatives",
				Aliases: []string{"a"},
				Usage:   "try alternative endpoints when the primary fetch fails",
			},
		},
		Action: runFetch,
	}
}

func runFetch(c *cli.Context) error {
	urlStr := c.Args().First()
	if urlStr == "" {
		return cli.Exit("Error: exactly one URL argument is required", 2)
	}
	if err := validateURL(urlStr); err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 2)
	}

	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: failed to load config: %v", err), 2)
	}
	if t := c.Int("timeout"); t > 0 {
		cfg.Fetch.Timeout = t
	}

	cl := classifier.New(&classifier.Config{MaxRawHTML: cfg.Fetch.MaxRawHTML})
	f, err := fetcher.NewHTTPFetcher(&fetcher.Config{
		Timeout:      cfg.Fetch.Timeout,
		UserAgent:    cfg.Fetch.UserAgent,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
	}, cl)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}

	result, attempts := fetcher.FetchWithFallback(f, urlStr, c.Bool("try-alternatives"))

	printSummary(result, attempts)

	if output := c.String("output"); output != "" {
		if err := writeRecordFile(output, result); err != nil {
			return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
		}
		fmt.Printf("Record written to: %s\n", output)
		return nil
	}

	st, err := store.New(cfg.Storage.DataDir)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	key, err := st.Save(result)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	for _, attempt := range attempts {
		if attempt == result {
			continue
		}
		if _, err := st.Save(attempt); err != nil {
			zap.S().Warnw("failed to save alternative attempt",
				"url", attempt.SourceURL, "error", err)
		}
	}
	fmt.Printf("Record saved as: %s\n", key)

	// A completed fetch attempt is a success for the CLI, whatever the
	// server said.
	return nil
}

func newServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the web viewer over the record store",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "listening port (overrides config)",
			},
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "record storage directory (overrides config)",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return cli.Exit(fmt.Sprintf("Error: failed to load config: %v", err), 2)
			}
			if p := c.Int("port"); p > 0 {
				cfg.Server.Port = p
			}
			if d := c.String("data-dir"); d != "" {
				cfg.Storage.DataDir = d
			}
			return server.Run(cfg, name, version, revision)
		},
	}
}

func validateURL(urlStr string) error {
	u, err := nurl.ParseRequestURI(urlStr)
	if err != nil {
		return ierrors.Wrapf(err, "invalid URL %q", urlStr)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ierrors.Newf("unsupported URL scheme %q (want http or https)", u.Scheme)
	}
	return nil
}

func writeRecordFile(path string, result *types.FetchResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return ierrors.Wrap(err, "failed to serialize record")
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return ierrors.Wrapf(err, "failed to write output file %s", path)
	}
	return nil
}

func printSummary(result *types.FetchResult, attempts []*types.FetchResult) {
	line := strings.Repeat("=", 60)
	fmt.Println(line)
	fmt.Println("AGENT FETCH SUMMARY")
	fmt.Println(line)
	fmt.Printf("URL: %s\n", result.SourceURL)
	fmt.Printf("Identifier: %s\n", result.DerivedIdentifier)
	fmt.Printf("Timestamp: %s\n", result.Timestamp)
	fmt.Printf("Status Code: %s\n", statusString(result))
	fmt.Printf("Content Type: %s\n", orNA(result.ContentType))
	fmt.Printf("Response Size: %d bytes\n", result.ResponseSize)
	if result.ErrorMessage != "" {
		fmt.Printf("Error: %s\n", result.ErrorMessage)
	}
	if result.Data != nil {
		fmt.Printf("Content: %s\n", result.Data.Kind)
	}

	if len(attempts) > 0 {
		fmt.Println(line)
		fmt.Println("ALTERNATIVE ENDPOINT ATTEMPTS")
		for _, attempt := range attempts {
			status := statusString(attempt)
			if attempt.ErrorMessage != "" && attempt.StatusCode == nil {
				status = attempt.ErrorMessage
			}
			fmt.Printf("  %s -> %s\n", attempt.SourceURL, status)
		}
	}
	fmt.Println(line)
}

func statusString(result *types.FetchResult) string {
	if result.StatusCode == nil {
		return "N/A"
	}
	return fmt.Sprintf("%d", *result.StatusCode)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
