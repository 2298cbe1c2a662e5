package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	config "github.com/xilidan/transcript-relay/config/relay"
)

// newCLIApp creates the CLI application. Without a command it serves.
func newCLIApp() *cli.App {
	app := &cli.App{
		Name:    "relay",
		Usage:   "Turn video transcripts into step-by-step markdown via Abacus AI",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "Dotenv file to load before reading the environment"},
		},
		Before: func(c *cli.Context) error {
			return config.LoadDotenv(c.String("env-file"))
		},
		Action: func(c *cli.Context) error {
			return serve(c.Context)
		},
		Commands: []*cli.Command{
			serveCmd(),
			healthcheckCmd(),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP relay",
		Action: func(c *cli.Context) error {
			return serve(c.Context)
		},
	}
}

func healthcheckCmd() *cli.Command {
	return &cli.Command{
		Name:  "healthcheck",
		Usage: "Probe GET /health of a running relay and exit non-zero when unhealthy",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Usage: "Health URL (defaults to http://127.0.0.1:$PORT/health)"},
			&cli.DurationFlag{Name: "timeout", Value: 3 * time.Second, Usage: "Probe timeout"},
		},
		Action: func(c *cli.Context) error {
			url := c.String("url")
			if url == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				url = fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Port)
			}
			return probe(c.Context, url, c.Duration("timeout"), c.App.Writer)
		},
	}
}

func probe(ctx context.Context, url string, timeout time.Duration, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health request failed: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("failed to decode health response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || body.Status != "ok" {
		return fmt.Errorf("unhealthy: status code %d, status %q", resp.StatusCode, body.Status)
	}

	fmt.Fprintf(out, "ok %s\n", body.Timestamp)
	return nil
}
