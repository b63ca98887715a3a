// Command signup walks through the registration wizard in a terminal and
// submits the result to the portal API.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"student_portal_backend/internal/client"
	"student_portal_backend/internal/platform/logger"
	"student_portal_backend/internal/wizard"

	"go.uber.org/zap"
	"golang.org/x/term"
)

func main() {
	apiURL := flag.String("api", envOr("PORTAL_API_URL", "http://localhost:8080"), "Base URL of the portal API")
	timeout := flag.Duration("timeout", 30*time.Second, "Deadline for each API request")
	flag.Parse()

	appLogger := logger.NewDefaultLogger()
	defer func() { _ = appLogger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := client.New(*apiURL, appLogger, client.WithHTTPClient(&http.Client{Timeout: *timeout}))
	if err != nil {
		appLogger.Fatal("Failed to create API client", zap.Error(err))
	}
	roles, err := c.Roles(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not load roles from %s: %v\n", *apiURL, err)
		os.Exit(1)
	}

	p := &prompter{
		in:  bufio.NewReader(os.Stdin),
		out: os.Stdout,
		readPassword: func() ([]byte, error) {
			return term.ReadPassword(int(syscall.Stdin))
		},
	}
	if err := run(ctx, wizard.New(c), roles, p); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
