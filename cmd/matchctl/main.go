// matchctl triggers matching operations on a running matchcore server. It is
// meant for schedulers: every call authenticates with the cron secret and
// prints the server's JSON response.
//
// Usage:
//
//	matchctl [global flags] <command> [command flags]
//
// Commands: run, expire-suggestions, expire-locks, unblock.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
)

// exitError carries a process exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }
func (e *exitError) ExitCode() int { return e.code }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Getenv); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(coder.ExitCode())
		}
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// globals are flags shared by every command.
type globals struct {
	server     string
	cronSecret string
	timeout    time.Duration
}

func (g *globals) addFlags(fs *pflag.FlagSet, getenv func(string) string) {
	server := getenv("MATCHCORE_URL")
	if server == "" {
		server = "http://localhost:8080"
	}
	fs.StringVar(&g.server, "server", server, "matchcore base URL (env MATCHCORE_URL)")
	fs.StringVar(&g.cronSecret, "cron-secret", getenv("CRON_SECRET"), "shared cron secret (env CRON_SECRET)")
	fs.DurationVar(&g.timeout, "timeout", 5*time.Minute, "request timeout")
}

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, c *client, args []string) error
}

var commands = []command{
	{"run", "trigger a matching run", runMatching},
	{"expire-suggestions", "expire pending suggestions past their deadline", expireSuggestions},
	{"expire-locks", "archive locks past their chat unlock deadline", expireLocks},
	{"unblock", "end an active block between two users", unblock},
}

func run(ctx context.Context, args []string, stdout io.Writer, getenv func(string) string) error {
	var g globals
	fs := pflag.NewFlagSet("matchctl", pflag.ContinueOnError)
	fs.SetInterspersed(false)
	g.addFlags(fs, getenv)
	fs.Usage = func() { printUsage(fs) }

	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		printUsage(fs)
		return &exitError{code: 2, err: errors.New("missing command")}
	}
	if g.cronSecret == "" {
		return &exitError{code: 2, err: errors.New("--cron-secret or CRON_SECRET is required")}
	}

	c := &client{
		base:   strings.TrimRight(g.server, "/"),
		secret: g.cronSecret,
		http:   &http.Client{Timeout: g.timeout},
		out:    stdout,
	}
	for _, cmd := range commands {
		if cmd.name == rest[0] {
			return cmd.run(ctx, c, rest[1:])
		}
	}
	return &exitError{code: 2, err: fmt.Errorf("unknown command %q", rest[0])}
}

func printUsage(fs *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, "Usage: matchctl [global flags] <command> [command flags]\n\nCommands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(os.Stderr, "  %-20s %s\n", cmd.name, cmd.summary)
	}
	fmt.Fprintf(os.Stderr, "\nGlobal flags:\n%s", fs.FlagUsages())
}
