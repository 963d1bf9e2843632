package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/pflag"

	"matchcore/internal/platform/middleware"
)

// client calls matchcore's admin endpoints with the cron secret.
type client struct {
	base   string
	secret string
	http   *http.Client
	out    io.Writer
}

type apiError struct {
	Status      int
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *apiError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Code)
	}
	return fmt.Sprintf("server returned %d: %s: %s", e.Status, e.Code, e.Description)
}

// ExitCode separates rejected requests from server failures.
func (e *apiError) ExitCode() int {
	if e.Status >= 500 {
		return 1
	}
	return 3
}

func (c *client) call(ctx context.Context, method, path string, body any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.CronSecretHeader, c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		apiErr := &apiError{Status: resp.StatusCode}
		_ = json.Unmarshal(raw, apiErr)
		return apiErr
	}
	if len(raw) > 0 {
		_, err = c.out.Write(append(bytes.TrimSpace(raw), '\n'))
	}
	return err
}

func runMatching(ctx context.Context, c *client, args []string) error {
	var (
		runID          string
		mode           string
		groupSize      int
		suggestions    bool
		university     string
		minSize        int
		includeMatched bool
		includeInactive  bool
		runTimeout     int
	)
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	fs.StringVar(&runID, "run-id", "", "idempotency key; generated when empty")
	fs.StringVar(&mode, "mode", "pairs", "pairs or groups")
	fs.IntVar(&groupSize, "group-size", 0, "members per group (mode default when 0)")
	fs.BoolVar(&suggestions, "suggestions", false, "create suggestions instead of locking matches")
	fs.StringVar(&university, "university", "", "restrict the cohort to one university")
	fs.IntVar(&minSize, "min-size", 0, "minimum cohort size")
	fs.BoolVar(&includeMatched, "include-matched", false, "keep users who already hold a match")
	fs.BoolVar(&includeInactive, "include-inactive", false, "keep inactive, hidden or unverified users")
	fs.IntVar(&runTimeout, "run-timeout", 0, "server-side run timeout in seconds")
	if err := fs.Parse(args); err != nil {
		return err
	}

	filter := map[string]any{
		"only_active":             !includeInactive,
		"exclude_already_matched": !includeMatched,
	}
	if university != "" {
		filter["university_id"] = university
	}
	if fs.Changed("min-size") {
		filter["min_size"] = minSize
	}
	body := map[string]any{
		"run_id":          runID,
		"mode":            mode,
		"group_size":      groupSize,
		"suggestion_mode": suggestions,
		"filter":          filter,
		"timeout_seconds": runTimeout,
	}
	return c.call(ctx, http.MethodPost, "/admin/matching/runs", body)
}

func expireSuggestions(ctx context.Context, c *client, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("expire-suggestions takes no arguments")
	}
	return c.call(ctx, http.MethodPost, "/admin/matching/suggestions/expire", nil)
}

func expireLocks(ctx context.Context, c *client, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("expire-locks takes no arguments")
	}
	return c.call(ctx, http.MethodPost, "/admin/matching/locks/expire", nil)
}

func unblock(ctx context.Context, c *client, args []string) error {
	var userID, blockedUserID string
	fs := pflag.NewFlagSet("unblock", pflag.ContinueOnError)
	fs.StringVar(&userID, "user", "", "user who created the block")
	fs.StringVar(&blockedUserID, "blocked", "", "user who was blocked")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if userID == "" || blockedUserID == "" {
		return fmt.Errorf("--user and --blocked are required")
	}
	if err := c.call(ctx, http.MethodDelete, "/admin/matching/blocks", map[string]string{
		"user_id":         userID,
		"blocked_user_id": blockedUserID,
	}); err != nil {
		return err
	}
	_, err := fmt.Fprintf(c.out, "unblocked %s -> %s\n", userID, blockedUserID)
	return err
}
