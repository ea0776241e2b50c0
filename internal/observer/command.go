// Package observer samples the foreground window by running
// user-configured shell commands.
package observer

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/goodtune/focustrack/internal/usage"
	"github.com/rs/zerolog"
)

// DefaultTimeout bounds each command.
const DefaultTimeout = 500 * time.Millisecond

// Config holds the shell commands.
type Config struct {
	ProcessCommand string        // prints the foreground process name
	TitleCommand   string        // prints the foreground window title
	IdleCommand    string        // prints user idle time in milliseconds; optional
	Timeout        time.Duration // per command
}

// Command implements usage.Observer with shell commands run through
// "sh -c". Only the first line of each command's output is used.
type Command struct {
	cfg    Config
	logger zerolog.Logger
}

var _ usage.Observer = (*Command)(nil)

// NewCommand creates a command observer.
func NewCommand(cfg Config, logger zerolog.Logger) *Command {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Command{
		cfg:    cfg,
		logger: logger.With().Str("component", "observer").Logger(),
	}
}

// Sample runs the configured commands. A failing idle command is logged
// and reported as zero idle time.
func (c *Command) Sample(ctx context.Context) (usage.Observation, error) {
	process, err := c.run(ctx, c.cfg.ProcessCommand)
	if err != nil {
		return usage.Observation{}, fmt.Errorf("process command: %w", err)
	}

	title, err := c.run(ctx, c.cfg.TitleCommand)
	if err != nil {
		return usage.Observation{}, fmt.Errorf("title command: %w", err)
	}

	obs := usage.Observation{ProcessName: process, WindowTitle: title}
	if c.cfg.IdleCommand == "" {
		return obs, nil
	}

	idle, err := c.idle(ctx)
	if err != nil {
		c.logger.Debug().Err(err).Msg("Idle command failed")
		return obs, nil
	}
	obs.Idle = idle
	return obs, nil
}

func (c *Command) idle(ctx context.Context) (time.Duration, error) {
	out, err := c.run(ctx, c.cfg.IdleCommand)
	if err != nil {
		return 0, err
	}
	ms, err := strconv.ParseInt(out, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse idle milliseconds %q: %w", out, err)
	}
	if ms < 0 {
		ms = 0
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func (c *Command) run(ctx context.Context, command string) (string, error) {
	if command == "" {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Children of sh may outlive it and hold the pipes open.
	cmd.WaitDelay = c.cfg.Timeout

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%w: %s", err, msg)
		}
		return "", err
	}

	line, _, _ := strings.Cut(stdout.String(), "\n")
	return strings.TrimSpace(line), nil
}
