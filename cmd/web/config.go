package main

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"coopsweep/internal/board"
	"coopsweep/internal/config"
	"coopsweep/internal/handlers"
)

const releaseVersion = "0.4.0"

var (
	ErrInvalidPort    = errors.New("listen port must be in range 1-65535")
	ErrInvalidBaseURL = errors.New("base url must be absolute http(s) without a trailing slash")
	ErrInvalidBoard   = errors.New("default board is invalid")
	ErrInvalidTimeout = errors.New("durations must be positive")
)

type Config struct {
	bind           string
	port           int
	baseURL        string
	debounce       time.Duration
	requestTimeout time.Duration
	sessionTimeout time.Duration
	cursorRate     float64
	cursorBurst    int
	width          int
	height         int
	mines          int
	verbose        bool
}

func (c *Config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("%w (got %d)", ErrInvalidPort, c.port)
	}
	if c.baseURL != "" {
		u, err := url.Parse(c.baseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" || strings.HasSuffix(c.baseURL, "/") {
			return fmt.Errorf("%w (got %q)", ErrInvalidBaseURL, c.baseURL)
		}
	}
	if c.debounce <= 0 || c.sessionTimeout <= 0 || c.requestTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.width > handlers.MaxDim || c.height > handlers.MaxDim || !c.defaults().Valid() {
		return fmt.Errorf("%w (%dx%d)", ErrInvalidBoard, c.width, c.height)
	}
	if c.mines < 0 || c.mines > c.width*c.height {
		return fmt.Errorf("%w (%d mines on %d cells)", ErrInvalidBoard, c.mines, c.width*c.height)
	}
	return nil
}

func (c *Config) addr() string {
	return net.JoinHostPort(c.bind, strconv.Itoa(c.port))
}

func (c *Config) defaults() board.Config {
	return board.Config{Width: c.width, Height: c.height, NumMines: c.mines}
}

func (c *Config) limit() rate.Limit {
	if c.cursorRate <= 0 {
		return rate.Inf
	}
	return rate.Limit(c.cursorRate)
}

func newCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "coopsweep",
		Short:         "Serves shared minesweeper boards that every visitor plays together.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: COOPSWEEP_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: COOPSWEEP_PORT)")
	fs.StringVar(&cfg.baseURL, "base-url", "", "public URL used in invite links, e.g. https://sweep.example.com (env: COOPSWEEP_BASE_URL)")
	fs.DurationVar(&cfg.debounce, "debounce", 20*time.Millisecond, "quiet period before a board redraw (env: COOPSWEEP_DEBOUNCE)")
	fs.DurationVar(&cfg.requestTimeout, "request-timeout", 15*time.Second, "timeout for non-streaming requests (env: COOPSWEEP_REQUEST_TIMEOUT)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle rooms are closed (env: COOPSWEEP_SESSION_TIMEOUT)")
	fs.Float64Var(&cfg.cursorRate, "cursor-rate", 20, "cursor updates per second per peer, 0 for unlimited (env: COOPSWEEP_CURSOR_RATE)")
	fs.IntVar(&cfg.cursorBurst, "cursor-burst", 5, "cursor updates allowed in a burst (env: COOPSWEEP_CURSOR_BURST)")
	fs.IntVar(&cfg.width, "width", 16, "default board width (env: COOPSWEEP_WIDTH)")
	fs.IntVar(&cfg.height, "height", 16, "default board height (env: COOPSWEEP_HEIGHT)")
	fs.IntVar(&cfg.mines, "mines", 40, "default number of mines (env: COOPSWEEP_MINES)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: COOPSWEEP_VERBOSE)")

	config.Bind(fs, config.EnvPrefix)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("coopsweep v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
