// Command peer joins a coopsweep room from the terminal. It keeps its own
// replica of the room's document, draws the board as text after every pass
// and reads moves from stdin.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"coopsweep/internal/board"
	"coopsweep/internal/config"
	"coopsweep/pkg/relay"
	"coopsweep/pkg/replica"
)

type Config struct {
	server  string
	room    string
	verbose bool
}

var ErrNoRoom = errors.New("--room is required")

func (c *Config) validate() error {
	if c.room == "" {
		return ErrNoRoom
	}
	_, err := relayURL(c.server, c.room)
	return err
}

// relayURL turns the web server address into the room's websocket endpoint.
func relayURL(server, room string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("server url %q: scheme must be http or https", server)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/room/" + url.PathEscape(room) + "/ws"
	return u.String(), nil
}

// textSink writes every pass to out as text.
type textSink struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
}

func (s *textSink) DrawBoard(snap board.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "\n%s", board.Text(snap))
}

func (s *textSink) DrawCursor(peer string, c board.Cursor) {
	if !s.verbose {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "cursor %s at %d,%d\n", peer, c.X, c.Y)
}

func (s *textSink) EraseCursor(peer string) {
	if !s.verbose {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "cursor %s left\n", peer)
}

func play(ctx context.Context, cfg *Config, in io.Reader, out io.Writer) error {
	logf := config.Logf(&cfg.verbose)

	target, err := relayURL(cfg.server, cfg.room)
	if err != nil {
		return err
	}

	doc := replica.NewDoc("")
	members := replica.NewMembership()
	engine := board.New(doc, board.Options{
		Sink:    &textSink{out: out, verbose: cfg.verbose},
		Members: members,
		Logf:    logf,
	})
	defer engine.Close()

	client, err := relay.Dial(ctx, target, doc, members)
	if err != nil {
		return err
	}
	logf("joined %s as %s", target, client.Peer())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() {
		runErr <- client.Run(ctx)
		cancel()
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			err := <-runErr
			if errors.Is(err, relay.ErrClosed) {
				return nil
			}
			return err
		case line, ok := <-lines:
			if !ok {
				client.Close()
				<-runErr
				return nil
			}
			cmd, err := parseCommand(line)
			if err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			msg, err := cmd.run(engine)
			switch {
			case errors.Is(err, ErrQuit):
				client.Close()
				<-runErr
				return nil
			case err != nil:
				fmt.Fprintln(out, err)
			case msg != "":
				fmt.Fprintln(out, msg)
			}
		}
	}
}

func newCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "peer",
		Short:         "Plays a coopsweep room from the terminal.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			fmt.Fprintln(cmd.OutOrStdout(), usage)
			return play(ctx, cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&cfg.server, "server", "s", "http://localhost:8080", "coopsweep server to join (env: COOPSWEEP_SERVER)")
	fs.StringVarP(&cfg.room, "room", "r", "", "room ID to join (env: COOPSWEEP_ROOM)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: COOPSWEEP_VERBOSE)")

	config.Bind(fs, config.EnvPrefix)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

func main() {
	log.SetFlags(0)

	cmd := newCmd(&Config{})
	cmd.SetIn(os.Stdin)
	cobra.CheckErr(cmd.Execute())
}
