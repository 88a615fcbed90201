package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"coopsweep/internal/board"
)

var (
	ErrQuit           = errors.New("quit")
	ErrUnknownCommand = errors.New("unknown command")
	ErrUsage          = errors.New("wrong number of arguments")
)

const usage = `commands:
  r <index> | r <x> <y>   reveal a cell
  f <index> | f <x> <y>   toggle a flag
  n <width> <height> <mines>   start a new game
  m <x> <y>               move your cursor
  q                       quit`

// Player is the part of a board.Engine the command loop drives.
type Player interface {
	Reveal(i int) error
	RevealAt(x, y int) error
	ToggleFlag(i int) error
	ToggleFlagAt(x, y int) error
	NewGame(width, height, numMines int) (board.Config, error)
	PointerMoved(x, y int) error
}

type command struct {
	op   string
	args []int
}

func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}, nil
	}
	cmd := command{op: strings.ToLower(fields[0])}
	for _, f := range fields[1:] {
		n, err := strconv.Atoi(f)
		if err != nil {
			return command{}, fmt.Errorf("argument %q: %w", f, ErrUsage)
		}
		cmd.args = append(cmd.args, n)
	}

	want := map[string][]int{
		"r": {1, 2},
		"f": {1, 2},
		"n": {3},
		"m": {2},
		"q": {0},
		"h": {0},
	}
	counts, ok := want[cmd.op]
	if !ok {
		return command{}, fmt.Errorf("%q: %w", cmd.op, ErrUnknownCommand)
	}
	for _, c := range counts {
		if len(cmd.args) == c {
			return cmd, nil
		}
	}
	return command{}, fmt.Errorf("%s takes %v arguments: %w", cmd.op, counts, ErrUsage)
}

// run executes one command against p. It returns a line to print, if any.
func (c command) run(p Player) (string, error) {
	switch c.op {
	case "":
		return "", nil
	case "q":
		return "", ErrQuit
	case "h":
		return usage, nil
	case "r":
		if len(c.args) == 1 {
			return "", p.Reveal(c.args[0])
		}
		return "", p.RevealAt(c.args[0], c.args[1])
	case "f":
		if len(c.args) == 1 {
			return "", p.ToggleFlag(c.args[0])
		}
		return "", p.ToggleFlagAt(c.args[0], c.args[1])
	case "n":
		cfg, err := p.NewGame(c.args[0], c.args[1], c.args[2])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("new game %dx%d with %d mines", cfg.Width, cfg.Height, cfg.NumMines), nil
	case "m":
		return "", p.PointerMoved(c.args[0], c.args[1])
	}
	return "", fmt.Errorf("%q: %w", c.op, ErrUnknownCommand)
}
