package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/bboard/internal/board"
	"github.com/danmuck/bboard/internal/client"
	"github.com/danmuck/bboard/internal/protocol"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	configPath string
	addr       string
	timeout    time.Duration
}

func newRootCmd() *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:           "bboardctl",
		Short:         "Command-line client for bboardd",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "client profile TOML file")
	root.PersistentFlags().StringVarP(&g.addr, "addr", "a", "", "server address (overrides profile)")
	root.PersistentFlags().DurationVar(&g.timeout, "timeout", 0, "dial and request timeout (overrides profile)")

	// connect resolves the profile and dials; the caller owns the client.
	connect := func(cmd *cobra.Command) (*client.Client, error) {
		p := defaultProfile()
		if g.configPath != "" {
			var err error
			if p, err = loadProfile(g.configPath); err != nil {
				return nil, err
			}
		}
		if cmd.Flags().Changed("addr") {
			p.Addr = strings.TrimSpace(g.addr)
		}
		if cmd.Flags().Changed("timeout") {
			p.Timeout = g.timeout
		}
		if err := p.validate(); err != nil {
			return nil, err
		}
		return client.Dial(cmd.Context(), p.Addr, client.Options{TLS: p.TLS, Timeout: p.Timeout})
	}

	// withClient runs fn against a fresh connection and disconnects afterwards.
	withClient := func(fn func(cmd *cobra.Command, c *client.Client, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			c, err := connect(cmd)
			if err != nil {
				return err
			}
			defer c.Disconnect()
			return fn(cmd, c, args)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "post <x> <y> <color> <message...>",
			Short: "Post a note",
			Args:  cobra.MinimumNArgs(4),
			RunE: withClient(func(cmd *cobra.Command, c *client.Client, args []string) error {
				x, y, err := parsePoint(args[0], args[1])
				if err != nil {
					return err
				}
				if err := c.Post(x, y, args[2], strings.Join(args[3:], " ")); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "posted")
				return nil
			}),
		},
		pointCmd("pin", "Pin every note covering a point", "pinned", (*client.Client).Pin, withClient),
		pointCmd("unpin", "Remove the pin at a point", "unpinned", (*client.Client).Unpin, withClient),
		&cobra.Command{
			Use:   "shake",
			Short: "Remove every unpinned note",
			Args:  cobra.NoArgs,
			RunE: withClient(func(cmd *cobra.Command, c *client.Client, _ []string) error {
				if err := c.Shake(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "shaken")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every note and pin",
			Args:  cobra.NoArgs,
			RunE: withClient(func(cmd *cobra.Command, c *client.Client, _ []string) error {
				if err := c.Clear(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "cleared")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "pins",
			Short: "List pins",
			Args:  cobra.NoArgs,
			RunE: withClient(func(cmd *cobra.Command, c *client.Client, _ []string) error {
				pins, err := c.Pins()
				if err != nil {
					return err
				}
				writePins(cmd.OutOrStdout(), pins)
				return nil
			}),
		},
		newGetCmd(withClient),
		&cobra.Command{
			Use:   "repl",
			Short: "Send raw protocol lines from stdin",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				c, err := connect(cmd)
				if err != nil {
					return err
				}
				defer c.Close()
				return repl(cmd.InOrStdin(), cmd.OutOrStdout(), c)
			},
		},
	)
	root.SetContext(context.Background())
	return root
}

type runner func(fn func(cmd *cobra.Command, c *client.Client, args []string) error) func(*cobra.Command, []string) error

func pointCmd(name, short, done string, op func(*client.Client, int, int) error, with runner) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <x> <y>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: with(func(cmd *cobra.Command, c *client.Client, args []string) error {
			x, y, err := parsePoint(args[0], args[1])
			if err != nil {
				return err
			}
			if err := op(c, x, y); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), done)
			return nil
		}),
	}
}

func newGetCmd(with runner) *cobra.Command {
	var color, contains, refersTo string
	cmd := &cobra.Command{
		Use:   "get",
		Short: "List notes, optionally filtered",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = with(func(cmd *cobra.Command, c *client.Client, _ []string) error {
		var f board.Filter
		if cmd.Flags().Changed("color") {
			f = f.WithColor(color)
		}
		if cmd.Flags().Changed("contains") {
			xs, ys, ok := strings.Cut(contains, ",")
			if !ok {
				return fmt.Errorf("--contains expects x,y")
			}
			x, y, err := parsePoint(strings.TrimSpace(xs), strings.TrimSpace(ys))
			if err != nil {
				return err
			}
			f = f.WithContains(x, y)
		}
		if cmd.Flags().Changed("refers-to") {
			f = f.WithRefersTo(refersTo)
		}
		notes, err := c.Notes(f)
		if err != nil {
			return err
		}
		writeNotes(cmd.OutOrStdout(), notes)
		return nil
	})
	cmd.Flags().StringVar(&color, "color", "", "only notes of this color")
	cmd.Flags().StringVar(&contains, "contains", "", "only notes covering x,y")
	cmd.Flags().StringVar(&refersTo, "refers-to", "", "only notes whose message contains this text")
	return cmd
}

// repl forwards each input line verbatim and prints every reply line.
func repl(in io.Reader, out io.Writer, c *client.Client) error {
	cfg := c.Board()
	fmt.Fprintf(out, "connected: board %dx%d, notes %dx%d, colors %s\n",
		cfg.BoardW, cfg.BoardH, cfg.NoteW, cfg.NoteH, strings.Join(cfg.Colors, " "))

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines, err := c.Raw(line)
		if err != nil {
			return err
		}
		for _, l := range lines {
			fmt.Fprintln(out, l)
		}
		if cmd, err := protocol.Parse(line); err == nil && cmd.Verb == protocol.VerbDisconnect {
			return nil
		}
	}
	return scanner.Err()
}

func writeNotes(out io.Writer, notes []board.NoteView) {
	fmt.Fprintf(out, "%d note(s)\n", len(notes))
	for _, n := range notes {
		mark := " "
		if n.Pinned {
			mark = "*"
		}
		fmt.Fprintf(out, "%s (%d,%d) %-8s %s\n", mark, n.X, n.Y, n.Color, n.Message)
	}
}

func writePins(out io.Writer, pins []board.Pin) {
	fmt.Fprintf(out, "%d pin(s)\n", len(pins))
	for _, p := range pins {
		fmt.Fprintf(out, "  (%d,%d)\n", p.X, p.Y)
	}
}

func parsePoint(xs, ys string) (int, int, error) {
	x, errX := strconv.Atoi(xs)
	y, errY := strconv.Atoi(ys)
	if errX != nil || errY != nil || x < 0 || y < 0 {
		return 0, 0, fmt.Errorf("coordinates must be non-negative integers: %q %q", xs, ys)
	}
	return x, y, nil
}
