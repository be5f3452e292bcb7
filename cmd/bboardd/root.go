package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/danmuck/bboard/internal/board"
	"github.com/danmuck/bboard/internal/config"
	"github.com/danmuck/bboard/internal/logging"
	"github.com/danmuck/bboard/internal/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var errUsage = errors.New("usage: bboardd <port> <board_width> <board_height> <note_width> <note_height> <color>... | bboardd --config <path>")

type daemonFlags struct {
	configPath   string
	adminAddr    string
	heartbeat    time.Duration
	maxLineBytes int
	logLevel     string
}

func newRootCmd() *cobra.Command {
	var flags daemonFlags
	cmd := &cobra.Command{
		Use:   "bboardd <port> <board_width> <board_height> <note_width> <note_height> <color>...",
		Short: "Shared bulletin board server",
		Long: `bboardd serves one shared board of notes and pins over a line protocol.
The board is configured either positionally or from a TOML file via --config.`,
		// positional board args share the root with the config subcommand;
		// configFromArgs checks the count.
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, args, flags)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}
	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "TOML config file (replaces positional arguments)")
	cmd.Flags().StringVar(&flags.adminAddr, "admin-addr", "", "admin HTTP listen address (empty disables)")
	cmd.Flags().DurationVar(&flags.heartbeat, "heartbeat", 30*time.Second, "heartbeat log interval")
	cmd.Flags().IntVar(&flags.maxLineBytes, "max-line-bytes", 64*1024, "longest accepted request line")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "info", "log level (trace, debug, info, warn, error, off)")

	cmd.AddCommand(newConfigCmd())
	return cmd
}

// resolveConfig builds the daemon config from --config or positional args,
// then applies explicitly set flags on top.
func resolveConfig(cmd *cobra.Command, args []string, flags daemonFlags) (config.DaemonConfig, error) {
	var (
		cfg config.DaemonConfig
		err error
	)
	if flags.configPath != "" {
		if len(args) > 0 {
			return config.DaemonConfig{}, fmt.Errorf("--config cannot be combined with positional arguments: %w", errUsage)
		}
		cfg, err = config.Load(flags.configPath)
		if err != nil {
			return config.DaemonConfig{}, err
		}
	} else {
		cfg, err = configFromArgs(args)
		if err != nil {
			return config.DaemonConfig{}, err
		}
	}

	fs := cmd.Flags()
	if fs.Changed("admin-addr") {
		cfg.AdminAddr = strings.TrimSpace(flags.adminAddr)
	}
	if fs.Changed("heartbeat") {
		cfg.Heartbeat = flags.heartbeat.String()
	}
	if fs.Changed("max-line-bytes") {
		cfg.MaxLineBytes = flags.maxLineBytes
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return config.DaemonConfig{}, err
	}
	return cfg, nil
}

func configFromArgs(args []string) (config.DaemonConfig, error) {
	if len(args) < 6 {
		return config.DaemonConfig{}, errUsage
	}
	port, err := strconv.Atoi(args[0])
	if err != nil || port < 1 || port > 65535 {
		return config.DaemonConfig{}, fmt.Errorf("invalid port %q: %w", args[0], errUsage)
	}
	dims := make([]int, 4)
	for i := range dims {
		v, err := strconv.Atoi(args[i+1])
		if err != nil {
			return config.DaemonConfig{}, fmt.Errorf("invalid dimension %q: %w", args[i+1], errUsage)
		}
		dims[i] = v
	}

	cfg := config.Defaults()
	cfg.Addr = ":" + strconv.Itoa(port)
	cfg.Board = board.Config{
		BoardW: dims[0],
		BoardH: dims[1],
		NoteW:  dims[2],
		NoteH:  dims[3],
		Colors: append([]string(nil), args[5:]...),
	}
	return cfg, nil
}

func run(cfg config.DaemonConfig) error {
	logging.ConfigureRuntime()
	logging.SetLevel(cfg.LogLevel)

	b, err := board.New(cfg.Board)
	if err != nil {
		return err
	}
	srvCfg, err := cfg.ServerConfig()
	if err != nil {
		return err
	}
	bc := b.Config()
	log.Info().
		Str("addr", srvCfg.ListenAddr).
		Str("admin_addr", srvCfg.AdminListenAddr).
		Str("transport", srvCfg.TLS.Name()).
		Int("board_width", bc.BoardW).
		Int("board_height", bc.BoardH).
		Int("note_width", bc.NoteW).
		Int("note_height", bc.NoteH).
		Strs("colors", bc.Colors).
		Msg("bboardd.start")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return server.New(b, srvCfg).Run(ctx)
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Generate or validate config files",
	}

	var kind string
	var force bool
	initCmd := &cobra.Command{
		Use:   "init <path>",
		Short: "Write a config template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteTemplate(args[0], kind, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s config to %s\n", kind, args[0])
			return nil
		},
	}
	initCmd.Flags().StringVar(&kind, "kind", "daemon", "template kind: daemon|client")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	validateCmd := &cobra.Command{
		Use:   "validate <path>",
		Short: "Load and validate a daemon config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "validated %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(initCmd, validateCmd)
	return cmd
}
