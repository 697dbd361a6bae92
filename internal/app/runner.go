package app

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ggonzalez94/bark-bot/internal/bot"
	"github.com/ggonzalez94/bark-bot/internal/bot/telegram"
	"github.com/ggonzalez94/bark-bot/internal/chart"
	"github.com/ggonzalez94/bark-bot/internal/config"
	"github.com/ggonzalez94/bark-bot/internal/dune"
	boterr "github.com/ggonzalez94/bark-bot/internal/errors"
	"github.com/ggonzalez94/bark-bot/internal/httpx"
	"github.com/ggonzalez94/bark-bot/internal/session"
	"github.com/ggonzalez94/bark-bot/internal/version"
	"github.com/ggonzalez94/bark-bot/internal/wallet"
)

type Runner struct {
	stdout io.Writer
	stderr io.Writer
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{stdout: stdout, stderr: stderr}
}

func (r *Runner) Run(args []string) int {
	root := r.newRootCommand()
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintf(r.stderr, "error: %v\n", err)
		return boterr.ExitCode(err)
	}
	return 0
}

func (r *Runner) newRootCommand() *cobra.Command {
	var flags config.GlobalFlags

	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Telegram analytics bot for Bonk wallets",
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return boterr.Wrap(boterr.CodeUsage, "parse flags", err)
	})

	cmd.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "Path to config file")
	cmd.PersistentFlags().StringVar(&flags.EnvFile, "env-file", "", "Path to .env file with credentials")
	cmd.PersistentFlags().StringVar(&flags.Timeout, "timeout", "", "External request timeout")
	cmd.PersistentFlags().StringVar(&flags.WalletDBPath, "wallet-db", "", "Path to wallet database")
	cmd.PersistentFlags().BoolVar(&flags.Debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(r.newRunCommand(&flags))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func (r *Runner) newRunCommand(flags *config.GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the bot and poll for updates until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadEnvFile(flags.EnvFile); err != nil {
				return err
			}
			settings, err := config.Load(*flags)
			if err != nil {
				return boterr.Wrap(boterr.CodeUsage, "load configuration", err)
			}
			if settings.TelegramToken == "" {
				return boterr.New(boterr.CodeUsage, "telegram token is required (set TG_TOKEN or telegram.token)")
			}
			if settings.DuneAPIKey == "" {
				return boterr.New(boterr.CodeUsage, "dune api key is required (set DUNE_API_KEY or dune.api_key)")
			}

			logger := newLogger(r.stderr, settings.Debug)
			defer func() { _ = logger.Sync() }()

			wallets, err := wallet.Open(settings.WalletDBPath, settings.WalletLockPath)
			if err != nil {
				return boterr.Wrap(boterr.CodeStore, "open wallet store", err)
			}
			defer func() { _ = wallets.Close() }()

			httpClient := httpx.New(settings.Timeout)
			engine := dune.New(httpClient, settings.DuneAPIKey)
			dispatcher := bot.New(wallets, engine, chart.NewPNG(), session.NewManager(), settings.Queries)

			tg, err := telegram.New(settings.TelegramToken, dispatcher, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return tg.Run(ctx)
		},
	}
}

// loadEnvFile loads credentials from a .env file. An explicitly named file
// must exist; the implicit default one is optional.
func loadEnvFile(path string) error {
	if path == "" {
		_ = godotenv.Load()
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return boterr.Wrap(boterr.CodeUsage, "load env file", err)
	}
	return nil
}

func newLogger(w io.Writer, debug bool) *zap.Logger {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(w), level)
	return zap.New(core)
}

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print bot version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.CLIVersion)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}
