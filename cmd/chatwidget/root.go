package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	chat_widget "github.com/wirnat/chat-widget"
	"github.com/wirnat/chat-widget/config"
	"github.com/wirnat/chat-widget/logger"
	"github.com/wirnat/chat-widget/tui"
)

type rootFlags struct {
	pageURL  string
	endpoint string
	headless bool
	timeout  time.Duration
	logLevel string
	logFile  string
	envFile  string
}

func newRootCmd() *cobra.Command {
	var f rootFlags
	cmd := &cobra.Command{
		Use:   "chatwidget",
		Short: "Terminal chat widget for the customer service bot",
		Long: `chatwidget talks to the chat backend with the access token found in the
page URL. It opens an interactive terminal UI, or reads questions line by
line from stdin with --headless.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if f.headless {
				log, closer, err := logger.New(logger.Options{
					Level:   cfg.LogLevel,
					File:    cfg.LogFile,
					Writer:  cmd.ErrOrStderr(),
					Console: true,
				})
				if err != nil {
					return err
				}
				defer closer.Close()
				return runHeadless(ctx, cfg, options(cfg, &log), cmd.InOrStdin(), cmd.OutOrStdout())
			}

			// The terminal belongs to tview, so logs only go to a file.
			logOpts := logger.Options{Level: cfg.LogLevel, File: cfg.LogFile, Writer: io.Discard}
			log, closer, err := logger.New(logOpts)
			if err != nil {
				return err
			}
			defer closer.Close()
			return tui.New(cfg.PageURL, options(cfg, &log)).Run(ctx)
		},
	}

	cmd.CompletionOptions.DisableDefaultCmd = true
	flags := cmd.Flags()
	flags.StringVarP(&f.pageURL, "url", "u", "", "page URL carrying the access token, e.g. http://localhost/?token=abc")
	flags.StringVarP(&f.endpoint, "endpoint", "e", "", "chat backend endpoint")
	flags.BoolVar(&f.headless, "headless", false, "read questions from stdin instead of opening the terminal UI")
	flags.DurationVar(&f.timeout, "timeout", 0, "per-request timeout, 0 waits for the transport")
	flags.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	flags.StringVar(&f.logFile, "log-file", "", "append logs to this file")
	flags.StringVar(&f.envFile, "env-file", ".env", "optional .env file")
	return cmd
}

// loadConfig layers explicitly set flags over the environment.
func loadConfig(cmd *cobra.Command, f rootFlags) (*config.ClientConfig, error) {
	cfg, err := config.LoadClient(f.envFile)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.PageURL = f.pageURL
	}
	if flags.Changed("endpoint") {
		cfg.Endpoint = f.endpoint
	}
	if flags.Changed("timeout") {
		cfg.RequestTimeout = f.timeout
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if flags.Changed("log-file") {
		cfg.LogFile = f.logFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func options(cfg *config.ClientConfig, log *zerolog.Logger) chat_widget.Options {
	return chat_widget.Options{
		Endpoint:       cfg.Endpoint,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         log,
	}
}

