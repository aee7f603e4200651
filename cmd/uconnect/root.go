package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/uconnect/campus/internal/auth"
	"github.com/uconnect/campus/internal/config"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "uconnect",
		Short: "Campus social connections service",
		Long:  "Friend requests, friendships and realtime relationship events for the campus app.",
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file (overrides "+config.FileEnv+")")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newTokenCommand(opts))
	return cmd
}

// load reads the configuration and builds the logger every subcommand uses.
func (o *rootOptions) load() (*config.Config, *logrus.Logger, error) {
	if o.configPath != "" {
		os.Setenv(config.FileEnv, o.configPath)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if o.verbose {
		cfg.LogLevel = "debug"
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newLogger(cfg *config.Config) (*logrus.Logger, error) {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	logger.SetLevel(level)
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

func initAuth(cfg *config.Config, logger *logrus.Logger) error {
	if cfg.Auth.PrivateKeyPath == "" {
		logger.Warn("no JWT key paths configured, using ephemeral keys; tokens will not survive a restart")
		return auth.Init(cfg.Auth.TokenTTL)
	}
	return auth.InitFromPath(cfg.Auth.PrivateKeyPath, cfg.Auth.PublicKeyPath, cfg.Auth.TokenTTL)
}
