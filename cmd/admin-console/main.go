package main

import (
	"context"
	"fmt"
	"os"

	"github.com/punqy/guard"
	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type serveFlags struct {
	config      string
	profiles    []string
	port        int
	contextPath string
	logLevel    string
}

func commands() guard.Commands {
	var sf serveFlags
	return guard.Commands{
		{
			Use:   "serve",
			Short: "Start the admin console",
			Args:  cobra.NoArgs,
			Flags: func(cmd *cobra.Command) {
				cmd.Flags().StringVarP(&sf.config, "config", "c", "", "path to a YAML configuration file")
				cmd.Flags().StringSliceVarP(&sf.profiles, "profile", "p", nil, "active profile (insecure or secure), overrides config and environment")
				cmd.Flags().IntVar(&sf.port, "port", 0, "listen port, overrides config and environment")
				cmd.Flags().StringVar(&sf.contextPath, "context-path", "", "admin console base path, e.g. /admin")
				cmd.Flags().StringVar(&sf.logLevel, "log-level", "", "log level (debug, info, warn, error)")
			},
			Run: func(cmd *cobra.Command, _ []string) error {
				cfg, err := loadConfig(cmd, sf)
				if err != nil {
					return err
				}
				guard.SetupLogger(cfg.Logging)
				app, err := guard.NewApplication(cfg)
				if err != nil {
					return err
				}
				return app.Run(context.Background())
			},
		},
		{
			Use:   "encode-password <raw>",
			Short: "Print the {bcrypt} encoding of a password for the users section",
			Args:  cobra.ExactArgs(1),
			Run: func(cmd *cobra.Command, args []string) error {
				encoded, err := guard.NewPasswordEncoder().EncodePassword(args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), encoded)
				return err
			},
		},
	}
}

func loadConfig(cmd *cobra.Command, sf serveFlags) (guard.Config, error) {
	cfg, err := guard.LoadConfig(sf.config)
	if err != nil {
		return cfg, err
	}
	if cmd.Flags().Changed("profile") {
		cfg.Profiles = sf.profiles
	}
	if sf.port != 0 {
		cfg.Server.Port = sf.port
	}
	if cmd.Flags().Changed("context-path") {
		cfg.Admin.ContextPath = sf.contextPath
	}
	if sf.logLevel != "" {
		cfg.Logging.Level = sf.logLevel
	}
	return cfg, nil
}

func main() {
	if err := guard.Execute("admin-console", "Admin console with profile-selected security", commands()); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}
