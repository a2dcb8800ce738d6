package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"radpad-intake-service/internal/config"
	"radpad-intake-service/internal/observability/logging"
)

type commandContext struct {
	configFlag *string
	logLevel   *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevel *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		logLevel:   logLevel,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var (
			cfg *config.Config
			err error
		)
		path := ""
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		if path != "" {
			cfg, err = config.LoadFile(path)
		} else {
			cfg = config.Load()
		}
		if err == nil {
			err = cfg.Validate()
		}
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) initLogging(cfg *config.Config) {
	level := cfg.Observability.LogLevel
	if c.logLevel != nil && *c.logLevel != "" {
		level = *c.logLevel
	}
	logging.Init(logging.Config{
		Level:  level,
		Format: "console",
	})
}

func newRootCommand() *cobra.Command {
	var configFlag string
	var logLevel string

	ctx := newCommandContext(&configFlag, &logLevel)

	rootCmd := &cobra.Command{
		Use:           "dictate",
		Short:         "Capture, validate and sign off radiology order dictation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			ctx.initLogging(cfg)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (TOML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level for the CLI")

	rootCmd.AddCommand(newCaptureCommand(ctx))
	rootCmd.AddCommand(newValidateCommand(ctx))
	rootCmd.AddCommand(newCreditsCommand(ctx))

	return rootCmd
}
