package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/iwvelando/blend-optimizer/internal/blend"
	"github.com/iwvelando/blend-optimizer/internal/config"
	"github.com/iwvelando/blend-optimizer/pkg/constants"
	"github.com/iwvelando/blend-optimizer/pkg/validation"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// initializeLogger creates a zap logger based on configuration and CLI override
func initializeLogger(loggingConfig config.LoggingConfig, logLevelOverride string) (*zap.Logger, error) {
	// Determine log level (CLI override takes precedence)
	level := loggingConfig.Level
	if logLevelOverride != "" {
		level = logLevelOverride
	}
	if level == "" {
		level = "info"
	}

	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	format := loggingConfig.Format
	if format == "" {
		format = "json"
	}

	var cfg zap.Config
	switch format {
	case "console":
		cfg = zap.NewDevelopmentConfig()
	case "json":
		cfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	// Results go to stdout; keep logs off it.
	cfg.OutputPaths = []string{"stderr"}

	if loggingConfig.OutputFile != "" {
		if dir := filepath.Dir(loggingConfig.OutputFile); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
			}
		}

		file, err := os.OpenFile(loggingConfig.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", loggingConfig.OutputFile, err)
		}
		_ = file.Close()

		cfg.OutputPaths = []string{loggingConfig.OutputFile}
		cfg.ErrorOutputPaths = []string{loggingConfig.OutputFile}
	}

	return cfg.Build()
}

// cli carries the state shared by every command once the root pre-run hook
// has loaded the configuration.
type cli struct {
	out io.Writer

	configPath   string
	logLevel     string
	outputFormat string
	timeLimit    time.Duration

	conf   *config.Configuration
	logger *zap.Logger
}

func newRootCommand(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	root := &cobra.Command{
		Use:           "blend-optimizer",
		Short:         "Least-cost blending of a four-element mixture",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", constants.DefaultConfigFile, "path to configuration file")
	flags.StringVar(&c.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	flags.StringVar(&c.outputFormat, "output-format", "", "type of output override: pretty, json, yaml")
	flags.DurationVar(&c.timeLimit, "time-limit", 0, "solver time limit override, e.g. 5s")

	root.AddCommand(
		c.refuelCommand(),
		c.newBlendCommand(),
		c.optimiseCommand(blend.OperationOptimiseMixture),
		c.optimiseCommand(blend.OperationAuto),
		c.maxAdditionsCommand(),
		c.batchCommand(),
		c.serveCommand(),
	)
	return root
}

// setup loads the configuration, builds the logger and resolves the output
// format. A missing default config file falls back to defaults and BLEND_*
// environment variables; a missing explicit --config is an error.
func (c *cli) setup(cmd *cobra.Command) error {
	conf, err := c.loadConfiguration(cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}

	logger, err := initializeLogger(conf.Logging, c.logLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if c.outputFormat == "" {
		c.outputFormat = conf.Output.Format
	}
	if c.outputFormat == "" {
		c.outputFormat = constants.OutputFormatPretty
	}
	if err := validation.ValidateOutputFormat(c.outputFormat); err != nil {
		return err
	}

	if c.timeLimit < 0 {
		return fmt.Errorf("time limit must not be negative, got %s", c.timeLimit)
	}
	if c.timeLimit > 0 {
		conf.Solver.TimeLimit = c.timeLimit
	}

	for _, warning := range conf.ValidateConfiguration() {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}

	c.conf = conf
	c.logger = logger
	return nil
}

func (c *cli) loadConfiguration(explicit bool) (*config.Configuration, error) {
	if _, err := os.Stat(c.configPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return config.LoadEnvironment()
		}
		return nil, fmt.Errorf("failed to load configuration at %s: %w", c.configPath, err)
	}

	conf, err := config.LoadConfiguration(c.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration at %s: %w", c.configPath, err)
	}
	return conf, nil
}

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "{\"op\": \"main\", \"level\": \"fatal\", \"error\": %q}\n", err.Error())
		os.Exit(1)
	}
}
