// Package config defines the data structures related to configuration and
// includes functions for loading and parsing the config.
package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/iwvelando/blend-optimizer/internal/blend"
	"github.com/iwvelando/blend-optimizer/internal/milp"
	"github.com/iwvelando/blend-optimizer/pkg/constants"
)

// Configuration holds all configuration for blend-optimizer.
type Configuration struct {
	Logging   LoggingConfig `yaml:"logging,omitempty" mapstructure:"logging"`
	Output    OutputConfig  `yaml:"output,omitempty" mapstructure:"output"`
	Solver    SolverConfig  `yaml:"solver,omitempty" mapstructure:"solver"`
	Blend     BlendConfig   `yaml:"blend,omitempty" mapstructure:"blend"`
	Runner    RunnerConfig  `yaml:"runner,omitempty" mapstructure:"runner"`
	Scenarios []Scenario    `yaml:"scenarios,omitempty" mapstructure:"scenarios"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty" mapstructure:"level"`           // debug, info, warn, error
	Format     string `yaml:"format,omitempty" mapstructure:"format"`         // json, console
	OutputFile string `yaml:"outputFile,omitempty" mapstructure:"outputFile"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty" mapstructure:"format"` // pretty, json, yaml
}

// SolverConfig tunes the MILP solver.
type SolverConfig struct {
	TimeLimit            time.Duration `yaml:"timeLimit,omitempty" mapstructure:"timeLimit"`
	Tolerance            float64       `yaml:"tolerance,omitempty" mapstructure:"tolerance"`
	IntegralityTolerance float64       `yaml:"integralityTolerance,omitempty" mapstructure:"integralityTolerance"`
}

// PriceConfig is the configured price pair of one element.
type PriceConfig struct {
	Addition   float64 `yaml:"addition" mapstructure:"addition"`
	Extraction float64 `yaml:"extraction" mapstructure:"extraction"`
}

// BlendConfig overrides the blend parameters. Prices are merged element by
// element over the defaults; a ratio, when given, must list every element.
type BlendConfig struct {
	MaxRefuelPercentage float64                `yaml:"maxRefuelPercentage,omitempty" mapstructure:"maxRefuelPercentage"`
	BigM                float64                `yaml:"bigM,omitempty" mapstructure:"bigM"`
	Epsilon             float64                `yaml:"epsilon,omitempty" mapstructure:"epsilon"`
	Prices              map[string]PriceConfig `yaml:"prices,omitempty" mapstructure:"prices"`
	Ratios              map[string]float64     `yaml:"ratios,omitempty" mapstructure:"ratios"`
}

// RunnerConfig controls the batch runner.
type RunnerConfig struct {
	Concurrency int `yaml:"concurrency,omitempty" mapstructure:"concurrency"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Configuration {
	return &Configuration{
		Logging: LoggingConfig{Level: "info", Format: "console"},
		Output:  OutputConfig{Format: constants.OutputFormatPretty},
		Solver: SolverConfig{
			Tolerance:            milp.DefaultOptions().Tolerance,
			IntegralityTolerance: milp.DefaultOptions().IntegralityTolerance,
		},
		Blend: BlendConfig{
			MaxRefuelPercentage: constants.MaxRefuelPercentage,
			BigM:                constants.BigM,
			Epsilon:             constants.Epsilon,
		},
		Runner:    RunnerConfig{Concurrency: constants.DefaultRunnerConcurrency},
		Scenarios: DefaultScenarios(),
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)
	v.SetDefault("logging.outputFile", "")
	v.SetDefault("output.format", def.Output.Format)
	v.SetDefault("solver.timeLimit", def.Solver.TimeLimit)
	v.SetDefault("solver.tolerance", def.Solver.Tolerance)
	v.SetDefault("solver.integralityTolerance", def.Solver.IntegralityTolerance)
	v.SetDefault("blend.maxRefuelPercentage", def.Blend.MaxRefuelPercentage)
	v.SetDefault("blend.bigM", def.Blend.BigM)
	v.SetDefault("blend.epsilon", def.Blend.Epsilon)
	v.SetDefault("runner.concurrency", def.Runner.Concurrency)
	return v
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there. Values missing from the file fall back to defaults
// and every scalar can be overridden through BLEND_* environment variables,
// e.g. BLEND_SOLVER_TIMELIMIT=5s.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %w", err)
	}
	return decode(v)
}

// LoadConfigurationFromReader loads a YAML configuration from r.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	v := newViper()
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading config, %w", err)
	}
	return decode(v)
}

// LoadEnvironment builds a configuration from defaults and environment
// variables only.
func LoadEnvironment() (*Configuration, error) {
	return decode(newViper())
}

func decode(v *viper.Viper) (*Configuration, error) {
	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}
	if !v.IsSet("scenarios") {
		configuration.Scenarios = DefaultScenarios()
	}
	return &configuration, nil
}

// BlendParams merges the blend section over the default parameters and
// validates the result. Errors are *blend.ConfigurationError.
func (c *Configuration) BlendParams() (blend.Params, error) {
	spec := blend.DefaultSpec()
	spec.MaxRefuelPercentage = c.Blend.MaxRefuelPercentage
	spec.BigM = c.Blend.BigM
	spec.Epsilon = c.Blend.Epsilon

	for name, price := range c.Blend.Prices {
		e, err := blend.ParseElement(name)
		if err != nil {
			return blend.Params{}, &blend.ConfigurationError{Field: "blend.prices", Reason: err.Error()}
		}
		spec.Prices[e] = blend.Price{Addition: price.Addition, Extraction: price.Extraction}
	}

	if len(c.Blend.Ratios) > 0 {
		ratio := make(blend.Ratio, len(c.Blend.Ratios))
		for name, r := range c.Blend.Ratios {
			e, err := blend.ParseElement(name)
			if err != nil {
				return blend.Params{}, &blend.ConfigurationError{Field: "blend.ratios", Reason: err.Error()}
			}
			ratio[e] = r
		}
		spec.Ratio = ratio
	}

	return blend.NewParams(spec)
}

// SolverOptions converts the solver section into milp options.
func (c *Configuration) SolverOptions(logger *zap.Logger) milp.Options {
	return milp.Options{
		TimeLimit:            c.Solver.TimeLimit,
		Tolerance:            c.Solver.Tolerance,
		IntegralityTolerance: c.Solver.IntegralityTolerance,
		Logger:               logger,
	}
}

// ActiveScenarios returns the scenarios marked active, in file order.
func (c *Configuration) ActiveScenarios() []Scenario {
	var active []Scenario
	for _, s := range c.Scenarios {
		if s.Active {
			active = append(active, s)
		}
	}
	return active
}

// ValidateConfiguration performs general validation of the configuration and
// returns warnings for settings that are legal but probably unintended.
func (c *Configuration) ValidateConfiguration() []string {
	var warnings []string
	names := make(map[string]bool)
	for i, s := range c.Scenarios {
		if s.Name == "" {
			warnings = append(warnings, fmt.Sprintf("scenario %d has no name", i))
			continue
		}
		if names[s.Name] {
			warnings = append(warnings, fmt.Sprintf("scenario name %q is used more than once", s.Name))
		}
		names[s.Name] = true
	}
	if len(c.Scenarios) > 0 && len(c.ActiveScenarios()) == 0 {
		warnings = append(warnings, "no scenario is active")
	}
	if c.Runner.Concurrency <= 0 {
		warnings = append(warnings, fmt.Sprintf("runner concurrency %d is not positive; using 1", c.Runner.Concurrency))
	}
	return warnings
}
