// Package constants provides shared constants for the blend-optimizer application.
package constants

// Blend model defaults
const (
	// MaxRefuelPercentage is the regulatory cap on additions, as a fraction
	// of each element's current mass.
	MaxRefuelPercentage = 0.15

	// BigM deactivates ratio and selection constraints for absent elements.
	BigM = 1e5

	// Epsilon is the smallest mass an element marked as used may carry.
	Epsilon = 1e-6
)

// Precision constants
const (
	// MassDecimals is the number of decimals kept for masses in results (mg).
	MassDecimals = 6

	// MassTolerance is the tolerance for mass comparisons in kg.
	MassTolerance = 1e-6

	// CostDecimals is the number of decimals kept for total costs.
	CostDecimals = 6
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatJSON is the indented JSON output format
	OutputFormatJSON = "json"

	// OutputFormatYAML is the YAML output format
	OutputFormatYAML = "yaml"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// ExampleConfigFile is the example configuration file name
	ExampleConfigFile = "config.yaml.example"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"

	// EnvPrefix prefixes environment variable overrides (BLEND_SOLVER_TIMELIMIT).
	EnvPrefix = "BLEND"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address
	DefaultServerAddress = ":8080"

	// DefaultMaxUploadSizeBytes is the default maximum upload size for mix files (64 KB)
	DefaultMaxUploadSizeBytes int64 = 64 * 1024

	// DefaultRequestsPerSecond is the sustained rate of optimisation requests
	DefaultRequestsPerSecond = 20.0

	// DefaultRequestBurst is the number of requests allowed above the sustained rate
	DefaultRequestBurst = 40
)

// Runner defaults
const (
	// DefaultRunnerConcurrency is the number of scenarios solved in parallel
	DefaultRunnerConcurrency = 4
)
