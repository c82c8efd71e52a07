// Package output provides utilities for formatting and displaying optimisation results.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/iwvelando/blend-optimizer/pkg/constants"
	"github.com/iwvelando/blend-optimizer/pkg/format"
	"github.com/iwvelando/blend-optimizer/pkg/optimization"
)

// Write renders v in the requested format. Pretty output is only defined
// for summaries and compositions; other values fall back to YAML.
func Write(w io.Writer, outputFormat string, v interface{}) error {
	switch outputFormat {
	case constants.OutputFormatJSON:
		return JSONFormat(w, v)
	case constants.OutputFormatYAML:
		return YAMLFormat(w, v)
	}

	switch value := v.(type) {
	case []optimization.Summary:
		PrettyFormat(w, value)
		return nil
	case optimization.Summary:
		PrettyFormat(w, []optimization.Summary{value})
		return nil
	case map[string]float64:
		PrettyComposition(w, "Composition", value)
		return nil
	default:
		return YAMLFormat(w, v)
	}
}

// PrettyFormat outputs a human-readable rather than machine-readable table.
func PrettyFormat(w io.Writer, summaries []optimization.Summary) {
	p := message.NewPrinter(language.English)
	for i, s := range summaries {
		_, _ = fmt.Fprintf(w, "--- Results for scenario %s ---\n", s.Scenario)
		_, _ = fmt.Fprintf(w, "Operation: %s\n", s.Operation)
		if s.Failed() {
			_, _ = fmt.Fprintf(w, "Error: %s\n", s.Error)
		} else {
			_, _ = fmt.Fprintf(w, "Status: %s\n", s.Status)
		}
		if s.TargetWeight != nil {
			_, _ = fmt.Fprintf(w, "Target weight: %s\n", format.Mass(*s.TargetWeight))
		}
		if s.TotalCost != nil {
			_, _ = fmt.Fprintf(w, "Total cost: %s\n", format.Currency(*s.TotalCost))
		}

		if len(s.FinalComposition) > 0 {
			_, _ = fmt.Fprintf(w, "Element | Final         | Added         | Removed       | Produced\n")
			_, _ = fmt.Fprintf(w, "_______ | _____________ | _____________ | _____________ | _____________\n")
			for _, e := range sortedKeys(s.FinalComposition) {
				_, _ = fmt.Fprintf(w, "%-7s | %-13s | %-13s | %-13s | %s\n",
					e,
					format.Mass(s.FinalComposition[e]),
					massOrDash(s.Additions, e),
					massOrDash(s.Removals, e),
					massOrDash(s.Extractions, e))
			}
		}

		_, _ = p.Fprintf(w, "Nodes explored: %d, solved in %s\n", s.Nodes, s.Duration)
		if len(s.Notes) > 0 {
			_, _ = fmt.Fprintf(w, "Notes: %s\n", strings.Join(s.Notes, "; "))
		}
		if i < len(summaries)-1 {
			_, _ = fmt.Fprintf(w, "\n")
		}
	}
}

// PrettyComposition prints one mass per element under a title.
func PrettyComposition(w io.Writer, title string, composition map[string]float64) {
	_, _ = fmt.Fprintf(w, "--- %s ---\n", title)
	for _, e := range sortedKeys(composition) {
		_, _ = fmt.Fprintf(w, "%-7s | %s\n", e, format.Mass(composition[e]))
	}
}

// JSONFormat outputs v as indented JSON.
func JSONFormat(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}

// YAMLFormat outputs v as YAML.
func YAMLFormat(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode YAML output: %w", err)
	}
	return enc.Close()
}

func massOrDash(values map[string]float64, key string) string {
	mass, ok := values[key]
	if !ok || mass == 0 {
		return "-"
	}
	return format.Mass(mass)
}

func sortedKeys(values map[string]float64) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
