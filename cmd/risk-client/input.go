package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/miradorstack/risk-client/internal/normalizer"
)

// addFieldFlags registers one string flag per clinical form field.
func addFieldFlags(flags *pflag.FlagSet) {
	for _, f := range normalizer.Fields() {
		usage := f.Label
		if f.Unit != "" {
			usage += " (" + f.Unit + ")"
		}
		if len(f.Choices) > 0 {
			usage += ": " + strings.Join(f.Choices, "|")
		}
		flags.String(f.Name, "", usage)
	}
}

// collectRaw merges the raw form text from an input file, the per-field flags
// and --set pairs, later sources winning.
func collectRaw(cmd *cobra.Command) (map[string]string, error) {
	raw := map[string]string{}

	if path, _ := cmd.Flags().GetString("input"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read input %s: %w", path, err)
		}
		fromFile, err := parseRecord(data)
		if err != nil {
			return nil, fmt.Errorf("parse input %s: %w", path, err)
		}
		for k, v := range fromFile {
			raw[k] = v
		}
	}

	for _, f := range normalizer.Fields() {
		if cmd.Flags().Changed(f.Name) {
			v, _ := cmd.Flags().GetString(f.Name)
			raw[f.Name] = v
		}
	}

	pairs, _ := cmd.Flags().GetStringArray("set")
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --set %q: expected name=value", pair)
		}
		raw[strings.TrimSpace(k)] = v
	}
	return raw, nil
}

// parseRecord decodes a YAML (or JSON) mapping into raw form text.
func parseRecord(data []byte) (map[string]string, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return toRaw(doc), nil
}

// parseRecords decodes a YAML (or JSON) list of mappings into raw form text.
func parseRecords(data []byte) ([]map[string]string, error) {
	var docs []map[string]any
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, err
	}
	out := make([]map[string]string, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toRaw(doc))
	}
	return out, nil
}

func toRaw(doc map[string]any) map[string]string {
	raw := make(map[string]string, len(doc))
	for k, v := range doc {
		switch val := v.(type) {
		case nil:
			raw[k] = ""
		case string:
			raw[k] = val
		case float64:
			raw[k] = strconv.FormatFloat(val, 'f', -1, 64)
		default:
			raw[k] = fmt.Sprint(val)
		}
	}
	return raw
}
