// Package config loads application options from TOML files and environment
// variables, and watches files for runtime changes.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/pitrozx/rscap/internal/logging"
)

// envPrefix namespaces every environment variable the loader reads.
const envPrefix = "RSCAP_"

// Load fills opts from the TOML file named by its Config field and from
// RSCAP_* environment variables. Precedence is CLI flag > env var > file:
// fields whose flag was set on the command line are left untouched, and
// env values overwrite file values.
func Load(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts).Elem()
	t := v.Type()

	set := changedFlags(cmd)

	if path := filePath(v, t); path != "" {
		if err := applyFile(v, t, set, path); err != nil {
			return err
		}
	}
	applyEnv(v, t, set)
	return nil
}

// changedFlags collects the names of flags explicitly set on the command line.
func changedFlags(cmd *cobra.Command) map[string]bool {
	set := make(map[string]bool)
	if cmd == nil {
		return set
	}
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			set[f.Name] = true
		}
	})
	return set
}

// filePath returns the value of the struct's Config field, the path of the
// TOML file to load.
func filePath(v reflect.Value, t reflect.Type) string {
	for i := 0; i < v.NumField(); i++ {
		if t.Field(i).Name == "Config" {
			return v.Field(i).String()
		}
	}
	return ""
}

func applyFile(v reflect.Value, t reflect.Type, set map[string]bool, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		// A missing file is not an error, env vars and flags still apply.
		return nil
	}

	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		if set[flagName(field.Name)] {
			continue
		}
		key := field.Tag.Get("toml")
		if key == "" {
			continue
		}
		if value := lookup(doc, key); value != nil {
			assign(v.Field(i), value)
		}
	}
	return nil
}

func applyEnv(v reflect.Value, t reflect.Type, set map[string]bool) {
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		if set[flagName(field.Name)] {
			continue
		}
		key := field.Tag.Get("env")
		if key == "" {
			continue
		}
		if value := os.Getenv(envPrefix + key); value != "" {
			assignString(v.Field(i), value)
		}
	}
}

// flagName converts a struct field name to the kebab-case flag name the CLI
// registers for it: "LoggingLevel" becomes "logging-level", "NatsURL"
// becomes "nats-url".
func flagName(field string) string {
	runes := []rune(field)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prevLower := unicode.IsLower(runes[i-1])
			acronymEnd := unicode.IsUpper(runes[i-1]) && i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || acronymEnd {
				b.WriteByte('-')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// lookup resolves a dotted key like "logging.level" against nested TOML tables.
func lookup(doc map[string]any, key string) any {
	parts := strings.Split(key, ".")
	for _, part := range parts[:len(parts)-1] {
		next, ok := doc[part].(map[string]any)
		if !ok {
			return nil
		}
		doc = next
	}
	return doc[parts[len(parts)-1]]
}

func assign(field reflect.Value, value any) {
	if !field.CanSet() {
		return
	}
	switch field.Kind() {
	case reflect.String:
		if s, ok := value.(string); ok {
			field.SetString(s)
		}
	case reflect.Bool:
		if b, ok := value.(bool); ok {
			field.SetBool(b)
		}
	case reflect.Int:
		switch n := value.(type) {
		case int64:
			field.SetInt(n)
		case int:
			field.SetInt(int64(n))
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return
		}
		arr, ok := value.([]any)
		if !ok {
			return
		}
		out := make([]string, 0, len(arr))
		for _, item := range arr {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		field.Set(reflect.ValueOf(out))
	}
}

func assignString(field reflect.Value, value string) {
	if !field.CanSet() {
		return
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		if b, err := strconv.ParseBool(value); err == nil {
			field.SetBool(b)
		}
	case reflect.Int:
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			field.SetInt(n)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return
		}
		parts := strings.Split(value, ",")
		out := make([]string, len(parts))
		for i, part := range parts {
			out[i] = strings.TrimSpace(part)
		}
		field.Set(reflect.ValueOf(out))
	}
}

// LoadLoggingConfig reads the [logging] table from the config file. The
// "level" and "format" keys are global, every other key sets a per-module
// level. Missing or unreadable files yield defaults.
func LoadLoggingConfig(path string) logging.Config {
	cfg := logging.Config{
		Level:   "info",
		Format:  "text",
		Modules: make(map[string]string),
	}

	if path == "" {
		return cfg
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	var doc struct {
		Logging map[string]string `toml:"logging"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return cfg
	}

	for key, value := range doc.Logging {
		switch key {
		case "level":
			cfg.Level = value
		case "format":
			cfg.Format = value
		default:
			cfg.Modules[key] = value
		}
	}
	return cfg
}
