package main

import (
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/goodtune/idlewatch/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	validateDump bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the idlewatch configuration file for syntax and semantic errors.`,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDump, "dump", false, "Dump the effective configuration as YAML with modified values highlighted")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return err
	}

	source := cfg.Source
	if source == "" {
		source = "(no file, defaults and environment only)"
	}

	// Check for unknown keys
	var unknownKeys []string
	if cfg.Source != "" {
		unknownKeys, err = findUnknownKeys(cfg.Source)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "⚠️  Warning: Could not check for unknown keys: %v\n", err)
		}
	}

	_, _ = fmt.Fprintf(os.Stdout, "✅ Configuration is valid: %s\n", source)

	// Warn about unknown keys
	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)
		fmt.Fprintln(os.Stdout)
		red.Fprintf(os.Stdout, "⚠️  WARNING: Found %d unknown configuration key(s):\n", len(unknownKeys))
		for _, key := range unknownKeys {
			red.Fprintf(os.Stdout, "   - %s\n", key)
		}
		fmt.Fprintln(os.Stdout, "\nThese keys will be ignored and may indicate typos or deprecated settings.")
	}

	if validateDump {
		return dumpConfig(cfg, config.Defaults())
	}

	return nil
}

// findUnknownKeys loads the config file and checks for unknown keys
func findUnknownKeys(configPath string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	validKeys := config.ValidKeys()

	unknown := []string{}
	for _, key := range v.AllKeys() {
		if !validKeys[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)

	return unknown, nil
}

// dumpConfig prints cfg as YAML and lists the keys that differ from defaults
func dumpConfig(cfg, defaultCfg *config.Config) error {
	redacted := *cfg
	redacted.Storage.Redis.Password = redactPassword(cfg.Storage.Redis.Password)

	out, err := yaml.Marshal(&redacted)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}

	modified, err := modifiedKeys(&redacted, defaultCfg)
	if err != nil {
		return err
	}

	yellow := color.New(color.FgYellow, color.Bold)
	cyan := color.New(color.FgCyan, color.Bold)

	_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
	_, _ = fmt.Fprintln(os.Stdout, "EFFECTIVE CONFIGURATION")
	_, _ = fmt.Fprintln(os.Stdout, strings.Repeat("=", 80))
	_, _ = fmt.Fprint(os.Stdout, string(out))

	if len(modified) > 0 {
		_, _ = cyan.Println("\n[modified from default]")
		for _, m := range modified {
			_, _ = yellow.Printf("  %s = %v  (default: %v)\n", m.key, m.value, m.def)
		}
	}

	_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
	return nil
}

type modifiedKey struct {
	key   string
	value interface{}
	def   interface{}
}

// modifiedKeys compares two configurations key by key
func modifiedKeys(cfg, defaultCfg *config.Config) ([]modifiedKey, error) {
	current, err := flattenYAML(cfg)
	if err != nil {
		return nil, err
	}
	defaults, err := flattenYAML(defaultCfg)
	if err != nil {
		return nil, err
	}

	var out []modifiedKey
	for key, value := range current {
		if def, ok := defaults[key]; !ok || !reflect.DeepEqual(value, def) {
			out = append(out, modifiedKey{key: key, value: value, def: defaults[key]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out, nil
}

// flattenYAML round-trips v through YAML and returns its leaves keyed by
// dotted path
func flattenYAML(v interface{}) (map[string]interface{}, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, err
	}

	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, err
	}

	flat := make(map[string]interface{})
	var walk func(prefix string, node map[string]interface{})
	walk = func(prefix string, node map[string]interface{}) {
		for k, val := range node {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if child, ok := val.(map[string]interface{}); ok {
				walk(key, child)
				continue
			}
			flat[key] = val
		}
	}
	walk("", tree)
	return flat, nil
}

// redactPassword redacts password if not empty
func redactPassword(password string) string {
	if password == "" {
		return ""
	}
	return "***REDACTED***"
}
