package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

var envKeyReplacer = strings.NewReplacer(".", "_")

// Keys lists every setting sheetkit reads.
var Keys = []string{
	"output.color",
	"output.format",
	"read.keep_calc_chain",
	"verbose",
	"write.atomic",
	"write.compression",
}

// ConfigIssue represents a validation finding.
type ConfigIssue struct {
	Key      string `json:"key"`
	Severity string `json:"severity"` // "error", "warning"
	Message  string `json:"message"`
	Fix      string `json:"fix"`
}

// Validate checks config values and returns a list of issues.
func Validate() []ConfigIssue {
	var issues []ConfigIssue

	switch c := viper.GetString("write.compression"); c {
	case CompressionDeflate, CompressionStore:
	default:
		issues = append(issues, ConfigIssue{
			Key:      "write.compression",
			Severity: "error",
			Message:  fmt.Sprintf("unknown compression %q", c),
			Fix:      "sheetkit config set write.compression deflate",
		})
	}

	switch f := viper.GetString("output.format"); f {
	case "text", "json":
	default:
		issues = append(issues, ConfigIssue{
			Key:      "output.format",
			Severity: "error",
			Message:  fmt.Sprintf("unknown output format %q", f),
			Fix:      "sheetkit config set output.format text",
		})
	}

	if !viper.GetBool("write.atomic") {
		issues = append(issues, ConfigIssue{
			Key:      "write.atomic",
			Severity: "warning",
			Message:  "write.atomic is off: an interrupted save can leave a truncated workbook",
			Fix:      "sheetkit config set write.atomic true",
		})
	}
	return issues
}

// ToEnv returns all config values as a map of env var name -> value.
func ToEnv() map[string]string {
	env := make(map[string]string, len(Keys))
	for _, key := range Keys {
		if v := viper.GetString(key); v != "" {
			env["SHEETKIT_"+strings.ToUpper(envKeyReplacer.Replace(key))] = v
		}
	}
	return env
}

// IsKey reports whether key is a known setting.
func IsKey(key string) bool {
	i := sort.SearchStrings(Keys, key)
	return i < len(Keys) && Keys[i] == key
}

// Set sets a config value and saves to disk.
func Set(key, value string) error {
	if !IsKey(key) {
		return fmt.Errorf("unknown config key %q (known: %s)", key, strings.Join(Keys, ", "))
	}
	viper.Set(key, value)
	return SaveConfig()
}

// Get retrieves a config value.
func Get(key string) string {
	return viper.GetString(key)
}

// ResetConfig deletes the config file and restores defaults.
func ResetConfig() error {
	path := ConfigPath()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("could not delete config: %w", err)
	}
	for _, key := range Keys {
		viper.Set(key, nil)
	}
	setDefaults()
	return nil
}

// SaveConfig writes the current config to ~/.sheetkit/config.yaml.
func SaveConfig() error {
	dir := configDir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("could not create config directory: %w", err)
	}

	path := filepath.Join(dir, "config.yaml")
	if err := viper.WriteConfigAs(path); err != nil {
		return fmt.Errorf("could not write config: %w", err)
	}
	os.Chmod(path, 0600)
	return nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// ShowConfig returns a formatted string of the current configuration.
func ShowConfig() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Config: %s\n\n", ConfigPath()))
	for _, key := range Keys {
		sb.WriteString(fmt.Sprintf("  %-22s %s\n", key+":", viper.GetString(key)))
	}
	return sb.String()
}
