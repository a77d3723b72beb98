// Package config manages application configuration from files and environment.
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/klytics/sheetkit/internal/workbook"
)

// Config holds the application configuration.
type Config struct {
	Verbose bool `mapstructure:"verbose"`
	Output  struct {
		Format string `mapstructure:"format"`
		Color  bool   `mapstructure:"color"`
	} `mapstructure:"output"`
	Write struct {
		Compression string `mapstructure:"compression"`
		Atomic      bool   `mapstructure:"atomic"`
	} `mapstructure:"write"`
	Read struct {
		KeepCalcChain bool `mapstructure:"keep_calc_chain"`
	} `mapstructure:"read"`
}

// Compression values accepted for write.compression.
const (
	CompressionDeflate = "deflate"
	CompressionStore   = "store"
)

// Load reads the configuration from ~/.sheetkit/config.yaml and environment variables.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir())

	setDefaults()

	// SHEETKIT_WRITE_ATOMIC overrides write.atomic, and so on.
	viper.SetEnvPrefix("SHEETKIT")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	// Read config file (non-fatal if missing)
	_ = viper.ReadInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Store reports whether archives should be written without compression.
func (c *Config) Store() bool {
	return c.Write.Compression == CompressionStore
}

// SaveOptions translates the write section into workbook save options.
func (c *Config) SaveOptions() workbook.SaveOptions {
	return workbook.SaveOptions{
		NoCompression: c.Store(),
		Direct:        !c.Write.Atomic,
	}
}

// ReadOptions translates the read section into workbook options. log may be
// nil.
func (c *Config) ReadOptions(log workbook.Logger) []workbook.Option {
	opts := []workbook.Option{workbook.KeepCalcChain(c.Read.KeepCalcChain)}
	if log != nil {
		opts = append(opts, workbook.WithLogger(log))
	}
	return opts
}

func setDefaults() {
	viper.SetDefault("verbose", false)
	viper.SetDefault("output.color", true)
	viper.SetDefault("output.format", "text")
	viper.SetDefault("write.compression", CompressionDeflate)
	viper.SetDefault("write.atomic", true)
	viper.SetDefault("read.keep_calc_chain", false)
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sheetkit"
	}
	return filepath.Join(home, ".sheetkit")
}
