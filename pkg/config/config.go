package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the server configuration. Values come from defaults, an optional
// config file, and M4B_-prefixed environment variables, in increasing order
// of precedence.
type Config struct {
	ListenAddr   string `mapstructure:"listen_addr"`
	DatabasePath string `mapstructure:"database_path"`

	SourceDir     string `mapstructure:"source_dir"`
	ProcessingDir string `mapstructure:"processing_dir"`
	ReadyDir      string `mapstructure:"ready_dir"`
	CoversDir     string `mapstructure:"covers_dir"`
	LibraryDir    string `mapstructure:"library_dir"`

	FFmpegBinary string   `mapstructure:"ffmpeg_binary"`
	Formats      []string `mapstructure:"formats"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("database_path", "data/m4bforge.db")
	v.SetDefault("source_dir", "source")
	v.SetDefault("processing_dir", "data/processing")
	v.SetDefault("ready_dir", "data/ready")
	v.SetDefault("covers_dir", "data/covers")
	v.SetDefault("library_dir", "data/library")
	v.SetDefault("ffmpeg_binary", "ffmpeg")
	v.SetDefault("formats", []string{".mp3"})
}

// Load reads the configuration. path may name an explicit config file; when
// empty, m4bforge.yaml is searched for in the working directory and
// /etc/m4bforge. A missing config file is fine, defaults plus environment
// apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("M4B")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("m4bforge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/m4bforge")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// EnsureDirs creates every data directory the server writes to.
func (c *Config) EnsureDirs() error {
	dirs := []string{
		filepath.Dir(c.DatabasePath),
		c.SourceDir,
		c.ProcessingDir,
		c.ReadyDir,
		c.CoversDir,
		c.LibraryDir,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	return nil
}

// DatabaseDSN returns the SQLite DSN with WAL and a busy timeout enabled, so
// concurrent job writers queue instead of erroring.
func (c *Config) DatabaseDSN() string {
	return c.DatabasePath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}
