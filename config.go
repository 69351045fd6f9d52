package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "ENERGY_REPORT"

type settings struct {
	JobsFile    string `mapstructure:"jobs"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
	Parallel    int    `mapstructure:"parallel"`
	DatabaseURL string `mapstructure:"database_url"`
	Addr        string `mapstructure:"addr"`
	JWTSecret   string `mapstructure:"jwt_secret"`
	DailyAt     string `mapstructure:"daily_at"`
	S3Region    string `mapstructure:"s3_region"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("jobs", "config/jobs.yaml")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "auto")
	v.SetDefault("parallel", 1)
	v.SetDefault("database_url", "")
	v.SetDefault("addr", ":8080")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("daily_at", "")
	v.SetDefault("s3_region", "")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// loadSettings merges flags, ENERGY_REPORT_* variables and the optional settings file, in that order of precedence.
func loadSettings(v *viper.Viper, cmd *cobra.Command) (settings, error) {
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return settings{}, err
	}
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return settings{}, fmt.Errorf("failed to read settings file: %w", err)
		}
	}
	var s settings
	if err := v.Unmarshal(&s); err != nil {
		return settings{}, fmt.Errorf("failed to parse settings: %w", err)
	}
	if s.JobsFile == "" {
		return settings{}, fmt.Errorf("jobs file is required")
	}
	if s.DailyAt != "" {
		if _, err := time.Parse("15:04", s.DailyAt); err != nil {
			return settings{}, fmt.Errorf("daily_at must be HH:MM: %w", err)
		}
	}
	return s, nil
}

func newLogger(s settings, out io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(s.LogLevel))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log_level %q: %w", s.LogLevel, err)
	}
	switch s.LogFormat {
	case "console":
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	case "json":
	case "auto", "":
		if isTerminal(out) {
			out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		}
	default:
		return zerolog.Nop(), fmt.Errorf("invalid log_format %q", s.LogFormat)
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}
