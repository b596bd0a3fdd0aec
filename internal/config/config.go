package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix      = "SPEECH2TEXT"
	DefaultEnvFile = ".env"

	// FallbackAPIKeyEnv is consulted when SPEECH2TEXT_API_KEY is unset.
	FallbackAPIKeyEnv = "OPENAI_API_KEY"

	// MaxUploadLimitMB caps --max-upload-mb at 1 TiB.
	MaxUploadLimitMB = 1 << 20
)

// Settings is the resolved configuration of one command invocation.
type Settings struct {
	Verbose     bool
	JSON        bool
	LogLevel    string
	NoProgress  bool
	APIKey      string
	APIBaseURL  string
	StagingDir  string
	FFmpeg      string
	FFprobe     string
	Addr        string
	MaxUploadMB int64
	Output      string
}

// LoadEnvFile merges KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is only
// an error when required is true.
func LoadEnvFile(path string, required bool) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("env file %s: %w", path, err)
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Bind returns a viper instance where every flag in flags can also be set
// through SPEECH2TEXT_<FLAG_NAME>. Explicit flags win over the environment.
func Bind(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}
	if flags.Lookup("api-key") != nil {
		if err := v.BindEnv("api-key", EnvPrefix+"_API_KEY", FallbackAPIKeyEnv); err != nil {
			return nil, fmt.Errorf("bind api key env: %w", err)
		}
	}
	return v, nil
}

func Resolve(flags *pflag.FlagSet) (Settings, error) {
	v, err := Bind(flags)
	if err != nil {
		return Settings{}, err
	}

	s := Settings{
		Verbose:     v.GetBool("verbose"),
		JSON:        v.GetBool("json"),
		LogLevel:    strings.TrimSpace(v.GetString("log-level")),
		NoProgress:  v.GetBool("no-progress"),
		APIKey:      strings.TrimSpace(v.GetString("api-key")),
		APIBaseURL:  strings.TrimSpace(v.GetString("api-base-url")),
		StagingDir:  strings.TrimSpace(v.GetString("staging-dir")),
		FFmpeg:      strings.TrimSpace(v.GetString("ffmpeg")),
		FFprobe:     strings.TrimSpace(v.GetString("ffprobe")),
		Addr:        strings.TrimSpace(v.GetString("addr")),
		MaxUploadMB: v.GetInt64("max-upload-mb"),
		Output:      strings.TrimSpace(v.GetString("output")),
	}

	if flags.Lookup("max-upload-mb") != nil {
		if s.MaxUploadMB <= 0 {
			return Settings{}, fmt.Errorf("max-upload-mb must be positive, got %d", s.MaxUploadMB)
		}
		if s.MaxUploadMB > MaxUploadLimitMB {
			return Settings{}, fmt.Errorf("max-upload-mb must be at most %d, got %d", MaxUploadLimitMB, s.MaxUploadMB)
		}
	}
	return s, nil
}
