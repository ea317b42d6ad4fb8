package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type StorageConfig struct {
	OrgName   string `mapstructure:"org-name"`
	GroupName string `mapstructure:"group-name"`
	ApiToken  string `mapstructure:"api-token"`
	AuthToken string `mapstructure:"auth-token"`
	MetaName  string `mapstructure:"meta-name"`
	LocalPath string `mapstructure:"local-path"`
}

type Config struct {
	BenchmarksDir string        `mapstructure:"benchmarks-dir"`
	SQLDir        string        `mapstructure:"sql-dir"`
	LogLevel      string        `mapstructure:"log-level"`
	Naming        NamingPolicy  `mapstructure:"naming"`
	Storage       StorageConfig `mapstructure:"storage"`
	S3            S3Config      `mapstructure:"s3"`

	ActiveBenchmarks []string            `mapstructure:"-"`
	ActiveVariables  map[string][]string `mapstructure:"-"`
	LoadMode         LoadMode            `mapstructure:"-"`
}

func (c *Config) LoaderConfig() LoaderConfig {
	return LoaderConfig{
		ActiveBenchmarks: c.ActiveBenchmarks,
		ActiveVariables:  c.ActiveVariables,
		Mode:             c.LoadMode,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("benchmarks-dir", "benchmarks")
	v.SetDefault("sql-dir", "sql")
	v.SetDefault("active-benchmarks", "")
	v.SetDefault("active-variables", "")
	v.SetDefault("load-mode", FailFast.String())
	v.SetDefault("log-level", "info")

	v.SetDefault("naming.prefix", "")
	v.SetDefault("naming.separator", "_")
	v.SetDefault("naming.max-length", 200)

	v.SetDefault("storage.org-name", "")
	v.SetDefault("storage.group-name", "benchto")
	v.SetDefault("storage.api-token", "")
	v.SetDefault("storage.auth-token", "")
	v.SetDefault("storage.meta-name", "benchto-meta")
	v.SetDefault("storage.local-path", "")

	v.SetDefault("s3.region", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.path-style", false)
}

// LoadConfig layers defaults, the optional config file, .env and BENCHTO_*
// environment variables (later wins).
func LoadConfig(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("BENCHTO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, legacy := range map[string]string{
		"log-level":          "LOG_LEVEL",
		"storage.org-name":   "TURSO_ORG_NAME",
		"storage.group-name": "TURSO_GROUP_NAME",
		"storage.api-token":  "TURSO_API_TOKEN",
		"storage.auth-token": "TURSO_AUTH_TOKEN",
		"storage.meta-name":  "TURSO_META_NAME",
	} {
		envKey := "BENCHTO_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
		if err := v.BindEnv(key, envKey, legacy); err != nil {
			return nil, err
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %v: %w", configFile, err)
		}
	} else {
		v.SetConfigName("benchto")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.ActiveBenchmarks = toList(v.Get("active-benchmarks"))
	variables, err := parseActiveVariables(v.Get("active-variables"))
	if err != nil {
		return nil, err
	}
	cfg.ActiveVariables = variables
	cfg.LoadMode, err = ParseLoadMode(v.GetString("load-mode"))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// toList accepts a yaml list or a comma separated string.
func toList(value any) []string {
	items := make([]string, 0)
	switch value := value.(type) {
	case string:
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
	case []string:
		for _, item := range value {
			items = append(items, toList(item)...)
		}
	case []any:
		for _, item := range value {
			items = append(items, toList(fmt.Sprint(item))...)
		}
	}
	return items
}

// parseActiveVariables reads "name=value" entries or a mapping from variable
// name to allowed values.
func parseActiveVariables(value any) (map[string][]string, error) {
	result := make(map[string][]string)
	if mapping, ok := value.(map[string]any); ok {
		for name, allowed := range mapping {
			switch allowed.(type) {
			case string, []string, []any:
				result[name] = toList(allowed)
			default:
				result[name] = []string{fmt.Sprint(allowed)}
			}
		}
		return result, nil
	}
	for _, entry := range toList(value) {
		name, allowed, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid active variable '%v', expected name=value", entry)
		}
		name = strings.TrimSpace(name)
		result[name] = append(result[name], strings.TrimSpace(allowed))
	}
	return result, nil
}
