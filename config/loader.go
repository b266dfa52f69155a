package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// envPrefix is the environment variable prefix for every knob this worker
// reads, per spec.md §6 framing config as the CLI/env collaborator's job.
const envPrefix = "EREEFS_"

// LoadConfig loads configuration from multiple sources with strict priority:
// 1. Environment variables (highest priority)
// 2. Config file (config.yaml or config.json)
// 3. Defaults (lowest priority)
func LoadConfig() (AppConfig, error) {
	return LoadConfigFromFile("")
}

// LoadConfigFromFile loads configuration from multiple sources with a
// specific config file, using the same three-layer priority as LoadConfig.
func LoadConfigFromFile(configFilePath string) (AppConfig, error) {
	k := koanf.New(".")

	defaultCfg := DefaultAppConfig()
	if err := k.Load(structs.Provider(defaultCfg, "koanf"), nil); err != nil {
		return AppConfig{}, fmt.Errorf("config: load defaults: %w", err)
	}

	if configFilePath != "" {
		if _, err := os.Stat(configFilePath); err != nil {
			return AppConfig{}, fmt.Errorf("config: specified file %s not found: %w", configFilePath, err)
		}
		if err := k.Load(file.Provider(configFilePath), configParser(configFilePath)); err != nil {
			return AppConfig{}, fmt.Errorf("config: load file %s: %w", configFilePath, err)
		}
	} else {
		for _, candidate := range []string{"config.yaml", "config.yml", "config.json"} {
			if _, err := os.Stat(candidate); err == nil {
				if err := k.Load(file.Provider(candidate), configParser(candidate)); err != nil {
					return AppConfig{}, fmt.Errorf("config: load file %s: %w", candidate, err)
				}
				break
			}
		}
	}

	if err := k.Load(env.ProviderWithValue(envPrefix, ".", envTransform), nil); err != nil {
		return AppConfig{}, fmt.Errorf("config: load environment variables: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	// dry_run gets its own safety pass: an EREEFS_RUN_DRY_RUN value that
	// koanf/mapstructure could not parse as a bool must still force
	// DryRun to true, per spec.md §6, rather than silently keeping the
	// default or erroring out.
	cfg.Run.DryRun = resolveDryRun(cfg.Run.DryRun)

	if err := validateConfig(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("config: validation: %w", err)
	}

	return cfg, nil
}

func configParser(path string) koanf.Parser {
	switch {
	case strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml"):
		return yaml.Parser()
	case strings.HasSuffix(path, ".json"):
		return json.Parser()
	}
	return nil
}

// envTransform maps EREEFS_RUN_FILES (and any other snake_case env var)
// to its dotted koanf key, and splits comma-separated values for the
// handful of keys that koanf should treat as a slice.
func envTransform(rawKey, value string) (string, interface{}) {
	name := strings.ToLower(strings.TrimPrefix(rawKey, envPrefix))
	key := strings.Replace(name, "_", ".", -1)
	for _, section := range []string{"metadata_store", "run", "log", "metrics", "backend", "notification"} {
		if strings.HasPrefix(name, section+"_") {
			key = section + "." + strings.TrimPrefix(name, section+"_")
			break
		}
	}
	if key == "run.dry_run" {
		if _, err := strconv.ParseBool(value); err != nil {
			return key, true
		}
	}
	if key == "run.files" {
		parts := strings.Split(value, ",")
		files := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				files = append(files, p)
			}
		}
		return key, files
	}
	return key, value
}

// resolveDryRun re-reads EREEFS_RUN_DRY_RUN directly so an unparseable
// value can be forced to true instead of silently falling through to
// whatever mapstructure happened to coerce it to.
func resolveDryRun(parsed bool) bool {
	raw, ok := os.LookupEnv(envPrefix + "RUN_DRY_RUN")
	if !ok {
		return parsed
	}
	if _, err := strconv.ParseBool(raw); err != nil {
		return true
	}
	return parsed
}

// validateConfig validates that required configuration fields are set.
func validateConfig(cfg *AppConfig) error {
	if cfg.MetadataStore.Type != "postgres" && cfg.MetadataStore.Type != "sqlite" {
		return fmt.Errorf("metadata_store.type must be \"postgres\" or \"sqlite\", got %q", cfg.MetadataStore.Type)
	}
	if cfg.MetadataStore.Type == "postgres" && cfg.MetadataStore.DSN == "" {
		return fmt.Errorf("metadata_store.dsn is required when metadata_store.type is postgres")
	}
	if cfg.MetadataStore.Type == "sqlite" && cfg.MetadataStore.SQLitePath == "" {
		return fmt.Errorf("metadata_store.sqlite_path is required when metadata_store.type is sqlite")
	}
	if cfg.MetadataStore.CacheEnabled && cfg.MetadataStore.RedisAddr == "" {
		return fmt.Errorf("metadata_store.redis_addr is required when metadata_store.cache_enabled is true")
	}
	if cfg.Run.Files != nil && cfg.Run.DefinitionID == "" {
		return fmt.Errorf("run.files is only meaningful together with run.definition_id")
	}
	return nil
}
