// Package config provides configuration management for the THREDDS mirror
// worker. It handles loading and validating configuration from YAML files
// and environment variables, mirroring the teacher's layered koanf setup.
package config

// AppConfig represents the complete application configuration.
type AppConfig struct {
	Run           RunConfig           `koanf:"run"`
	Log           LogConfig           `koanf:"log"`
	Metrics       MetricsConfig       `koanf:"metrics"`
	Backend       BackendConfig       `koanf:"backend"`
	MetadataStore MetadataStoreConfig `koanf:"metadata_store"`
	Notification  NotificationConfig  `koanf:"notification"`
}

// RunConfig holds the run-scoped knobs spec.md §6 assigns to the CLI/env
// collaborator. The core reconciliation engine never reads these itself;
// cmd/ translates RunConfig into a reconcile.RunOptions per invocation.
type RunConfig struct {
	// DryRun logs intended transfers without touching the temp directory
	// or the sink. If an invalid DRYRUN environment value is supplied,
	// the loader defaults this to true for safety (see envTransform and
	// resolveDryRun).
	DryRun bool `koanf:"dry_run"`

	// Limit caps the number of successful downloads per definition.
	// Negative means unlimited, 0 means "do nothing". Default -1.
	Limit int `koanf:"limit"`

	// DefinitionID restricts the run to one definition, including
	// disabled ones. Empty means "every enabled definition".
	DefinitionID string `koanf:"definition_id"`

	// Files overrides the definition's filename filter. Only meaningful
	// together with DefinitionID.
	Files []string `koanf:"files"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsConfig holds the Prometheus exposition server configuration.
type MetricsConfig struct {
	ListenAddr string `koanf:"listen_addr"`
}

// BackendConfig holds sink backend configuration, covering both supported
// Output types (spec.md §6: S3 and FILE).
type BackendConfig struct {
	S3AccessKey            string `koanf:"s3_access_key"`
	S3SecretKey             string `koanf:"s3_secret_key"`
	S3Region                string `koanf:"s3_region"`
	S3Endpoint              string `koanf:"s3_endpoint"` // custom endpoint, e.g. for MinIO
	S3ServerSideEncryption  string `koanf:"s3_server_side_encryption"`
	S3ForcePathStyle        bool   `koanf:"s3_force_path_style"`
	CatalogueFetchTimeout   string `koanf:"catalogue_fetch_timeout"`
	HTTPInsecureSkipVerify  bool   `koanf:"http_insecure_skip_verify"`
}

// MetadataStoreConfig selects and configures the metadatastore backend.
type MetadataStoreConfig struct {
	// Type selects the backing store: "postgres" or "sqlite".
	Type       string `koanf:"type"`
	DSN        string `koanf:"dsn"`
	SQLitePath string `koanf:"sqlite_path"`

	// Cache, when enabled, wraps the selected backend in a
	// metadatastore/rediscache read-through layer.
	CacheEnabled   bool   `koanf:"cache_enabled"`
	RedisAddr      string `koanf:"redis_addr"`
	RedisPassword  string `koanf:"redis_password"`
	RedisDB        int    `koanf:"redis_db"`
	RedisKeyPrefix string `koanf:"redis_key_prefix"`
	CacheTTL       string `koanf:"cache_ttl"`
}

// NotificationConfig holds the three notification channel identifiers
// spec.md §6 says are read from the environment, plus the AWS region the
// SNS client is constructed against.
type NotificationConfig struct {
	Region                   string `koanf:"region"`
	DownloadCompleteTopicARN string `koanf:"download_complete_topic_arn"`
	FinalAggregateTopicARN   string `koanf:"final_aggregate_topic_arn"`
	AdministrativeTopicARN   string `koanf:"administrative_topic_arn"`
}
