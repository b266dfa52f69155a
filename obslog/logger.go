// Package obslog builds the structured zap logger this worker uses
// throughout, ported from the teacher's cmd.initializeLogger construction
// (level/format driven by config.LogConfig) plus the log-sanitization
// conventions from its core/log package, adapted from path/user-id
// sanitization to catalogue-source and DSN sanitization.
package obslog

import "go.uber.org/zap"

// New builds a *zap.Logger from level/format settings, mirroring the
// teacher's level switch and its json-vs-console format choice.
func New(level, format string) (*zap.Logger, error) {
	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return cfg.Build()
}
